package document

import (
	"strings"
	"testing"
)

func TestSplit_ShortPageSingleChunk(t *testing.T) {
	pages := []Page{{Text: "short page", Number: 3}}

	chunks := Split(pages, 1000, 200)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "short page" || chunks[0].Page != 3 {
		t.Errorf("chunk = %+v", chunks[0])
	}
}

func TestSplit_OverlapCoversWholeText(t *testing.T) {
	words := make([]string, 400)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")
	pages := []Page{{Text: text, Number: 1}}

	chunks := Split(pages, 200, 50)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c.Text)) > 200 {
			t.Errorf("chunk %d has %d runes, want <= 200", i, len([]rune(c.Text)))
		}
		if c.Page != 1 {
			t.Errorf("chunk %d page = %d, want 1", i, c.Page)
		}
	}

	// Consecutive chunks must share overlapping content.
	first := chunks[0].Text
	second := chunks[1].Text
	tail := first[len(first)-20:]
	if !strings.Contains(second, strings.TrimSpace(tail)) {
		t.Errorf("no overlap between chunk 0 and chunk 1:\n%q\n%q", first, second)
	}
}

func TestSplit_ChunksNeverSpanPages(t *testing.T) {
	pages := []Page{
		{Text: strings.Repeat("alpha ", 100), Number: 1},
		{Text: strings.Repeat("beta ", 100), Number: 2},
	}

	chunks := Split(pages, 200, 50)
	for _, c := range chunks {
		hasAlpha := strings.Contains(c.Text, "alpha")
		hasBeta := strings.Contains(c.Text, "beta")
		if hasAlpha && hasBeta {
			t.Errorf("chunk spans pages: %q", c.Text)
		}
		if hasAlpha && c.Page != 1 || hasBeta && c.Page != 2 {
			t.Errorf("chunk page %d mismatches content %q", c.Page, c.Text[:20])
		}
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	if got := Split(nil, 1000, 200); got != nil {
		t.Errorf("Split(nil) = %v, want nil", got)
	}
	if got := Split([]Page{{Text: "", Number: 1}}, 1000, 200); got != nil {
		t.Errorf("Split(empty page) = %v, want nil", got)
	}
}

func TestSplit_BadParamsFallBack(t *testing.T) {
	pages := []Page{{Text: "some text here", Number: 1}}

	// Zero chunk size and oversized overlap must not panic or loop forever.
	chunks := Split(pages, 0, 5000)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
}
