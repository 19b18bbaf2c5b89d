package document

import "strings"

// Chunk is one overlapping slice of a page's text, carrying the page number
// so answers can cite it.
type Chunk struct {
	Text string
	Page int
}

// Split cuts each page into chunks of at most chunkSize runes with the given
// overlap between consecutive chunks. Chunks never span page boundaries so
// page attribution stays exact. Split is a pure, restartable transform.
func Split(pages []Page, chunkSize, overlap int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	var chunks []Chunk
	for _, p := range pages {
		for _, text := range splitText(p.Text, chunkSize, overlap) {
			chunks = append(chunks, Chunk{Text: text, Page: p.Number})
		}
	}
	return chunks
}

// splitText windows over the text in rune units, preferring to end a chunk
// at the last whitespace inside the window so words stay intact.
func splitText(text string, chunkSize, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	var out []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			out = append(out, strings.TrimSpace(string(runes[start:])))
			break
		}

		// Break at the last whitespace in the window when one exists past
		// the halfway point; otherwise cut mid-word.
		cut := end
		for i := end; i > start+chunkSize/2; i-- {
			if isSpace(runes[i-1]) {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimSpace(string(runes[start:cut])))

		next := cut - overlap
		if next <= start {
			next = start + step
		}
		start = next
	}

	// Drop empties produced by whitespace-heavy input.
	filtered := out[:0]
	for _, s := range out {
		if s != "" {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
