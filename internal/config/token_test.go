package config

import "testing"

func TestGetAPIToken_GeneratedOnceAndStable(t *testing.T) {
	b := &memBackend{data: map[string]any{}}

	first, err := getAPIToken(b)
	if err != nil {
		t.Fatalf("getAPIToken: %v", err)
	}
	if first == "" {
		t.Fatal("empty token generated")
	}

	second, err := getAPIToken(b)
	if err != nil {
		t.Fatalf("second getAPIToken: %v", err)
	}
	if second != first {
		t.Errorf("token changed between calls: %q then %q", first, second)
	}
}
