// Package category classifies uploaded documents into the fixed set of
// answering domains. Classification drives which prompt template the
// answering pipeline uses for a space.
package category

import "strings"

// Category labels a document's answering domain.
type Category string

const (
	Interview      Category = "interview"
	Financial      Category = "financial"
	InteriorDesign Category = "interior_design"
	Unknown        Category = "unknown"
)

// Classifier assigns a category to an uploaded file. Implementations decide
// based on whatever signal they have; the default uses the file name only.
// The second return value reports whether the file matched any category at
// all — unmatched files are rejected from indexing.
type Classifier interface {
	Classify(filename string) (Category, bool)
}

// KeywordClassifier matches case-insensitive keywords in the file name.
// This is a deliberately simple heuristic kept behind the Classifier
// interface so a content-based strategy can replace it later.
type KeywordClassifier struct{}

// NewKeywordClassifier returns the default filename-keyword classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

var keywords = []struct {
	substr string
	cat    Category
}{
	{"interview", Interview},
	{"financial", Financial},
	{"interior", InteriorDesign},
}

// Classify matches the lowercased file name against the keyword table.
// The first matching keyword wins.
func (KeywordClassifier) Classify(filename string) (Category, bool) {
	name := strings.ToLower(filename)
	for _, kw := range keywords {
		if strings.Contains(name, kw.substr) {
			return kw.cat, true
		}
	}
	return Unknown, false
}
