package pipeline

import (
	"fmt"
	"strings"

	"docspace/internal/retrieval"
)

// systemInstructions selects the assistant's persona by the space's primary
// document category. All categories share the same retrieval and synthesis
// flow; only this opening instruction differs.
var systemInstructions = map[string]string{
	"interview": "You are an interview preparation assistant. Help the user get ready " +
		"for interviews using their uploaded preparation material: answer questions about " +
		"techniques, suggest strong example answers, and point at the relevant sections.",
	"financial": "You are a financial document analyst. Answer questions about the " +
		"user's uploaded financial documents precisely, quoting figures exactly as they " +
		"appear and never estimating numbers that are not in the documents.",
	"interior_design": "You are an interior design consultant. Use the user's uploaded " +
		"design documents to advise on styles, materials, and layout choices described in them.",
	"default": "You are a helpful assistant answering questions about the user's uploaded documents.",
}

// instructionFor returns the system instruction for a category, falling back
// to the default persona for unknown or empty categories.
func instructionFor(category string) string {
	if inst, ok := systemInstructions[category]; ok {
		return inst
	}
	return systemInstructions["default"]
}

const synthesisRules = `Ground every answer in the document context below.
Cite page numbers when the context provides them.
If the user is only greeting or making small talk, greet them back briefly.
If the context does not contain the answer, say so plainly instead of guessing.`

const rewriteInstruction = `Given a chat history and the latest user question, which might reference ` +
	`context in the history, rewrite the question as a standalone question that can be understood ` +
	`without the history. Do NOT answer it. Return only the rewritten question, nothing else.`

// contextBlock renders retrieved chunks with their source and page so the
// model can cite them.
func contextBlock(chunks []retrieval.ContextChunk) string {
	if len(chunks) == 0 {
		return "No document context was retrieved for this question."
	}
	var sb strings.Builder
	for _, ch := range chunks {
		fmt.Fprintf(&sb, "[%s, page %d]\n%s\n\n", ch.Source, ch.Page, ch.Text)
	}
	return strings.TrimSpace(sb.String())
}
