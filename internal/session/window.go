package session

// Window is the rolling buffer of recent user utterances fed to the query
// rewriting step. It is much smaller than the persisted transcript and never
// grows past its capacity.
type Window struct {
	capacity int
	items    []string
}

// NewWindow creates a window holding at most capacity utterances.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 4
	}
	return &Window{capacity: capacity}
}

// Add appends an utterance, evicting the oldest when full.
func (w *Window) Add(utterance string) {
	w.items = append(w.items, utterance)
	if len(w.items) > w.capacity {
		w.items = w.items[len(w.items)-w.capacity:]
	}
}

// Items returns a copy of the buffered utterances, oldest first.
func (w *Window) Items() []string {
	out := make([]string, len(w.items))
	copy(out, w.items)
	return out
}

// Reset empties the window.
func (w *Window) Reset() {
	w.items = w.items[:0]
}

// Len returns the number of buffered utterances.
func (w *Window) Len() int { return len(w.items) }
