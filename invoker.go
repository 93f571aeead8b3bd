package companioncore

import "context"

// ──────────────────────────────────────────────
// LLM Invoker Seam — capability contracts consumed by the turn core
// ──────────────────────────────────────────────
//
// The core never talks to a provider SDK. Callers hand in two functions:
// one for free-text completion (drafts, interceptor replies, judging) and
// one for structured-output classification (mode detection, relationship
// analysis). Both report failure as an ordinary error value; every call
// site in this package treats that error as a designed branch with its
// own fallback, never as a reason to abort the turn.

// Message is one entry of the ordered conversation history.
type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// Text implements TextBearing.
func (m Message) Text() string { return m.Content }

// TextBearing is the narrow contract for anything message-shaped.
// Any representation exposing its text satisfies the core; no attribute
// probing is ever performed.
type TextBearing interface {
	Text() string
}

// CompleteFunc is the free-text generation capability.
type CompleteFunc func(ctx context.Context, messages []Message) (string, error)

// ClassifyFunc is the structured-output capability. The implementation
// renders prompt, performs one schema-constrained call, and decodes the
// result into out (a pointer to a JSON-taggable struct).
type ClassifyFunc func(ctx context.Context, prompt string, out interface{}) error
