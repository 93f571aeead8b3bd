package companioncore

import (
	"fmt"
	"strings"
)

// ──────────────────────────────────────────────
// Leak Guard — refuses internal-state text on outbound channels
// ──────────────────────────────────────────────
//
// Internal reasoning leaking into a user-facing or persisted channel is
// a correctness violation, not an operational hiccup: the affected write
// gets a hard error instead of a degraded default.

// LeakDetectedError reports internal-state text found in an outbound
// channel. The write carrying it must be refused.
type LeakDetectedError struct {
	Channel   string // "response" | "memory"
	Signature string // the matched marker
}

func (e *LeakDetectedError) Error() string {
	return fmt.Sprintf("internal-state leak on channel %q: matched %q", e.Channel, e.Signature)
}

// leakSignatures are markers of internal pipeline state that must never
// reach a user or the memory store. Field names of the structured
// analysis and tags used only inside prompts.
var leakSignatures = []string{
	"thought_process",
	"detected_signals",
	"self_disclosure_depth_level",
	"target_mode_id",
	"critic_criteria",
	"[内心独白]",
	"[当前心境]",
	"[用户情绪]",
	"【内部状态】",
}

// CheckOutbound scans text destined for channel and returns a
// *LeakDetectedError when an internal-state signature is present.
func CheckOutbound(channel, text string) error {
	lower := strings.ToLower(text)
	for _, sig := range leakSignatures {
		if strings.Contains(lower, strings.ToLower(sig)) {
			return &LeakDetectedError{Channel: channel, Signature: sig}
		}
	}
	return nil
}
