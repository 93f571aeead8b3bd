package companioncore

import "strings"

// ──────────────────────────────────────────────
// Response Processor — segmentation and pacing
// ──────────────────────────────────────────────

// baseSegmentDelay is the pacing base, divided by the mode's typing
// speed multiplier to produce the per-segment delay.
const baseSegmentDelay = 0.05

// sentence terminators recognized by the fragmented strategy, CJK and
// Latin. Newlines always break.
var segmentTerminators = map[rune]bool{
	'。': true, '！': true, '？': true, '…': true, '；': true,
	'!': true, '?': true, ';': true,
	'\n': true,
}

// SplitSegments turns an approved draft into output segments per the
// mode's split strategy. A non-empty draft never yields zero segments:
// normal strategy emits the draft whole, and a fragmented split that
// produces nothing falls back to the whole draft. An empty draft yields
// no segments.
func SplitSegments(draft string, strategy SplitStrategy) []string {
	trimmed := strings.TrimSpace(draft)
	if trimmed == "" {
		return nil
	}
	if strategy != SplitFragmented {
		return []string{draft}
	}

	var segments []string
	var current strings.Builder
	for _, r := range trimmed {
		if segmentTerminators[r] {
			if r != '\n' {
				current.WriteRune(r)
			}
			if seg := strings.TrimSpace(current.String()); seg != "" {
				segments = append(segments, seg)
			}
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	if seg := strings.TrimSpace(current.String()); seg != "" {
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return []string{draft}
	}
	return segments
}

// SegmentDelay computes the pacing delay for the mode's typing speed.
// A multiplier of 0 or below is treated as 1.0, so the result is always
// strictly positive and finite.
func SegmentDelay(multiplier float64) float64 {
	if multiplier <= 0 {
		multiplier = 1.0
	}
	return baseSegmentDelay / multiplier
}
