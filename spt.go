package companioncore

// ──────────────────────────────────────────────
// SPT Tracker — social-penetration depth/breadth per (bot, user)
// ──────────────────────────────────────────────

// DepthTrend describes the direction of disclosure depth across turns.
type DepthTrend string

const (
	TrendStable     DepthTrend = "stable"
	TrendIncreasing DepthTrend = "increasing"
	TrendDecreasing DepthTrend = "decreasing"
)

// maxRecentSignals bounds the sliding signal window.
const maxRecentSignals = 20

// SPTInfo tracks self-disclosure depth and topic breadth for one
// (bot, user) pair. TopicList is append-only history; RecentSignals is
// a bounded sliding window.
type SPTInfo struct {
	Depth         int        `json:"depth"`   // 1-4
	Breadth       int        `json:"breadth"` // count of distinct topics
	TopicList     []string   `json:"topic_list"`
	DepthTrend    DepthTrend `json:"depth_trend"`
	RecentSignals []string   `json:"recent_signals"`
}

// DefaultSPTInfo returns the state for a first-time pair.
func DefaultSPTInfo() *SPTInfo {
	return &SPTInfo{Depth: 1, DepthTrend: TrendStable}
}

// Update folds one turn's RelationshipAnalysis into the tracker:
// novel topics grow breadth, depth moves one step toward the disclosed
// level (plus a bonus step for intellectually deep turns, capped at 4),
// and the trend is recomputed against the previous depth.
func (s *SPTInfo) Update(a *RelationshipAnalysis) {
	if a == nil {
		return
	}

	if a.TopicCategory != "" && !s.hasTopic(a.TopicCategory) {
		s.TopicList = append(s.TopicList, a.TopicCategory)
		// Incremented, not recomputed: legacy rows may carry a breadth
		// count without the full topic history.
		s.Breadth++
	}

	prev := s.Depth
	if prev < 1 {
		prev = 1
		s.Depth = 1
	}

	switch {
	case a.SelfDisclosureDepthLevel > s.Depth:
		s.Depth++
	case a.SelfDisclosureDepthLevel < s.Depth:
		s.Depth--
	}
	if a.IsIntellectuallyDeep && s.Depth < 4 {
		s.Depth++
	}
	if s.Depth < 1 {
		s.Depth = 1
	}
	if s.Depth > 4 {
		s.Depth = 4
	}

	switch {
	case s.Depth > prev:
		s.DepthTrend = TrendIncreasing
	case s.Depth < prev:
		s.DepthTrend = TrendDecreasing
	default:
		s.DepthTrend = TrendStable
	}

	s.RecentSignals = append(s.RecentSignals, a.DetectedSignals...)
	if len(s.RecentSignals) > maxRecentSignals {
		s.RecentSignals = s.RecentSignals[len(s.RecentSignals)-maxRecentSignals:]
	}
}

func (s *SPTInfo) hasTopic(topic string) bool {
	for _, t := range s.TopicList {
		if t == topic {
			return true
		}
	}
	return false
}
