package companioncore

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ──────────────────────────────────────────────
// Relationship Analyzer — per-turn structured classification
// ──────────────────────────────────────────────

// RelationshipAnalysis is the ephemeral per-turn read of the
// conversation: what signals the user sent, how deep the disclosure
// went, and how each relationship dimension should move. Consumed once
// to update RelationshipState and SPTInfo, then discarded.
type RelationshipAnalysis struct {
	ThoughtProcess           string             `json:"thought_process"`
	DetectedSignals          []string           `json:"detected_signals"`
	TopicCategory            string             `json:"topic_category"`
	SelfDisclosureDepthLevel int                `json:"self_disclosure_depth_level"` // 1-4
	IsIntellectuallyDeep     bool               `json:"is_intellectually_deep"`
	Deltas                   RelationshipDeltas `json:"deltas"`
}

// NeutralAnalysis is the designed fallback when the classification call
// fails: no deltas, surface-level disclosure, generic topic.
func NeutralAnalysis() *RelationshipAnalysis {
	return &RelationshipAnalysis{
		TopicCategory:            "闲聊",
		SelfDisclosureDepthLevel: 1,
	}
}

// RelationshipAnalyzer runs the per-turn structured relationship
// classification. Analyze never returns an error: classification failure
// degrades to NeutralAnalysis.
type RelationshipAnalyzer struct {
	classify ClassifyFunc
	logger   *zap.Logger
}

// NewRelationshipAnalyzer creates an analyzer. logger may be nil.
func NewRelationshipAnalyzer(classify ClassifyFunc, logger *zap.Logger) *RelationshipAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelationshipAnalyzer{classify: classify, logger: logger}
}

// Analyze classifies the most recent exchange against the current
// relationship state. The result always has depth in [1,4] and deltas
// in [-3,3] regardless of what the model returned.
func (a *RelationshipAnalyzer) Analyze(ctx context.Context, recent []Message, rel *RelationshipState) *RelationshipAnalysis {
	if a.classify == nil {
		return NeutralAnalysis()
	}

	prompt := buildAnalysisPrompt(recent, rel)

	var out RelationshipAnalysis
	if err := a.classify(ctx, prompt, &out); err != nil {
		a.logger.Warn("relationship analysis failed, using neutral analysis", zap.Error(err))
		return NeutralAnalysis()
	}

	out.sanitize()
	return &out
}

func (r *RelationshipAnalysis) sanitize() {
	if r.SelfDisclosureDepthLevel < 1 {
		r.SelfDisclosureDepthLevel = 1
	}
	if r.SelfDisclosureDepthLevel > 4 {
		r.SelfDisclosureDepthLevel = 4
	}
	r.Deltas.Closeness = clampDelta(r.Deltas.Closeness)
	r.Deltas.Trust = clampDelta(r.Deltas.Trust)
	r.Deltas.Liking = clampDelta(r.Deltas.Liking)
	r.Deltas.Respect = clampDelta(r.Deltas.Respect)
	r.Deltas.Warmth = clampDelta(r.Deltas.Warmth)
	r.Deltas.Power = clampDelta(r.Deltas.Power)
	if r.TopicCategory == "" {
		r.TopicCategory = "闲聊"
	}
}

func clampDelta(d int) int {
	if d < -3 {
		return -3
	}
	if d > 3 {
		return 3
	}
	return d
}

func buildAnalysisPrompt(recent []Message, rel *RelationshipState) string {
	var b strings.Builder
	b.WriteString("分析最近的对话，评估这一轮对双方关系的影响。\n\n最近对话：\n")
	for _, m := range recent {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	if rel != nil {
		fmt.Fprintf(&b, "\n当前关系（0-1）：亲密 %.2f，信任 %.2f，好感 %.2f，尊重 %.2f，温暖 %.2f，权力 %.2f\n",
			rel.Closeness, rel.Trust, rel.Liking, rel.Respect, rel.Warmth, rel.Power)
	}
	b.WriteString("\n返回 JSON，字段：thought_process、detected_signals、topic_category、" +
		"self_disclosure_depth_level（1-4）、is_intellectually_deep、" +
		"deltas（closeness/trust/liking/respect/warmth/power，各为 -3 到 3 的整数）")
	return b.String()
}
