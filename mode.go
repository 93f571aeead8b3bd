package companioncore

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ──────────────────────────────────────────────
// Mode Registry & Detector — per-turn behavioral mode selection
// ──────────────────────────────────────────────

// SplitStrategy controls how the processor segments an approved draft.
type SplitStrategy string

const (
	SplitNormal     SplitStrategy = "normal"
	SplitFragmented SplitStrategy = "fragmented"
)

// Mode is one behavioral mode of the companion: prompt bias, critique
// criteria, and pacing policy bundled under an id. Loaded once at startup
// and never mutated.
type Mode struct {
	ID                    string        `json:"id" yaml:"id"`
	Name                  string        `json:"name" yaml:"name"`
	TriggerDescription    string        `json:"trigger_description" yaml:"trigger_description"`
	SystemPromptTemplate  string        `json:"system_prompt_template" yaml:"system_prompt_template"`
	EnableDeepReasoning   bool          `json:"enable_deep_reasoning" yaml:"enable_deep_reasoning"`
	MonologueInstruction  string        `json:"monologue_instruction" yaml:"monologue_instruction"`
	CriticCriteria        []string      `json:"critic_criteria" yaml:"critic_criteria"`
	SplitStrategy         SplitStrategy `json:"split_strategy" yaml:"split_strategy"`
	TypingSpeedMultiplier float64       `json:"typing_speed_multiplier" yaml:"typing_speed_multiplier"`
}

// ModeRegistry is the immutable in-memory mode catalog. The first
// registered mode doubles as the default: Resolve falls back to it for
// any unknown or empty id, so lookup can never fail once the registry
// exists.
type ModeRegistry struct {
	modes []Mode
	byID  map[string]int
}

// NewModeRegistry builds a registry from an already-validated catalog.
// An empty catalog is a startup error: the default-mode fallback has
// nothing to stand on without at least one mode.
func NewModeRegistry(modes []Mode) (*ModeRegistry, error) {
	if len(modes) == 0 {
		return nil, fmt.Errorf("mode catalog is empty: at least one mode is required")
	}
	byID := make(map[string]int, len(modes))
	for i, m := range modes {
		if m.ID == "" {
			return nil, fmt.Errorf("mode at index %d has empty id", i)
		}
		if _, dup := byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate mode id %q", m.ID)
		}
		byID[m.ID] = i
	}
	return &ModeRegistry{modes: modes, byID: byID}, nil
}

// Default returns the first registered mode.
func (r *ModeRegistry) Default() Mode {
	return r.modes[0]
}

// Resolve returns the mode for id, or the default mode when id is
// unknown or empty.
func (r *ModeRegistry) Resolve(id string) Mode {
	if i, ok := r.byID[id]; ok {
		return r.modes[i]
	}
	return r.modes[0]
}

// Modes returns a copy of the catalog in registration order.
func (r *ModeRegistry) Modes() []Mode {
	out := make([]Mode, len(r.modes))
	copy(out, r.modes)
	return out
}

// Len returns the catalog size.
func (r *ModeRegistry) Len() int { return len(r.modes) }

// modeDecision is the structured-output shape expected from the
// classification call.
type modeDecision struct {
	Reasoning    string `json:"reasoning"`
	TargetModeID string `json:"target_mode_id"`
}

// ModeDetector classifies the current turn into one mode id via a single
// structured-output call. Every failure path degrades to the default
// mode; Detect never returns an error to its caller.
type ModeDetector struct {
	registry *ModeRegistry
	classify ClassifyFunc
	logger   *zap.Logger
}

// NewModeDetector creates a detector. logger may be nil.
func NewModeDetector(registry *ModeRegistry, classify ClassifyFunc, logger *zap.Logger) *ModeDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModeDetector{registry: registry, classify: classify, logger: logger}
}

// Detect classifies latestUserMessage into one of the registered modes.
// currentModeID is passed to the classifier as context. On call failure
// or an unparseable/unknown result the default mode is returned — this
// is the designed degradation path.
func (d *ModeDetector) Detect(ctx context.Context, latestUserMessage, currentModeID string) Mode {
	if d.classify == nil {
		return d.registry.Default()
	}

	prompt := d.buildPrompt(latestUserMessage, currentModeID)

	var decision modeDecision
	if err := d.classify(ctx, prompt, &decision); err != nil {
		d.logger.Warn("mode classification failed, using default mode",
			zap.String("current_mode", currentModeID),
			zap.Error(err))
		return d.registry.Default()
	}
	if decision.TargetModeID == "" {
		d.logger.Warn("mode classification returned empty target, using default mode")
		return d.registry.Default()
	}
	if _, known := d.registry.byID[decision.TargetModeID]; !known {
		d.logger.Warn("mode classification returned unknown id, using default mode",
			zap.String("target_mode_id", decision.TargetModeID))
		return d.registry.Default()
	}

	d.logger.Debug("mode detected",
		zap.String("target_mode_id", decision.TargetModeID),
		zap.String("reasoning", decision.Reasoning))
	return d.registry.Resolve(decision.TargetModeID)
}

// buildPrompt lists every mode id with its trigger description plus the
// currently active mode.
func (d *ModeDetector) buildPrompt(latestUserMessage, currentModeID string) string {
	var b strings.Builder
	b.WriteString("根据用户最新消息，从以下模式中选择最匹配的一个。\n\n可选模式：\n")
	for _, m := range d.registry.modes {
		fmt.Fprintf(&b, "- %s: %s\n", m.ID, m.TriggerDescription)
	}
	fmt.Fprintf(&b, "\n当前模式：%s\n", currentModeID)
	fmt.Fprintf(&b, "用户消息：%s\n", latestUserMessage)
	b.WriteString("\n返回 JSON：{\"reasoning\": \"...\", \"target_mode_id\": \"...\"}")
	return b.String()
}
