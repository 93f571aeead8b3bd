package companioncore

import (
	"math/rand"
	"sync"
	"time"
)

// ──────────────────────────────────────────────
// Relationship Model — six-dimension affinity vector per (bot, user)
// ──────────────────────────────────────────────

// Baseline values for dimensions missing from a loaded record.
const (
	baselineDimension = 0.3
	baselinePower     = 0.5
)

// RelationshipState is the evolving affinity between one bot and one
// user. Every dimension lives in [0,1]; legacy records using the 0-100
// points convention are normalized at the load boundary, never inside
// the core.
type RelationshipState struct {
	Closeness float64 `json:"closeness"`
	Trust     float64 `json:"trust"`
	Liking    float64 `json:"liking"`
	Respect   float64 `json:"respect"`
	Warmth    float64 `json:"warmth"`
	Power     float64 `json:"power"`
}

// RelationshipDeltas are per-turn adjustments, each an integer in [-3,3],
// produced by the relationship analysis call.
type RelationshipDeltas struct {
	Closeness int `json:"closeness"`
	Trust     int `json:"trust"`
	Liking    int `json:"liking"`
	Respect   int `json:"respect"`
	Warmth    int `json:"warmth"`
	Power     int `json:"power"`
}

// DefaultRelationshipState returns the documented baseline.
func DefaultRelationshipState() *RelationshipState {
	return &RelationshipState{
		Closeness: baselineDimension,
		Trust:     baselineDimension,
		Liking:    baselineDimension,
		Respect:   baselineDimension,
		Warmth:    baselineDimension,
		Power:     baselinePower,
	}
}

// RelationshipTemplate names one of the sampled initial states for a
// first-time (bot, user) pair.
type RelationshipTemplate string

const (
	TemplateNeutralStranger      RelationshipTemplate = "neutral_stranger"
	TemplateFriendlyIcebreaker   RelationshipTemplate = "friendly_icebreaker"
	TemplateModerateAcquaintance RelationshipTemplate = "moderate_acquaintance"
)

var relationshipTemplates = map[RelationshipTemplate]RelationshipState{
	TemplateNeutralStranger:      {Closeness: 0.10, Trust: 0.15, Liking: 0.20, Respect: 0.30, Warmth: 0.20, Power: 0.50},
	TemplateFriendlyIcebreaker:   {Closeness: 0.25, Trust: 0.30, Liking: 0.40, Respect: 0.35, Warmth: 0.45, Power: 0.50},
	TemplateModerateAcquaintance: {Closeness: 0.35, Trust: 0.40, Liking: 0.35, Respect: 0.40, Warmth: 0.35, Power: 0.50},
}

var (
	templateRngOnce sync.Once
	templateRng     *rand.Rand
	templateRngMu   sync.Mutex
)

func getTemplateRng() *rand.Rand {
	templateRngOnce.Do(func() {
		templateRng = rand.New(rand.NewSource(time.Now().UnixNano()))
	})
	return templateRng
}

// NewRelationshipFromTemplate returns a fresh state for the named
// template. Unknown names fall back to neutral_stranger.
func NewRelationshipFromTemplate(name RelationshipTemplate) *RelationshipState {
	tpl, ok := relationshipTemplates[name]
	if !ok {
		tpl = relationshipTemplates[TemplateNeutralStranger]
	}
	s := tpl
	return &s
}

// SampleRelationshipTemplate picks one of the three initial templates at
// random, for first-time pairs.
func SampleRelationshipTemplate() *RelationshipState {
	names := []RelationshipTemplate{
		TemplateNeutralStranger,
		TemplateFriendlyIcebreaker,
		TemplateModerateAcquaintance,
	}
	templateRngMu.Lock()
	name := names[getTemplateRng().Intn(len(names))]
	templateRngMu.Unlock()
	return NewRelationshipFromTemplate(name)
}

// NormalizeDimension maps a stored dimension value into [0,1].
// Values above 1.0 are assumed to use the legacy 0-100 points
// convention and are divided by 100 before clamping, so a persisted
// {closeness: 45} loads as 0.45 rather than clamping to 1.0.
// The 100-points detection is a compatibility shim for old rows.
func NormalizeDimension(v float64) float64 {
	if v > 1.0 {
		v = v / 100.0
	}
	return clamp01(v)
}

// FromStoredDimensions rebuilds a state from a persisted dimension map.
// Missing dimensions take the documented baseline; present values pass
// through NormalizeDimension so legacy 0-100 rows load correctly.
func FromStoredDimensions(dims map[string]float64) *RelationshipState {
	pick := func(key string, baseline float64) float64 {
		v, ok := dims[key]
		if !ok {
			return baseline
		}
		return NormalizeDimension(v)
	}
	return &RelationshipState{
		Closeness: pick("closeness", baselineDimension),
		Trust:     pick("trust", baselineDimension),
		Liking:    pick("liking", baselineDimension),
		Respect:   pick("respect", baselineDimension),
		Warmth:    pick("warmth", baselineDimension),
		Power:     pick("power", baselinePower),
	}
}

// Normalize maps every dimension through NormalizeDimension in place.
func (s *RelationshipState) Normalize() {
	s.Closeness = NormalizeDimension(s.Closeness)
	s.Trust = NormalizeDimension(s.Trust)
	s.Liking = NormalizeDimension(s.Liking)
	s.Respect = NormalizeDimension(s.Respect)
	s.Warmth = NormalizeDimension(s.Warmth)
	s.Power = NormalizeDimension(s.Power)
}

// maxDeltaStep is the largest per-turn change a |3| delta can apply to a
// dimension sitting at maximum distance from its bound.
const maxDeltaStep = 0.15

// ApplyDeltas applies damped per-turn deltas and clamps every dimension
// to [0,1]. The damping curve: applied = (delta/3) * step * distance,
// where distance is how far the dimension sits from the bound the delta
// pushes toward. Larger |delta| always applies a larger or equal change;
// the applied change strictly shrinks as the dimension approaches 0 or 1.
func (s *RelationshipState) ApplyDeltas(d RelationshipDeltas) {
	s.Closeness = applyDamped(s.Closeness, d.Closeness)
	s.Trust = applyDamped(s.Trust, d.Trust)
	s.Liking = applyDamped(s.Liking, d.Liking)
	s.Respect = applyDamped(s.Respect, d.Respect)
	s.Warmth = applyDamped(s.Warmth, d.Warmth)
	s.Power = applyDamped(s.Power, d.Power)
}

func applyDamped(v float64, delta int) float64 {
	if delta == 0 {
		return clamp01(v)
	}
	if delta > 3 {
		delta = 3
	}
	if delta < -3 {
		delta = -3
	}
	var distance float64
	if delta > 0 {
		distance = 1.0 - v
	} else {
		distance = v
	}
	if distance < 0 {
		distance = 0
	}
	applied := float64(delta) / 3.0 * maxDeltaStep * distance
	return clamp01(v + applied)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
