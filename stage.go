package companioncore

// ──────────────────────────────────────────────
// Stage Gate — relationship stage progression
// ──────────────────────────────────────────────

// Stage is one step of the linear relationship progression.
type Stage string

const (
	StageInitiating    Stage = "initiating"
	StageExperimenting Stage = "experimenting"
	StageIntensifying  Stage = "intensifying"
	StageIntegrating   Stage = "integrating"
	StageStable        Stage = "stable"
)

var stageOrder = []Stage{
	StageInitiating,
	StageExperimenting,
	StageIntensifying,
	StageIntegrating,
	StageStable,
}

// stageThreshold is the minimum state required to enter a stage.
type stageThreshold struct {
	closeness float64
	trust     float64
	depth     int
	breadth   int
}

// Entry requirements, indexed by target stage. All minimums are
// monotone so an advanced pair never fails an earlier gate.
var stageThresholds = map[Stage]stageThreshold{
	StageExperimenting: {closeness: 0.25, trust: 0.25, depth: 1, breadth: 2},
	StageIntensifying:  {closeness: 0.45, trust: 0.40, depth: 2, breadth: 4},
	StageIntegrating:   {closeness: 0.60, trust: 0.60, depth: 3, breadth: 6},
	StageStable:        {closeness: 0.75, trust: 0.75, depth: 4, breadth: 8},
}

func stageIndex(s Stage) int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return 0
}

// NextStage evaluates the gate. It is a pure function: identical inputs
// always yield the same stage and nothing is mutated, so re-evaluation
// is safe. The gate advances at most one stage per call and never moves
// backward; regression is an external policy, not this gate's.
func NextStage(current Stage, rel *RelationshipState, spt *SPTInfo) Stage {
	if rel == nil || spt == nil {
		return normalizeStage(current)
	}
	cur := normalizeStage(current)
	idx := stageIndex(cur)
	if idx >= len(stageOrder)-1 {
		return cur
	}

	next := stageOrder[idx+1]
	th := stageThresholds[next]
	if rel.Closeness >= th.closeness &&
		rel.Trust >= th.trust &&
		spt.Depth >= th.depth &&
		spt.Breadth >= th.breadth {
		return next
	}
	return cur
}

// normalizeStage maps an unknown or empty stage onto initiating.
func normalizeStage(s Stage) Stage {
	for _, st := range stageOrder {
		if st == s {
			return s
		}
	}
	return StageInitiating
}
