package companioncore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ──────────────────────────────────────────────
// Turn Pipeline — one sequential pass per user message
// ──────────────────────────────────────────────
//
// Detect mode → (special branch short-circuits) → draft/critique →
// relationship/mood/SPT update → stage gate → segmentation → memory
// evolve. Every external call degrades to a designed fallback; the only
// error ProcessTurn can return is an internal-state leak in the
// response channel.

// SpecialBranch names the terminal interceptor path chosen by the
// upstream content classifier, if any.
type SpecialBranch string

const (
	BranchNone      SpecialBranch = ""
	BranchBoundary  SpecialBranch = "boundary"
	BranchSarcasm   SpecialBranch = "sarcasm"
	BranchConfusion SpecialBranch = "confusion"
)

// TurnInput is everything the transport layer hands the pipeline for
// one turn.
type TurnInput struct {
	BotID         string
	UserID        string
	UserMessage   string
	History       []Message // prior turns, ordered, without UserMessage
	CurrentModeID string
	Summary       string // summary of prior conversation, may be empty

	Branch      SpecialBranch
	SarcasmKind SarcasmKind
	Intuition   string // prior intuition note for boundary/confusion
}

// TurnState is the per-turn working record, owned exclusively by the
// pipeline for the duration of one turn and discarded afterwards except
// for what the evolver persists.
type TurnState struct {
	TurnID  string
	BotID   string
	UserID  string
	History []Message

	Mode     Mode
	Profile  string
	Memories string
	Mood     MoodState

	Draft            string
	CritiqueFeedback string
	RetryCount       int
	CriticState      CriticState

	Segments   []string
	FinalDelay float64

	Analysis *RelationshipAnalysis
	Stage    Stage
}

// TurnResult is what the transport layer sends back to the user.
type TurnResult struct {
	TurnID      string
	ModeID      string
	Branch      SpecialBranch
	Segments    []string
	FinalDelay  float64
	Stage       Stage
	CriticState CriticState
	RetryCount  int
}

// DraftProvider generates one draft attempt for the turn. The prompt
// assembly (mode template, monologue instruction, mood hint, profile)
// belongs to the caller; feedback carries the judge's critique on
// retries.
type DraftProvider func(ctx context.Context, ts *TurnState, feedback string, attempt int) (string, error)

// MoodUpdateFunc derives the bot's next mood from the turn's analysis.
// Applied at most once per turn under the bot's lock. nil leaves mood
// untouched.
type MoodUpdateFunc func(mood MoodState, analysis *RelationshipAnalysis) MoodState

// PipelineConfig wires the pipeline's collaborators.
type PipelineConfig struct {
	Registry *ModeRegistry // required
	Draft    DraftProvider // required

	Classify ClassifyFunc // mode detection + relationship analysis
	Judge    CompleteFunc // critique judging
	Reply    CompleteFunc // interceptor replies

	Memory MemoryService // profile, memories, append; may be nil
	States StateStore    // relationship/SPT/mood/stage persistence; may be nil
	Moods  *MoodBook     // live mood; created when nil

	MoodUpdate  MoodUpdateFunc
	MemoryLimit int // memories retrieved per turn, default 5
	Logger      *zap.Logger
}

// TurnPipeline drives one turn end to end.
type TurnPipeline struct {
	registry     *ModeRegistry
	detector     *ModeDetector
	analyzer     *RelationshipAnalyzer
	critic       *CriticLoop
	interceptors *Interceptors
	evolver      *MemoryEvolver

	draft       DraftProvider
	memory      MemoryService
	states      StateStore
	moods       *MoodBook
	moodUpdate  MoodUpdateFunc
	memoryLimit int
	logger      *zap.Logger

	// Counters for observability.
	TurnsProcessed  atomic.Int64
	EscalatedPasses atomic.Int64
}

// NewTurnPipeline validates the wiring and builds the pipeline.
func NewTurnPipeline(cfg PipelineConfig) (*TurnPipeline, error) {
	if cfg.Registry == nil || cfg.Registry.Len() == 0 {
		return nil, fmt.Errorf("pipeline requires a non-empty mode registry")
	}
	if cfg.Draft == nil {
		return nil, fmt.Errorf("pipeline requires a draft provider")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	moods := cfg.Moods
	if moods == nil {
		moods = NewMoodBook()
	}
	memoryLimit := cfg.MemoryLimit
	if memoryLimit <= 0 {
		memoryLimit = 5
	}
	return &TurnPipeline{
		registry:     cfg.Registry,
		detector:     NewModeDetector(cfg.Registry, cfg.Classify, logger),
		analyzer:     NewRelationshipAnalyzer(cfg.Classify, logger),
		critic:       NewCriticLoop(cfg.Judge, logger),
		interceptors: NewInterceptors(cfg.Reply, logger),
		evolver:      NewMemoryEvolver(cfg.Memory, logger),
		draft:        cfg.Draft,
		memory:       cfg.Memory,
		states:       cfg.States,
		moods:        moods,
		moodUpdate:   cfg.MoodUpdate,
		memoryLimit:  memoryLimit,
		logger:       logger,
	}, nil
}

// ProcessTurn runs one turn to a terminal. The returned error is
// non-nil only for an internal-state leak on the response channel;
// every other failure resolves to a designed fallback inside its stage.
func (p *TurnPipeline) ProcessTurn(ctx context.Context, input TurnInput) (*TurnResult, error) {
	p.TurnsProcessed.Inc()

	ts := &TurnState{
		TurnID:  uuid.NewString(),
		BotID:   input.BotID,
		UserID:  input.UserID,
		History: append(append([]Message{}, input.History...), Message{Role: "user", Content: input.UserMessage}),
		Stage:   StageInitiating,
	}

	// Special branches bypass detection, critique, and segmentation.
	if input.Branch != BranchNone {
		return p.processSpecial(ctx, input, ts)
	}

	ts.Mode = p.detector.Detect(ctx, input.UserMessage, input.CurrentModeID)
	ts.Mood = p.moods.Get(input.BotID)
	p.retrieveMemory(ctx, ts)

	// Draft/critique loop.
	draftFn := func(ctx context.Context, feedback string, attempt int) (string, error) {
		return p.draft(ctx, ts, feedback, attempt)
	}
	jc := JudgeContext{
		Summary:        input.Summary,
		MemorySnippets: ts.Memories,
		Recent:         ts.History,
	}
	cr := p.critic.Run(ctx, draftFn, ts.Mode, jc)
	ts.Draft = cr.Draft
	ts.CritiqueFeedback = cr.Feedback
	ts.RetryCount = cr.RetryCount
	ts.CriticState = cr.State
	if cr.State == StateEscalatedPass {
		p.EscalatedPasses.Inc()
	}

	// Internal-state text on the response channel is the one hard stop.
	if err := CheckOutbound("response", ts.Draft); err != nil {
		return nil, err
	}

	// Relationship, SPT, stage, mood.
	p.evolveState(ctx, input, ts)

	// Segmentation and pacing.
	ts.Segments = SplitSegments(ts.Draft, ts.Mode.SplitStrategy)
	ts.FinalDelay = SegmentDelay(ts.Mode.TypingSpeedMultiplier)

	p.evolveMemory(ctx, ts)

	return p.result(input.Branch, ts), nil
}

// processSpecial runs a terminal interceptor branch: the reply is both
// the draft and the sole segment, with the fixed minimal delay.
func (p *TurnPipeline) processSpecial(ctx context.Context, input TurnInput, ts *TurnState) (*TurnResult, error) {
	ts.Mode = p.registry.Resolve(input.CurrentModeID)

	var reply string
	switch input.Branch {
	case BranchBoundary:
		rel := p.loadRelationshipOnly(ctx, input)
		reply = p.interceptors.Boundary(ctx, input.UserMessage, input.Intuition, rel.Closeness)
	case BranchSarcasm:
		reply = p.interceptors.Sarcasm(ctx, input.UserMessage, input.SarcasmKind)
	case BranchConfusion:
		reply = p.interceptors.Confusion(ctx, input.UserMessage, input.Intuition)
	default:
		reply = p.interceptors.Confusion(ctx, input.UserMessage, input.Intuition)
	}

	if err := CheckOutbound("response", reply); err != nil {
		return nil, err
	}

	ts.Draft = reply
	ts.CriticState = StatePassed
	ts.Segments = []string{reply}
	ts.FinalDelay = baseSegmentDelay

	p.evolveMemory(ctx, ts)

	return p.result(input.Branch, ts), nil
}

// evolveState applies the turn's relationship analysis to the pair's
// state and the bot's mood. Persistence failures degrade to logs.
func (p *TurnPipeline) evolveState(ctx context.Context, input TurnInput, ts *TurnState) {
	rel, spt := p.loadOrInitState(ctx, input)
	ts.Stage = p.loadStage(ctx, input)

	ts.Analysis = p.analyzer.Analyze(ctx, ts.History, rel)

	rel.ApplyDeltas(ts.Analysis.Deltas)
	spt.Update(ts.Analysis)
	ts.Stage = NextStage(ts.Stage, rel, spt)

	if p.states != nil {
		if err := p.states.SaveRelationship(ctx, input.BotID, input.UserID, rel, spt); err != nil {
			p.logger.Error("relationship save failed", zap.String("user_id", input.UserID), zap.Error(err))
		}
		if err := p.states.SaveStage(ctx, input.BotID, input.UserID, ts.Stage); err != nil {
			p.logger.Error("stage save failed", zap.String("user_id", input.UserID), zap.Error(err))
		}
	}

	if p.moodUpdate != nil {
		analysis := ts.Analysis
		next := p.moods.Update(input.BotID, func(m MoodState) MoodState {
			return p.moodUpdate(m, analysis)
		})
		ts.Mood = next
		if p.states != nil {
			if err := p.states.SaveMood(ctx, input.BotID, next); err != nil {
				p.logger.Error("mood save failed", zap.String("bot_id", input.BotID), zap.Error(err))
			}
		}
	}
}

func (p *TurnPipeline) loadOrInitState(ctx context.Context, input TurnInput) (*RelationshipState, *SPTInfo) {
	if p.states != nil {
		rel, spt, err := p.states.LoadRelationship(ctx, input.BotID, input.UserID)
		if err != nil {
			p.logger.Error("relationship load failed, starting from baseline",
				zap.String("user_id", input.UserID), zap.Error(err))
		} else if rel != nil {
			rel.Normalize()
			if spt == nil {
				spt = DefaultSPTInfo()
			}
			return rel, spt
		}
	}
	// First contact: sample an initial template.
	return SampleRelationshipTemplate(), DefaultSPTInfo()
}

func (p *TurnPipeline) loadRelationshipOnly(ctx context.Context, input TurnInput) *RelationshipState {
	rel, _ := p.loadOrInitState(ctx, input)
	return rel
}

func (p *TurnPipeline) loadStage(ctx context.Context, input TurnInput) Stage {
	if p.states == nil {
		return StageInitiating
	}
	stage, err := p.states.LoadStage(ctx, input.BotID, input.UserID)
	if err != nil {
		p.logger.Error("stage load failed, starting from initiating",
			zap.String("user_id", input.UserID), zap.Error(err))
		return StageInitiating
	}
	if stage == "" {
		return StageInitiating
	}
	return stage
}

func (p *TurnPipeline) retrieveMemory(ctx context.Context, ts *TurnState) {
	if p.memory == nil {
		return
	}
	profile, err := p.memory.GetProfile(ctx, ts.UserID)
	if err != nil {
		p.logger.Warn("profile retrieval failed", zap.String("user_id", ts.UserID), zap.Error(err))
	} else {
		ts.Profile = profile
	}
	memories, err := p.memory.GetMemories(ctx, ts.UserID, p.memoryLimit)
	if err != nil {
		p.logger.Warn("memory retrieval failed", zap.String("user_id", ts.UserID), zap.Error(err))
	} else {
		ts.Memories = memories
	}
}

func (p *TurnPipeline) evolveMemory(ctx context.Context, ts *TurnState) {
	if err := p.evolver.EvolveTurn(ctx, ts); err != nil {
		// Leak on the memory channel: the write was refused. The
		// response already went out clean, so the turn itself stands.
		p.logger.Error("memory evolve refused", zap.String("turn_id", ts.TurnID), zap.Error(err))
	}
}

func (p *TurnPipeline) result(branch SpecialBranch, ts *TurnState) *TurnResult {
	return &TurnResult{
		TurnID:      ts.TurnID,
		ModeID:      ts.Mode.ID,
		Branch:      branch,
		Segments:    ts.Segments,
		FinalDelay:  ts.FinalDelay,
		Stage:       ts.Stage,
		CriticState: ts.CriticState,
		RetryCount:  ts.RetryCount,
	}
}
