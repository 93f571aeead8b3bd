package companioncore

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ──────────────────────────────────────────────
// Draft/Critique Loop — bounded generate-then-judge cycle
// ──────────────────────────────────────────────
//
// DRAFTING → CRITIQUING → PASSED | ESCALATED-PASS. A draft that fails
// the mode's criteria is regenerated with the judge's feedback attached,
// at most maxCritiqueRetries times; after that the best-available draft
// is force-accepted so total generation calls per turn are bounded by
// maxCritiqueRetries + 1.

// CriticState is a state of the draft/critique machine.
type CriticState string

const (
	StateDrafting      CriticState = "DRAFTING"
	StateCritiquing    CriticState = "CRITIQUING"
	StatePassed        CriticState = "PASSED"
	StateEscalatedPass CriticState = "ESCALATED-PASS"
)

const (
	// maxCritiqueRetries bounds regeneration; with the initial draft
	// this caps generation calls at 4 per turn.
	maxCritiqueRetries = 3

	// judgeWindowSize is the hard cap on raw messages sent to the judge.
	judgeWindowSize = 20

	passToken = "通过"
	failToken = "不通过"

	// failTokenGuard: the fail token only counts when it starts within
	// the first 5 characters of the verdict. Guards against "通过"
	// matching inside "不通过" and vice versa.
	failTokenGuard = 5
)

// draftGenerationFallback is emitted when the generation collaborator
// itself fails. Never empty, never judged.
const draftGenerationFallback = "嗯……我刚刚走神了，你刚才说到哪儿了？"

// DraftFunc produces one draft attempt. feedback is empty on the first
// attempt and carries the judge's critique on retries.
type DraftFunc func(ctx context.Context, feedback string, attempt int) (string, error)

// AttemptRecord captures one pass through the machine, for observability.
type AttemptRecord struct {
	Attempt int    `json:"attempt"`
	Draft   string `json:"draft"`
	Verdict string `json:"verdict,omitempty"`
	Passed  bool   `json:"passed"`
}

// CriticResult is the loop's terminal outcome. State is always PASSED or
// ESCALATED-PASS; the loop has no failure terminal.
type CriticResult struct {
	Draft      string          `json:"draft"`
	State      CriticState     `json:"state"`
	RetryCount int             `json:"retry_count"`
	Feedback   string          `json:"feedback,omitempty"` // last judge feedback
	Attempts   []AttemptRecord `json:"attempts"`
}

// JudgeContext is the bounded context handed to the judge alongside the
// mode's criteria.
type JudgeContext struct {
	Summary        string    // summary of prior conversation
	MemorySnippets string    // retrieved memory text
	Recent         []Message // raw recent window, capped at judgeWindowSize
}

// CriticLoop runs the bounded draft/critique cycle for one turn.
type CriticLoop struct {
	judge      CompleteFunc
	maxRetries int
	logger     *zap.Logger

	// FailOpens counts judge-call failures treated as passes.
	FailOpens atomic.Int64
}

// NewCriticLoop creates a loop. judge may be nil, in which case every
// draft passes unjudged. logger may be nil.
func NewCriticLoop(judge CompleteFunc, logger *zap.Logger) *CriticLoop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CriticLoop{judge: judge, maxRetries: maxCritiqueRetries, logger: logger}
}

// Run executes the machine until PASSED or ESCALATED-PASS. It never
// returns an error: draft failure substitutes a literal fallback and
// judge failure fails open.
func (l *CriticLoop) Run(ctx context.Context, draft DraftFunc, mode Mode, jc JudgeContext) *CriticResult {
	result := &CriticResult{State: StateDrafting}

	for attempt := 0; ; attempt++ {
		// DRAFTING
		text, err := draft(ctx, result.Feedback, attempt)
		if err != nil {
			l.logger.Warn("draft generation failed, using literal fallback",
				zap.String("mode", mode.ID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			result.Draft = draftGenerationFallback
			result.State = StatePassed
			result.Attempts = append(result.Attempts, AttemptRecord{Attempt: attempt, Draft: result.Draft, Passed: true})
			return result
		}
		result.Draft = text

		// CRITIQUING
		result.State = StateCritiquing
		if l.judge == nil || len(mode.CriticCriteria) == 0 {
			result.State = StatePassed
			result.Attempts = append(result.Attempts, AttemptRecord{Attempt: attempt, Draft: text, Passed: true})
			return result
		}

		verdict, err := l.judge(ctx, buildJudgeMessages(text, mode, jc))
		if err != nil {
			// Fail-open: a broken judge must not livelock the turn.
			l.FailOpens.Inc()
			l.logger.Warn("judge call failed, failing open",
				zap.String("mode", mode.ID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			result.State = StatePassed
			result.Attempts = append(result.Attempts, AttemptRecord{Attempt: attempt, Draft: text, Passed: true})
			return result
		}

		passed, feedback := parseVerdict(verdict)
		result.Attempts = append(result.Attempts, AttemptRecord{Attempt: attempt, Draft: text, Verdict: verdict, Passed: passed})

		if passed {
			result.State = StatePassed
			return result
		}

		result.Feedback = feedback
		if result.RetryCount >= l.maxRetries {
			// Accept the best-available draft; criteria no longer gate.
			l.logger.Info("critique retries exhausted, escalated pass",
				zap.String("mode", mode.ID),
				zap.Int("retries", result.RetryCount))
			result.State = StateEscalatedPass
			return result
		}
		result.RetryCount++
		result.State = StateDrafting
	}
}

// parseVerdict applies the constrained lexical rule: passed iff the pass
// token appears anywhere and the fail token does not start within the
// first failTokenGuard characters. Feedback is the verdict text with the
// leading token stripped.
func parseVerdict(verdict string) (passed bool, feedback string) {
	trimmed := strings.TrimSpace(verdict)

	failEarly := false
	if idx := strings.Index(trimmed, failToken); idx >= 0 {
		// Index is in bytes; the guard counts characters.
		if len([]rune(trimmed[:idx])) < failTokenGuard {
			failEarly = true
		}
	}
	passed = strings.Contains(trimmed, passToken) && !failEarly

	feedback = trimmed
	feedback = strings.TrimPrefix(feedback, failToken)
	feedback = strings.TrimPrefix(feedback, passToken)
	feedback = strings.TrimLeft(feedback, "：: ，, 。")
	return passed, feedback
}

// buildJudgeMessages assembles the judge call: criteria, conversation
// summary, memory snippets, and at most the last judgeWindowSize raw
// messages.
func buildJudgeMessages(draft string, mode Mode, jc JudgeContext) []Message {
	var b strings.Builder
	b.WriteString("你是回复质量评审。逐条检查候选回复是否满足全部标准。\n\n评审标准：\n")
	for i, c := range mode.CriticCriteria {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	if jc.Summary != "" {
		fmt.Fprintf(&b, "\n对话摘要：\n%s\n", jc.Summary)
	}
	if jc.MemorySnippets != "" {
		fmt.Fprintf(&b, "\n相关记忆：\n%s\n", jc.MemorySnippets)
	}
	recent := jc.Recent
	if len(recent) > judgeWindowSize {
		recent = recent[len(recent)-judgeWindowSize:]
	}
	if len(recent) > 0 {
		b.WriteString("\n最近对话：\n")
		for _, m := range recent {
			fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
		}
	}
	fmt.Fprintf(&b, "\n候选回复：\n%s\n", draft)
	fmt.Fprintf(&b, "\n全部满足则回复「%s」，否则以「%s」开头并用一两句话说明原因。", passToken, failToken)

	return []Message{{Role: "user", Content: b.String()}}
}
