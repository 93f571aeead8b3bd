package companioncore

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ──────────────────────────────────────────────
// Special-Path Interceptors — terminal canned-response branches
// ──────────────────────────────────────────────
//
// Selected by an upstream content classifier, not by the mode detector.
// Each produces one free-text reply that becomes both the draft and the
// sole final segment, bypassing the critique loop and the processor.
// Every branch carries a literal fallback so the pipeline can never emit
// an empty response.

// boundaryClosenessCutoff separates firm boundary-setting from the
// softer reminder, on the [0,1] scale.
const boundaryClosenessCutoff = 0.30

// SarcasmKind discriminates the two sarcasm triggers.
type SarcasmKind string

const (
	SarcasmInattentiveTiming SarcasmKind = "inattentive_timing"
	SarcasmLowEffortReply    SarcasmKind = "low_effort_reply"
)

// Literal fallbacks, one per interceptor. Emitted verbatim when the
// generation call fails.
const (
	boundaryFallback  = "这个话题我们就到这里吧，聊点别的？"
	sarcasmFallback   = "哼，算你会说话。"
	confusionFallback = "等等，我没太跟上，你能再说一遍吗？"
)

// Interceptors produces the special-path replies.
type Interceptors struct {
	complete CompleteFunc
	logger   *zap.Logger
}

// NewInterceptors creates the interceptor set. logger may be nil.
func NewInterceptors(complete CompleteFunc, logger *zap.Logger) *Interceptors {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interceptors{complete: complete, logger: logger}
}

// boundaryTone picks the phrasing branch from the closeness dimension.
// closeness accepts either convention; legacy 0-100 values are
// normalized before the cutoff comparison.
func boundaryTone(closeness float64) string {
	if NormalizeDimension(closeness) < boundaryClosenessCutoff {
		return "firm"
	}
	return "soft"
}

// Boundary replies to a boundary-violating message. Below the closeness
// cutoff the reply sets the boundary explicitly; above it, a softer
// reminder.
func (i *Interceptors) Boundary(ctx context.Context, userMessage, intuition string, closeness float64) string {
	var instruction string
	if boundaryTone(closeness) == "firm" {
		instruction = "用户越界了，而你们还不熟。明确而冷静地设定边界，语气坚定，不解释太多。"
	} else {
		instruction = "用户有点越界，但你们关系不错。用温和的方式提醒对方，不要伤和气。"
	}
	return i.reply(ctx, "boundary", instruction, userMessage, intuition, boundaryFallback)
}

// Sarcasm replies briefly to an inattentive or low-effort user message,
// with tone varied by kind.
func (i *Interceptors) Sarcasm(ctx context.Context, userMessage string, kind SarcasmKind) string {
	var instruction string
	switch kind {
	case SarcasmInattentiveTiming:
		instruction = "用户隔了很久才敷衍地回你。用轻微的阴阳怪气吐槽对方的时机，一两句话即可。"
	default:
		instruction = "用户的回复很敷衍。用俏皮的讽刺回应对方的不走心，一两句话即可。"
	}
	return i.reply(ctx, "sarcasm", instruction, userMessage, "", sarcasmFallback)
}

// Confusion replies to an incomprehensible message with non-judgmental
// clarification-seeking.
func (i *Interceptors) Confusion(ctx context.Context, userMessage, intuition string) string {
	instruction := "你没看懂用户这条消息。不带评判地表达困惑，请对方换个说法，语气轻松。"
	return i.reply(ctx, "confusion", instruction, userMessage, intuition, confusionFallback)
}

func (i *Interceptors) reply(ctx context.Context, branch, instruction, userMessage, intuition, fallback string) string {
	if i.complete == nil {
		return fallback
	}

	var b strings.Builder
	b.WriteString(instruction)
	if intuition != "" {
		fmt.Fprintf(&b, "\n你此刻的直觉：%s", intuition)
	}
	fmt.Fprintf(&b, "\n用户消息：%s", userMessage)

	text, err := i.complete(ctx, []Message{{Role: "user", Content: b.String()}})
	if err != nil || strings.TrimSpace(text) == "" {
		i.logger.Warn("interceptor generation failed, using literal fallback",
			zap.String("branch", branch),
			zap.Error(err))
		return fallback
	}
	return text
}
