package companioncore

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// ══════════════════════════════════════════════
// Special-Path Interceptors
// ══════════════════════════════════════════════

func TestBoundaryTone_ClosenessCutoff(t *testing.T) {
	cases := []struct {
		closeness float64
		want      string
	}{
		{10, "firm"},   // legacy points, below 30 cutoff
		{80, "soft"},   // legacy points, above cutoff
		{0.10, "firm"}, // normalized
		{0.80, "soft"},
		{0.30, "soft"}, // at the cutoff: softer reminder
	}
	for _, c := range cases {
		if got := boundaryTone(c.closeness); got != c.want {
			t.Fatalf("boundaryTone(%v): expected %s, got %s", c.closeness, c.want, got)
		}
	}
}

func TestBoundary_PromptVariesByCloseness(t *testing.T) {
	var prompt string
	complete := func(ctx context.Context, messages []Message) (string, error) {
		prompt = messages[0].Content
		return "我们还是聊点别的吧。", nil
	}
	ic := NewInterceptors(complete, nil)

	ic.Boundary(context.Background(), "说点露骨的", "", 10)
	firmPrompt := prompt
	ic.Boundary(context.Background(), "说点露骨的", "", 80)
	softPrompt := prompt

	if firmPrompt == softPrompt {
		t.Fatal("firm and soft branches must use different instructions")
	}
	if !strings.Contains(firmPrompt, "坚定") {
		t.Fatalf("low closeness should pick the firm branch, got %q", firmPrompt)
	}
	if !strings.Contains(softPrompt, "温和") {
		t.Fatalf("high closeness should pick the soft branch, got %q", softPrompt)
	}
}

func TestConfusion_GenerationErrorYieldsExactFallback(t *testing.T) {
	complete := func(ctx context.Context, messages []Message) (string, error) {
		return "", errors.New("provider exploded")
	}
	ic := NewInterceptors(complete, nil)

	got := ic.Confusion(context.Background(), "asdfghjkl", "")
	if got != confusionFallback {
		t.Fatalf("expected exact literal fallback %q, got %q", confusionFallback, got)
	}
}

func TestSarcasm_KindVariesInstruction(t *testing.T) {
	var prompt string
	complete := func(ctx context.Context, messages []Message) (string, error) {
		prompt = messages[0].Content
		return "哦，现在才想起我啊。", nil
	}
	ic := NewInterceptors(complete, nil)

	ic.Sarcasm(context.Background(), "在吗", SarcasmInattentiveTiming)
	timingPrompt := prompt
	ic.Sarcasm(context.Background(), "哦", SarcasmLowEffortReply)
	effortPrompt := prompt

	if timingPrompt == effortPrompt {
		t.Fatal("sarcasm kinds must vary the instruction")
	}
}

func TestInterceptors_EmptyReplyFallsBack(t *testing.T) {
	complete := func(ctx context.Context, messages []Message) (string, error) {
		return "   ", nil
	}
	ic := NewInterceptors(complete, nil)
	if got := ic.Sarcasm(context.Background(), "哦", SarcasmLowEffortReply); got != sarcasmFallback {
		t.Fatalf("blank generation should fall back, got %q", got)
	}
}

func TestInterceptors_NilCompleteFallsBack(t *testing.T) {
	ic := NewInterceptors(nil, nil)
	if got := ic.Boundary(context.Background(), "越界消息", "", 50); got != boundaryFallback {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestBoundary_IntuitionIncludedInPrompt(t *testing.T) {
	var prompt string
	complete := func(ctx context.Context, messages []Message) (string, error) {
		prompt = messages[0].Content
		return "到此为止吧。", nil
	}
	ic := NewInterceptors(complete, nil)
	ic.Boundary(context.Background(), "消息", "对方最近压力很大", 10)
	if !strings.Contains(prompt, "对方最近压力很大") {
		t.Fatal("intuition note missing from prompt")
	}
}
