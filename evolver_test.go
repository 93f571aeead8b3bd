package companioncore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

// ══════════════════════════════════════════════
// Leak Guard & Memory Evolver
// ══════════════════════════════════════════════

func TestCheckOutbound(t *testing.T) {
	if err := CheckOutbound("response", "今天聊得很开心，下次再见。"); err != nil {
		t.Fatalf("clean text flagged: %v", err)
	}

	err := CheckOutbound("memory", `{"thought_process": "用户在示好"}`)
	if err == nil {
		t.Fatal("expected leak error")
	}
	var leak *LeakDetectedError
	if !errors.As(err, &leak) {
		t.Fatalf("expected *LeakDetectedError, got %T", err)
	}
	if leak.Channel != "memory" {
		t.Fatalf("expected memory channel, got %s", leak.Channel)
	}
}

func TestCheckOutbound_MonologueTag(t *testing.T) {
	if err := CheckOutbound("response", "[内心独白] 我其实有点烦"); err == nil {
		t.Fatal("monologue tag must be refused")
	}
}

type fakeMemory struct {
	profile   string
	memories  string
	appended  []string
	appendErr error
	lastMeta  map[string]string
}

func (f *fakeMemory) GetProfile(ctx context.Context, userID string) (string, error) {
	return f.profile, nil
}

func (f *fakeMemory) GetMemories(ctx context.Context, userID string, limit int) (string, error) {
	return f.memories, nil
}

func (f *fakeMemory) AppendMemory(ctx context.Context, userID, content string, meta map[string]string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, content)
	f.lastMeta = meta
	return nil
}

func turnStateForEvolver() *TurnState {
	return &TurnState{
		TurnID:   "t-1",
		BotID:    "bot-1",
		UserID:   "user-1",
		Mode:     Mode{ID: "normal_mode"},
		Draft:    "今天聊得很开心。",
		Segments: []string{"今天聊得很开心。", "晚安。"},
	}
}

func TestEvolver_AppendsJoinedSegments(t *testing.T) {
	mem := &fakeMemory{}
	ev := NewMemoryEvolver(mem, nil)

	if err := ev.EvolveTurn(context.Background(), turnStateForEvolver()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mem.appended) != 1 {
		t.Fatalf("expected 1 record, got %d", len(mem.appended))
	}
	if mem.appended[0] != "今天聊得很开心。\n晚安。" {
		t.Fatalf("unexpected content: %q", mem.appended[0])
	}
	if mem.lastMeta["origin"] != "turn_pipeline" || mem.lastMeta["mode"] != "normal_mode" {
		t.Fatalf("missing origin tags: %v", mem.lastMeta)
	}
}

func TestEvolver_FallsBackToDraftWithoutSegments(t *testing.T) {
	mem := &fakeMemory{}
	ev := NewMemoryEvolver(mem, nil)

	ts := turnStateForEvolver()
	ts.Segments = nil
	if err := ev.EvolveTurn(context.Background(), ts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mem.appended[0] != ts.Draft {
		t.Fatalf("expected raw draft, got %q", mem.appended[0])
	}
}

func TestEvolver_TruncatesAt200Runes(t *testing.T) {
	mem := &fakeMemory{}
	ev := NewMemoryEvolver(mem, nil)

	ts := turnStateForEvolver()
	ts.Segments = []string{strings.Repeat("很", 300)}
	if err := ev.EvolveTurn(context.Background(), ts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := utf8.RuneCountInString(mem.appended[0]); got != 200 {
		t.Fatalf("expected 200 runes, got %d", got)
	}
}

func TestEvolver_AppendFailureIsSwallowed(t *testing.T) {
	mem := &fakeMemory{appendErr: errors.New("store down")}
	ev := NewMemoryEvolver(mem, nil)

	if err := ev.EvolveTurn(context.Background(), turnStateForEvolver()); err != nil {
		t.Fatalf("persistence failure must not surface, got %v", err)
	}
	if ev.AppendFailures.Load() != 1 {
		t.Fatalf("expected 1 counted failure, got %d", ev.AppendFailures.Load())
	}
}

func TestEvolver_RefusesLeakedContent(t *testing.T) {
	mem := &fakeMemory{}
	ev := NewMemoryEvolver(mem, nil)

	ts := turnStateForEvolver()
	ts.Segments = []string{`detected_signals: ["user_flirting"]`}
	err := ev.EvolveTurn(context.Background(), ts)
	if err == nil {
		t.Fatal("expected hard error for internal-state content")
	}
	var leak *LeakDetectedError
	if !errors.As(err, &leak) {
		t.Fatalf("expected *LeakDetectedError, got %T", err)
	}
	if len(mem.appended) != 0 {
		t.Fatal("leaked content must not be persisted")
	}
}

func TestEvolver_EmptyContentIsNoop(t *testing.T) {
	mem := &fakeMemory{}
	ev := NewMemoryEvolver(mem, nil)

	ts := turnStateForEvolver()
	ts.Draft = ""
	ts.Segments = nil
	if err := ev.EvolveTurn(context.Background(), ts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mem.appended) != 0 {
		t.Fatal("nothing should be appended for empty content")
	}
}
