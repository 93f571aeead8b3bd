package store

import (
	"context"
	"math"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	core "github.com/cyberFlowTech/zapry-companion-core-go"
)

// ══════════════════════════════════════════════
// RedisStateStore
// ══════════════════════════════════════════════

func newTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisStateStore_RelationshipRoundTrip(t *testing.T) {
	s := NewRedisStateStore(newTestRedis(t))
	ctx := context.Background()

	rel := &core.RelationshipState{Closeness: 0.45, Trust: 0.3, Liking: 0.3, Respect: 0.3, Warmth: 0.3, Power: 0.5}
	spt := &core.SPTInfo{Depth: 2, Breadth: 3, TopicList: []string{"工作", "家庭", "宠物"}, DepthTrend: core.TrendIncreasing}

	if err := s.SaveRelationship(ctx, "bot-1", "user-1", rel, spt); err != nil {
		t.Fatalf("save: %v", err)
	}

	gotRel, gotSPT, err := s.LoadRelationship(ctx, "bot-1", "user-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if math.Abs(gotRel.Closeness-0.45) > 1e-9 {
		t.Fatalf("closeness: expected 0.45, got %v", gotRel.Closeness)
	}
	if gotSPT.Depth != 2 || gotSPT.Breadth != 3 || len(gotSPT.TopicList) != 3 {
		t.Fatalf("spt round-trip wrong: %+v", gotSPT)
	}
	if gotSPT.DepthTrend != core.TrendIncreasing {
		t.Fatalf("trend lost: %s", gotSPT.DepthTrend)
	}
}

func TestRedisStateStore_AbsentRowIsNil(t *testing.T) {
	s := NewRedisStateStore(newTestRedis(t))
	rel, spt, err := s.LoadRelationship(context.Background(), "bot-1", "ghost")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rel != nil || spt != nil {
		t.Fatal("absent row must load as nil")
	}
}

func TestRedisStateStore_LegacyPointsRowNormalized(t *testing.T) {
	client := newTestRedis(t)
	s := NewRedisStateStore(client)
	ctx := context.Background()

	// A row written by the old service on the 0-100 convention, with
	// missing dimensions.
	err := client.Set(ctx, "companion:rel:bot-1:user-1", `{"closeness": 45, "trust": 80}`, 0).Err()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rel, _, err := s.LoadRelationship(ctx, "bot-1", "user-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if math.Abs(rel.Closeness-0.45) > 1e-9 {
		t.Fatalf("legacy closeness 45: expected 0.45, got %v", rel.Closeness)
	}
	if math.Abs(rel.Trust-0.80) > 1e-9 {
		t.Fatalf("legacy trust 80: expected 0.80, got %v", rel.Trust)
	}
	// Missing dimensions take the documented baselines.
	if rel.Liking != 0.3 || rel.Power != 0.5 {
		t.Fatalf("baselines not applied: %+v", rel)
	}
}

func TestRedisStateStore_SaveNormalizesBeforeWrite(t *testing.T) {
	s := NewRedisStateStore(newTestRedis(t))
	ctx := context.Background()

	// In-memory caller slipped a legacy-scale value in; the write must
	// land normalized.
	rel := &core.RelationshipState{Closeness: 45, Trust: 0.3, Liking: 0.3, Respect: 0.3, Warmth: 0.3, Power: 0.5}
	if err := s.SaveRelationship(ctx, "b", "u", rel, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _, err := s.LoadRelationship(ctx, "b", "u")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if math.Abs(got.Closeness-0.45) > 1e-9 {
		t.Fatalf("expected normalized 0.45, got %v", got.Closeness)
	}
}

func TestRedisStateStore_MoodRoundTrip(t *testing.T) {
	s := NewRedisStateStore(newTestRedis(t))
	ctx := context.Background()

	if _, ok, err := s.LoadMood(ctx, "bot-1"); err != nil || ok {
		t.Fatalf("absent mood: ok=%v err=%v", ok, err)
	}

	mood := core.MoodState{Pleasure: 0.4, Arousal: -0.2, Dominance: 0.1, Busyness: 0.7}
	if err := s.SaveMood(ctx, "bot-1", mood); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.LoadMood(ctx, "bot-1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got != mood {
		t.Fatalf("mood round-trip: expected %+v, got %+v", mood, got)
	}
}

func TestRedisStateStore_StageRoundTrip(t *testing.T) {
	s := NewRedisStateStore(newTestRedis(t))
	ctx := context.Background()

	if stage, err := s.LoadStage(ctx, "b", "u"); err != nil || stage != "" {
		t.Fatalf("absent stage: %q err=%v", stage, err)
	}
	if err := s.SaveStage(ctx, "b", "u", core.StageIntensifying); err != nil {
		t.Fatalf("save: %v", err)
	}
	stage, err := s.LoadStage(ctx, "b", "u")
	if err != nil || stage != core.StageIntensifying {
		t.Fatalf("expected intensifying, got %q err=%v", stage, err)
	}
}

// ══════════════════════════════════════════════
// RedisMemoryService
// ══════════════════════════════════════════════

func TestRedisMemoryService_ProfileAndMemories(t *testing.T) {
	m := NewRedisMemoryService(newTestRedis(t))
	ctx := context.Background()

	if p, err := m.GetProfile(ctx, "user-1"); err != nil || p != "" {
		t.Fatalf("absent profile: %q err=%v", p, err)
	}
	if err := m.SetProfile(ctx, "user-1", "喜欢猫，37岁"); err != nil {
		t.Fatalf("set profile: %v", err)
	}
	p, err := m.GetProfile(ctx, "user-1")
	if err != nil || p != "喜欢猫，37岁" {
		t.Fatalf("profile round-trip: %q err=%v", p, err)
	}

	for _, content := range []string{"聊了工作", "聊了家人", "聊了旅行计划"} {
		if err := m.AppendMemory(ctx, "user-1", content, map[string]string{"origin": "turn_pipeline"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := m.GetMemories(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("get memories: %v", err)
	}
	if got != "聊了家人\n聊了旅行计划" {
		t.Fatalf("expected newest 2 records, got %q", got)
	}
}

func TestRedisMemoryService_EmptyMemories(t *testing.T) {
	m := NewRedisMemoryService(newTestRedis(t))
	got, err := m.GetMemories(context.Background(), "ghost", 5)
	if err != nil || got != "" {
		t.Fatalf("expected empty, got %q err=%v", got, err)
	}
}
