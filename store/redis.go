// Package store provides Redis, SQL, and in-memory implementations of
// the core's StateStore and MemoryService contracts.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	core "github.com/cyberFlowTech/zapry-companion-core-go"
)

// RedisConfig configures the Redis-backed stores.
type RedisConfig struct {
	Prefix string        // key prefix, default "companion"
	TTL    time.Duration // TTL for state keys, 0 = no expiry
}

// RedisStateStore persists relationship, SPT, mood, and stage state in
// Redis as JSON values. Relationship rows are stored as a dimension map
// so loads can apply baselines for missing dimensions and the [0,1]
// normalization for legacy 0-100 values.
type RedisStateStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStateStore creates a StateStore backed by Redis.
func NewRedisStateStore(client redis.UniversalClient, config ...RedisConfig) *RedisStateStore {
	cfg := RedisConfig{Prefix: "companion"}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "companion"
	}
	return &RedisStateStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

func (s *RedisStateStore) relKey(botID, userID string) string {
	return fmt.Sprintf("%s:rel:%s:%s", s.prefix, botID, userID)
}

func (s *RedisStateStore) sptKey(botID, userID string) string {
	return fmt.Sprintf("%s:spt:%s:%s", s.prefix, botID, userID)
}

func (s *RedisStateStore) moodKey(botID string) string {
	return fmt.Sprintf("%s:mood:%s", s.prefix, botID)
}

func (s *RedisStateStore) stageKey(botID, userID string) string {
	return fmt.Sprintf("%s:stage:%s:%s", s.prefix, botID, userID)
}

// LoadRelationship returns (nil, nil, nil) when the pair has no row yet.
func (s *RedisStateStore) LoadRelationship(ctx context.Context, botID, userID string) (*core.RelationshipState, *core.SPTInfo, error) {
	raw, err := s.client.Get(ctx, s.relKey(botID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load relationship: %w", err)
	}

	var dims map[string]float64
	if err := json.Unmarshal([]byte(raw), &dims); err != nil {
		return nil, nil, fmt.Errorf("decode relationship: %w", err)
	}
	rel := core.FromStoredDimensions(dims)

	spt := core.DefaultSPTInfo()
	sptRaw, err := s.client.Get(ctx, s.sptKey(botID, userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, fmt.Errorf("load spt: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal([]byte(sptRaw), spt); err != nil {
			return nil, nil, fmt.Errorf("decode spt: %w", err)
		}
	}
	return rel, spt, nil
}

// SaveRelationship writes both rows. Dimensions are normalized to [0,1]
// before the write so the store never re-persists legacy values.
func (s *RedisStateStore) SaveRelationship(ctx context.Context, botID, userID string, rel *core.RelationshipState, spt *core.SPTInfo) error {
	normalized := *rel
	normalized.Normalize()
	relData, err := json.Marshal(dimensionMap(&normalized))
	if err != nil {
		return fmt.Errorf("encode relationship: %w", err)
	}
	if err := s.client.Set(ctx, s.relKey(botID, userID), relData, s.ttl).Err(); err != nil {
		return fmt.Errorf("save relationship: %w", err)
	}

	if spt != nil {
		sptData, err := json.Marshal(spt)
		if err != nil {
			return fmt.Errorf("encode spt: %w", err)
		}
		if err := s.client.Set(ctx, s.sptKey(botID, userID), sptData, s.ttl).Err(); err != nil {
			return fmt.Errorf("save spt: %w", err)
		}
	}
	return nil
}

// LoadMood returns (zero, false, nil) when the bot has no mood row yet.
func (s *RedisStateStore) LoadMood(ctx context.Context, botID string) (core.MoodState, bool, error) {
	raw, err := s.client.Get(ctx, s.moodKey(botID)).Result()
	if errors.Is(err, redis.Nil) {
		return core.MoodState{}, false, nil
	}
	if err != nil {
		return core.MoodState{}, false, fmt.Errorf("load mood: %w", err)
	}
	var mood core.MoodState
	if err := json.Unmarshal([]byte(raw), &mood); err != nil {
		return core.MoodState{}, false, fmt.Errorf("decode mood: %w", err)
	}
	return mood, true, nil
}

func (s *RedisStateStore) SaveMood(ctx context.Context, botID string, mood core.MoodState) error {
	data, err := json.Marshal(mood)
	if err != nil {
		return fmt.Errorf("encode mood: %w", err)
	}
	if err := s.client.Set(ctx, s.moodKey(botID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save mood: %w", err)
	}
	return nil
}

// LoadStage returns "" when the pair has no stage row yet.
func (s *RedisStateStore) LoadStage(ctx context.Context, botID, userID string) (core.Stage, error) {
	raw, err := s.client.Get(ctx, s.stageKey(botID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load stage: %w", err)
	}
	return core.Stage(raw), nil
}

func (s *RedisStateStore) SaveStage(ctx context.Context, botID, userID string, stage core.Stage) error {
	if err := s.client.Set(ctx, s.stageKey(botID, userID), string(stage), s.ttl).Err(); err != nil {
		return fmt.Errorf("save stage: %w", err)
	}
	return nil
}

func dimensionMap(rel *core.RelationshipState) map[string]float64 {
	return map[string]float64{
		"closeness": rel.Closeness,
		"trust":     rel.Trust,
		"liking":    rel.Liking,
		"respect":   rel.Respect,
		"warmth":    rel.Warmth,
		"power":     rel.Power,
	}
}

// ──────────────────────────────────────────────
// Redis-backed MemoryService
// ──────────────────────────────────────────────

// memoryRecord is the persisted memory entry shape.
type memoryRecord struct {
	Content string            `json:"content"`
	Meta    map[string]string `json:"meta,omitempty"`
	At      time.Time         `json:"at"`
}

// RedisMemoryService implements the core's MemoryService on Redis:
// profile as a plain string, memories as a capped list of JSON records.
type RedisMemoryService struct {
	client  redis.UniversalClient
	prefix  string
	maxSize int64 // list cap per user
}

// NewRedisMemoryService creates a MemoryService backed by Redis.
func NewRedisMemoryService(client redis.UniversalClient, config ...RedisConfig) *RedisMemoryService {
	cfg := RedisConfig{Prefix: "companion"}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "companion"
	}
	return &RedisMemoryService{client: client, prefix: cfg.Prefix, maxSize: 500}
}

func (m *RedisMemoryService) profileKey(userID string) string {
	return fmt.Sprintf("%s:profile:%s", m.prefix, userID)
}

func (m *RedisMemoryService) listKey(userID string) string {
	return fmt.Sprintf("%s:memories:%s", m.prefix, userID)
}

func (m *RedisMemoryService) GetProfile(ctx context.Context, userID string) (string, error) {
	raw, err := m.client.Get(ctx, m.profileKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	return raw, nil
}

// SetProfile writes the user's profile text. Used by profile
// maintenance, not by the turn pipeline.
func (m *RedisMemoryService) SetProfile(ctx context.Context, userID, profile string) error {
	if err := m.client.Set(ctx, m.profileKey(userID), profile, 0).Err(); err != nil {
		return fmt.Errorf("set profile: %w", err)
	}
	return nil
}

// GetMemories returns the newest limit records joined as lines.
func (m *RedisMemoryService) GetMemories(ctx context.Context, userID string, limit int) (string, error) {
	if limit <= 0 {
		limit = 5
	}
	items, err := m.client.LRange(ctx, m.listKey(userID), int64(-limit), -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("get memories: %w", err)
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		var rec memoryRecord
		if json.Unmarshal([]byte(item), &rec) == nil && rec.Content != "" {
			lines = append(lines, rec.Content)
			continue
		}
		lines = append(lines, item)
	}
	return strings.Join(lines, "\n"), nil
}

func (m *RedisMemoryService) AppendMemory(ctx context.Context, userID, content string, meta map[string]string) error {
	data, err := json.Marshal(memoryRecord{Content: content, Meta: meta, At: time.Now()})
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}
	key := m.listKey(userID)
	if err := m.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("append memory: %w", err)
	}
	if err := m.client.LTrim(ctx, key, -m.maxSize, -1).Err(); err != nil {
		return fmt.Errorf("trim memories: %w", err)
	}
	return nil
}
