package store

import (
	"context"
	"strings"
	"sync"

	core "github.com/cyberFlowTech/zapry-companion-core-go"
)

// InMemoryStateStore is a thread-safe in-memory StateStore for
// development and tests. Data is lost on restart.
type InMemoryStateStore struct {
	mu     sync.RWMutex
	rels   map[string]core.RelationshipState // key: bot:user
	spts   map[string]core.SPTInfo
	moods  map[string]core.MoodState
	stages map[string]core.Stage
}

// NewInMemoryStateStore creates an empty in-memory state store.
func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{
		rels:   make(map[string]core.RelationshipState),
		spts:   make(map[string]core.SPTInfo),
		moods:  make(map[string]core.MoodState),
		stages: make(map[string]core.Stage),
	}
}

func pairKey(botID, userID string) string {
	return botID + ":" + userID
}

func (s *InMemoryStateStore) LoadRelationship(ctx context.Context, botID, userID string) (*core.RelationshipState, *core.SPTInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.rels[pairKey(botID, userID)]
	if !ok {
		return nil, nil, nil
	}
	relCopy := rel
	relCopy.Normalize()

	spt, ok := s.spts[pairKey(botID, userID)]
	if !ok {
		return &relCopy, core.DefaultSPTInfo(), nil
	}
	sptCopy := spt
	sptCopy.TopicList = append([]string{}, spt.TopicList...)
	sptCopy.RecentSignals = append([]string{}, spt.RecentSignals...)
	return &relCopy, &sptCopy, nil
}

func (s *InMemoryStateStore) SaveRelationship(ctx context.Context, botID, userID string, rel *core.RelationshipState, spt *core.SPTInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	normalized := *rel
	normalized.Normalize()
	s.rels[pairKey(botID, userID)] = normalized
	if spt != nil {
		sptCopy := *spt
		sptCopy.TopicList = append([]string{}, spt.TopicList...)
		sptCopy.RecentSignals = append([]string{}, spt.RecentSignals...)
		s.spts[pairKey(botID, userID)] = sptCopy
	}
	return nil
}

func (s *InMemoryStateStore) LoadMood(ctx context.Context, botID string) (core.MoodState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mood, ok := s.moods[botID]
	return mood, ok, nil
}

func (s *InMemoryStateStore) SaveMood(ctx context.Context, botID string, mood core.MoodState) error {
	s.mu.Lock()
	s.moods[botID] = mood
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStateStore) LoadStage(ctx context.Context, botID, userID string) (core.Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stages[pairKey(botID, userID)], nil
}

func (s *InMemoryStateStore) SaveStage(ctx context.Context, botID, userID string, stage core.Stage) error {
	s.mu.Lock()
	s.stages[pairKey(botID, userID)] = stage
	s.mu.Unlock()
	return nil
}

// InMemoryMemoryService is a thread-safe in-memory MemoryService for
// development and tests.
type InMemoryMemoryService struct {
	mu       sync.RWMutex
	profiles map[string]string
	records  map[string][]memoryRecord
}

// NewInMemoryMemoryService creates an empty in-memory memory service.
func NewInMemoryMemoryService() *InMemoryMemoryService {
	return &InMemoryMemoryService{
		profiles: make(map[string]string),
		records:  make(map[string][]memoryRecord),
	}
}

func (m *InMemoryMemoryService) GetProfile(ctx context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profiles[userID], nil
}

// SetProfile writes the user's profile text.
func (m *InMemoryMemoryService) SetProfile(ctx context.Context, userID, profile string) error {
	m.mu.Lock()
	m.profiles[userID] = profile
	m.mu.Unlock()
	return nil
}

func (m *InMemoryMemoryService) GetMemories(ctx context.Context, userID string, limit int) (string, error) {
	if limit <= 0 {
		limit = 5
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.records[userID]
	if len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, r.Content)
	}
	return strings.Join(lines, "\n"), nil
}

func (m *InMemoryMemoryService) AppendMemory(ctx context.Context, userID, content string, meta map[string]string) error {
	m.mu.Lock()
	m.records[userID] = append(m.records[userID], memoryRecord{Content: content, Meta: meta})
	m.mu.Unlock()
	return nil
}

// Records returns a copy of the stored records for userID, for tests.
func (m *InMemoryMemoryService) Records(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.records[userID]))
	for _, r := range m.records[userID] {
		out = append(out, r.Content)
	}
	return out
}
