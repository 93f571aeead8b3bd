package companioncore

import (
	"fmt"
	"strings"
	"sync"
)

// ──────────────────────────────────────────────
// Mood Model — PAD+busyness affect state, scoped per bot
// ──────────────────────────────────────────────

// MoodState is the bot's ambient affect on four axes, each in [-1,1]
// for pleasure/arousal/dominance and [0,1] for busyness. The state is
// shared by every user of the bot, not per conversation.
type MoodState struct {
	Pleasure  float64 `json:"pleasure"`
	Arousal   float64 `json:"arousal"`
	Dominance float64 `json:"dominance"`
	Busyness  float64 `json:"busyness"`
}

// FormatForPrompt returns a gentle mood hint for LLM injection, or ""
// when the mood is near-neutral and no injection is needed.
func (m MoodState) FormatForPrompt() string {
	var hints []string
	switch {
	case m.Pleasure >= 0.4:
		hints = append(hints, "你现在心情不错")
	case m.Pleasure <= -0.4:
		hints = append(hints, "你现在情绪有点低落")
	}
	switch {
	case m.Arousal >= 0.4:
		hints = append(hints, "精神比较亢奋")
	case m.Arousal <= -0.4:
		hints = append(hints, "有点提不起劲")
	}
	if m.Busyness >= 0.6 {
		hints = append(hints, "手头事情很多，回复可以简短一些")
	}
	if len(hints) == 0 {
		return ""
	}
	return fmt.Sprintf("[当前心境] %s", strings.Join(hints, "，"))
}

type moodEntry struct {
	mu    sync.Mutex
	state MoodState
}

// MoodBook holds the live mood of every bot in the process. Reads return
// copies; writes go through Update, which holds the bot's own lock for
// the whole read-modify-write so concurrent turns from different users
// of the same bot never lose updates.
type MoodBook struct {
	mu   sync.RWMutex
	bots map[string]*moodEntry
}

// NewMoodBook creates an empty mood book. Unknown bots read as the
// all-zero default mood.
func NewMoodBook() *MoodBook {
	return &MoodBook{bots: make(map[string]*moodEntry)}
}

func (b *MoodBook) entry(botID string) *moodEntry {
	b.mu.RLock()
	e, ok := b.bots[botID]
	b.mu.RUnlock()
	if ok {
		return e
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok = b.bots[botID]; ok {
		return e
	}
	e = &moodEntry{}
	b.bots[botID] = e
	return e
}

// Get returns a copy of the bot's current mood.
func (b *MoodBook) Get(botID string) MoodState {
	e := b.entry(botID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Set replaces the bot's mood wholesale, e.g. when hydrating from the
// state store at startup.
func (b *MoodBook) Set(botID string, state MoodState) {
	e := b.entry(botID)
	e.mu.Lock()
	e.state = state.clamped()
	e.mu.Unlock()
}

// Update applies fn to the bot's mood as a single atomic step. fn
// receives a copy and returns the full next state; partial writes are
// impossible by construction.
func (b *MoodBook) Update(botID string, fn func(MoodState) MoodState) MoodState {
	e := b.entry(botID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = fn(e.state).clamped()
	return e.state
}

func (m MoodState) clamped() MoodState {
	m.Pleasure = clampAxis(m.Pleasure)
	m.Arousal = clampAxis(m.Arousal)
	m.Dominance = clampAxis(m.Dominance)
	m.Busyness = clamp01(m.Busyness)
	return m
}

func clampAxis(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
