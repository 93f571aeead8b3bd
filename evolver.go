package companioncore

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ──────────────────────────────────────────────
// Memory Evolver — write-only boundary to the memory collaborator
// ──────────────────────────────────────────────

// memoryRecordLimit caps the appended record length, in runes.
const memoryRecordLimit = 200

// MemoryService is the external memory collaborator. This core reads
// profile and memories at turn start and appends one record at turn
// end; consolidation, embedding, and retrieval ranking live outside.
type MemoryService interface {
	GetProfile(ctx context.Context, userID string) (string, error)
	GetMemories(ctx context.Context, userID string, limit int) (string, error)
	AppendMemory(ctx context.Context, userID, content string, meta map[string]string) error
}

// MemoryEvolver appends turn artifacts to the memory service.
// Append failure is reported, never propagated: the turn already
// produced its response by the time the evolver runs.
type MemoryEvolver struct {
	svc    MemoryService
	logger *zap.Logger

	// AppendFailures counts swallowed persistence failures.
	AppendFailures atomic.Int64
}

// NewMemoryEvolver creates an evolver. logger may be nil.
func NewMemoryEvolver(svc MemoryService, logger *zap.Logger) *MemoryEvolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryEvolver{svc: svc, logger: logger}
}

// EvolveTurn persists the turn's reply as one memory record: final
// segments joined (or the raw draft when segmentation produced none),
// truncated to memoryRecordLimit runes, tagged with its origin.
//
// The leak guard runs first and its error is the only one returned:
// refusing to persist internal state is a hard failure of the write.
// Ordinary persistence failure is logged and counted only.
func (e *MemoryEvolver) EvolveTurn(ctx context.Context, ts *TurnState) error {
	if e.svc == nil || ts == nil {
		return nil
	}

	content := strings.Join(ts.Segments, "\n")
	if content == "" {
		content = ts.Draft
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	content = truncateRunes(content, memoryRecordLimit)

	if err := CheckOutbound("memory", content); err != nil {
		var leak *LeakDetectedError
		if errors.As(err, &leak) {
			e.logger.Error("refusing to persist internal-state text",
				zap.String("bot_id", ts.BotID),
				zap.String("user_id", ts.UserID),
				zap.String("signature", leak.Signature))
		}
		return err
	}

	meta := map[string]string{
		"origin":  "turn_pipeline",
		"bot_id":  ts.BotID,
		"mode":    ts.Mode.ID,
		"turn_id": ts.TurnID,
	}
	if err := e.svc.AppendMemory(ctx, ts.UserID, content, meta); err != nil {
		e.AppendFailures.Inc()
		e.logger.Error("memory append failed",
			zap.String("user_id", ts.UserID),
			zap.String("turn_id", ts.TurnID),
			zap.Error(err))
	}
	return nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
