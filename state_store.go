package companioncore

import "context"

// ──────────────────────────────────────────────
// State Store — persistence boundary for evolving state
// ──────────────────────────────────────────────

// StateStore persists the slow-moving state around the pipeline:
// relationship and SPT per (bot, user), mood per bot, stage per
// (bot, user). Implementations must round-trip every relationship
// dimension through the [0,1] normalization boundary, so legacy 0-100
// rows load correctly and writes always emit [0,1].
//
// Load methods return (nil, nil) / zero values for absent rows; the
// pipeline initializes first-time pairs itself.
type StateStore interface {
	LoadRelationship(ctx context.Context, botID, userID string) (*RelationshipState, *SPTInfo, error)
	SaveRelationship(ctx context.Context, botID, userID string, rel *RelationshipState, spt *SPTInfo) error

	LoadMood(ctx context.Context, botID string) (MoodState, bool, error)
	SaveMood(ctx context.Context, botID string, mood MoodState) error

	LoadStage(ctx context.Context, botID, userID string) (Stage, error)
	SaveStage(ctx context.Context, botID, userID string, stage Stage) error
}
