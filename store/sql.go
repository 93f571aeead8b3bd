package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	core "github.com/cyberFlowTech/zapry-companion-core-go"
)

// SQLStateStore implements the core's StateStore on a database/sql
// backend speaking the MySQL/SQLite dialect (`?` placeholders,
// REPLACE INTO upserts). The sql.DB must be already opened with a
// driver; this package imports none.
//
// Layout (auto-created when AutoMigrate is true):
//   - {prefix}_relationship: one row per (bot_id, user_id) with six
//     bounded floats plus SPT info as JSON
//   - {prefix}_mood: one row per bot_id with four floats
//   - {prefix}_stage: one row per (bot_id, user_id)
//
// Loads route every dimension through the core's [0,1] normalization,
// so legacy rows written on the 0-100 points convention read correctly.
type SQLStateStore struct {
	db     *sql.DB
	prefix string
}

// SQLStoreConfig configures the SQL store.
type SQLStoreConfig struct {
	Prefix      string // table prefix, default "companion"
	AutoMigrate bool   // create tables if not exist, default true
}

// NewSQLStateStore creates a StateStore backed by SQL.
func NewSQLStateStore(db *sql.DB, config ...SQLStoreConfig) (*SQLStateStore, error) {
	cfg := SQLStoreConfig{Prefix: "companion", AutoMigrate: true}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "companion"
	}
	s := &SQLStateStore{db: db, prefix: cfg.Prefix}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *SQLStateStore) migrate() error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_relationship (
			bot_id VARCHAR(64) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			closeness DOUBLE PRECISION NOT NULL,
			trust DOUBLE PRECISION NOT NULL,
			liking DOUBLE PRECISION NOT NULL,
			respect DOUBLE PRECISION NOT NULL,
			warmth DOUBLE PRECISION NOT NULL,
			power DOUBLE PRECISION NOT NULL,
			spt TEXT,
			PRIMARY KEY (bot_id, user_id)
		)`, s.prefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_mood (
			bot_id VARCHAR(64) NOT NULL PRIMARY KEY,
			pleasure DOUBLE PRECISION NOT NULL,
			arousal DOUBLE PRECISION NOT NULL,
			dominance DOUBLE PRECISION NOT NULL,
			busyness DOUBLE PRECISION NOT NULL
		)`, s.prefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_stage (
			bot_id VARCHAR(64) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			stage VARCHAR(32) NOT NULL,
			PRIMARY KEY (bot_id, user_id)
		)`, s.prefix),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLStateStore) LoadRelationship(ctx context.Context, botID, userID string) (*core.RelationshipState, *core.SPTInfo, error) {
	query := fmt.Sprintf(
		`SELECT closeness, trust, liking, respect, warmth, power, spt FROM %s_relationship WHERE bot_id = ? AND user_id = ?`,
		s.prefix)

	var rel core.RelationshipState
	var sptRaw sql.NullString
	err := s.db.QueryRowContext(ctx, query, botID, userID).Scan(
		&rel.Closeness, &rel.Trust, &rel.Liking, &rel.Respect, &rel.Warmth, &rel.Power, &sptRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load relationship: %w", err)
	}
	rel.Normalize()

	spt := core.DefaultSPTInfo()
	if sptRaw.Valid && sptRaw.String != "" {
		if err := json.Unmarshal([]byte(sptRaw.String), spt); err != nil {
			return nil, nil, fmt.Errorf("decode spt: %w", err)
		}
	}
	return &rel, spt, nil
}

func (s *SQLStateStore) SaveRelationship(ctx context.Context, botID, userID string, rel *core.RelationshipState, spt *core.SPTInfo) error {
	normalized := *rel
	normalized.Normalize()

	var sptRaw string
	if spt != nil {
		data, err := json.Marshal(spt)
		if err != nil {
			return fmt.Errorf("encode spt: %w", err)
		}
		sptRaw = string(data)
	}

	query := fmt.Sprintf(`REPLACE INTO %s_relationship
		(bot_id, user_id, closeness, trust, liking, respect, warmth, power, spt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.prefix)
	if _, err := s.db.ExecContext(ctx, query, botID, userID,
		normalized.Closeness, normalized.Trust, normalized.Liking,
		normalized.Respect, normalized.Warmth, normalized.Power, sptRaw); err != nil {
		return fmt.Errorf("save relationship: %w", err)
	}
	return nil
}

func (s *SQLStateStore) LoadMood(ctx context.Context, botID string) (core.MoodState, bool, error) {
	query := fmt.Sprintf(
		`SELECT pleasure, arousal, dominance, busyness FROM %s_mood WHERE bot_id = ?`, s.prefix)

	var mood core.MoodState
	err := s.db.QueryRowContext(ctx, query, botID).Scan(
		&mood.Pleasure, &mood.Arousal, &mood.Dominance, &mood.Busyness)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MoodState{}, false, nil
	}
	if err != nil {
		return core.MoodState{}, false, fmt.Errorf("load mood: %w", err)
	}
	return mood, true, nil
}

func (s *SQLStateStore) SaveMood(ctx context.Context, botID string, mood core.MoodState) error {
	query := fmt.Sprintf(`REPLACE INTO %s_mood
		(bot_id, pleasure, arousal, dominance, busyness)
		VALUES (?, ?, ?, ?, ?)`, s.prefix)
	if _, err := s.db.ExecContext(ctx, query, botID,
		mood.Pleasure, mood.Arousal, mood.Dominance, mood.Busyness); err != nil {
		return fmt.Errorf("save mood: %w", err)
	}
	return nil
}

func (s *SQLStateStore) LoadStage(ctx context.Context, botID, userID string) (core.Stage, error) {
	query := fmt.Sprintf(`SELECT stage FROM %s_stage WHERE bot_id = ? AND user_id = ?`, s.prefix)

	var stage string
	err := s.db.QueryRowContext(ctx, query, botID, userID).Scan(&stage)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load stage: %w", err)
	}
	return core.Stage(stage), nil
}

func (s *SQLStateStore) SaveStage(ctx context.Context, botID, userID string, stage core.Stage) error {
	query := fmt.Sprintf(`REPLACE INTO %s_stage (bot_id, user_id, stage) VALUES (?, ?, ?)`, s.prefix)
	if _, err := s.db.ExecContext(ctx, query, botID, userID, string(stage)); err != nil {
		return fmt.Errorf("save stage: %w", err)
	}
	return nil
}
