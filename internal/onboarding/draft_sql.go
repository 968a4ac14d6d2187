package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// draftSchema works on both postgres and sqlite. Timestamps are unix
// milliseconds so both drivers scan them the same way.
const draftSchema = `
CREATE TABLE IF NOT EXISTS onboarding_drafts (
	session_id  TEXT   NOT NULL,
	step        TEXT   NOT NULL,
	payload     TEXT   NOT NULL,
	revision    BIGINT NOT NULL DEFAULT 1,
	updated_at  BIGINT NOT NULL,
	PRIMARY KEY (session_id, step)
)`

type draftRow struct {
	Step      string `db:"step"`
	Payload   string `db:"payload"`
	Revision  int64  `db:"revision"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r draftRow) draft() Draft {
	return Draft{
		Step:      Step(r.Step),
		Payload:   json.RawMessage(r.Payload),
		Revision:  r.Revision,
		UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC(),
	}
}

// SQLDraftStore keeps drafts in the onboarding_drafts table
type SQLDraftStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLDraftStore creates a new SQL draft store
func NewSQLDraftStore(db *sqlx.DB) *SQLDraftStore {
	return &SQLDraftStore{db: db, now: time.Now}
}

// Migrate creates the drafts table if it does not exist
func (s *SQLDraftStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, draftSchema); err != nil {
		return fmt.Errorf("failed to create onboarding_drafts: %w", err)
	}
	return nil
}

func (s *SQLDraftStore) Save(ctx context.Context, sessionID string, step Step, payload json.RawMessage) (Draft, error) {
	now := s.now().UTC()
	query := s.db.Rebind(`
		INSERT INTO onboarding_drafts (session_id, step, payload, revision, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (session_id, step) DO UPDATE SET
			payload = excluded.payload,
			revision = onboarding_drafts.revision + 1,
			updated_at = excluded.updated_at
		RETURNING revision`)

	var revision int64
	err := s.db.QueryRowxContext(ctx, query, sessionID, string(step), string(payload), now.UnixMilli()).Scan(&revision)
	if err != nil {
		return Draft{}, fmt.Errorf("failed to save %s draft: %w", step, err)
	}

	return Draft{
		Step:      step,
		Payload:   append(json.RawMessage(nil), payload...),
		Revision:  revision,
		UpdatedAt: time.UnixMilli(now.UnixMilli()).UTC(),
	}, nil
}

func (s *SQLDraftStore) Load(ctx context.Context, sessionID string) (Drafts, error) {
	var rows []draftRow
	query := s.db.Rebind(`SELECT step, payload, revision, updated_at FROM onboarding_drafts WHERE session_id = ?`)
	if err := s.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to load drafts: %w", err)
	}

	drafts := make(Drafts, len(rows))
	for _, row := range rows {
		d := row.draft()
		drafts[d.Step] = d
	}
	return drafts, nil
}

func (s *SQLDraftStore) Clear(ctx context.Context, sessionID string, steps ...Step) error {
	if len(steps) == 0 {
		return nil
	}
	names := make([]string, len(steps))
	for i, step := range steps {
		names[i] = string(step)
	}

	query, args, err := sqlx.In(`DELETE FROM onboarding_drafts WHERE session_id = ? AND step IN (?)`, sessionID, names)
	if err != nil {
		return fmt.Errorf("failed to build draft delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to clear drafts: %w", err)
	}
	return nil
}

// PurgeOlderThan deletes drafts not touched since cutoff
func (s *SQLDraftStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := s.db.Rebind(`DELETE FROM onboarding_drafts WHERE updated_at < ?`)
	res, err := s.db.ExecContext(ctx, query, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge drafts: %w", err)
	}
	return res.RowsAffected()
}
