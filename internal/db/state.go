package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Entity kinds stored in refresh_state.
const (
	KindGame     = "game"
	KindPlatform = "platform"
)

// RefreshState is the stored outcome of the last refresh of an entity.
type RefreshState struct {
	Path        string
	Kind        string
	Provider    string
	RemoteID    string
	Outcome     string
	PassID      string
	RefreshedAt time.Time // zero until a terminal outcome is recorded; stored as unix nanoseconds
	LastError   string
}

// MarkRefreshed records a terminal outcome (success or confirmed no data)
// and advances the refresh timestamp.
func (db *DB) MarkRefreshed(ctx context.Context, st RefreshState) error {
	if st.RefreshedAt.IsZero() {
		st.RefreshedAt = time.Now()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO refresh_state (path, kind, provider, remote_id, outcome, pass_id, refreshed_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, '')
		ON CONFLICT(path, kind) DO UPDATE SET
			provider = excluded.provider,
			remote_id = excluded.remote_id,
			outcome = excluded.outcome,
			pass_id = excluded.pass_id,
			refreshed_at = excluded.refreshed_at,
			last_error = ''
	`, st.Path, st.Kind, st.Provider, st.RemoteID, st.Outcome, st.PassID, st.RefreshedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to mark refreshed: %w", err)
	}
	return nil
}

// RecordFailure stores a transient failure without touching the refresh
// timestamp, so the entity is retried on the next pass.
func (db *DB) RecordFailure(ctx context.Context, path, kind, passID string, failure error) error {
	msg := ""
	if failure != nil {
		msg = failure.Error()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO refresh_state (path, kind, pass_id, last_error)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path, kind) DO UPDATE SET
			pass_id = excluded.pass_id,
			last_error = excluded.last_error
	`, path, kind, passID, msg)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

// GetRefreshState returns the stored state, or nil when there is none.
func (db *DB) GetRefreshState(ctx context.Context, path, kind string) (*RefreshState, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT path, kind, provider, remote_id, outcome, pass_id, refreshed_at, last_error
		FROM refresh_state WHERE path = ? AND kind = ?
	`, path, kind)

	var (
		st          RefreshState
		refreshedAt sql.NullInt64
	)
	if err := row.Scan(&st.Path, &st.Kind, &st.Provider, &st.RemoteID, &st.Outcome, &st.PassID, &refreshedAt, &st.LastError); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refresh state: %w", err)
	}
	if refreshedAt.Valid {
		st.RefreshedAt = time.Unix(0, refreshedAt.Int64)
	}
	return &st, nil
}

// LastRefreshed returns when the entity last reached a terminal outcome.
// The zero time means never.
func (db *DB) LastRefreshed(ctx context.Context, path, kind string) (time.Time, error) {
	st, err := db.GetRefreshState(ctx, path, kind)
	if err != nil || st == nil {
		return time.Time{}, err
	}
	return st.RefreshedAt, nil
}

// CountRefreshed returns how many entities of kind have a terminal outcome.
func (db *DB) CountRefreshed(ctx context.Context, kind string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM refresh_state WHERE kind = ? AND refreshed_at IS NOT NULL", kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count refresh state: %w", err)
	}
	return n, nil
}
