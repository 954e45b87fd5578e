package repository

import (
	"context"
	"database/sql"

	"github.com/ct-protocol-manual/internal/database"
	"github.com/ct-protocol-manual/internal/models"
)

// sessionRepo is the concrete implementation of SessionRepository
type sessionRepo struct {
	db *database.DB
}

// NewSessionRepo creates a new session repository
func NewSessionRepo(db *database.DB) SessionRepository {
	return &sessionRepo{db: db}
}

// Upsert writes the user's single session record, replacing any previous one
func (r *sessionRepo) Upsert(ctx context.Context, rec *models.SessionRecord) error {
	query := r.db.Rebind(`
		INSERT INTO user_sessions (user_id, session_data, last_updated)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			session_data = excluded.session_data,
			last_updated = excluded.last_updated
	`)
	// Snapshots are JSON text; binding []byte would be sent as bytea by lib/pq.
	_, err := r.db.ExecContext(ctx, query, rec.UserID, string(rec.Snapshot), rec.LastUpdated.UTC())
	return err
}

// GetByUser returns the session record of one user
func (r *sessionRepo) GetByUser(ctx context.Context, userID int64) (*models.SessionRecord, error) {
	query := r.db.Rebind(`SELECT user_id, session_data, last_updated FROM user_sessions WHERE user_id = ?`)
	return scanSession(r.db.QueryRowContext(ctx, query, userID))
}

// GetLatest returns the most recently updated record across all users
func (r *sessionRepo) GetLatest(ctx context.Context) (*models.SessionRecord, error) {
	query := `SELECT user_id, session_data, last_updated FROM user_sessions ORDER BY last_updated DESC LIMIT 1`
	return scanSession(r.db.QueryRowContext(ctx, query))
}

// Delete removes the user's session record
func (r *sessionRepo) Delete(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM user_sessions WHERE user_id = ?`), userID)
	return err
}

func scanSession(row rowScanner) (*models.SessionRecord, error) {
	var (
		rec  models.SessionRecord
		data string
	)
	err := row.Scan(&rec.UserID, &data, &rec.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Snapshot = []byte(data)
	return &rec, nil
}
