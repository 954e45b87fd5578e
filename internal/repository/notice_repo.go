package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ct-protocol-manual/internal/database"
	"github.com/ct-protocol-manual/internal/models"
)

const noticeColumns = `id, title, body, image, created_at, updated_at`

// noticeRepo is the concrete implementation of NoticeRepository
type noticeRepo struct {
	db *database.DB
}

// NewNoticeRepo creates a new notice repository
func NewNoticeRepo(db *database.DB) NoticeRepository {
	return &noticeRepo{db: db}
}

// Create inserts a new notice and sets its generated ID
func (r *noticeRepo) Create(ctx context.Context, n *models.Notice) error {
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO notices (title, body, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)
	return r.db.QueryRowContext(ctx, query, n.Title, n.Body, n.Image, n.CreatedAt, n.UpdatedAt).Scan(&n.ID)
}

// Update overwrites title, body and image
func (r *noticeRepo) Update(ctx context.Context, n *models.Notice) (bool, error) {
	n.UpdatedAt = time.Now().UTC()

	query := r.db.Rebind(`UPDATE notices SET title = ?, body = ?, image = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, n.Title, n.Body, n.Image, n.UpdatedAt, n.ID)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// Delete removes a notice
func (r *noticeRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM notices WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// GetByID retrieves a notice by ID
func (r *noticeRepo) GetByID(ctx context.Context, id int64) (*models.Notice, error) {
	query := r.db.Rebind(`SELECT ` + noticeColumns + ` FROM notices WHERE id = ?`)
	return scanNotice(r.db.QueryRowContext(ctx, query, id))
}

// List returns notices newest first. A limit <= 0 returns all of them.
func (r *noticeRepo) List(ctx context.Context, limit int) ([]*models.Notice, error) {
	query := `SELECT ` + noticeColumns + ` FROM notices ORDER BY created_at DESC, id DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notices := []*models.Notice{}
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, err
		}
		notices = append(notices, n)
	}
	return notices, rows.Err()
}

// Count returns the total number of notices
func (r *noticeRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notices").Scan(&count)
	return count, err
}

// StreamAll streams all notices for export
func (r *noticeRepo) StreamAll(ctx context.Context, callback func(*models.Notice) error) error {
	rows, err := r.db.QueryContext(ctx, `SELECT `+noticeColumns+` FROM notices ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return err
		}
		if err := callback(n); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanNotice(row rowScanner) (*models.Notice, error) {
	var n models.Notice
	err := row.Scan(&n.ID, &n.Title, &n.Body, &n.Image, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}
