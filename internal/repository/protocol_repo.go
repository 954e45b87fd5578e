package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ct-protocol-manual/internal/database"
	"github.com/ct-protocol-manual/internal/models"
)

const protocolColumns = `id, category, title, content, image, created_at, updated_at`

// protocolRepo is the concrete implementation of ProtocolRepository
type protocolRepo struct {
	db *database.DB
}

// NewProtocolRepo creates a new protocol repository
func NewProtocolRepo(db *database.DB) ProtocolRepository {
	return &protocolRepo{db: db}
}

// Create inserts a new protocol and sets its generated ID
func (r *protocolRepo) Create(ctx context.Context, p *models.Protocol) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO protocols (category, title, content, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	return r.db.QueryRowContext(ctx, query,
		p.Category, p.Title, p.Content, p.Image, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
}

// Update overwrites category, title, content and image
func (r *protocolRepo) Update(ctx context.Context, p *models.Protocol) (bool, error) {
	p.UpdatedAt = time.Now().UTC()

	query := r.db.Rebind(`
		UPDATE protocols SET category = ?, title = ?, content = ?, image = ?, updated_at = ?
		WHERE id = ?
	`)
	res, err := r.db.ExecContext(ctx, query, p.Category, p.Title, p.Content, p.Image, p.UpdatedAt, p.ID)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// Delete removes a protocol
func (r *protocolRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM protocols WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// GetByID retrieves a protocol by ID
func (r *protocolRepo) GetByID(ctx context.Context, id int64) (*models.Protocol, error) {
	query := r.db.Rebind(`SELECT ` + protocolColumns + ` FROM protocols WHERE id = ?`)
	return scanProtocol(r.db.QueryRowContext(ctx, query, id))
}

// List returns every protocol ordered by category then title
func (r *protocolRepo) List(ctx context.Context) ([]*models.Protocol, error) {
	return r.queryProtocols(ctx, `SELECT `+protocolColumns+` FROM protocols ORDER BY category, title, id`)
}

// ListByCategory returns the protocols of one category ordered by title
func (r *protocolRepo) ListByCategory(ctx context.Context, category string) ([]*models.Protocol, error) {
	query := r.db.Rebind(`SELECT ` + protocolColumns + ` FROM protocols WHERE category = ? ORDER BY title, id`)
	return r.queryProtocols(ctx, query, category)
}

// Search matches the term against title, content and category
func (r *protocolRepo) Search(ctx context.Context, term string) ([]*models.Protocol, error) {
	query := r.db.Rebind(`
		SELECT ` + protocolColumns + ` FROM protocols
		WHERE LOWER(title) LIKE ? ESCAPE '\'
			OR LOWER(content) LIKE ? ESCAPE '\'
			OR LOWER(category) LIKE ? ESCAPE '\'
		ORDER BY category, title, id
	`)
	p := likePattern(term)
	return r.queryProtocols(ctx, query, p, p, p)
}

// Count returns the total number of protocols
func (r *protocolRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM protocols").Scan(&count)
	return count, err
}

// StreamAll streams all protocols for export
func (r *protocolRepo) StreamAll(ctx context.Context, callback func(*models.Protocol) error) error {
	rows, err := r.db.QueryContext(ctx, `SELECT `+protocolColumns+` FROM protocols ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProtocol(rows)
		if err != nil {
			return err
		}
		if err := callback(p); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *protocolRepo) queryProtocols(ctx context.Context, query string, args ...interface{}) ([]*models.Protocol, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	protocols := []*models.Protocol{}
	for rows.Next() {
		p, err := scanProtocol(rows)
		if err != nil {
			return nil, err
		}
		protocols = append(protocols, p)
	}
	return protocols, rows.Err()
}

func scanProtocol(row rowScanner) (*models.Protocol, error) {
	var p models.Protocol
	err := row.Scan(&p.ID, &p.Category, &p.Title, &p.Content, &p.Image, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
