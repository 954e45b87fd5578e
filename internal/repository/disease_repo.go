package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ct-protocol-manual/internal/database"
	"github.com/ct-protocol-manual/internal/models"
)

const diseaseColumns = `id, name, description, keywords, description_image,
	scan_label, scan_detail, scan_image,
	contrast_label, contrast_detail, contrast_image,
	post_processing_label, post_processing_detail, post_processing_image,
	created_at, updated_at`

// diseaseRepo is the concrete implementation of DiseaseRepository
type diseaseRepo struct {
	db *database.DB
}

// NewDiseaseRepo creates a new disease repository
func NewDiseaseRepo(db *database.DB) DiseaseRepository {
	return &diseaseRepo{db: db}
}

// Create inserts a new disease and sets its generated ID
func (r *diseaseRepo) Create(ctx context.Context, d *models.Disease) error {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO diseases (name, description, keywords, description_image,
			scan_label, scan_detail, scan_image,
			contrast_label, contrast_detail, contrast_image,
			post_processing_label, post_processing_detail, post_processing_image,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	return r.db.QueryRowContext(ctx, query,
		d.Name, d.Description, d.Keywords, d.DescriptionImage,
		d.Scan.Label, d.Scan.Detail, d.Scan.Image,
		d.Contrast.Label, d.Contrast.Detail, d.Contrast.Image,
		d.PostProcessing.Label, d.PostProcessing.Detail, d.PostProcessing.Image,
		d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID)
}

// Update overwrites every editable field. Returns false when the disease does not exist.
func (r *diseaseRepo) Update(ctx context.Context, d *models.Disease) (bool, error) {
	d.UpdatedAt = time.Now().UTC()

	query := r.db.Rebind(`
		UPDATE diseases SET
			name = ?, description = ?, keywords = ?, description_image = ?,
			scan_label = ?, scan_detail = ?, scan_image = ?,
			contrast_label = ?, contrast_detail = ?, contrast_image = ?,
			post_processing_label = ?, post_processing_detail = ?, post_processing_image = ?,
			updated_at = ?
		WHERE id = ?
	`)
	res, err := r.db.ExecContext(ctx, query,
		d.Name, d.Description, d.Keywords, d.DescriptionImage,
		d.Scan.Label, d.Scan.Detail, d.Scan.Image,
		d.Contrast.Label, d.Contrast.Detail, d.Contrast.Image,
		d.PostProcessing.Label, d.PostProcessing.Detail, d.PostProcessing.Image,
		d.UpdatedAt, d.ID,
	)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// Delete removes a disease. Returns false when it did not exist.
func (r *diseaseRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM diseases WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// GetByID retrieves a disease by ID
func (r *diseaseRepo) GetByID(ctx context.Context, id int64) (*models.Disease, error) {
	query := r.db.Rebind(`SELECT ` + diseaseColumns + ` FROM diseases WHERE id = ?`)
	return scanDisease(r.db.QueryRowContext(ctx, query, id))
}

// List returns every disease ordered by name
func (r *diseaseRepo) List(ctx context.Context) ([]models.DiseaseSummary, error) {
	return r.querySummaries(ctx, `SELECT id, name, keywords FROM diseases ORDER BY name, id`)
}

// Search matches the term case-insensitively against the name, keywords,
// description and every protocol section label and detail.
func (r *diseaseRepo) Search(ctx context.Context, term string) ([]models.DiseaseSummary, error) {
	query := r.db.Rebind(`
		SELECT id, name, keywords FROM diseases
		WHERE LOWER(name) LIKE ? ESCAPE '\'
			OR LOWER(description) LIKE ? ESCAPE '\'
			OR LOWER(keywords) LIKE ? ESCAPE '\'
			OR LOWER(scan_label) LIKE ? ESCAPE '\'
			OR LOWER(scan_detail) LIKE ? ESCAPE '\'
			OR LOWER(contrast_label) LIKE ? ESCAPE '\'
			OR LOWER(contrast_detail) LIKE ? ESCAPE '\'
			OR LOWER(post_processing_label) LIKE ? ESCAPE '\'
			OR LOWER(post_processing_detail) LIKE ? ESCAPE '\'
		ORDER BY name, id
	`)
	p := likePattern(term)
	return r.querySummaries(ctx, query, p, p, p, p, p, p, p, p, p)
}

// Count returns the total number of diseases
func (r *diseaseRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM diseases").Scan(&count)
	return count, err
}

// StreamAll streams all diseases for export
func (r *diseaseRepo) StreamAll(ctx context.Context, callback func(*models.Disease) error) error {
	rows, err := r.db.QueryContext(ctx, `SELECT `+diseaseColumns+` FROM diseases ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDisease(rows)
		if err != nil {
			return err
		}
		if err := callback(d); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *diseaseRepo) querySummaries(ctx context.Context, query string, args ...interface{}) ([]models.DiseaseSummary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []models.DiseaseSummary{}
	for rows.Next() {
		var s models.DiseaseSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Keywords); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func scanDisease(row rowScanner) (*models.Disease, error) {
	var d models.Disease
	err := row.Scan(
		&d.ID, &d.Name, &d.Description, &d.Keywords, &d.DescriptionImage,
		&d.Scan.Label, &d.Scan.Detail, &d.Scan.Image,
		&d.Contrast.Label, &d.Contrast.Detail, &d.Contrast.Image,
		&d.PostProcessing.Label, &d.PostProcessing.Detail, &d.PostProcessing.Image,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
