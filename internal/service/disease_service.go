package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ct-protocol-manual/internal/models"
	"github.com/ct-protocol-manual/internal/repository"
	"github.com/ct-protocol-manual/internal/validation"
	"github.com/rs/zerolog"
)

// diseaseService is the concrete implementation of DiseaseService
type diseaseService struct {
	repo      repository.DiseaseRepository
	validator *validation.Validator
	cache     *listCache
	log       zerolog.Logger
}

func newDiseaseService(repo repository.DiseaseRepository, validator *validation.Validator, cache *listCache, log zerolog.Logger) *diseaseService {
	return &diseaseService{
		repo:      repo,
		validator: validator,
		cache:     cache,
		log:       log.With().Str("service", "disease").Logger(),
	}
}

// Get returns a disease or nil when it does not exist
func (s *diseaseService) Get(ctx context.Context, id int64) (*models.Disease, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get disease %d: %w", id, err)
	}
	return d, nil
}

// List returns all diseases ordered by name
func (s *diseaseService) List(ctx context.Context) ([]models.DiseaseSummary, error) {
	key := diseaseCachePrefix + "list"
	if v, ok := s.cache.get(key); ok {
		return v.([]models.DiseaseSummary), nil
	}

	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list diseases: %w", err)
	}
	s.cache.set(key, list)
	return list, nil
}

// Search returns diseases matching term. A blank term matches nothing.
func (s *diseaseService) Search(ctx context.Context, term string) ([]models.DiseaseSummary, error) {
	if strings.TrimSpace(term) == "" {
		return []models.DiseaseSummary{}, nil
	}

	key := searchKey(diseaseCachePrefix, term)
	if v, ok := s.cache.get(key); ok {
		return v.([]models.DiseaseSummary), nil
	}

	results, err := s.repo.Search(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search diseases: %w", err)
	}
	s.cache.set(key, results)
	return results, nil
}

// Create validates and inserts a disease
func (s *diseaseService) Create(ctx context.Context, d *models.Disease) error {
	normalizeDisease(d)
	if errs := s.validator.ValidateDisease(d); len(errs) > 0 {
		return &ValidationFailure{Errors: errs}
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return fmt.Errorf("create disease: %w", err)
	}
	s.cache.invalidate(diseaseCachePrefix)

	s.log.Info().Int64("id", d.ID).Str("name", d.Name).Msg("Disease created")
	return nil
}

// Update validates and overwrites a disease
func (s *diseaseService) Update(ctx context.Context, d *models.Disease) error {
	normalizeDisease(d)
	if errs := s.validator.ValidateDisease(d); len(errs) > 0 {
		return &ValidationFailure{Errors: errs}
	}

	found, err := s.repo.Update(ctx, d)
	if err != nil {
		return fmt.Errorf("update disease %d: %w", d.ID, err)
	}
	if !found {
		return fmt.Errorf("disease %d: %w", d.ID, ErrNotFound)
	}
	s.cache.invalidate(diseaseCachePrefix)

	s.log.Info().Int64("id", d.ID).Msg("Disease updated")
	return nil
}

// Delete removes a disease and reports whether it existed
func (s *diseaseService) Delete(ctx context.Context, id int64) (bool, error) {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete disease %d: %w", id, err)
	}
	s.cache.invalidate(diseaseCachePrefix)
	return found, nil
}

func normalizeDisease(d *models.Disease) {
	d.Name = strings.TrimSpace(d.Name)
	d.Keywords = strings.TrimSpace(d.Keywords)
	d.DescriptionImage = validation.NormalizeImage(d.DescriptionImage)
	d.Scan.Image = validation.NormalizeImage(d.Scan.Image)
	d.Contrast.Image = validation.NormalizeImage(d.Contrast.Image)
	d.PostProcessing.Image = validation.NormalizeImage(d.PostProcessing.Image)
}
