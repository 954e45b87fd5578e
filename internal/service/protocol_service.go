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

// protocolService is the concrete implementation of ProtocolService
type protocolService struct {
	repo      repository.ProtocolRepository
	validator *validation.Validator
	cache     *listCache
	log       zerolog.Logger
}

func newProtocolService(repo repository.ProtocolRepository, validator *validation.Validator, cache *listCache, log zerolog.Logger) *protocolService {
	return &protocolService{
		repo:      repo,
		validator: validator,
		cache:     cache,
		log:       log.With().Str("service", "protocol").Logger(),
	}
}

// Get returns a protocol or nil when it does not exist
func (s *protocolService) Get(ctx context.Context, id int64) (*models.Protocol, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get protocol %d: %w", id, err)
	}
	return p, nil
}

// List returns protocols of one category, or all of them for an empty or unknown category
func (s *protocolService) List(ctx context.Context, category string) ([]*models.Protocol, error) {
	if !models.ValidCategories[category] {
		category = ""
	}

	key := protocolCachePrefix + "list:" + category
	if v, ok := s.cache.get(key); ok {
		return v.([]*models.Protocol), nil
	}

	var (
		protocols []*models.Protocol
		err       error
	)
	if category == "" {
		protocols, err = s.repo.List(ctx)
	} else {
		protocols, err = s.repo.ListByCategory(ctx, category)
	}
	if err != nil {
		return nil, fmt.Errorf("list protocols: %w", err)
	}
	s.cache.set(key, protocols)
	return protocols, nil
}

// Search returns protocols whose title, content or category match term
func (s *protocolService) Search(ctx context.Context, term string) ([]*models.Protocol, error) {
	if strings.TrimSpace(term) == "" {
		return []*models.Protocol{}, nil
	}

	key := searchKey(protocolCachePrefix, term)
	if v, ok := s.cache.get(key); ok {
		return v.([]*models.Protocol), nil
	}

	protocols, err := s.repo.Search(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search protocols: %w", err)
	}
	s.cache.set(key, protocols)
	return protocols, nil
}

// Create validates and inserts a protocol
func (s *protocolService) Create(ctx context.Context, p *models.Protocol) error {
	normalizeProtocol(p)
	if errs := s.validator.ValidateProtocol(p); len(errs) > 0 {
		return &ValidationFailure{Errors: errs}
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return fmt.Errorf("create protocol: %w", err)
	}
	s.cache.invalidate(protocolCachePrefix)

	s.log.Info().Int64("id", p.ID).Str("category", p.Category).Msg("Protocol created")
	return nil
}

// Update validates and overwrites a protocol
func (s *protocolService) Update(ctx context.Context, p *models.Protocol) error {
	normalizeProtocol(p)
	if errs := s.validator.ValidateProtocol(p); len(errs) > 0 {
		return &ValidationFailure{Errors: errs}
	}

	found, err := s.repo.Update(ctx, p)
	if err != nil {
		return fmt.Errorf("update protocol %d: %w", p.ID, err)
	}
	if !found {
		return fmt.Errorf("protocol %d: %w", p.ID, ErrNotFound)
	}
	s.cache.invalidate(protocolCachePrefix)

	s.log.Info().Int64("id", p.ID).Msg("Protocol updated")
	return nil
}

// Delete removes a protocol and reports whether it existed
func (s *protocolService) Delete(ctx context.Context, id int64) (bool, error) {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete protocol %d: %w", id, err)
	}
	s.cache.invalidate(protocolCachePrefix)
	return found, nil
}

func normalizeProtocol(p *models.Protocol) {
	p.Category = strings.TrimSpace(p.Category)
	p.Title = strings.TrimSpace(p.Title)
	p.Image = validation.NormalizeImage(p.Image)
}
