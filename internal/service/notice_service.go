package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ct-protocol-manual/internal/models"
	"github.com/ct-protocol-manual/internal/repository"
	"github.com/ct-protocol-manual/internal/validation"
	"github.com/rs/zerolog"
)

// noticeService is the concrete implementation of NoticeService
type noticeService struct {
	repo      repository.NoticeRepository
	validator *validation.Validator
	cache     *listCache
	log       zerolog.Logger
}

func newNoticeService(repo repository.NoticeRepository, validator *validation.Validator, cache *listCache, log zerolog.Logger) *noticeService {
	return &noticeService{
		repo:      repo,
		validator: validator,
		cache:     cache,
		log:       log.With().Str("service", "notice").Logger(),
	}
}

// Get returns a notice or nil when it does not exist
func (s *noticeService) Get(ctx context.Context, id int64) (*models.Notice, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get notice %d: %w", id, err)
	}
	return n, nil
}

// List returns every notice, newest first
func (s *noticeService) List(ctx context.Context) ([]*models.Notice, error) {
	return s.Recent(ctx, 0)
}

// Recent returns the newest notices; limit <= 0 returns all
func (s *noticeService) Recent(ctx context.Context, limit int) ([]*models.Notice, error) {
	key := noticeCachePrefix + "list:" + strconv.Itoa(limit)
	if v, ok := s.cache.get(key); ok {
		return v.([]*models.Notice), nil
	}

	notices, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	s.cache.set(key, notices)
	return notices, nil
}

// Create validates and inserts a notice
func (s *noticeService) Create(ctx context.Context, n *models.Notice) error {
	n.Title = strings.TrimSpace(n.Title)
	n.Image = validation.NormalizeImage(n.Image)
	if errs := s.validator.ValidateNotice(n); len(errs) > 0 {
		return &ValidationFailure{Errors: errs}
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("create notice: %w", err)
	}
	s.cache.invalidate(noticeCachePrefix)

	s.log.Info().Int64("id", n.ID).Str("title", n.Title).Msg("Notice created")
	return nil
}

// Update validates and overwrites a notice
func (s *noticeService) Update(ctx context.Context, n *models.Notice) error {
	n.Title = strings.TrimSpace(n.Title)
	n.Image = validation.NormalizeImage(n.Image)
	if errs := s.validator.ValidateNotice(n); len(errs) > 0 {
		return &ValidationFailure{Errors: errs}
	}

	found, err := s.repo.Update(ctx, n)
	if err != nil {
		return fmt.Errorf("update notice %d: %w", n.ID, err)
	}
	if !found {
		return fmt.Errorf("notice %d: %w", n.ID, ErrNotFound)
	}
	s.cache.invalidate(noticeCachePrefix)

	s.log.Info().Int64("id", n.ID).Msg("Notice updated")
	return nil
}

// Delete removes a notice and reports whether it existed
func (s *noticeService) Delete(ctx context.Context, id int64) (bool, error) {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete notice %d: %w", id, err)
	}
	s.cache.invalidate(noticeCachePrefix)
	return found, nil
}
