package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ct-protocol-manual/internal/auth"
	"github.com/ct-protocol-manual/internal/models"
	"github.com/ct-protocol-manual/internal/repository"
	"github.com/ct-protocol-manual/internal/validation"
	"github.com/rs/zerolog"
)

// adminService is the concrete implementation of AdminService
type adminService struct {
	repos     *repository.Repositories
	auth      AuthService
	validator *validation.Validator
	log       zerolog.Logger
}

func newAdminService(repos *repository.Repositories, authSvc AuthService, validator *validation.Validator, log zerolog.Logger) *adminService {
	return &adminService{
		repos:     repos,
		auth:      authSvc,
		validator: validator,
		log:       log.With().Str("service", "admin").Logger(),
	}
}

// ListUsers returns every user with the derived admin flag
func (s *adminService) ListUsers(ctx context.Context) ([]models.UserView, error) {
	users, err := s.repos.User.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	views := make([]models.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, s.auth.View(u))
	}
	return views, nil
}

// CreateUser validates the form, hashes the password and inserts the user
func (s *adminService) CreateUser(ctx context.Context, in *models.NewUserInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if errs := s.validator.ValidateNewUser(in); len(errs) > 0 {
		return nil, &ValidationFailure{Errors: errs}
	}

	existing, err := s.repos.User.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Name: in.Name, Email: in.Email, PasswordHash: hash}
	if err := s.repos.User.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("User created")
	return user, nil
}

// CheckDeleteUser reports whether the user exists and may be deleted by actor.
// Nobody can delete themselves or an admin.
func (s *adminService) CheckDeleteUser(ctx context.Context, actorID, userID int64) (bool, error) {
	if actorID == userID {
		return false, ErrProtectedUser
	}

	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get user %d: %w", userID, err)
	}
	if user == nil {
		return false, nil
	}
	if s.auth.IsAdmin(user) {
		return false, ErrProtectedUser
	}
	return true, nil
}

// DeleteUser removes a user together with the stored session
func (s *adminService) DeleteUser(ctx context.Context, actorID, userID int64) (bool, error) {
	ok, err := s.CheckDeleteUser(ctx, actorID, userID)
	if err != nil || !ok {
		return ok, err
	}

	found, err := s.repos.User.Delete(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("delete user %d: %w", userID, err)
	}

	s.log.Info().Int64("actor_id", actorID).Int64("user_id", userID).Msg("User deleted")
	return found, nil
}

// Counts returns the row count of each content table
func (s *adminService) Counts(ctx context.Context) (map[string]int, error) {
	counters := []struct {
		name  string
		count func(context.Context) (int, error)
	}{
		{"users", s.repos.User.Count},
		{"diseases", s.repos.Disease.Count},
		{"notices", s.repos.Notice.Count},
		{"protocols", s.repos.Protocol.Count},
	}

	counts := make(map[string]int, len(counters))
	for _, c := range counters {
		n, err := c.count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", c.name, err)
		}
		counts[c.name] = n
	}
	return counts, nil
}
