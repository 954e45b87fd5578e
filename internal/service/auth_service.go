package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ct-protocol-manual/internal/auth"
	"github.com/ct-protocol-manual/internal/config"
	"github.com/ct-protocol-manual/internal/models"
	"github.com/ct-protocol-manual/internal/repository"
	"github.com/rs/zerolog"
)

// authService is the concrete implementation of AuthService
type authService struct {
	users repository.UserRepository
	cfg   *config.AuthConfig
	log   zerolog.Logger
}

func newAuthService(users repository.UserRepository, cfg *config.AuthConfig, log zerolog.Logger) *authService {
	return &authService{
		users: users,
		cfg:   cfg,
		log:   log.With().Str("service", "auth").Logger(),
	}
}

// Authenticate checks an email and password pair
func (s *authService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || !auth.CheckPasswordHash(password, user.PasswordHash) {
		s.log.Info().Str("email", email).Msg("Login rejected")
		return nil, ErrInvalidCredentials
	}

	s.log.Info().Int64("user_id", user.ID).Msg("Login succeeded")
	return user, nil
}

// GetUser returns a user or nil when it does not exist
func (s *authService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

// IsAdmin derives the admin role from the configured allow-list
func (s *authService) IsAdmin(user *models.User) bool {
	if user == nil {
		return false
	}
	return s.cfg.IsAdminEmail(user.Email)
}

func (s *authService) View(user *models.User) models.UserView {
	return models.UserView{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		IsAdmin: s.IsAdmin(user),
	}
}
