package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ct-protocol-manual/internal/config"
	"github.com/ct-protocol-manual/internal/models"
	"github.com/ct-protocol-manual/internal/navigation"
	"github.com/ct-protocol-manual/internal/repository"
	"github.com/ct-protocol-manual/internal/validation"
	"github.com/rs/zerolog"
)

var (
	// ErrValidation is matched by every *ValidationFailure
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when updating an entity that does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials is returned for an unknown email or wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrDuplicateEmail is returned when creating a user with a taken email
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrProtectedUser is returned when deleting oneself or an admin
	ErrProtectedUser = errors.New("user cannot be deleted")
)

// ValidationFailure carries field errors of a rejected form
type ValidationFailure struct {
	Errors []validation.ValidationError
}

func (e *ValidationFailure) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// Unwrap lets errors.Is(err, ErrValidation) match
func (e *ValidationFailure) Unwrap() error {
	return ErrValidation
}

// DiseaseService manages disease entries
type DiseaseService interface {
	Get(ctx context.Context, id int64) (*models.Disease, error)
	List(ctx context.Context) ([]models.DiseaseSummary, error)
	Search(ctx context.Context, term string) ([]models.DiseaseSummary, error)
	Create(ctx context.Context, d *models.Disease) error
	Update(ctx context.Context, d *models.Disease) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// NoticeService manages notices
type NoticeService interface {
	Get(ctx context.Context, id int64) (*models.Notice, error)
	List(ctx context.Context) ([]*models.Notice, error)
	Recent(ctx context.Context, limit int) ([]*models.Notice, error)
	Create(ctx context.Context, n *models.Notice) error
	Update(ctx context.Context, n *models.Notice) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// ProtocolService manages the protocol library
type ProtocolService interface {
	Get(ctx context.Context, id int64) (*models.Protocol, error)
	List(ctx context.Context, category string) ([]*models.Protocol, error)
	Search(ctx context.Context, term string) ([]*models.Protocol, error)
	Create(ctx context.Context, p *models.Protocol) error
	Update(ctx context.Context, p *models.Protocol) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// AuthService authenticates users and derives their role
type AuthService interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	IsAdmin(user *models.User) bool
	View(user *models.User) models.UserView
}

// AdminService backs the admin console
type AdminService interface {
	ListUsers(ctx context.Context) ([]models.UserView, error)
	CreateUser(ctx context.Context, in *models.NewUserInput) (*models.User, error)
	CheckDeleteUser(ctx context.Context, actorID, userID int64) (bool, error)
	DeleteUser(ctx context.Context, actorID, userID int64) (bool, error)
	Counts(ctx context.Context) (map[string]int, error)
}

// ExportService streams content for backup
type ExportService interface {
	StreamDiseases(ctx context.Context, w http.ResponseWriter, format string) error
	StreamNotices(ctx context.Context, w http.ResponseWriter, format string) error
	StreamProtocols(ctx context.Context, w http.ResponseWriter, format string) error
	StreamUsers(ctx context.Context, w http.ResponseWriter, format string) error
	GetCount(ctx context.Context, resource string) (int, error)
}

// Services holds all service interfaces
type Services struct {
	Disease  DiseaseService
	Notice   NoticeService
	Protocol ProtocolService
	Auth     AuthService
	Admin    AdminService
	Export   ExportService
	Sessions *SessionStore
	Deleter  navigation.Deleter

	Validator *validation.Validator
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, cfg *config.Config, log zerolog.Logger) *Services {
	cache := newListCache(cfg.Cache.TTL)
	validator := validation.NewValidator(cfg.Upload.MaxImageSize, cfg.Auth.MinPasswordLen)

	diseaseSvc := newDiseaseService(repos.Disease, validator, cache, log)
	noticeSvc := newNoticeService(repos.Notice, validator, cache, log)
	protocolSvc := newProtocolService(repos.Protocol, validator, cache, log)
	authSvc := newAuthService(repos.User, &cfg.Auth, log)
	adminSvc := newAdminService(repos, authSvc, validator, log)

	return &Services{
		Disease:  diseaseSvc,
		Notice:   noticeSvc,
		Protocol: protocolSvc,
		Auth:     authSvc,
		Admin:    adminSvc,
		Export:   newExportService(repos, log),
		Sessions: NewSessionStore(repos.Session, repos.User, log),
		Deleter:  newContentDeleter(diseaseSvc, noticeSvc, protocolSvc, adminSvc),

		Validator: validator,
	}
}
