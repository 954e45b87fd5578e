package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/ct-protocol-manual/internal/database"
	"github.com/ct-protocol-manual/internal/models"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicateKey is returned when an insert violates a unique constraint
var ErrDuplicateKey = errors.New("duplicate key")

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
	StreamAll(ctx context.Context, callback func(*models.User) error) error
}

// DiseaseRepository defines the interface for disease data operations
type DiseaseRepository interface {
	Create(ctx context.Context, disease *models.Disease) error
	Update(ctx context.Context, disease *models.Disease) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64) (*models.Disease, error)
	List(ctx context.Context) ([]models.DiseaseSummary, error)
	Search(ctx context.Context, term string) ([]models.DiseaseSummary, error)
	Count(ctx context.Context) (int, error)
	StreamAll(ctx context.Context, callback func(*models.Disease) error) error
}

// NoticeRepository defines the interface for notice data operations
type NoticeRepository interface {
	Create(ctx context.Context, notice *models.Notice) error
	Update(ctx context.Context, notice *models.Notice) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64) (*models.Notice, error)
	List(ctx context.Context, limit int) ([]*models.Notice, error)
	Count(ctx context.Context) (int, error)
	StreamAll(ctx context.Context, callback func(*models.Notice) error) error
}

// ProtocolRepository defines the interface for protocol data operations
type ProtocolRepository interface {
	Create(ctx context.Context, protocol *models.Protocol) error
	Update(ctx context.Context, protocol *models.Protocol) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64) (*models.Protocol, error)
	List(ctx context.Context) ([]*models.Protocol, error)
	ListByCategory(ctx context.Context, category string) ([]*models.Protocol, error)
	Search(ctx context.Context, term string) ([]*models.Protocol, error)
	Count(ctx context.Context) (int, error)
	StreamAll(ctx context.Context, callback func(*models.Protocol) error) error
}

// SessionRepository defines the interface for persisted navigation sessions
type SessionRepository interface {
	Upsert(ctx context.Context, record *models.SessionRecord) error
	GetByUser(ctx context.Context, userID int64) (*models.SessionRecord, error)
	GetLatest(ctx context.Context) (*models.SessionRecord, error)
	Delete(ctx context.Context, userID int64) error
}

// Repositories holds all repository interfaces
type Repositories struct {
	User     UserRepository
	Disease  DiseaseRepository
	Notice   NoticeRepository
	Protocol ProtocolRepository
	Session  SessionRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		User:     NewUserRepo(db),
		Disease:  NewDiseaseRepo(db),
		Notice:   NewNoticeRepo(db),
		Protocol: NewProtocolRepo(db),
		Session:  NewSessionRepo(db),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
