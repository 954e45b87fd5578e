package service

import (
	"context"
	"time"

	"github.com/ct-protocol-manual/internal/models"
	"github.com/ct-protocol-manual/internal/navigation"
	"github.com/ct-protocol-manual/internal/repository"
	"github.com/rs/zerolog"
)

// SessionStore keeps one durable cursor snapshot per user. Failures are logged
// and swallowed: a lost snapshot only costs the user their place.
type SessionStore struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	now      func() time.Time
	log      zerolog.Logger
}

var _ navigation.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a session store over the given repositories
func NewSessionStore(sessions repository.SessionRepository, users repository.UserRepository, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		sessions: sessions,
		users:    users,
		now:      time.Now,
		log:      log.With().Str("service", "session_store").Logger(),
	}
}

// WithClock replaces the store's time source
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

// Save upserts the user's snapshot
func (s *SessionStore) Save(ctx context.Context, userID int64, cursor *navigation.Cursor) {
	if userID == 0 || cursor == nil {
		return
	}

	data, err := cursor.Snapshot()
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to encode session snapshot")
		return
	}

	record := &models.SessionRecord{UserID: userID, Snapshot: data, LastUpdated: s.now().UTC()}
	if err := s.sessions.Upsert(ctx, record); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to save session")
	}
}

// LoadForUser returns the user's snapshot when it was written within window
func (s *SessionStore) LoadForUser(ctx context.Context, userID int64, window time.Duration) (*navigation.Cursor, bool) {
	record, err := s.sessions.GetByUser(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to load session")
		return nil, false
	}
	return s.decode(record, window)
}

// LoadLatestWithin returns the newest snapshot written within window whose user still exists
func (s *SessionStore) LoadLatestWithin(ctx context.Context, window time.Duration) (int64, *navigation.Cursor, bool) {
	record, err := s.sessions.GetLatest(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load latest session")
		return 0, nil, false
	}

	cursor, ok := s.decode(record, window)
	if !ok {
		return 0, nil, false
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", record.UserID).Msg("Failed to verify session user")
		return 0, nil, false
	}
	if user == nil {
		return 0, nil, false
	}
	return record.UserID, cursor, true
}

// Delete forgets the user's snapshot
func (s *SessionStore) Delete(ctx context.Context, userID int64) {
	if err := s.sessions.Delete(ctx, userID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to delete session")
	}
}

func (s *SessionStore) decode(record *models.SessionRecord, window time.Duration) (*navigation.Cursor, bool) {
	if record == nil {
		return nil, false
	}
	if s.now().Sub(record.LastUpdated) > window {
		return nil, false
	}

	cursor, err := navigation.Restore(record.Snapshot)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", record.UserID).Msg("Discarding unreadable session")
		return nil, false
	}
	return cursor, true
}
