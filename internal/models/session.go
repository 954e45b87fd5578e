package models

import (
	"time"
)

// SessionRecord is the durable copy of a user's navigation cursor.
// There is at most one record per user.
type SessionRecord struct {
	UserID      int64     `json:"user_id" db:"user_id"`
	Snapshot    []byte    `json:"session_data" db:"session_data"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}
