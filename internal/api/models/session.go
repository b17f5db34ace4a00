package models

import "time"

// Session is the single active session-token slot of a user.
type Session struct {
	UserID    int64     `db:"user_id"`
	Token     string    `db:"token"`
	ExpiresAt time.Time `db:"-"`
}
