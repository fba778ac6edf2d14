package models

import "time"

// Identity is the authenticated principal attached to every connection before
// the core is invoked. Issued and verified by the external auth service.
type Identity struct {
	UserID int64
	Email  string
}

// User mirrors the durable user row. The online flag is denormalized presence
// state; the session registry is the source of truth.
type User struct {
	ID        int64      `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	IsOnline  bool       `db:"is_online" json:"is_online"`
	LastSeen  *time.Time `db:"last_seen" json:"last_seen,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// PublicUser is the boundary projection of a user. Constructed explicitly so
// sensitive fields can never leak into a response.
type PublicUser struct {
	ID       int64      `json:"id"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// Public builds the boundary projection.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, IsOnline: u.IsOnline, LastSeen: u.LastSeen}
}
