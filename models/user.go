package models

import (
	"time"
)

// User model. HashedPassword and RefreshToken never leave the server:
// both are excluded from JSON so a serialized User is already the
// sanitized view handlers return to clients.
//
// RefreshToken holds the single currently-valid refresh token for the
// user. nil means logged out; a non-nil value is the only token the
// refresh endpoint accepts, regardless of how many older tokens still
// carry a valid signature.
type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DeletedAt      *time.Time `gorm:"index" json:"-"`
	FullName       string     `gorm:"size:255;not null" json:"fullName"`
	Email          string     `gorm:"size:255;not null;unique" json:"email"`
	Username       string     `gorm:"size:255;not null;unique" json:"username"`
	HashedPassword []byte     `gorm:"not null" json:"-"`
	Avatar         string     `gorm:"size:512;not null" json:"avatar"`
	CoverImage     string     `gorm:"size:512" json:"coverImage"`
	RefreshToken   *string    `gorm:"size:1024" json:"-"`
}
