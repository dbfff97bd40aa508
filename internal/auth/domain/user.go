package domain

import "time"

// User is a credential record as held by the identity store.
type User struct {
	ID           string // ULID
	Email        string // stored lower-cased
	Username     string
	PasswordHash string // bcrypt over the hex SHA-256 of the password
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
