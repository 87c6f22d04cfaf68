package model

import "time"

// User is an account that can book seats.  Only the credentials needed
// to issue access tokens are stored; profile data lives elsewhere.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	CreatedAt    time.Time // users.created_at
}
