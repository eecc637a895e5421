package domain

import "time"

type UserID int64

// User is owned by the account subsystem; the chat core only reads it.
type User struct {
	ID           UserID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
