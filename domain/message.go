package domain

import "time"

// MessageRecord is an immutable entry of a chat's append-only log.
// Text is an opaque payload; clients encrypt before sending.
type MessageRecord struct {
	LogID     uint64
	ChatID    ChatID
	SenderID  UserID
	Text      string
	CreatedAt time.Time
}
