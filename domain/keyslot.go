package domain

import "time"

// KeySlot holds the single live public-key blob a member published for a
// chat. A new publish fully overwrites the previous value; no history is
// kept. Slots are ephemeral and dropped when the pairing changes.
type KeySlot struct {
	ChatID    ChatID
	UserID    UserID
	PublicKey string
	UpdatedAt time.Time
}
