// Package domain contains the core concepts of the pair chat system.
// A chat holds exactly two membership slots: the creator, fixed at creation,
// and an optional receiver that connects and disconnects over time.
package domain

type ChatID int64

type ChatState string

const (
	// StateOpen means the receiver slot is free.
	StateOpen ChatState = "open"
	// StatePaired means both slots are occupied.
	StatePaired ChatState = "paired"
)

// CryptoParams carries the cipher tags negotiated by the two clients.
// The server stores them verbatim and never interprets or validates them.
type CryptoParams struct {
	Algorithm string
	Padding   string
	Mode      string
}

type Chat struct {
	ID         ChatID
	Name       string
	Crypto     CryptoParams
	CreatorID  UserID
	ReceiverID *UserID
}

func (c Chat) State() ChatState {
	if c.ReceiverID == nil {
		return StateOpen
	}
	return StatePaired
}

// IsMember is the access predicate guarding every log and relay operation.
// Callers must evaluate it against a freshly loaded chat, never a cached one.
func (c Chat) IsMember(id UserID) bool {
	if id == c.CreatorID {
		return true
	}
	return c.ReceiverID != nil && *c.ReceiverID == id
}

// PartnerOf resolves the other occupied slot for a member.
// The second return value is false while the chat is unpaired.
func (c Chat) PartnerOf(id UserID) (UserID, bool) {
	if c.ReceiverID == nil {
		return 0, false
	}
	if id == c.CreatorID {
		return *c.ReceiverID, true
	}
	return c.CreatorID, true
}
