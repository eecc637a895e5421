package domain

import "time"

type CreateChatCommand struct {
	CreatorID UserID
	Name      string
	Crypto    CryptoParams
}

type PostMessageCommand struct {
	ChatID    ChatID
	SenderID  UserID
	Text      string
	CreatedAt time.Time
}

type ReadMessagesCommand struct {
	ChatID      ChatID
	RequesterID UserID
	Limit       int
}
