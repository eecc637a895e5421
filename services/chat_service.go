//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"time"

	"pairchat/domain"
	"pairchat/errors"
	"pairchat/repositories"
)

type IChatService interface {
	CreateChat(ctx context.Context, cmd domain.CreateChatCommand) (domain.Chat, error)
	ListChats(ctx context.Context, userID domain.UserID) ([]domain.Chat, error)
	DeleteChat(ctx context.Context, chatID domain.ChatID, requesterID domain.UserID) error
	Connect(ctx context.Context, chatID domain.ChatID, requesterID domain.UserID) (domain.Chat, error)
	Disconnect(ctx context.Context, chatID domain.ChatID, requesterID domain.UserID) (domain.Chat, error)
	SendMessage(ctx context.Context, cmd domain.PostMessageCommand) (uint64, error)
	GetMessages(ctx context.Context, cmd domain.ReadMessagesCommand) ([]domain.MessageRecord, error)
	PublishKey(ctx context.Context, chatID domain.ChatID, userID domain.UserID, publicKey string) error
	FetchPartnerKey(ctx context.Context, chatID domain.ChatID, requesterID domain.UserID) (domain.KeySlot, error)
}

// ChatService coordinates the two stores: the durable membership record and
// the append-only stream store. Membership is the single source of truth;
// every log and relay call authorizes against a fresh read of it, because
// the pairing can change between a client's connect and its next request.
type ChatService struct {
	chats    repositories.IChatRepository
	messages repositories.IMessageRepository
	keys     repositories.IKeySlotRepository
	log      *slog.Logger

	storageTimeout time.Duration
	maxContentLen  int
	readPageSize   int
}

func NewChatService(
	log *slog.Logger,
	chats repositories.IChatRepository,
	messages repositories.IMessageRepository,
	keys repositories.IKeySlotRepository,
	storageTimeout time.Duration,
	maxContentLen int,
	readPageSize int,
) *ChatService {
	return &ChatService{
		chats:          chats,
		messages:       messages,
		keys:           keys,
		log:            log,
		storageTimeout: storageTimeout,
		maxContentLen:  maxContentLen,
		readPageSize:   readPageSize,
	}
}

// bound caps a storage round-trip so a stalled store surfaces as a
// retriable failure instead of hanging the request.
func (s *ChatService) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storageTimeout)
}

func (s *ChatService) CreateChat(ctx context.Context, cmd domain.CreateChatCommand) (domain.Chat, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.chats.CreateChat(ctx, cmd)
}

func (s *ChatService) ListChats(ctx context.Context, userID domain.UserID) ([]domain.Chat, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.chats.ListChatsForUser(ctx, userID)
}

// DeleteChat removes the membership record. Stream and key-slot data become
// orphaned and are collected by the retention sweeper, not synchronously.
func (s *ChatService) DeleteChat(ctx context.Context, chatID domain.ChatID, requesterID domain.UserID) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.CreatorID != requesterID {
		return errors.ErrForbidden
	}
	deleted, err := s.chats.DeleteChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !deleted {
		// Someone else deleted it between our read and our write.
		return errors.ErrChatNotFound
	}
	s.log.Info("Chat deleted", "chat_id", chatID, "creator_id", requesterID)
	return nil
}

// Connect claims the receiver slot. The claim itself is a storage-level
// compare-and-swap: of two racing requesters exactly one wins, the loser is
// told the chat is unavailable. Only when the claim fails do we re-read the
// chat to report the precise cause.
func (s *ChatService) Connect(ctx context.Context, chatID domain.ChatID, requesterID domain.UserID) (domain.Chat, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	won, err := s.chats.SetReceiver(ctx, chatID, requesterID)
	if err != nil {
		return domain.Chat{}, err
	}
	if !won {
		chat, err := s.chats.GetChat(ctx, chatID)
		if err != nil {
			return domain.Chat{}, err
		}
		if chat.CreatorID == requesterID {
			return domain.Chat{}, errors.ErrOwnChat
		}
		return domain.Chat{}, errors.ErrChatUnavailable
	}
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	s.log.Info("Receiver connected", "chat_id", chatID, "receiver_id", requesterID)
	return chat, nil
}

// Disconnect frees the receiver slot. Either current member may trigger it;
// it never needs both parties. The key slots of the broken pairing are
// invalidated best effort: the membership transition is already committed,
// so a failure here is reported, not rolled back.
func (s *ChatService) Disconnect(ctx context.Context, chatID domain.ChatID, requesterID domain.UserID) (domain.Chat, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	chat, err := s.requireMember(ctx, chatID, requesterID)
	if err != nil {
		return domain.Chat{}, err
	}
	if err = s.chats.ClearReceiver(ctx, chatID); err != nil {
		return domain.Chat{}, err
	}
	if _, err = s.keys.InvalidateChat(chatID); err != nil {
		s.log.Warn("Partial failure: key slots survived a disconnect",
			"chat_id", chatID, "error", err)
	}
	chat.ReceiverID = nil
	s.log.Info("Receiver disconnected", "chat_id", chatID, "requester_id", requesterID)
	return chat, nil
}

func (s *ChatService) SendMessage(ctx context.Context, cmd domain.PostMessageCommand) (uint64, error) {
	if len(cmd.Text) == 0 || len(cmd.Text) > s.maxContentLen {
		return 0, errors.ErrInvalidContent
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if _, err := s.requireMember(ctx, cmd.ChatID, cmd.SenderID); err != nil {
		return 0, err
	}
	at := cmd.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.messages.Append(cmd.ChatID, cmd.SenderID, cmd.Text, at)
}

func (s *ChatService) GetMessages(ctx context.Context, cmd domain.ReadMessagesCommand) ([]domain.MessageRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if _, err := s.requireMember(ctx, cmd.ChatID, cmd.RequesterID); err != nil {
		return nil, err
	}
	limit := cmd.Limit
	if limit <= 0 || limit > s.readPageSize {
		limit = s.readPageSize
	}
	return s.messages.ReadRecent(cmd.ChatID, limit)
}

func (s *ChatService) PublishKey(ctx context.Context, chatID domain.ChatID, userID domain.UserID, publicKey string) error {
	if len(publicKey) == 0 {
		return errors.ErrInvalidContent
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if _, err := s.requireMember(ctx, chatID, userID); err != nil {
		return err
	}
	return s.keys.Publish(chatID, userID, publicKey, time.Now().UTC())
}

// FetchPartnerKey resolves the partner from current membership on every
// call, so after a re-pairing it serves whichever user occupies the other
// slot. Slots invalidated on disconnect keep a stale key from leaking here.
func (s *ChatService) FetchPartnerKey(ctx context.Context, chatID domain.ChatID, requesterID domain.UserID) (domain.KeySlot, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	chat, err := s.requireMember(ctx, chatID, requesterID)
	if err != nil {
		return domain.KeySlot{}, err
	}
	partner, ok := chat.PartnerOf(requesterID)
	if !ok {
		return domain.KeySlot{}, errors.ErrNoPartner
	}
	return s.keys.Get(chatID, partner)
}

// requireMember is the access guard: fetch the chat fresh and check the
// caller occupies one of its two slots.
func (s *ChatService) requireMember(ctx context.Context, chatID domain.ChatID, userID domain.UserID) (domain.Chat, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if !chat.IsMember(userID) {
		return domain.Chat{}, errors.ErrForbidden
	}
	return chat, nil
}
