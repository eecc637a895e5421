//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"pairchat/domain"
	"pairchat/errors"
)

type IChatRepository interface {
	CreateChat(ctx context.Context, cmd domain.CreateChatCommand) (domain.Chat, error)
	GetChat(ctx context.Context, id domain.ChatID) (domain.Chat, error)
	ListChatsForUser(ctx context.Context, userID domain.UserID) ([]domain.Chat, error)
	ListChatIDs(ctx context.Context) ([]domain.ChatID, error)
	SetReceiver(ctx context.Context, chatID domain.ChatID, userID domain.UserID) (bool, error)
	ClearReceiver(ctx context.Context, chatID domain.ChatID) error
	DeleteChat(ctx context.Context, chatID domain.ChatID) (bool, error)
}

// ChatRepository is the single source of truth for chat membership.
// The log and relay stores are subordinate to it and never cache its state.
type ChatRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewChatRepository(db *sql.DB, log *slog.Logger) *ChatRepository {
	return &ChatRepository{db: db, log: log}
}

const chatColumns = "id, name, crypt_algorithm, crypt_padding, crypt_mode, creator_id, receiver_id"

func (r *ChatRepository) CreateChat(ctx context.Context, cmd domain.CreateChatCommand) (domain.Chat, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO chats (name, crypt_algorithm, crypt_padding, crypt_mode, creator_id, receiver_id)
		 VALUES (?, ?, ?, ?, ?, NULL)`,
		cmd.Name, cmd.Crypto.Algorithm, cmd.Crypto.Padding, cmd.Crypto.Mode, cmd.CreatorID)
	if err != nil {
		return domain.Chat{}, storageError("insert chat", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Chat{}, storageError("chat id", err)
	}
	return domain.Chat{
		ID:        domain.ChatID(id),
		Name:      cmd.Name,
		Crypto:    cmd.Crypto,
		CreatorID: cmd.CreatorID,
	}, nil
}

func (r *ChatRepository) GetChat(ctx context.Context, id domain.ChatID) (domain.Chat, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+chatColumns+" FROM chats WHERE id = ?", id)
	chat, err := scanChat(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return domain.Chat{}, errors.ErrChatNotFound
	}
	if err != nil {
		return domain.Chat{}, storageError("select chat", err)
	}
	return chat, nil
}

func (r *ChatRepository) ListChatsForUser(ctx context.Context, userID domain.UserID) ([]domain.Chat, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+chatColumns+" FROM chats WHERE creator_id = ? OR receiver_id = ? ORDER BY id",
		userID, userID)
	if err != nil {
		return nil, storageError("list chats", err)
	}
	defer rows.Close()

	var chats []domain.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, storageError("scan chat", err)
		}
		chats = append(chats, chat)
	}
	if err = rows.Err(); err != nil {
		return nil, storageError("list chats", err)
	}
	return chats, nil
}

func (r *ChatRepository) ListChatIDs(ctx context.Context) ([]domain.ChatID, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM chats ORDER BY id")
	if err != nil {
		return nil, storageError("list chat ids", err)
	}
	defer rows.Close()

	var ids []domain.ChatID
	for rows.Next() {
		var id domain.ChatID
		if err = rows.Scan(&id); err != nil {
			return nil, storageError("scan chat id", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, storageError("list chat ids", err)
	}
	return ids, nil
}

// SetReceiver claims the receiver slot with a single conditional update.
// The WHERE clause is the compare-and-swap: it only fires while the slot is
// still free and the requester is not the creator, so two racing connect
// calls can never both win. Returns whether this caller won the slot.
func (r *ChatRepository) SetReceiver(ctx context.Context, chatID domain.ChatID, userID domain.UserID) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chats SET receiver_id = ?
		 WHERE id = ? AND receiver_id IS NULL AND creator_id <> ?`,
		userID, chatID, userID)
	if err != nil {
		return false, storageError("set receiver", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageError("set receiver", err)
	}
	return n == 1, nil
}

// ClearReceiver frees the slot unconditionally. Disconnect racing with a
// concurrent connect resolves as last write wins, which is acceptable for
// idempotent mutations of the same field.
func (r *ChatRepository) ClearReceiver(ctx context.Context, chatID domain.ChatID) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE chats SET receiver_id = NULL WHERE id = ?", chatID)
	if err != nil {
		return storageError("clear receiver", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageError("clear receiver", err)
	}
	if n == 0 {
		return errors.ErrChatNotFound
	}
	return nil
}

func (r *ChatRepository) DeleteChat(ctx context.Context, chatID domain.ChatID) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", chatID)
	if err != nil {
		return false, storageError("delete chat", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageError("delete chat", err)
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (domain.Chat, error) {
	var chat domain.Chat
	var receiver sql.NullInt64
	err := row.Scan(&chat.ID, &chat.Name,
		&chat.Crypto.Algorithm, &chat.Crypto.Padding, &chat.Crypto.Mode,
		&chat.CreatorID, &receiver)
	if err != nil {
		return domain.Chat{}, err
	}
	if receiver.Valid {
		id := domain.UserID(receiver.Int64)
		chat.ReceiverID = &id
	}
	return chat, nil
}

// storageError keeps driver failures distinguishable as retriable for the
// caller while preserving the underlying cause for the logs.
func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", errors.ErrStorageUnavailable, op, err)
}
