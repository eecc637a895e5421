//go:generate go run go.uber.org/mock/mockgen -source=keyslot.go -destination=../mocks/mock_keyslot_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"pairchat/domain"
	"pairchat/errors"

	"github.com/dgraph-io/badger/v4"
)

type IKeySlotRepository interface {
	Publish(chatID domain.ChatID, userID domain.UserID, publicKey string, at time.Time) error
	Get(chatID domain.ChatID, userID domain.UserID) (domain.KeySlot, error)
	InvalidateChat(chatID domain.ChatID) (int, error)
	ChatIDs() ([]domain.ChatID, error)
}

// KeySlotRepository relays key-exchange material between the two members of
// a chat. One slot per (chat, user) under "dh:{chat}:{user}:key"; a publish
// is an unconditional last-writer-wins overwrite.
type KeySlotRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewKeySlotRepository(db *badger.DB, log *slog.Logger) *KeySlotRepository {
	return &KeySlotRepository{db: db, log: log}
}

type storedKeySlot struct {
	PublicKey string    `json:"public_key"`
	UpdatedAt time.Time `json:"updated_at"`
}

const relayPrefix = "dh:"

func slotKey(chatID domain.ChatID, userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("%s%d:%d:key", relayPrefix, chatID, userID))
}

func relayChatPrefix(chatID domain.ChatID) []byte {
	return []byte(fmt.Sprintf("%s%d:", relayPrefix, chatID))
}

func (r *KeySlotRepository) Publish(chatID domain.ChatID, userID domain.UserID, publicKey string, at time.Time) error {
	data, err := json.Marshal(storedKeySlot{PublicKey: publicKey, UpdatedAt: at.UTC()})
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(slotKey(chatID, userID), data)
	})
}

func (r *KeySlotRepository) Get(chatID domain.ChatID, userID domain.UserID) (domain.KeySlot, error) {
	var stored storedKeySlot
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(slotKey(chatID, userID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &stored)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.KeySlot{}, errors.ErrKeyNotFound
	}
	if err != nil {
		return domain.KeySlot{}, err
	}
	return domain.KeySlot{
		ChatID:    chatID,
		UserID:    userID,
		PublicKey: stored.PublicKey,
		UpdatedAt: stored.UpdatedAt,
	}, nil
}

// InvalidateChat drops every slot of a chat. Called on each disconnect
// transition, because key material of a broken pairing must not leak into
// the next one, and by the retention sweeper for deleted chats.
func (r *KeySlotRepository) InvalidateChat(chatID domain.ChatID) (int, error) {
	var victims [][]byte
	prefix := relayChatPrefix(chatID)
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			victims = append(victims, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(victims) == 0 {
		return 0, nil
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		for _, key := range victims {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(victims), nil
}

// ChatIDs lists every chat id that still owns at least one key slot.
func (r *KeySlotRepository) ChatIDs() ([]domain.ChatID, error) {
	seen := make(map[domain.ChatID]struct{})
	prefix := []byte(relayPrefix)
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, relayPrefix)
			idStr, _, ok := strings.Cut(rest, ":")
			if !ok {
				continue
			}
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				continue
			}
			seen[domain.ChatID(id)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ids := make([]domain.ChatID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids, nil
}
