//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"pairchat/domain"

	"github.com/dgraph-io/badger/v4"
)

type IMessageRepository interface {
	Append(chatID domain.ChatID, senderID domain.UserID, text string, at time.Time) (uint64, error)
	ReadRecent(chatID domain.ChatID, limit int) ([]domain.MessageRecord, error)
	TrimChat(chatID domain.ChatID, keep int) (int, error)
	DeleteChat(chatID domain.ChatID) (int, error)
	StreamChatIDs() ([]domain.ChatID, error)
	Close() error
}

// MessageRepository is the append-only log of chat messages in BadgerDB.
// Each chat owns an independent stream under the "chat:{id}:" prefix; the
// log id comes from a per-chat Badger sequence and is padded to 19 digits so
// keys sort chronologically under lexicographic iteration.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger

	mu   sync.Mutex
	seqs map[domain.ChatID]*badger.Sequence
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log, seqs: make(map[domain.ChatID]*badger.Sequence)}
}

// storedMessage is the on-disk JSON shape of a log entry.
type storedMessage struct {
	LogID     uint64    `json:"log_id"`
	ChatID    int64     `json:"chat_id"`
	SenderID  int64     `json:"sender_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	streamPrefix = "chat:"
	// seekSuffix sorts after every padded log id, so a reverse iterator
	// lands on the newest entry of the stream.
	seekSuffix = "9999999999999999999"
	// sequenceBandwidth is the lease size of each chat sequence. Ids may
	// skip ahead after a restart, but stay strictly increasing.
	sequenceBandwidth = 64
)

func messageKey(chatID domain.ChatID, logID uint64) []byte {
	return []byte(fmt.Sprintf("%s%d:%019d", streamPrefix, chatID, logID))
}

func sequenceKey(chatID domain.ChatID) []byte {
	return []byte(fmt.Sprintf("seq:chat:%d", chatID))
}

func chatPrefix(chatID domain.ChatID) []byte {
	return []byte(fmt.Sprintf("%s%d:", streamPrefix, chatID))
}

// Append persists one immutable record and returns its log id. Ids are
// 1-based and strictly increasing within the chat's stream; concurrent
// appends interleave but never share or reorder ids.
func (m *MessageRepository) Append(chatID domain.ChatID, senderID domain.UserID, text string, at time.Time) (uint64, error) {
	seq, err := m.sequence(chatID)
	if err != nil {
		return 0, err
	}
	next, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next log id for chat %d: %w", chatID, err)
	}
	logID := next + 1 // Badger sequences start at zero

	record := storedMessage{
		LogID:     logID,
		ChatID:    int64(chatID),
		SenderID:  int64(senderID),
		Text:      text,
		Timestamp: at.UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return 0, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(chatID, logID), data)
	})
	if err != nil {
		return 0, err
	}
	return logID, nil
}

// ReadRecent returns at most limit of the newest records, oldest first.
// The read is best effort over a possibly heterogeneous stream: an entry
// that does not decode is skipped, never surfaced as an error.
func (m *MessageRepository) ReadRecent(chatID domain.ChatID, limit int) ([]domain.MessageRecord, error) {
	var raw [][]byte
	prefix := chatPrefix(chatID)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), []byte(seekSuffix)...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(raw) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// raw holds newest first; decode and flip to ascending log id order.
	records := make([]domain.MessageRecord, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var stored storedMessage
		if err = json.Unmarshal(raw[i], &stored); err != nil {
			m.log.Warn("Skipping undecodable log entry", "chat_id", chatID, "error", err)
			continue
		}
		records = append(records, domain.MessageRecord{
			LogID:     stored.LogID,
			ChatID:    domain.ChatID(stored.ChatID),
			SenderID:  domain.UserID(stored.SenderID),
			Text:      stored.Text,
			CreatedAt: stored.Timestamp,
		})
	}
	return records, nil
}

// TrimChat drops everything but the keep newest entries of a stream.
// Surviving entries keep their ids, so ordering stays monotonic.
func (m *MessageRepository) TrimChat(chatID domain.ChatID, keep int) (int, error) {
	var victims [][]byte
	prefix := chatPrefix(chatID)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), []byte(seekSuffix)...)
		seen := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			seen++
			if seen <= keep {
				continue
			}
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
	if err = m.deleteKeys(victims); err != nil {
		return 0, err
	}
	return len(victims), nil
}

// DeleteChat removes a whole stream and its sequence counter. Used by the
// retention sweeper once the owning chat is gone from the membership store.
func (m *MessageRepository) DeleteChat(chatID domain.ChatID) (int, error) {
	m.mu.Lock()
	if seq, ok := m.seqs[chatID]; ok {
		_ = seq.Release()
		delete(m.seqs, chatID)
	}
	m.mu.Unlock()

	var victims [][]byte
	prefix := chatPrefix(chatID)
	err := m.db.View(func(txn *badger.Txn) error {
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
	victims = append(victims, sequenceKey(chatID))
	if err = m.deleteKeys(victims); err != nil {
		return 0, err
	}
	return len(victims) - 1, nil
}

// StreamChatIDs lists every chat id that still owns stream data.
func (m *MessageRepository) StreamChatIDs() ([]domain.ChatID, error) {
	seen := make(map[domain.ChatID]struct{})
	prefix := []byte(streamPrefix)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, streamPrefix)
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

// Close releases the leased sequences so unused ids return to the store.
func (m *MessageRepository) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for id, seq := range m.seqs {
		if err := seq.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.seqs, id)
	}
	return firstErr
}

func (m *MessageRepository) sequence(chatID domain.ChatID) (*badger.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq, ok := m.seqs[chatID]; ok {
		return seq, nil
	}
	seq, err := m.db.GetSequence(sequenceKey(chatID), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("sequence for chat %d: %w", chatID, err)
	}
	m.seqs[chatID] = seq
	return seq, nil
}

// deleteKeys uses a write batch so large sweeps cannot overflow a single
// transaction.
func (m *MessageRepository) deleteKeys(keys [][]byte) error {
	wb := m.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}
