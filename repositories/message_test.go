package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"pairchat/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newStreamDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Append_And_Read_Roundtrip(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newStreamDB(t), slog.Default())
	defer repository.Close()

	chatID := domain.ChatID(1)
	at := time.Now().UTC().Truncate(time.Millisecond)
	texts := []string{"aGVsbG8=", "d29ybGQ=", "IQ=="}
	var lastID uint64
	for i, text := range texts {
		logID, err := repository.Append(chatID, domain.UserID(int64(i%2)+1), text, at.Add(time.Duration(i)*time.Second))
		req.NoError(err)
		req.Greater(logID, lastID, "log ids must strictly increase")
		lastID = logID
	}

	records, err := repository.ReadRecent(chatID, 100)
	req.NoError(err)
	req.Len(records, len(texts))
	for i, record := range records {
		req.Equal(texts[i], record.Text)
		req.Equal(chatID, record.ChatID)
		if i > 0 {
			req.Greater(record.LogID, records[i-1].LogID)
		}
	}
	req.Equal(domain.UserID(1), records[0].SenderID)
	req.Equal(at, records[0].CreatedAt)
}

func Test_Read_Returns_Newest_Window_Ascending(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newStreamDB(t), slog.Default())
	defer repository.Close()

	chatID := domain.ChatID(7)
	for i := 0; i < 5; i++ {
		_, err := repository.Append(chatID, 1, fmt.Sprintf("msg-%d", i), time.Now().UTC())
		req.NoError(err)
	}

	records, err := repository.ReadRecent(chatID, 2)
	req.NoError(err)
	req.Len(records, 2)
	req.Equal("msg-3", records[0].Text)
	req.Equal("msg-4", records[1].Text)
	req.Less(records[0].LogID, records[1].LogID)
}

func Test_Streams_Are_Isolated_Per_Chat(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newStreamDB(t), slog.Default())
	defer repository.Close()

	_, err := repository.Append(1, 1, "for chat one", time.Now().UTC())
	req.NoError(err)
	_, err = repository.Append(2, 1, "for chat two", time.Now().UTC())
	req.NoError(err)

	records, err := repository.ReadRecent(1, 100)
	req.NoError(err)
	req.Len(records, 1)
	req.Equal("for chat one", records[0].Text)
}

func Test_Corrupt_Entry_Is_Skipped(t *testing.T) {
	req := require.New(t)
	db := newStreamDB(t)
	repository := NewMessageRepository(db, slog.Default())
	defer repository.Close()

	chatID := domain.ChatID(3)
	_, err := repository.Append(chatID, 1, "valid one", time.Now().UTC())
	req.NoError(err)
	_, err = repository.Append(chatID, 2, "valid two", time.Now().UTC())
	req.NoError(err)

	// A rogue writer leaves garbage in the middle of the stream.
	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(chatID, 99), []byte("{not json"))
	})
	req.NoError(err)

	records, err := repository.ReadRecent(chatID, 100)
	req.NoError(err)
	req.Len(records, 2)
	req.Equal("valid one", records[0].Text)
	req.Equal("valid two", records[1].Text)
}

func Test_Log_Ids_Survive_Repository_Restart(t *testing.T) {
	req := require.New(t)
	db := newStreamDB(t)

	first := NewMessageRepository(db, slog.Default())
	chatID := domain.ChatID(5)
	before, err := first.Append(chatID, 1, "before restart", time.Now().UTC())
	req.NoError(err)
	req.NoError(first.Close())

	second := NewMessageRepository(db, slog.Default())
	defer second.Close()
	after, err := second.Append(chatID, 1, "after restart", time.Now().UTC())
	req.NoError(err)
	req.Greater(after, before)

	records, err := second.ReadRecent(chatID, 100)
	req.NoError(err)
	req.Len(records, 2)
	req.Equal("before restart", records[0].Text)
	req.Equal("after restart", records[1].Text)
}

func Test_Trim_Keeps_Newest_Entries(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newStreamDB(t), slog.Default())
	defer repository.Close()

	chatID := domain.ChatID(9)
	for i := 0; i < 5; i++ {
		_, err := repository.Append(chatID, 1, fmt.Sprintf("msg-%d", i), time.Now().UTC())
		req.NoError(err)
	}

	evicted, err := repository.TrimChat(chatID, 2)
	req.NoError(err)
	req.Equal(3, evicted)

	records, err := repository.ReadRecent(chatID, 100)
	req.NoError(err)
	req.Len(records, 2)
	req.Equal("msg-3", records[0].Text)
	req.Equal("msg-4", records[1].Text)

	evicted, err = repository.TrimChat(chatID, 2)
	req.NoError(err)
	req.Zero(evicted)
}

func Test_Delete_Chat_Removes_Stream(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newStreamDB(t), slog.Default())
	defer repository.Close()

	_, err := repository.Append(4, 1, "doomed", time.Now().UTC())
	req.NoError(err)
	_, err = repository.Append(8, 1, "survivor", time.Now().UTC())
	req.NoError(err)

	removed, err := repository.DeleteChat(4)
	req.NoError(err)
	req.Equal(1, removed)

	records, err := repository.ReadRecent(4, 100)
	req.NoError(err)
	req.Empty(records)

	ids, err := repository.StreamChatIDs()
	req.NoError(err)
	req.Equal([]domain.ChatID{8}, ids)
}
