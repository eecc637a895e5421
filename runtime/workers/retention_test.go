package workers

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"pairchat/domain"
	"pairchat/errors"
	"pairchat/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func Test_Sweep_Collects_Orphans_And_Trims(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := slog.Default()

	membershipDB, err := repositories.OpenMembershipDB(ctx,
		filepath.Join(t.TempDir(), "membership.db"))
	req.NoError(err)
	t.Cleanup(func() { _ = membershipDB.Close() })

	streamDB, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = streamDB.Close() })

	chats := repositories.NewChatRepository(membershipDB, log)
	users := repositories.NewUserRepository(membershipDB, log)
	messages := repositories.NewMessageRepository(streamDB, log)
	t.Cleanup(func() { _ = messages.Close() })
	keys := repositories.NewKeySlotRepository(streamDB, log)

	alice, err := users.CreateUser(ctx, "alice", "irrelevant-hash")
	req.NoError(err)
	live, err := chats.CreateChat(ctx, domain.CreateChatCommand{
		CreatorID: alice.ID,
		Name:      "kept",
		Crypto:    domain.CryptoParams{Algorithm: "AES", Padding: "PKCS7", Mode: "CBC"},
	})
	req.NoError(err)

	for i := 0; i < 5; i++ {
		_, err = messages.Append(live.ID, alice.ID, "kept message", time.Now().UTC())
		req.NoError(err)
	}
	req.NoError(keys.Publish(live.ID, alice.ID, "live-key", time.Now().UTC()))

	// Leftovers of a chat whose membership record is already gone.
	orphan := domain.ChatID(999)
	_, err = messages.Append(orphan, alice.ID, "orphaned", time.Now().UTC())
	req.NoError(err)
	req.NoError(keys.Publish(orphan, alice.ID, "orphan-key", time.Now().UTC()))

	worker := NewRetentionWorker(log, chats, messages, keys, time.Minute, 2)
	req.NoError(worker.Sweep(ctx))

	records, err := messages.ReadRecent(live.ID, 100)
	req.NoError(err)
	req.Len(records, 2, "live stream is trimmed to the window")

	records, err = messages.ReadRecent(orphan, 100)
	req.NoError(err)
	req.Empty(records, "orphaned stream is collected")

	_, err = keys.Get(orphan, alice.ID)
	req.ErrorIs(err, errors.ErrKeyNotFound)

	slot, err := keys.Get(live.ID, alice.ID)
	req.NoError(err)
	req.Equal("live-key", slot.PublicKey)
}
