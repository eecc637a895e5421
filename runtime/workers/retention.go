package workers

import (
	"context"
	"log/slog"
	"time"

	"pairchat/domain"
	"pairchat/repositories"
)

// RetentionWorker is the garbage collector of the stream store. Deleting a
// chat only removes its membership record; the orphaned message stream and
// key slots are reclaimed here on the next sweep. The same pass trims each
// surviving stream to the configured message window.
type RetentionWorker struct {
	log      *slog.Logger
	chats    repositories.IChatRepository
	messages repositories.IMessageRepository
	keys     repositories.IKeySlotRepository

	interval time.Duration
	window   int
}

func NewRetentionWorker(
	log *slog.Logger,
	chats repositories.IChatRepository,
	messages repositories.IMessageRepository,
	keys repositories.IKeySlotRepository,
	interval time.Duration,
	window int,
) *RetentionWorker {
	return &RetentionWorker{
		log:      log,
		chats:    chats,
		messages: messages,
		keys:     keys,
		interval: interval,
		window:   window,
	}
}

func (w *RetentionWorker) Name() string { return "retention" }

func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info("Starting retention worker", "interval", w.interval, "window", w.window)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				return err
			}
		}
	}
}

// Sweep performs one garbage-collection pass.
func (w *RetentionWorker) Sweep(ctx context.Context) error {
	liveIDs, err := w.chats.ListChatIDs(ctx)
	if err != nil {
		return err
	}
	live := make(map[domain.ChatID]struct{}, len(liveIDs))
	for _, id := range liveIDs {
		live[id] = struct{}{}
	}

	streamIDs, err := w.messages.StreamChatIDs()
	if err != nil {
		return err
	}
	for _, id := range streamIDs {
		if _, ok := live[id]; ok {
			trimmed, err := w.messages.TrimChat(id, w.window)
			if err != nil {
				return err
			}
			if trimmed > 0 {
				w.log.Debug("Trimmed message stream", "chat_id", id, "evicted", trimmed)
			}
			continue
		}
		removed, err := w.messages.DeleteChat(id)
		if err != nil {
			return err
		}
		w.log.Info("Collected orphaned stream", "chat_id", id, "entries", removed)
	}

	slotIDs, err := w.keys.ChatIDs()
	if err != nil {
		return err
	}
	for _, id := range slotIDs {
		if _, ok := live[id]; ok {
			continue
		}
		removed, err := w.keys.InvalidateChat(id)
		if err != nil {
			return err
		}
		w.log.Info("Collected orphaned key slots", "chat_id", id, "slots", removed)
	}
	return nil
}
