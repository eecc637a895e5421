package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pairchat/errors"
)

// Worker is a long-running background unit owned by the Supervisor.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// Supervisor runs each worker in its own goroutine, recovers panics and
// restarts crashed workers after a delay. A failure in one worker must not
// stop the supervisor itself.
type Supervisor struct {
	log             *slog.Logger
	restartInterval time.Duration
	wg              sync.WaitGroup
	workers         []Worker
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	return &Supervisor{log: log, restartInterval: restartInterval}
}

func (s *Supervisor) Add(worker ...Worker) *Supervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run starts every registered worker and blocks until all of them have
// stopped, which only happens once ctx is canceled or each worker returned
// cleanly.
func (s *Supervisor) Run(ctx context.Context) {
	for _, worker := range s.workers {
		s.start(ctx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) start(ctx context.Context, worker Worker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", worker.Name())
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						s.log.Error("Worker panicked", "name", worker.Name(), "panic", r)
						err = errors.ErrWorkerPanic
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				// Terminated properly, never restart.
				s.log.Info("Worker finished", "name", worker.Name())
				return
			}
			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", worker.Name())
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", worker.Name(), "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.restartInterval):
			}
		}
	}()
}
