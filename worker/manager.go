package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Worker runs until its context is cancelled.
type Worker interface {
	Name() string
	Start(ctx context.Context) error
}

// Manager starts and supervises a set of workers.
type Manager struct {
	workers []Worker
}

func NewManager(ws ...Worker) *Manager {
	return &Manager{workers: ws}
}

// Start blocks until ctx is cancelled and every worker has returned. A worker
// failing early cancels the others; the first error is returned.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, len(m.workers))
	for _, w := range m.workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			slog.Info("worker: started", "worker", w.Name())
			if err := w.Start(ctx); err != nil {
				slog.Error("worker: stopped with error", "worker", w.Name(), "error", err)
				errs <- err
				cancel()
				return
			}
			slog.Info("worker: stopped", "worker", w.Name())
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
