// Package sync backs the store up as JSONL snapshots to S3 and git.
package sync

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rnwolf/dbr/internal/store"
)

// Destination receives each snapshot.
type Destination interface {
	Name() string
	Write(ctx context.Context, data []byte) error
}

// Scheduler exports the whole store on an interval and pushes each
// snapshot to every destination.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger
}

func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{store: s, destinations: destinations, interval: interval, logger: logger}
}

// Run syncs once immediately and then every interval until ctx is done.
// Failed syncs are logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		_ = s.SyncOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SyncOnce exports the store and writes the snapshot to all destinations
// in parallel. Every destination is attempted; the first failure is
// returned.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	start := time.Now()
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		s.logger.Error("sync: export failed", "err", err)
		return err
	}
	snapshot := buf.Bytes()

	var g errgroup.Group
	for _, d := range s.destinations {
		g.Go(func() error {
			if err := d.Write(ctx, snapshot); err != nil {
				s.logger.Error("sync: write failed", "destination", d.Name(), "err", err)
				return fmt.Errorf("%s: %w", d.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("sync: snapshot written",
		"destinations", len(s.destinations), "bytes", len(snapshot), "took", time.Since(start))
	return nil
}
