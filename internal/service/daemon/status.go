package daemon

import (
	"context"
	"slices"

	domain "github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	"github.com/oshokin/oneshot-layer/internal/logger"
	repository "github.com/oshokin/oneshot-layer/internal/repository/status"
)

// statusSource provides status snapshots and change notifications.
type statusSource interface {
	Status(ctx context.Context) (*domain.Status, error)
	Updates() <-chan *domain.Status
}

// statusWriter mirrors engine status changes into the status file.
type statusWriter struct {
	// repo persists the status.
	repo repository.Repository
	// source provides the status.
	source statusSource
	// last is the last written status, used to skip duplicate writes.
	last *domain.Status
}

func newStatusWriter(repo repository.Repository, source statusSource) *statusWriter {
	return &statusWriter{
		repo:   repo,
		source: source,
	}
}

// Run writes the initial status and then every change until ctx is canceled.
func (w *statusWriter) Run(ctx context.Context) error {
	initial, err := w.source.Status(ctx)
	if err == nil {
		w.write(ctx, initial)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case status := <-w.source.Updates():
			w.write(ctx, status)
		}
	}
}

func (w *statusWriter) write(ctx context.Context, status *domain.Status) {
	if sameLayers(w.last, status) {
		return
	}

	if err := w.repo.Save(ctx, status); err != nil {
		logger.WarnKV(ctx, "Failed to write status file", "error", err)

		return
	}

	w.last = status
}

// sameLayers reports whether a and b show the same layers and arming.
// Timestamps alone do not warrant a rewrite.
func sameLayers(a, b *domain.Status) bool {
	if a == nil || b == nil {
		return false
	}

	return slices.Equal(a.ActiveLayers, b.ActiveLayers) &&
		slices.Equal(a.LayerNames, b.LayerNames) &&
		slices.Equal(a.Behaviors, b.Behaviors)
}
