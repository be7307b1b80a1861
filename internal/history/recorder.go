package history

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-facade/internal/facade"
)

// Logger defines the logging interface used by the recorder.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Recorder stores facade changes in a Repository. It implements
// facade.Publisher.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a recorder. A nil logger discards messages.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{repo: repo, logger: logger}
}

// Publish implements facade.Publisher.
func (r *Recorder) Publish(ctx context.Context, change facade.Change) error {
	e := Entry{
		Device:    change.Device,
		Attribute: change.Attribute,
		Value:     change.Value,
		Quality:   change.Quality,
		Time:      change.Time,
	}
	if change.Err != nil {
		e.Value = nil
		e.Error = change.Err.Error()
	}
	return r.repo.Record(ctx, e)
}

// RunPruner deletes entries older than retention every interval until
// ctx is cancelled. A first pass runs immediately.
func (r *Recorder) RunPruner(ctx context.Context, retention, interval time.Duration) error {
	r.prune(ctx, retention)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.prune(ctx, retention)
		}
	}
}

func (r *Recorder) prune(ctx context.Context, retention time.Duration) {
	n, err := r.repo.Prune(ctx, retention)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("pruning history failed", "error", err)
		}
		return
	}
	if n > 0 {
		r.logger.Info("pruned history", "deleted", n, "retention", retention.String())
	}
}
