package sink

import (
	"context"
	"log/slog"

	"github.com/use-agent/lazcrawl/models"
)

// Persister is anything that can store a batch.
type Persister interface {
	Persist(ctx context.Context, out *models.BatchOutput) (string, error)
}

// Multi persists to a primary sink and then to any secondaries. Only the
// primary's failure fails the batch; secondary errors are logged.
type Multi struct {
	primary     Persister
	secondaries []Persister
}

// NewMulti creates a Multi.
func NewMulti(primary Persister, secondaries ...Persister) *Multi {
	return &Multi{primary: primary, secondaries: secondaries}
}

// Persist returns the primary's location.
func (m *Multi) Persist(ctx context.Context, out *models.BatchOutput) (string, error) {
	loc, err := m.primary.Persist(ctx, out)
	if err != nil {
		return "", err
	}
	for _, s := range m.secondaries {
		if extra, err := s.Persist(ctx, out); err != nil {
			slog.Warn("secondary sink failed", "error", err)
		} else {
			slog.Info("batch also stored", "location", extra)
		}
	}
	return loc, nil
}
