package memory

import (
	"context"
	"sync"

	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
)

// OutcomeInbox implements domain.OutcomeInbox using memory
type OutcomeInbox struct {
	entries []domain.ReceivedOutcome // oldest first
	limit   int
	mu      sync.RWMutex
}

// NewOutcomeInbox keeps at most limit entries, dropping the oldest.
func NewOutcomeInbox(limit int) *OutcomeInbox {
	if limit <= 0 {
		limit = 1000
	}
	return &OutcomeInbox{limit: limit}
}

func (b *OutcomeInbox) Append(ctx context.Context, outcome domain.ReceivedOutcome) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, outcome)
	if over := len(b.entries) - b.limit; over > 0 {
		b.entries = append(b.entries[:0:0], b.entries[over:]...)
	}
	return nil
}

func (b *OutcomeInbox) List(ctx context.Context, limit int) ([]domain.ReceivedOutcome, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 || limit > len(b.entries) {
		limit = len(b.entries)
	}
	out := make([]domain.ReceivedOutcome, 0, limit)
	for i := len(b.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, b.entries[i])
	}
	return out, nil
}
