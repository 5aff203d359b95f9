package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
)

const DefaultInboxLimit = 1000

// OutcomeInbox keeps the bettor side's received outcomes in a capped Redis
// list, newest at the head.
type OutcomeInbox struct {
	rdb   *redis.Client
	key   string
	limit int64
	ttl   time.Duration
}

// NewOutcomeInbox creates an inbox stored under hot_or_not:inbox:<instance>.
func NewOutcomeInbox(rdb *redis.Client, instance string, limit int) *OutcomeInbox {
	if limit <= 0 {
		limit = DefaultInboxLimit
	}
	return &OutcomeInbox{
		rdb:   rdb,
		key:   inboxKey(instance),
		limit: int64(limit),
		ttl:   7 * 24 * time.Hour,
	}
}

func inboxKey(instance string) string {
	return fmt.Sprintf("hot_or_not:inbox:%s", instance)
}

// Append pushes the outcome to the head of the list and trims the tail.
func (r *OutcomeInbox) Append(ctx context.Context, o domain.ReceivedOutcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}

	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, r.limit-1)
	pipe.Expire(ctx, r.key, r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// List returns up to limit outcomes, newest first. A non-positive limit
// returns the whole inbox.
func (r *OutcomeInbox) List(ctx context.Context, limit int) ([]domain.ReceivedOutcome, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raw, err := r.rdb.LRange(ctx, r.key, 0, stop).Result()
	if err != nil {
		if err == redis.Nil {
			return []domain.ReceivedOutcome{}, nil
		}
		return nil, err
	}
	return decodeOutcomes(raw), nil
}

// decodeOutcomes skips entries that no longer decode, e.g. written by an
// older build.
func decodeOutcomes(raw []string) []domain.ReceivedOutcome {
	out := make([]domain.ReceivedOutcome, 0, len(raw))
	for _, data := range raw {
		var o domain.ReceivedOutcome
		if err := json.Unmarshal([]byte(data), &o); err != nil {
			continue
		}
		out = append(out, o)
	}
	return out
}
