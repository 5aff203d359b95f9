package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
)

func TestDecodeOutcomes_SkipsCorruptEntries(t *testing.T) {
	good, err := json.Marshal(domain.ReceivedOutcome{PostID: 7, Outcome: domain.Won(50)})
	require.NoError(t, err)

	got := decodeOutcomes([]string{
		string(good),
		"not json",
		`{"post_id":8,"outcome":{"kind":"lost","amount":3}}`,
	})
	require.Len(t, got, 1)
	assert.Equal(t, uint64(7), got[0].PostID)
	assert.Equal(t, domain.Won(50), got[0].Outcome)
}

func TestInboxKey(t *testing.T) {
	assert.Equal(t, "hot_or_not:inbox:bettor-1", inboxKey("bettor-1"))
}

func newTestInbox(t *testing.T, instance string, limit int) (*OutcomeInbox, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewOutcomeInbox(rdb, instance, limit), mr
}

func TestOutcomeInbox_CapTrimsOldest(t *testing.T) {
	ctx := context.Background()
	inbox, mr := newTestInbox(t, "bettor-1", 2)

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, inbox.Append(ctx, domain.ReceivedOutcome{PostID: i, Outcome: domain.Draw(i)}))
	}

	got, err := inbox.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].PostID)
	assert.Equal(t, uint64(2), got[1].PostID)

	got, err = inbox.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.Draw(3), got[0].Outcome)

	assert.Equal(t, 7*24*time.Hour, mr.TTL(inboxKey("bettor-1")))
}

func TestOutcomeInbox_ListAll(t *testing.T) {
	ctx := context.Background()
	inbox, _ := newTestInbox(t, "bettor-2", 10)

	got, err := inbox.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	for i := uint64(1); i <= 4; i++ {
		require.NoError(t, inbox.Append(ctx, domain.ReceivedOutcome{PostID: i, Outcome: domain.Won(i * 10)}))
	}

	got, err = inbox.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, o := range got {
		assert.Equal(t, uint64(4-i), o.PostID)
	}

	got, err = inbox.List(ctx, -1)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = inbox.List(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestOutcomeInbox_DefaultLimit(t *testing.T) {
	inbox, _ := newTestInbox(t, "bettor-3", 0)
	assert.Equal(t, int64(DefaultInboxLimit), inbox.limit)
}
