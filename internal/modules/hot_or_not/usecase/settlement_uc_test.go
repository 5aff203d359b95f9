package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/repository/memory"
	"github.com/frankieli/hot_or_not/pkg/taskrunner"
)

// MockNotifier records every delivery and fails those chosen by fail.
type MockNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	fail  func(instance string) error
}

type notifyCall struct {
	Instance string
	PostID   uint64
	Outcome  domain.BetOutcomeForBetMaker
}

func (m *MockNotifier) ReceiveBetWinnings(ctx context.Context, instance string, postID uint64, outcome domain.BetOutcomeForBetMaker) error {
	m.mu.Lock()
	m.calls = append(m.calls, notifyCall{Instance: instance, PostID: postID, Outcome: outcome})
	fail := m.fail
	m.mu.Unlock()

	if fail != nil {
		return fail(instance)
	}
	return nil
}

func (m *MockNotifier) Calls() []notifyCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notifyCall(nil), m.calls...)
}

// MockAllocator records requested units.
type MockAllocator struct {
	mu    sync.Mutex
	units []uint64
	err   error
}

func (m *MockAllocator) RequestCycles(ctx context.Context, units uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units = append(m.units, units)
	return m.err
}

var (
	roomA     = domain.GlobalRoomID{PostID: 42, SlotID: 3, RoomID: 1}
	roomB     = domain.GlobalRoomID{PostID: 42, SlotID: 3, RoomID: 2}
	roomOpen  = domain.GlobalRoomID{PostID: 42, SlotID: 3, RoomID: 3}
	roomOther = domain.GlobalRoomID{PostID: 42, SlotID: 4, RoomID: 1}
)

type seedBet struct {
	room      domain.GlobalRoomID
	id        uint64
	direction domain.Direction
	instance  string
}

var scenarioBets = []seedBet{
	{roomA, 1, domain.DirectionHot, "bettor-a1"},
	{roomA, 2, domain.DirectionHot, "bettor-a2"},
	{roomA, 3, domain.DirectionNot, "bettor-a3"},
	{roomB, 1, domain.DirectionHot, "bettor-b1"},
	{roomB, 2, domain.DirectionNot, "bettor-b2"},
	{roomB, 3, domain.DirectionHot, "bettor-b3"},
	{roomOpen, 1, domain.DirectionNot, "bettor-open"},
	{roomOther, 1, domain.DirectionHot, "bettor-other"},
}

// seedScenario stores post 42 with slots 3 and 4 pending and every room
// still Ongoing.
func seedScenario(t *testing.T, store domain.Store) {
	t.Helper()

	require.NoError(t, store.Update(context.Background(), func(tx domain.Tx) error {
		if err := tx.PutPost(domain.NewPost(42, 3, 4)); err != nil {
			return err
		}
		rooms := map[domain.GlobalRoomID]*domain.Room{}
		for _, sb := range scenarioBets {
			room, ok := rooms[sb.room]
			if !ok {
				room = &domain.Room{ID: sb.room}
				rooms[sb.room] = room
			}
			if sb.direction == domain.DirectionHot {
				room.TotalHotBets++
			} else {
				room.TotalNotBets++
			}
			room.TotalAmount += 100
			if err := tx.PutBet(&domain.Bet{
				ID:               domain.GlobalBetID{Room: sb.room, BetID: sb.id},
				Direction:        sb.direction,
				Amount:           100,
				BetMakerInstance: sb.instance,
			}); err != nil {
				return err
			}
		}
		for _, room := range rooms {
			if err := tx.PutRoom(room); err != nil {
				return err
			}
		}
		return nil
	}))
}

// scenarioResolver settles room A as HotWon paying 50 per Hot bet and room B
// as a Draw paying 10 per bet. Room 3 stays Ongoing.
type scenarioResolver struct {
	calls []domain.ResolveRequest
}

func (r *scenarioResolver) ResolveSlot(ctx context.Context, req domain.ResolveRequest, post *domain.Post, tx domain.Tx) error {
	r.calls = append(r.calls, req)

	settle := func(id domain.GlobalRoomID, outcome domain.RoomOutcome, pay func(*domain.Bet) domain.Payout) error {
		room, ok, err := tx.GetRoom(id)
		if err != nil || !ok {
			return err
		}
		room.Outcome = outcome
		if err := tx.PutRoom(room); err != nil {
			return err
		}
		bets, err := tx.BetsInRoom(id)
		if err != nil {
			return err
		}
		for _, bet := range bets {
			bet.Payout = pay(bet)
			if err := tx.PutBet(bet); err != nil {
				return err
			}
		}
		return nil
	}

	if err := settle(roomA, domain.RoomOutcomeHotWon, func(b *domain.Bet) domain.Payout {
		if b.Direction == domain.DirectionHot {
			return domain.Calculated(50)
		}
		return domain.Calculated(0)
	}); err != nil {
		return err
	}
	return settle(roomB, domain.RoomOutcomeDraw, func(*domain.Bet) domain.Payout {
		return domain.Calculated(10)
	})
}

func newTestSettlement(store domain.Store, resolver domain.SlotResolver, alloc domain.CyclesAllocator, notifier domain.ParticipantNotifier) *SettlementUseCase {
	uc := NewSettlementUseCase(store, resolver, alloc, notifier, nil, SettlementConfig{Instance: "self:9000"})
	uc.now = func() time.Time { return time.Unix(1700000000, 0) }
	return uc
}

func outcomesByInstance(calls []notifyCall) map[string]domain.BetOutcomeForBetMaker {
	out := make(map[string]domain.BetOutcomeForBetMaker, len(calls))
	for _, c := range calls {
		out[c.Instance] = c.Outcome
	}
	return out
}

func statuses(t *testing.T, store domain.Store) map[string]domain.InformedStatus {
	t.Helper()

	out := map[string]domain.InformedStatus{}
	require.NoError(t, store.View(context.Background(), func(tx domain.Tx) error {
		for _, sb := range scenarioBets {
			bet, ok, err := tx.GetBet(domain.GlobalBetID{Room: sb.room, BetID: sb.id})
			if err != nil {
				return err
			}
			if ok {
				out[sb.instance] = bet.InformedStatus
			}
		}
		return nil
	}))
	return out
}

var settledInstances = []string{"bettor-a1", "bettor-a2", "bettor-a3", "bettor-b1", "bettor-b2", "bettor-b3"}

func TestTabulateSlot_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedScenario(t, store)

	resolver := &scenarioResolver{}
	alloc := &MockAllocator{}
	notifier := &MockNotifier{}
	uc := newTestSettlement(store, resolver, alloc, notifier)

	summary := uc.TabulateSlot(ctx, 42, 3)
	assert.Equal(t, NotifySummary{Attempted: 6, Succeeded: 6}, summary)

	// 7 bets in slot 3, the slot 4 room is outside the range.
	assert.Equal(t, []uint64{7 * UnitCostPerBet}, alloc.units)

	require.Len(t, resolver.calls, 1)
	assert.Equal(t, domain.ResolveRequest{
		Instance: "self:9000",
		PostID:   42,
		SlotID:   3,
		Now:      time.Unix(1700000000, 0),
	}, resolver.calls[0])

	calls := notifier.Calls()
	require.Len(t, calls, 6)
	for _, c := range calls {
		assert.Equal(t, uint64(42), c.PostID)
	}
	assert.Equal(t, map[string]domain.BetOutcomeForBetMaker{
		"bettor-a1": domain.Won(50),
		"bettor-a2": domain.Won(50),
		"bettor-a3": domain.Lost(),
		"bettor-b1": domain.Draw(10),
		"bettor-b2": domain.Draw(10),
		"bettor-b3": domain.Draw(10),
	}, outcomesByInstance(calls))

	got := statuses(t, store)
	for _, inst := range settledInstances {
		assert.Equal(t, domain.Informed(), got[inst], inst)
	}
	assert.Equal(t, domain.InformedStatus{}, got["bettor-open"])
	assert.Equal(t, domain.InformedStatus{}, got["bettor-other"])

	require.NoError(t, store.View(ctx, func(tx domain.Tx) error {
		post, ok, err := tx.GetPost(42)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []uint8{4}, post.PendingSlots())
		return nil
	}))
}

func TestTabulateSlot_PartialFailureThenResend(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedScenario(t, store)

	notifier := &MockNotifier{fail: func(instance string) error {
		if instance == "bettor-b2" {
			return errors.New("unreachable")
		}
		return nil
	}}
	uc := newTestSettlement(store, &scenarioResolver{}, &MockAllocator{}, notifier)

	summary := uc.TabulateSlot(ctx, 42, 3)
	assert.Equal(t, NotifySummary{Attempted: 6, Succeeded: 5, Failed: 1}, summary)

	got := statuses(t, store)
	assert.Equal(t, domain.FailedStatus("Informing bet maker instance bettor-b2 failed: unreachable"), got["bettor-b2"])
	for _, inst := range settledInstances {
		if inst != "bettor-b2" {
			assert.Equal(t, domain.Informed(), got[inst], inst)
		}
	}

	// A second pass sends to every settled bet again, informed or not.
	notifier.mu.Lock()
	notifier.fail = nil
	notifier.mu.Unlock()

	summary = uc.InformParticipants(ctx, 42, 3)
	assert.Equal(t, NotifySummary{Attempted: 6, Succeeded: 6}, summary)

	calls := notifier.Calls()
	require.Len(t, calls, 12)
	var resent []string
	for _, c := range calls[6:] {
		resent = append(resent, c.Instance)
	}
	sort.Strings(resent)
	assert.Equal(t, settledInstances, resent)
	assert.Equal(t, domain.Informed(), statuses(t, store)["bettor-b2"])
}

func TestTabulateSlot_RechargeFailureDoesNotBlock(t *testing.T) {
	store := memory.NewStore()
	seedScenario(t, store)

	alloc := &MockAllocator{err: errors.New("allocator out of cycles")}
	notifier := &MockNotifier{}
	uc := newTestSettlement(store, &scenarioResolver{}, alloc, notifier)

	summary := uc.TabulateSlot(context.Background(), 42, 3)

	assert.Len(t, alloc.units, 1)
	assert.Equal(t, 6, summary.Succeeded)
	got := statuses(t, store)
	for _, inst := range settledInstances {
		assert.Equal(t, domain.Informed(), got[inst], inst)
	}
}

func TestTabulateSlot_MissingPost(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedScenario(t, store)
	require.NoError(t, store.Update(ctx, func(tx domain.Tx) error {
		return tx.DeletePost(42)
	}))

	resolver := &scenarioResolver{}
	alloc := &MockAllocator{}
	notifier := &MockNotifier{}
	uc := newTestSettlement(store, resolver, alloc, notifier)

	summary := uc.TabulateSlot(ctx, 42, 3)

	assert.Equal(t, NotifySummary{}, summary)
	assert.Empty(t, resolver.calls)
	assert.Empty(t, notifier.Calls())
	assert.Equal(t, []uint64{7 * UnitCostPerBet}, alloc.units)
}

func TestTabulateSlot_ResolverErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedScenario(t, store)

	resolver := domain.ResolverFunc(func(ctx context.Context, req domain.ResolveRequest, post *domain.Post, tx domain.Tx) error {
		if err := (&scenarioResolver{}).ResolveSlot(ctx, req, post, tx); err != nil {
			return err
		}
		return errors.New("payout engine crashed")
	})
	notifier := &MockNotifier{}
	uc := newTestSettlement(store, resolver, &MockAllocator{}, notifier)

	summary := uc.TabulateSlot(ctx, 42, 3)

	assert.Equal(t, NotifySummary{}, summary)
	assert.Empty(t, notifier.Calls())
	require.NoError(t, store.View(ctx, func(tx domain.Tx) error {
		room, ok, err := tx.GetRoom(roomA)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, domain.RoomOutcomeOngoing, room.Outcome)

		post, _, err := tx.GetPost(42)
		require.NoError(t, err)
		assert.Equal(t, []uint8{3, 4}, post.PendingSlots())
		return nil
	}))
}

func TestTabulateSlot_NoopResolverStillNotifies(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedScenario(t, store)

	// Outcomes were stored by an earlier run.
	require.NoError(t, store.Update(ctx, func(tx domain.Tx) error {
		return (&scenarioResolver{}).ResolveSlot(ctx, domain.ResolveRequest{}, nil, tx)
	}))

	notifier := &MockNotifier{}
	uc := newTestSettlement(store, NoopResolver{}, nil, notifier)

	summary := uc.TabulateSlot(ctx, 42, 3)
	assert.Equal(t, 6, summary.Succeeded)
}

func TestInformParticipants_SkipsAwaitingResult(t *testing.T) {
	store := memory.NewStore()
	seedScenario(t, store)
	notifier := &MockNotifier{}
	uc := newTestSettlement(store, NoopResolver{}, nil, notifier)

	// Every room is still Ongoing.
	summary := uc.InformParticipants(context.Background(), 42, 3)

	assert.Equal(t, NotifySummary{}, summary)
	assert.Empty(t, notifier.Calls())
}

func TestInformParticipants_UncalculatedPayoutIsZero(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedScenario(t, store)
	require.NoError(t, store.Update(ctx, func(tx domain.Tx) error {
		room, _, err := tx.GetRoom(roomA)
		if err != nil {
			return err
		}
		room.Outcome = domain.RoomOutcomeNotWon
		return tx.PutRoom(room)
	}))

	notifier := &MockNotifier{}
	uc := newTestSettlement(store, NoopResolver{}, nil, notifier)
	uc.InformParticipants(ctx, 42, 3)

	assert.Equal(t, map[string]domain.BetOutcomeForBetMaker{
		"bettor-a1": domain.Lost(),
		"bettor-a2": domain.Lost(),
		"bettor-a3": domain.Won(0),
	}, outcomesByInstance(notifier.Calls()))
}

func TestInformParticipants_PanickingNotifierMarksFailed(t *testing.T) {
	store := memory.NewStore()
	seedScenario(t, store)

	notifier := &MockNotifier{fail: func(instance string) error {
		if instance == "bettor-a1" {
			panic("codec exploded")
		}
		return nil
	}}
	uc := newTestSettlement(store, &scenarioResolver{}, nil, notifier)

	summary := uc.TabulateSlot(context.Background(), 42, 3)

	assert.Equal(t, NotifySummary{Attempted: 6, Succeeded: 5, Failed: 1}, summary)
	status := statuses(t, store)["bettor-a1"]
	assert.Equal(t, domain.InformedFailed, status.Kind)
	assert.Contains(t, status.Reason, "Informing bet maker instance bettor-a1 failed")
	assert.Contains(t, status.Reason, taskrunner.ErrTaskPanicked.Error())
}

func TestInformParticipants_BetRemovedDuringCall(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedScenario(t, store)
	gone := domain.GlobalBetID{Room: roomB, BetID: 3}

	notifier := &MockNotifier{fail: func(instance string) error {
		if instance == "bettor-b3" {
			return store.Update(ctx, func(tx domain.Tx) error {
				return tx.DeleteBet(gone)
			})
		}
		return nil
	}}
	uc := newTestSettlement(store, &scenarioResolver{}, nil, notifier)
	uc.TabulateSlot(ctx, 42, 3)

	require.NoError(t, store.View(ctx, func(tx domain.Tx) error {
		_, ok, err := tx.GetBet(gone)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
	assert.Len(t, statuses(t, store), len(scenarioBets)-1)
}

func TestInformParticipants_NotifyTimeout(t *testing.T) {
	store := memory.NewStore()
	seedScenario(t, store)

	notifier := &blockingNotifier{}
	uc := NewSettlementUseCase(store, &scenarioResolver{}, nil, notifier, nil, SettlementConfig{
		NotifyTimeout: 20 * time.Millisecond,
	})
	summary := uc.TabulateSlot(context.Background(), 42, 3)

	assert.Equal(t, 6, summary.Failed)
	status := statuses(t, store)["bettor-a1"]
	assert.Contains(t, status.Reason, context.DeadlineExceeded.Error())
}

type blockingNotifier struct{}

func (blockingNotifier) ReceiveBetWinnings(ctx context.Context, instance string, postID uint64, outcome domain.BetOutcomeForBetMaker) error {
	<-ctx.Done()
	return ctx.Err()
}

// cancellingNotifier cancels the caller's context on its first delivery and
// then succeeds, like a client that hangs up mid-pass.
type cancellingNotifier struct {
	MockNotifier
	once   sync.Once
	cancel context.CancelFunc
}

func (n *cancellingNotifier) ReceiveBetWinnings(ctx context.Context, instance string, postID uint64, outcome domain.BetOutcomeForBetMaker) error {
	n.once.Do(n.cancel)
	return n.MockNotifier.ReceiveBetWinnings(ctx, instance, postID, outcome)
}

func TestInformParticipants_DrainsAfterCallerCancels(t *testing.T) {
	store := memory.NewStore()
	seedScenario(t, store)

	failing := &MockNotifier{fail: func(string) error { return errors.New("down") }}
	first := newTestSettlement(store, &scenarioResolver{}, nil, failing)
	first.TabulateSlot(context.Background(), 42, 3)
	for _, inst := range settledInstances {
		require.Equal(t, domain.InformedFailed, statuses(t, store)[inst].Kind, inst)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifier := &cancellingNotifier{cancel: cancel}
	uc := newTestSettlement(store, &scenarioResolver{}, nil, notifier)

	summary := uc.InformParticipants(ctx, 42, 3)
	assert.Equal(t, NotifySummary{Attempted: 6, Succeeded: 6}, summary)
	assert.Len(t, notifier.Calls(), 6)
	require.Error(t, ctx.Err())

	got := statuses(t, store)
	for _, inst := range settledInstances {
		assert.Equal(t, domain.Informed(), got[inst], inst)
	}
}

func TestTabulateSlot_DrainsAfterCallerCancels(t *testing.T) {
	store := memory.NewStore()
	seedScenario(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifier := &cancellingNotifier{cancel: cancel}
	uc := newTestSettlement(store, &scenarioResolver{}, &MockAllocator{}, notifier)

	summary := uc.TabulateSlot(ctx, 42, 3)
	assert.Equal(t, NotifySummary{Attempted: 6, Succeeded: 6}, summary)

	got := statuses(t, store)
	for _, inst := range settledInstances {
		assert.Equal(t, domain.Informed(), got[inst], inst)
	}
}

// concurrencyNotifier tracks how many calls are in flight at once.
type concurrencyNotifier struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	total    atomic.Int32
}

func (n *concurrencyNotifier) ReceiveBetWinnings(ctx context.Context, instance string, postID uint64, outcome domain.BetOutcomeForBetMaker) error {
	cur := n.inFlight.Add(1)
	for {
		p := n.peak.Load()
		if cur <= p || n.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	n.inFlight.Add(-1)
	n.total.Add(1)
	return nil
}

func TestInformParticipants_BoundedFanOut(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	room := domain.GlobalRoomID{PostID: 7, SlotID: 1, RoomID: 1}

	require.NoError(t, store.Update(ctx, func(tx domain.Tx) error {
		if err := tx.PutPost(domain.NewPost(7)); err != nil {
			return err
		}
		if err := tx.PutRoom(&domain.Room{ID: room, TotalHotBets: 37, Outcome: domain.RoomOutcomeHotWon}); err != nil {
			return err
		}
		for i := uint64(0); i < 37; i++ {
			if err := tx.PutBet(&domain.Bet{
				ID:               domain.GlobalBetID{Room: room, BetID: i},
				Direction:        domain.DirectionHot,
				BetMakerInstance: fmt.Sprintf("bettor-%d", i),
				Payout:           domain.Calculated(1),
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	notifier := &concurrencyNotifier{}
	uc := newTestSettlement(store, NoopResolver{}, nil, notifier)
	summary := uc.InformParticipants(ctx, 7, 1)

	assert.Equal(t, 37, summary.Succeeded)
	assert.Equal(t, int32(37), notifier.total.Load())
	assert.LessOrEqual(t, notifier.peak.Load(), int32(NotifyConcurrency))
}

func TestRechargeUnits(t *testing.T) {
	assert.Equal(t, uint64(0), RechargeUnits(0))
	assert.Equal(t, uint64(30_000_000_000), RechargeUnits(3))
	assert.Equal(t, uint64(math.MaxUint64), RechargeUnits(math.MaxUint64/UnitCostPerBet+1))
}

func TestListSlotBets(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedScenario(t, store)
	uc := newTestSettlement(store, &scenarioResolver{}, nil, &MockNotifier{})
	uc.TabulateSlot(ctx, 42, 3)

	got, err := uc.ListSlotBets(ctx, 42, 3)
	require.NoError(t, err)
	require.Len(t, got, 7)

	assert.Equal(t, roomA, got[0].Bet.ID.Room)
	assert.Equal(t, domain.Won(50), got[0].Outcome)
	assert.Equal(t, domain.RoomOutcomeHotWon, got[0].RoomOutcome)
	assert.Equal(t, domain.Informed(), got[0].Bet.InformedStatus)

	last := got[6]
	assert.Equal(t, roomOpen, last.Bet.ID.Room)
	assert.Equal(t, domain.AwaitingResult(), last.Outcome)
}
