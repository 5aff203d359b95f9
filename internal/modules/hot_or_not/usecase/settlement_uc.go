// Package usecase implements slot settlement and participant notification
// for the Hot/Not module.
package usecase

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"time"

	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
	"github.com/frankieli/hot_or_not/pkg/logger"
	"github.com/frankieli/hot_or_not/pkg/metrics"
	"github.com/frankieli/hot_or_not/pkg/taskrunner"
)

const (
	// UnitCostPerBet is the resource cost reserved for notifying one bet.
	UnitCostPerBet uint64 = 10_000_000_000
	// NotifyConcurrency caps the outstanding notification calls.
	NotifyConcurrency = 10
)

const (
	settlementResolved = "resolved"
	settlementSkipped  = "skipped"
	settlementFailed   = "failed"
)

// SettlementConfig holds the per-instance settings of the settlement flow.
type SettlementConfig struct {
	Instance      string        // address handed to the resolver
	NotifyTimeout time.Duration // per notification call; 0 means none
}

// NotifySummary counts the notification calls of one pass.
type NotifySummary struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BetStatus is a bet of a slot together with the outcome its bettor is told.
type BetStatus struct {
	Bet         *domain.Bet
	RoomOutcome domain.RoomOutcome
	Outcome     domain.BetOutcomeForBetMaker
}

// SettlementUseCase settles slots and informs bettors of their results.
type SettlementUseCase struct {
	store     domain.Store
	resolver  domain.SlotResolver
	allocator domain.CyclesAllocator
	notifier  domain.ParticipantNotifier
	metrics   *metrics.Metrics
	cfg       SettlementConfig
	now       func() time.Time
}

// NewSettlementUseCase creates a settlement use case. m may be nil.
func NewSettlementUseCase(
	store domain.Store,
	resolver domain.SlotResolver,
	allocator domain.CyclesAllocator,
	notifier domain.ParticipantNotifier,
	m *metrics.Metrics,
	cfg SettlementConfig,
) *SettlementUseCase {
	return &SettlementUseCase{
		store:     store,
		resolver:  resolver,
		allocator: allocator,
		notifier:  notifier,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
	}
}

// TabulateSlot resolves one slot of a post and then informs every bettor of
// the slot. Nothing is returned: a failed top-up or resolver is logged, and
// the notification pass runs regardless so that earlier failed deliveries
// get another attempt. Once started it runs to completion even if ctx is
// cancelled; only ctx values (request id, logger) are kept.
func (uc *SettlementUseCase) TabulateSlot(ctx context.Context, postID uint64, slotID uint8) NotifySummary {
	ctx = logger.WithFields(context.WithoutCancel(ctx), map[string]interface{}{
		"post_id": postID,
		"slot_id": slotID,
	})

	total, err := uc.countSlotBets(ctx, postID, slotID)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("failed to count slot bets")
	}
	uc.recharge(ctx, total)

	result := settlementResolved
	err = uc.store.Update(ctx, func(tx domain.Tx) error {
		post, ok, err := tx.GetPost(postID)
		if err != nil {
			return err
		}
		if !ok {
			result = settlementSkipped
			return nil
		}

		req := domain.ResolveRequest{
			Instance: uc.cfg.Instance,
			PostID:   postID,
			SlotID:   slotID,
			Now:      uc.now(),
		}
		if err := uc.resolver.ResolveSlot(ctx, req, post, tx); err != nil {
			return fmt.Errorf("resolve slot: %w", err)
		}

		post.MarkSlotComputed(slotID)
		return tx.PutPost(post)
	})
	if err != nil {
		result = settlementFailed
		logger.Error(ctx).Err(err).Msg("slot settlement rolled back")
	}
	uc.metrics.Settlement(result)

	logger.Info(ctx).
		Str("result", result).
		Uint64("total_bets", total).
		Msg("slot tabulated")

	return uc.InformParticipants(ctx, postID, slotID)
}

func (uc *SettlementUseCase) countSlotBets(ctx context.Context, postID uint64, slotID uint8) (uint64, error) {
	var total uint64
	err := uc.store.View(ctx, func(tx domain.Tx) error {
		rooms, err := tx.RoomsInRange(domain.RoomsOfSlot(postID, slotID))
		if err != nil {
			return err
		}
		for _, room := range rooms {
			total = saturatingAdd(total, room.TotalBets())
		}
		return nil
	})
	return total, err
}

// RechargeUnits is totalBets * UnitCostPerBet, saturating at MaxUint64.
func RechargeUnits(totalBets uint64) uint64 {
	hi, lo := bits.Mul64(totalBets, UnitCostPerBet)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// recharge asks the allocator once for the cost of the coming notification
// pass. It is best effort: failures are logged and never retried here.
func (uc *SettlementUseCase) recharge(ctx context.Context, totalBets uint64) {
	units := RechargeUnits(totalBets)
	if uc.allocator == nil {
		return
	}

	err := uc.allocator.RequestCycles(ctx, units)
	uc.metrics.Recharge(units, err == nil)
	if err != nil {
		logger.Warn(ctx).
			Err(err).
			Uint64("units", units).
			Msg("resource top-up failed, continuing settlement")
		return
	}
	logger.Debug(ctx).Uint64("units", units).Msg("resource top-up requested")
}

type notifyUnit struct {
	betID    domain.GlobalBetID
	instance string
	outcome  domain.BetOutcomeForBetMaker
}

// InformParticipants sends every resolved bet of the slot its outcome and
// records the delivery status on the bet. Bets of ongoing rooms are skipped.
// Bets already informed are sent again. The pass always drains: caller
// cancellation is ignored and each remote call is bounded only by
// NotifyTimeout.
func (uc *SettlementUseCase) InformParticipants(ctx context.Context, postID uint64, slotID uint8) NotifySummary {
	ctx = context.WithoutCancel(ctx)
	var summary NotifySummary

	units, err := uc.collectNotifications(ctx, postID, slotID)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("failed to load bets to inform")
		return summary
	}
	if len(units) == 0 {
		return summary
	}

	tasks := make([]taskrunner.Task[struct{}], 0, len(units))
	for _, u := range units {
		u := u
		tasks = append(tasks, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, uc.informOne(ctx, postID, u)
		})
	}

	taskrunner.Run(ctx, tasks, NotifyConcurrency, func(r taskrunner.Result[struct{}]) {
		summary.Attempted++
		if r.Err != nil {
			summary.Failed++
			return
		}
		summary.Succeeded++
	}, taskrunner.Never)

	logger.Info(ctx).
		Int("attempted", summary.Attempted).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("participants informed")
	return summary
}

func (uc *SettlementUseCase) collectNotifications(ctx context.Context, postID uint64, slotID uint8) ([]notifyUnit, error) {
	var units []notifyUnit
	err := uc.store.View(ctx, func(tx domain.Tx) error {
		if _, ok, err := tx.GetPost(postID); err != nil || !ok {
			return err
		}

		rooms, err := tx.RoomsInRange(domain.RoomsOfSlot(postID, slotID))
		if err != nil {
			return err
		}
		for _, room := range rooms {
			bets, err := tx.BetsInRoom(room.ID)
			if err != nil {
				return err
			}
			for _, bet := range bets {
				outcome := domain.OutcomeForBetMaker(room.Outcome, bet.Direction, bet.Payout)
				if outcome.Kind == domain.OutcomeAwaitingResult {
					continue
				}
				units = append(units, notifyUnit{
					betID:    bet.ID,
					instance: bet.BetMakerInstance,
					outcome:  outcome,
				})
			}
		}
		return nil
	})
	return units, err
}

// informOne makes the remote call and writes the status back. The returned
// error is the remote call's, a failed status write is only logged.
func (uc *SettlementUseCase) informOne(ctx context.Context, postID uint64, u notifyUnit) error {
	start := time.Now()
	callErr := uc.callNotifier(ctx, postID, u)
	uc.metrics.Notification(time.Since(start), callErr == nil)

	status := domain.Informed()
	if callErr != nil {
		status = domain.FailedStatus(fmt.Sprintf("Informing bet maker instance %s failed: %v", u.instance, callErr))
		logger.Warn(ctx).
			Err(callErr).
			Str("bet_id", u.betID.String()).
			Str("instance", u.instance).
			Msg("failed to inform bet maker")
	}

	// The bet may have changed or vanished while the call was in flight.
	err := uc.store.Update(ctx, func(tx domain.Tx) error {
		bet, ok, err := tx.GetBet(u.betID)
		if err != nil || !ok {
			return err
		}
		bet.InformedStatus = status
		return tx.PutBet(bet)
	})
	if err != nil {
		logger.Error(ctx).Err(err).Str("bet_id", u.betID.String()).Msg("failed to record informed status")
	}
	return callErr
}

func (uc *SettlementUseCase) callNotifier(ctx context.Context, postID uint64, u notifyUnit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", taskrunner.ErrTaskPanicked, r)
		}
	}()

	if uc.cfg.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.NotifyTimeout)
		defer cancel()
	}
	return uc.notifier.ReceiveBetWinnings(ctx, u.instance, postID, u.outcome)
}

// ListSlotBets returns every bet of the slot in key order.
func (uc *SettlementUseCase) ListSlotBets(ctx context.Context, postID uint64, slotID uint8) ([]BetStatus, error) {
	var out []BetStatus
	err := uc.store.View(ctx, func(tx domain.Tx) error {
		rooms, err := tx.RoomsInRange(domain.RoomsOfSlot(postID, slotID))
		if err != nil {
			return err
		}
		for _, room := range rooms {
			bets, err := tx.BetsInRoom(room.ID)
			if err != nil {
				return err
			}
			for _, bet := range bets {
				out = append(out, BetStatus{
					Bet:         bet,
					RoomOutcome: room.Outcome,
					Outcome:     domain.OutcomeForBetMaker(room.Outcome, bet.Direction, bet.Payout),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list bets of post %d slot %d: %w", postID, slotID, err)
	}
	return out, nil
}

// NoopResolver leaves rooms and bets untouched. It is the default when no
// payout engine is wired in.
type NoopResolver struct{}

func (NoopResolver) ResolveSlot(ctx context.Context, req domain.ResolveRequest, post *domain.Post, tx domain.Tx) error {
	logger.Debug(ctx).Msg("no slot resolver configured, outcomes left as stored")
	return nil
}

func saturatingAdd(a, b uint64) uint64 {
	if math.MaxUint64-a < b {
		return math.MaxUint64
	}
	return a + b
}
