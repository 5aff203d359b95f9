package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
	"github.com/frankieli/hot_or_not/pkg/logger"
	"github.com/frankieli/hot_or_not/pkg/metrics"
)

// ParticipantUseCase is the bettor side: it accepts outcomes pushed by the
// instance that settled a slot.
type ParticipantUseCase struct {
	store   domain.Store
	inbox   domain.OutcomeInbox
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewParticipantUseCase(store domain.Store, inbox domain.OutcomeInbox, m *metrics.Metrics) *ParticipantUseCase {
	return &ParticipantUseCase{
		store:   store,
		inbox:   inbox,
		metrics: m,
		now:     time.Now,
	}
}

// ReceiveBetWinnings credits Won and Draw amounts to the token balance and
// records the outcome in the inbox. Deliveries are not deduplicated, so a
// resent outcome is credited again.
func (uc *ParticipantUseCase) ReceiveBetWinnings(ctx context.Context, postID uint64, outcome domain.BetOutcomeForBetMaker) error {
	if err := outcome.Validate(); err != nil {
		return err
	}

	if amount := creditedAmount(outcome); amount > 0 {
		err := uc.store.Update(ctx, func(tx domain.Tx) error {
			balance, err := tx.TokenBalance()
			if err != nil {
				return err
			}
			balance.Credit(amount)
			return tx.PutTokenBalance(balance)
		})
		if err != nil {
			return fmt.Errorf("credit winnings of post %d: %w", postID, err)
		}
	}
	uc.metrics.OutcomeReceived(outcome.Kind.String())

	// The credit is committed at this point, an inbox failure is only logged.
	received := domain.ReceivedOutcome{PostID: postID, Outcome: outcome, ReceivedAt: uc.now()}
	if err := uc.inbox.Append(ctx, received); err != nil {
		logger.Warn(ctx).Err(err).Uint64("post_id", postID).Msg("failed to record received outcome")
	}

	logger.Info(ctx).
		Uint64("post_id", postID).
		Str("outcome", outcome.String()).
		Msg("bet outcome received")
	return nil
}

func creditedAmount(o domain.BetOutcomeForBetMaker) uint64 {
	switch o.Kind {
	case domain.OutcomeWon, domain.OutcomeDraw:
		return o.Amount
	default:
		return 0
	}
}

// ListReceivedOutcomes returns up to limit received outcomes, newest first.
func (uc *ParticipantUseCase) ListReceivedOutcomes(ctx context.Context, limit int) ([]domain.ReceivedOutcome, error) {
	out, err := uc.inbox.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list received outcomes: %w", err)
	}
	return out, nil
}

func (uc *ParticipantUseCase) GetUtilityTokenBalance(ctx context.Context) (uint64, error) {
	var amount uint64
	err := uc.store.View(ctx, func(tx domain.Tx) error {
		balance, err := tx.TokenBalance()
		if err != nil {
			return err
		}
		amount = balance.UtilityTokenBalance
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("get token balance: %w", err)
	}
	return amount, nil
}
