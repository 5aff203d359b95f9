// Package grpc exposes the Hot/Not use cases over gRPC and calls other
// instances and the resource allocator.
package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/usecase"
	"github.com/frankieli/hot_or_not/pkg/logger"
)

// Handler implements ParticipantServiceServer
type Handler struct {
	settlement  *usecase.SettlementUseCase
	participant *usecase.ParticipantUseCase
}

var _ ParticipantServiceServer = (*Handler)(nil)

func NewHandler(settlement *usecase.SettlementUseCase, participant *usecase.ParticipantUseCase) *Handler {
	return &Handler{
		settlement:  settlement,
		participant: participant,
	}
}

func (h *Handler) ReceiveBetWinnings(ctx context.Context, req *ReceiveBetWinningsReq) (*Empty, error) {
	outcome, err := req.Outcome.toDomain()
	if err != nil {
		return nil, toStatus(err)
	}
	if err := h.participant.ReceiveBetWinnings(ctx, req.PostID, outcome); err != nil {
		logger.Error(ctx).Err(err).Uint64("post_id", req.PostID).Msg("ReceiveBetWinnings failed")
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (h *Handler) GetUtilityTokenBalance(ctx context.Context, _ *Empty) (*TokenBalanceResp, error) {
	balance, err := h.participant.GetUtilityTokenBalance(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TokenBalanceResp{UtilityTokenBalance: balance}, nil
}

func (h *Handler) TabulateSlot(ctx context.Context, req *SlotReq) (*NotifySummaryResp, error) {
	slotID, err := req.slot()
	if err != nil {
		return nil, toStatus(err)
	}
	return summaryResp(h.settlement.TabulateSlot(ctx, req.PostID, slotID)), nil
}

func (h *Handler) InformParticipants(ctx context.Context, req *SlotReq) (*NotifySummaryResp, error) {
	slotID, err := req.slot()
	if err != nil {
		return nil, toStatus(err)
	}
	return summaryResp(h.settlement.InformParticipants(ctx, req.PostID, slotID)), nil
}

func summaryResp(s usecase.NotifySummary) *NotifySummaryResp {
	return &NotifySummaryResp{Attempted: s.Attempted, Succeeded: s.Succeeded, Failed: s.Failed}
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidOutcome), errors.Is(err, domain.ErrInvalidSlot):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
