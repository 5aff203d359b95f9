package grpc

import (
	"context"
	"fmt"

	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
	"github.com/frankieli/hot_or_not/pkg/grpc_client/base"
)

// ParticipantClient calls the ParticipantService of other instances. The
// instance address is the gRPC target of each call.
type ParticipantClient struct {
	base *base.BaseClient
}

var _ domain.ParticipantNotifier = (*ParticipantClient)(nil)

func NewParticipantClient(c *base.BaseClient) *ParticipantClient {
	return &ParticipantClient{base: c}
}

func (c *ParticipantClient) ReceiveBetWinnings(ctx context.Context, instance string, postID uint64, outcome domain.BetOutcomeForBetMaker) error {
	req := &ReceiveBetWinningsReq{PostID: postID, Outcome: outcomeToMsg(outcome)}
	if err := c.base.Invoke(ctx, instance, MethodReceiveBetWinnings, req, &Empty{}); err != nil {
		return fmt.Errorf("rpc ReceiveBetWinnings failed: %w", err)
	}
	return nil
}

func (c *ParticipantClient) GetUtilityTokenBalance(ctx context.Context, instance string) (uint64, error) {
	resp := &TokenBalanceResp{}
	if err := c.base.Invoke(ctx, instance, MethodGetUtilityTokenBalance, &Empty{}, resp); err != nil {
		return 0, fmt.Errorf("rpc GetUtilityTokenBalance failed: %w", err)
	}
	return resp.UtilityTokenBalance, nil
}

func (c *ParticipantClient) TabulateSlot(ctx context.Context, instance string, postID uint64, slotID uint8) (*NotifySummaryResp, error) {
	resp := &NotifySummaryResp{}
	req := &SlotReq{PostID: postID, SlotID: uint32(slotID)}
	if err := c.base.Invoke(ctx, instance, MethodTabulateSlot, req, resp); err != nil {
		return nil, fmt.Errorf("rpc TabulateSlot failed: %w", err)
	}
	return resp, nil
}

func (c *ParticipantClient) InformParticipants(ctx context.Context, instance string, postID uint64, slotID uint8) (*NotifySummaryResp, error) {
	resp := &NotifySummaryResp{}
	req := &SlotReq{PostID: postID, SlotID: uint32(slotID)}
	if err := c.base.Invoke(ctx, instance, MethodInformParticipants, req, resp); err != nil {
		return nil, fmt.Errorf("rpc InformParticipants failed: %w", err)
	}
	return resp, nil
}

// AllocatorClient asks the orchestrator at addr for resource units.
type AllocatorClient struct {
	base *base.BaseClient
	addr string
}

var _ domain.CyclesAllocator = (*AllocatorClient)(nil)

func NewAllocatorClient(c *base.BaseClient, addr string) *AllocatorClient {
	return &AllocatorClient{base: c, addr: addr}
}

func (c *AllocatorClient) RequestCycles(ctx context.Context, units uint64) error {
	if err := c.base.Invoke(ctx, c.addr, MethodRequestCycles, &RequestCyclesReq{Units: units}, &Empty{}); err != nil {
		return fmt.Errorf("rpc RequestCycles failed: %w", err)
	}
	return nil
}
