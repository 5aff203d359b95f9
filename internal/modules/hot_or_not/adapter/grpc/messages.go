package grpc

import (
	"fmt"
	"math"

	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
)

// Empty is the request or response of calls that carry nothing.
type Empty struct{}

// OutcomeMsg is the wire form of domain.BetOutcomeForBetMaker.
type OutcomeMsg struct {
	Kind   string `json:"kind"`
	Amount uint64 `json:"amount,omitempty"`
}

func outcomeToMsg(o domain.BetOutcomeForBetMaker) OutcomeMsg {
	return OutcomeMsg{Kind: o.Kind.String(), Amount: o.Amount}
}

func (m OutcomeMsg) toDomain() (domain.BetOutcomeForBetMaker, error) {
	var kind domain.OutcomeKind
	if err := kind.UnmarshalText([]byte(m.Kind)); err != nil {
		return domain.BetOutcomeForBetMaker{}, err
	}
	o := domain.BetOutcomeForBetMaker{Kind: kind, Amount: m.Amount}
	if err := o.Validate(); err != nil {
		return domain.BetOutcomeForBetMaker{}, err
	}
	return o, nil
}

type ReceiveBetWinningsReq struct {
	PostID  uint64     `json:"post_id"`
	Outcome OutcomeMsg `json:"outcome"`
}

type TokenBalanceResp struct {
	UtilityTokenBalance uint64 `json:"utility_token_balance"`
}

// SlotReq addresses one slot of a post. SlotID is wider than a slot id so
// out of range values can be rejected instead of truncated.
type SlotReq struct {
	PostID uint64 `json:"post_id"`
	SlotID uint32 `json:"slot_id"`
}

func (r *SlotReq) slot() (uint8, error) {
	if r.SlotID > math.MaxUint8 {
		return 0, fmt.Errorf("%w: %d", domain.ErrInvalidSlot, r.SlotID)
	}
	return uint8(r.SlotID), nil
}

type NotifySummaryResp struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type RequestCyclesReq struct {
	Units uint64 `json:"units"`
}
