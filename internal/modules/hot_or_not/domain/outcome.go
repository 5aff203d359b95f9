package domain

import (
	"encoding/json"
	"fmt"
)

// RoomOutcome is the resolved result of a room.
type RoomOutcome int

const (
	RoomOutcomeOngoing RoomOutcome = iota
	RoomOutcomeDraw
	RoomOutcomeHotWon
	RoomOutcomeNotWon
)

func (o RoomOutcome) String() string {
	switch o {
	case RoomOutcomeOngoing:
		return "ongoing"
	case RoomOutcomeDraw:
		return "draw"
	case RoomOutcomeHotWon:
		return "hot_won"
	case RoomOutcomeNotWon:
		return "not_won"
	default:
		return fmt.Sprintf("room_outcome(%d)", int(o))
	}
}

// Direction is the side a bettor picked.
type Direction int

const (
	DirectionHot Direction = iota
	DirectionNot
)

func (d Direction) String() string {
	switch d {
	case DirectionHot:
		return "hot"
	case DirectionNot:
		return "not"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Payout is Uncalculated until the resolver sets an amount.
type Payout struct {
	Calculated bool   `json:"calculated"`
	Amount     uint64 `json:"amount"`
}

// Uncalculated is the zero payout.
func Uncalculated() Payout { return Payout{} }

// Calculated returns a resolved payout.
func Calculated(amount uint64) Payout { return Payout{Calculated: true, Amount: amount} }

// AmountOrZero substitutes 0 for a payout that is still Uncalculated.
func (p Payout) AmountOrZero() uint64 {
	if !p.Calculated {
		return 0
	}
	return p.Amount
}

// InformedKind tags an InformedStatus.
type InformedKind int

const (
	InformedUnset InformedKind = iota
	InformedSuccessfully
	InformedFailed
)

func (k InformedKind) String() string {
	switch k {
	case InformedUnset:
		return "unset"
	case InformedSuccessfully:
		return "informed_successfully"
	case InformedFailed:
		return "failed"
	default:
		return fmt.Sprintf("informed_kind(%d)", int(k))
	}
}

// InformedStatus records the last delivery attempt of a bet outcome.
type InformedStatus struct {
	Kind   InformedKind `json:"kind"`
	Reason string       `json:"reason,omitempty"`
}

// Informed is the successful delivery status.
func Informed() InformedStatus { return InformedStatus{Kind: InformedSuccessfully} }

// FailedStatus is a failed delivery with a human readable reason.
func FailedStatus(reason string) InformedStatus {
	return InformedStatus{Kind: InformedFailed, Reason: reason}
}

func (s InformedStatus) String() string {
	if s.Kind == InformedFailed {
		return "failed: " + s.Reason
	}
	return s.Kind.String()
}

// OutcomeKind tags a BetOutcomeForBetMaker.
type OutcomeKind int

const (
	OutcomeAwaitingResult OutcomeKind = iota
	OutcomeWon
	OutcomeLost
	OutcomeDraw
)

var outcomeKindNames = map[OutcomeKind]string{
	OutcomeAwaitingResult: "awaiting_result",
	OutcomeWon:            "won",
	OutcomeLost:           "lost",
	OutcomeDraw:           "draw",
}

func (k OutcomeKind) String() string {
	if name, ok := outcomeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("outcome_kind(%d)", int(k))
}

// MarshalText encodes the kind by name so wire payloads stay readable.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	name, ok := outcomeKindNames[k]
	if !ok {
		return nil, fmt.Errorf("%w: kind %d", ErrInvalidOutcome, int(k))
	}
	return []byte(name), nil
}

// UnmarshalText is the inverse of MarshalText.
func (k *OutcomeKind) UnmarshalText(text []byte) error {
	for kind, name := range outcomeKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("%w: kind %q", ErrInvalidOutcome, string(text))
}

// BetOutcomeForBetMaker is what a bettor is told about their bet.
// Amount is only meaningful for Won and Draw.
type BetOutcomeForBetMaker struct {
	Kind   OutcomeKind `json:"kind"`
	Amount uint64      `json:"amount,omitempty"`
}

func AwaitingResult() BetOutcomeForBetMaker { return BetOutcomeForBetMaker{Kind: OutcomeAwaitingResult} }
func Won(amount uint64) BetOutcomeForBetMaker {
	return BetOutcomeForBetMaker{Kind: OutcomeWon, Amount: amount}
}
func Lost() BetOutcomeForBetMaker { return BetOutcomeForBetMaker{Kind: OutcomeLost} }
func Draw(amount uint64) BetOutcomeForBetMaker {
	return BetOutcomeForBetMaker{Kind: OutcomeDraw, Amount: amount}
}

func (o BetOutcomeForBetMaker) String() string {
	switch o.Kind {
	case OutcomeWon, OutcomeDraw:
		return fmt.Sprintf("%s(%d)", o.Kind, o.Amount)
	default:
		return o.Kind.String()
	}
}

// Validate rejects kinds outside the known set and amounts on kinds that
// carry none.
func (o BetOutcomeForBetMaker) Validate() error {
	switch o.Kind {
	case OutcomeWon, OutcomeDraw:
		return nil
	case OutcomeAwaitingResult, OutcomeLost:
		if o.Amount != 0 {
			return fmt.Errorf("%w: %s carries amount %d", ErrInvalidOutcome, o.Kind, o.Amount)
		}
		return nil
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidOutcome, int(o.Kind))
	}
}

// UnmarshalJSON decodes and validates an outcome.
func (o *BetOutcomeForBetMaker) UnmarshalJSON(data []byte) error {
	type plain BetOutcomeForBetMaker
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	out := BetOutcomeForBetMaker(p)
	if err := out.Validate(); err != nil {
		return err
	}
	*o = out
	return nil
}

// OutcomeForBetMaker derives a bettor's outcome from their room's outcome:
//
//	Ongoing, any     -> AwaitingResult
//	Draw,    any     -> Draw(payout or 0)
//	HotWon,  Hot/Not -> Won(payout or 0) / Lost
//	NotWon,  Not/Hot -> Won(payout or 0) / Lost
func OutcomeForBetMaker(room RoomOutcome, direction Direction, payout Payout) BetOutcomeForBetMaker {
	switch room {
	case RoomOutcomeDraw:
		return Draw(payout.AmountOrZero())
	case RoomOutcomeHotWon:
		if direction == DirectionHot {
			return Won(payout.AmountOrZero())
		}
		return Lost()
	case RoomOutcomeNotWon:
		if direction == DirectionNot {
			return Won(payout.AmountOrZero())
		}
		return Lost()
	default:
		return AwaitingResult()
	}
}
