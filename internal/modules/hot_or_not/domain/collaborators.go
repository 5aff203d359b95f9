package domain

import (
	"context"
	"time"
)

// ResolveRequest carries what a slot resolver needs besides store access.
type ResolveRequest struct {
	Instance string // address of this instance
	PostID   uint64
	SlotID   uint8
	Now      time.Time
}

// SlotResolver computes room outcomes and bet payouts for one slot. It gets
// mutable access to the rooms, bets and token ledger through tx; everything
// it writes commits together with the slot being marked as computed.
// Calling it twice for an already resolved slot is not guaranteed to be safe.
type SlotResolver interface {
	ResolveSlot(ctx context.Context, req ResolveRequest, post *Post, tx Tx) error
}

// ResolverFunc adapts a function to SlotResolver.
type ResolverFunc func(ctx context.Context, req ResolveRequest, post *Post, tx Tx) error

func (f ResolverFunc) ResolveSlot(ctx context.Context, req ResolveRequest, post *Post, tx Tx) error {
	return f(ctx, req, post, tx)
}

// CyclesAllocator grants resource units on a best-effort basis.
type CyclesAllocator interface {
	RequestCycles(ctx context.Context, units uint64) error
}

// ParticipantNotifier delivers an outcome to a bettor's instance. Delivery
// is attempted at most once per call; a nil error is the only receipt.
type ParticipantNotifier interface {
	ReceiveBetWinnings(ctx context.Context, instance string, postID uint64, outcome BetOutcomeForBetMaker) error
}

// OutcomeInbox keeps the outcomes this instance has been told about.
type OutcomeInbox interface {
	Append(ctx context.Context, outcome ReceivedOutcome) error
	// List returns up to limit entries, newest first.
	List(ctx context.Context, limit int) ([]ReceivedOutcome, error)
}
