package domain

import "context"

// Store owns the posts, rooms, bets and token ledger of one instance.
// All access happens inside a scoped transaction; entities handed out by a
// Tx are copies and must be written back with the matching Put call.
type Store interface {
	// View runs fn with read-only access.
	View(ctx context.Context, fn func(tx Tx) error) error
	// Update runs fn with exclusive access. Writes made by fn are applied
	// together, or not at all when fn returns an error.
	Update(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes point lookups, point updates and ordered range scans.
// A missing entity is reported as ok=false, never as an error.
type Tx interface {
	GetPost(postID uint64) (*Post, bool, error)
	PutPost(post *Post) error
	DeletePost(postID uint64) error

	GetRoom(id GlobalRoomID) (*Room, bool, error)
	PutRoom(room *Room) error
	// RoomsInRange returns the rooms inside r in key order.
	RoomsInRange(r SlotRange) ([]*Room, error)

	GetBet(id GlobalBetID) (*Bet, bool, error)
	PutBet(bet *Bet) error
	DeleteBet(id GlobalBetID) error
	// BetsInRoom returns the bets whose room component equals room, in key order.
	BetsInRoom(room GlobalRoomID) ([]*Bet, error)

	TokenBalance() (*TokenBalance, error)
	PutTokenBalance(balance *TokenBalance) error
}
