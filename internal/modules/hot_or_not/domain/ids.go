// Package domain holds the Hot/Not betting entities, their ordered keys and
// the contracts the settlement use cases depend on.
package domain

import (
	"cmp"
	"fmt"
	"math"
)

// FirstRoomID is the lowest room sequence used inside a slot.
const FirstRoomID uint64 = 1

// GlobalRoomID identifies a room as (post, slot, room sequence).
// Keys are ordered lexicographically in that field order.
type GlobalRoomID struct {
	PostID uint64 `json:"post_id"`
	SlotID uint8  `json:"slot_id"`
	RoomID uint64 `json:"room_id"`
}

// Compare returns -1, 0 or +1 comparing (PostID, SlotID, RoomID).
func (id GlobalRoomID) Compare(other GlobalRoomID) int {
	if c := cmp.Compare(id.PostID, other.PostID); c != 0 {
		return c
	}
	if c := cmp.Compare(id.SlotID, other.SlotID); c != 0 {
		return c
	}
	return cmp.Compare(id.RoomID, other.RoomID)
}

// Less reports whether id sorts before other.
func (id GlobalRoomID) Less(other GlobalRoomID) bool {
	return id.Compare(other) < 0
}

func (id GlobalRoomID) String() string {
	return fmt.Sprintf("%d/%d/%d", id.PostID, id.SlotID, id.RoomID)
}

// GlobalBetID identifies a bet inside a room. Bets sort by room first, so
// every bet of one room occupies a contiguous key range.
type GlobalBetID struct {
	Room  GlobalRoomID `json:"room"`
	BetID uint64       `json:"bet_id"`
}

// Compare returns -1, 0 or +1 comparing (Room, BetID).
func (id GlobalBetID) Compare(other GlobalBetID) int {
	if c := id.Room.Compare(other.Room); c != 0 {
		return c
	}
	return cmp.Compare(id.BetID, other.BetID)
}

// Less reports whether id sorts before other.
func (id GlobalBetID) Less(other GlobalBetID) bool {
	return id.Compare(other) < 0
}

func (id GlobalBetID) String() string {
	return fmt.Sprintf("%s#%d", id.Room, id.BetID)
}

// SlotRange is the half-open key interval [Start, End) covering every room
// of one (post, slot). For the last representable slot there is no
// (post, slot+1, 1) key, so the range is left open to the end of the post
// instead of wrapping around to slot 0.
type SlotRange struct {
	Start     GlobalRoomID
	End       GlobalRoomID
	Unbounded bool
}

// RoomsOfSlot returns [(post, slot, 1), (post, slot+1, 1)).
func RoomsOfSlot(postID uint64, slotID uint8) SlotRange {
	r := SlotRange{Start: GlobalRoomID{PostID: postID, SlotID: slotID, RoomID: FirstRoomID}}
	if slotID == math.MaxUint8 {
		r.Unbounded = true
		return r
	}
	r.End = GlobalRoomID{PostID: postID, SlotID: slotID + 1, RoomID: FirstRoomID}
	return r
}

// Contains reports whether id falls inside the range.
func (r SlotRange) Contains(id GlobalRoomID) bool {
	if id.Less(r.Start) {
		return false
	}
	if r.Unbounded {
		return id.PostID == r.Start.PostID
	}
	return id.Less(r.End)
}
