package domain

// Room is a bucket of bets within a slot.
type Room struct {
	ID           GlobalRoomID
	TotalHotBets uint64
	TotalNotBets uint64
	TotalAmount  uint64
	Outcome      RoomOutcome
}

// TotalBets is the number of bets placed in the room on either side.
func (r *Room) TotalBets() uint64 {
	return r.TotalHotBets + r.TotalNotBets
}

// IsResolved reports whether the outcome left Ongoing.
func (r *Room) IsResolved() bool {
	return r.Outcome != RoomOutcomeOngoing
}

func (r *Room) Clone() *Room {
	c := *r
	return &c
}
