package domain

// Bet is a single stake by one bettor inside one room.
type Bet struct {
	ID               GlobalBetID
	Direction        Direction
	Amount           uint64
	BetMakerInstance string // gRPC address of the bettor's own service instance
	Payout           Payout
	InformedStatus   InformedStatus
}

// RoomID returns the owning room.
func (b *Bet) RoomID() GlobalRoomID {
	return b.ID.Room
}

func (b *Bet) Clone() *Bet {
	c := *b
	return &c
}
