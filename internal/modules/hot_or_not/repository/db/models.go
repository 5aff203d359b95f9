package db

import (
	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
)

// PostRecord is a post row; pending slots live in PostSlotRecord.
type PostRecord struct {
	PostID uint64 `gorm:"primaryKey;autoIncrement:false"`
}

func (PostRecord) TableName() string {
	return "hot_or_not_posts"
}

// PostSlotRecord marks one slot of a post as still awaiting settlement.
type PostSlotRecord struct {
	PostID uint64 `gorm:"primaryKey;autoIncrement:false"`
	SlotID uint8  `gorm:"primaryKey;autoIncrement:false"`
}

func (PostSlotRecord) TableName() string {
	return "hot_or_not_post_slots"
}

// RoomRecord is keyed by (post_id, slot_id, room_id) so the primary key
// index serves the slot range scan.
type RoomRecord struct {
	PostID       uint64 `gorm:"primaryKey;autoIncrement:false"`
	SlotID       uint8  `gorm:"primaryKey;autoIncrement:false"`
	RoomID       uint64 `gorm:"primaryKey;autoIncrement:false"`
	TotalHotBets uint64 `gorm:"not null"`
	TotalNotBets uint64 `gorm:"not null"`
	TotalAmount  uint64 `gorm:"not null"`
	Outcome      int    `gorm:"type:int;not null"`
}

func (RoomRecord) TableName() string {
	return "hot_or_not_rooms"
}

// BetRecord is keyed by (post_id, slot_id, room_id, bet_id).
type BetRecord struct {
	PostID           uint64 `gorm:"primaryKey;autoIncrement:false"`
	SlotID           uint8  `gorm:"primaryKey;autoIncrement:false"`
	RoomID           uint64 `gorm:"primaryKey;autoIncrement:false"`
	BetID            uint64 `gorm:"primaryKey;autoIncrement:false"`
	Direction        int    `gorm:"type:int;not null"`
	Amount           uint64 `gorm:"not null"`
	BetMakerInstance string `gorm:"type:varchar(255);not null"`
	PayoutCalculated bool   `gorm:"not null"`
	PayoutAmount     uint64 `gorm:"not null"`
	InformedKind     int    `gorm:"type:int;not null;index:idx_hot_or_not_bets_informed"`
	InformedReason   string `gorm:"type:varchar(1024)"`
}

func (BetRecord) TableName() string {
	return "hot_or_not_bets"
}

// TokenBalanceRecord is a single-row table.
type TokenBalanceRecord struct {
	ID                  uint8  `gorm:"primaryKey;autoIncrement:false"`
	UtilityTokenBalance uint64 `gorm:"not null"`
}

func (TokenBalanceRecord) TableName() string {
	return "hot_or_not_token_balances"
}

const tokenBalanceRowID = 1

func roomFromRecord(r *RoomRecord) *domain.Room {
	return &domain.Room{
		ID:           domain.GlobalRoomID{PostID: r.PostID, SlotID: r.SlotID, RoomID: r.RoomID},
		TotalHotBets: r.TotalHotBets,
		TotalNotBets: r.TotalNotBets,
		TotalAmount:  r.TotalAmount,
		Outcome:      domain.RoomOutcome(r.Outcome),
	}
}

func roomToRecord(r *domain.Room) *RoomRecord {
	return &RoomRecord{
		PostID:       r.ID.PostID,
		SlotID:       r.ID.SlotID,
		RoomID:       r.ID.RoomID,
		TotalHotBets: r.TotalHotBets,
		TotalNotBets: r.TotalNotBets,
		TotalAmount:  r.TotalAmount,
		Outcome:      int(r.Outcome),
	}
}

func betFromRecord(r *BetRecord) *domain.Bet {
	return &domain.Bet{
		ID: domain.GlobalBetID{
			Room:  domain.GlobalRoomID{PostID: r.PostID, SlotID: r.SlotID, RoomID: r.RoomID},
			BetID: r.BetID,
		},
		Direction:        domain.Direction(r.Direction),
		Amount:           r.Amount,
		BetMakerInstance: r.BetMakerInstance,
		Payout:           domain.Payout{Calculated: r.PayoutCalculated, Amount: r.PayoutAmount},
		InformedStatus:   domain.InformedStatus{Kind: domain.InformedKind(r.InformedKind), Reason: r.InformedReason},
	}
}

func betToRecord(b *domain.Bet) *BetRecord {
	return &BetRecord{
		PostID:           b.ID.Room.PostID,
		SlotID:           b.ID.Room.SlotID,
		RoomID:           b.ID.Room.RoomID,
		BetID:            b.ID.BetID,
		Direction:        int(b.Direction),
		Amount:           b.Amount,
		BetMakerInstance: b.BetMakerInstance,
		PayoutCalculated: b.Payout.Calculated,
		PayoutAmount:     b.Payout.Amount,
		InformedKind:     int(b.InformedStatus.Kind),
		InformedReason:   b.InformedStatus.Reason,
	}
}
