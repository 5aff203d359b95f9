// Package db provides the gorm-backed store for the Hot/Not module.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
)

// ErrReadOnly is returned when a View transaction tries to write.
var ErrReadOnly = errors.New("write in read-only transaction")

// Store implements domain.Store on top of gorm. Update runs inside one SQL
// transaction; range scans compare row values so the composite primary key
// order matches domain.GlobalRoomID ordering.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the Hot/Not tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&PostRecord{},
		&PostSlotRecord{},
		&RoomRecord{},
		&BetRecord{},
		&TokenBalanceRecord{},
	)
}

// View runs fn in a read-only SQL transaction so multi-statement scans see
// one consistent state.
func (s *Store) View(ctx context.Context, fn func(tx domain.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&tx{db: gtx, readOnly: true})
	}, &sql.TxOptions{ReadOnly: true})
}

func (s *Store) Update(ctx context.Context, fn func(tx domain.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&tx{db: gtx})
	})
}

type tx struct {
	db       *gorm.DB
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *tx) upsert(value interface{}) error {
	return t.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(value).Error
}

func (t *tx) GetPost(postID uint64) (*domain.Post, bool, error) {
	var rec PostRecord
	if err := t.db.Where("post_id = ?", postID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get post %d: %w", postID, err)
	}

	var slots []PostSlotRecord
	if err := t.db.Where("post_id = ?", postID).Order("slot_id").Find(&slots).Error; err != nil {
		return nil, false, fmt.Errorf("get pending slots of post %d: %w", postID, err)
	}
	post := domain.NewPost(postID)
	for _, s := range slots {
		post.SlotsLeftToBeComputed[s.SlotID] = struct{}{}
	}
	return post, true, nil
}

func (t *tx) PutPost(post *domain.Post) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := t.upsert(&PostRecord{PostID: post.ID}); err != nil {
		return fmt.Errorf("put post %d: %w", post.ID, err)
	}
	if err := t.db.Where("post_id = ?", post.ID).Delete(&PostSlotRecord{}).Error; err != nil {
		return fmt.Errorf("clear pending slots of post %d: %w", post.ID, err)
	}
	pending := post.PendingSlots()
	if len(pending) == 0 {
		return nil
	}
	rows := make([]PostSlotRecord, 0, len(pending))
	for _, s := range pending {
		rows = append(rows, PostSlotRecord{PostID: post.ID, SlotID: s})
	}
	if err := t.db.Create(&rows).Error; err != nil {
		return fmt.Errorf("put pending slots of post %d: %w", post.ID, err)
	}
	return nil
}

func (t *tx) DeletePost(postID uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := t.db.Where("post_id = ?", postID).Delete(&PostSlotRecord{}).Error; err != nil {
		return fmt.Errorf("delete pending slots of post %d: %w", postID, err)
	}
	if err := t.db.Where("post_id = ?", postID).Delete(&PostRecord{}).Error; err != nil {
		return fmt.Errorf("delete post %d: %w", postID, err)
	}
	return nil
}

func (t *tx) GetRoom(id domain.GlobalRoomID) (*domain.Room, bool, error) {
	var rec RoomRecord
	err := t.db.Where("post_id = ? AND slot_id = ? AND room_id = ?", id.PostID, id.SlotID, id.RoomID).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get room %s: %w", id, err)
	}
	return roomFromRecord(&rec), true, nil
}

func (t *tx) PutRoom(room *domain.Room) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := t.upsert(roomToRecord(room)); err != nil {
		return fmt.Errorf("put room %s: %w", room.ID, err)
	}
	return nil
}

func (t *tx) RoomsInRange(r domain.SlotRange) ([]*domain.Room, error) {
	q := t.db.Where("(post_id, slot_id, room_id) >= (?, ?, ?)", r.Start.PostID, r.Start.SlotID, r.Start.RoomID)
	if r.Unbounded {
		q = q.Where("post_id = ?", r.Start.PostID)
	} else {
		q = q.Where("(post_id, slot_id, room_id) < (?, ?, ?)", r.End.PostID, r.End.SlotID, r.End.RoomID)
	}

	var recs []RoomRecord
	if err := q.Order("post_id, slot_id, room_id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("scan rooms from %s: %w", r.Start, err)
	}
	out := make([]*domain.Room, 0, len(recs))
	for i := range recs {
		out = append(out, roomFromRecord(&recs[i]))
	}
	return out, nil
}

func (t *tx) GetBet(id domain.GlobalBetID) (*domain.Bet, bool, error) {
	var rec BetRecord
	err := t.db.Where("post_id = ? AND slot_id = ? AND room_id = ? AND bet_id = ?",
		id.Room.PostID, id.Room.SlotID, id.Room.RoomID, id.BetID).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get bet %s: %w", id, err)
	}
	return betFromRecord(&rec), true, nil
}

func (t *tx) PutBet(bet *domain.Bet) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := t.upsert(betToRecord(bet)); err != nil {
		return fmt.Errorf("put bet %s: %w", bet.ID, err)
	}
	return nil
}

func (t *tx) DeleteBet(id domain.GlobalBetID) error {
	if err := t.writable(); err != nil {
		return err
	}
	err := t.db.Where("post_id = ? AND slot_id = ? AND room_id = ? AND bet_id = ?",
		id.Room.PostID, id.Room.SlotID, id.Room.RoomID, id.BetID).
		Delete(&BetRecord{}).Error
	if err != nil {
		return fmt.Errorf("delete bet %s: %w", id, err)
	}
	return nil
}

func (t *tx) BetsInRoom(room domain.GlobalRoomID) ([]*domain.Bet, error) {
	var recs []BetRecord
	err := t.db.Where("post_id = ? AND slot_id = ? AND room_id = ?", room.PostID, room.SlotID, room.RoomID).
		Order("bet_id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("scan bets of room %s: %w", room, err)
	}
	out := make([]*domain.Bet, 0, len(recs))
	for i := range recs {
		out = append(out, betFromRecord(&recs[i]))
	}
	return out, nil
}

func (t *tx) TokenBalance() (*domain.TokenBalance, error) {
	var rec TokenBalanceRecord
	if err := t.db.Where("id = ?", tokenBalanceRowID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &domain.TokenBalance{}, nil
		}
		return nil, fmt.Errorf("get token balance: %w", err)
	}
	return &domain.TokenBalance{UtilityTokenBalance: rec.UtilityTokenBalance}, nil
}

func (t *tx) PutTokenBalance(balance *domain.TokenBalance) error {
	if err := t.writable(); err != nil {
		return err
	}
	rec := &TokenBalanceRecord{ID: tokenBalanceRowID, UtilityTokenBalance: balance.UtilityTokenBalance}
	if err := t.upsert(rec); err != nil {
		return fmt.Errorf("put token balance: %w", err)
	}
	return nil
}
