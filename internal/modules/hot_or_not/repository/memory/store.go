// Package memory provides memory-based repositories for the Hot/Not module.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/btree"

	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
)

// ErrReadOnly is returned when a View transaction tries to write.
var ErrReadOnly = errors.New("write in read-only transaction")

const degree = 32

// Store implements domain.Store with ordered in-memory B-trees.
// Update clones the trees up front (copy-on-write, O(1)) so a failed
// transaction can be rolled back by swapping the originals back in.
type Store struct {
	mu      sync.RWMutex
	posts   *btree.BTreeG[*domain.Post]
	rooms   *btree.BTreeG[*domain.Room]
	bets    *btree.BTreeG[*domain.Bet]
	balance domain.TokenBalance
}

// NewStore creates an empty memory store
func NewStore() *Store {
	return &Store{
		posts: btree.NewG(degree, func(a, b *domain.Post) bool { return a.ID < b.ID }),
		rooms: btree.NewG(degree, func(a, b *domain.Room) bool { return a.ID.Less(b.ID) }),
		bets:  btree.NewG(degree, func(a, b *domain.Bet) bool { return a.ID.Less(b.ID) }),
	}
}

func (s *Store) View(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{store: s, readOnly: true})
}

func (s *Store) Update(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, rooms, bets, balance := s.posts.Clone(), s.rooms.Clone(), s.bets.Clone(), s.balance
	if err := fn(&tx{store: s}); err != nil {
		s.posts, s.rooms, s.bets, s.balance = posts, rooms, bets, balance
		return err
	}
	return nil
}

// tx is only valid while the store lock taken by View/Update is held.
type tx struct {
	store    *Store
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *tx) GetPost(postID uint64) (*domain.Post, bool, error) {
	p, ok := t.store.posts.Get(&domain.Post{ID: postID})
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (t *tx) PutPost(post *domain.Post) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.store.posts.ReplaceOrInsert(post.Clone())
	return nil
}

func (t *tx) DeletePost(postID uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.store.posts.Delete(&domain.Post{ID: postID})
	return nil
}

func (t *tx) GetRoom(id domain.GlobalRoomID) (*domain.Room, bool, error) {
	r, ok := t.store.rooms.Get(&domain.Room{ID: id})
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

func (t *tx) PutRoom(room *domain.Room) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.store.rooms.ReplaceOrInsert(room.Clone())
	return nil
}

func (t *tx) RoomsInRange(r domain.SlotRange) ([]*domain.Room, error) {
	var out []*domain.Room
	t.store.rooms.AscendGreaterOrEqual(&domain.Room{ID: r.Start}, func(room *domain.Room) bool {
		if !r.Contains(room.ID) {
			return false
		}
		out = append(out, room.Clone())
		return true
	})
	return out, nil
}

func (t *tx) GetBet(id domain.GlobalBetID) (*domain.Bet, bool, error) {
	b, ok := t.store.bets.Get(&domain.Bet{ID: id})
	if !ok {
		return nil, false, nil
	}
	return b.Clone(), true, nil
}

func (t *tx) PutBet(bet *domain.Bet) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.store.bets.ReplaceOrInsert(bet.Clone())
	return nil
}

func (t *tx) DeleteBet(id domain.GlobalBetID) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.store.bets.Delete(&domain.Bet{ID: id})
	return nil
}

func (t *tx) BetsInRoom(room domain.GlobalRoomID) ([]*domain.Bet, error) {
	var out []*domain.Bet
	pivot := &domain.Bet{ID: domain.GlobalBetID{Room: room}}
	t.store.bets.AscendGreaterOrEqual(pivot, func(bet *domain.Bet) bool {
		if bet.ID.Room != room {
			return false
		}
		out = append(out, bet.Clone())
		return true
	})
	return out, nil
}

func (t *tx) TokenBalance() (*domain.TokenBalance, error) {
	b := t.store.balance
	return &b, nil
}

func (t *tx) PutTokenBalance(balance *domain.TokenBalance) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.store.balance = *balance
	return nil
}
