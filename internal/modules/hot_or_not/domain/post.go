package domain

import "sort"

// Post is a content item whose slots are settled one by one.
type Post struct {
	ID                    uint64
	SlotsLeftToBeComputed map[uint8]struct{}
}

// NewPost creates a post awaiting settlement of the given slots.
func NewPost(id uint64, slots ...uint8) *Post {
	p := &Post{
		ID:                    id,
		SlotsLeftToBeComputed: make(map[uint8]struct{}, len(slots)),
	}
	for _, s := range slots {
		p.SlotsLeftToBeComputed[s] = struct{}{}
	}
	return p
}

// HasPendingSlot reports whether slotID still awaits settlement.
func (p *Post) HasPendingSlot(slotID uint8) bool {
	_, ok := p.SlotsLeftToBeComputed[slotID]
	return ok
}

// MarkSlotComputed removes slotID from the pending set.
func (p *Post) MarkSlotComputed(slotID uint8) {
	delete(p.SlotsLeftToBeComputed, slotID)
}

// PendingSlots returns the pending slot ids in ascending order.
func (p *Post) PendingSlots() []uint8 {
	out := make([]uint8, 0, len(p.SlotsLeftToBeComputed))
	for s := range p.SlotsLeftToBeComputed {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a deep copy so callers never share the pending set.
func (p *Post) Clone() *Post {
	return NewPost(p.ID, p.PendingSlots()...)
}
