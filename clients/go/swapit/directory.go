package swapit

import "context"

// Conversation is the derived pair {item, counterpart} from the current
// user's viewpoint. Conversations are never stored; one exists exactly when
// at least one message does.
type Conversation struct {
	ItemID      uint64
	Counterpart string
}

// CounterpartLister is the slice of the API the directory needs.
type CounterpartLister interface {
	ListCounterparts(ctx context.Context, itemID uint64) ([]string, error)
}

// Directory resolves which conversations exist for a user on an item. It is
// recomputed on every chat open: new counterparts may have appeared since the
// last one, so the result is never cached.
type Directory struct {
	api CounterpartLister
}

func NewDirectory(api CounterpartLister) *Directory {
	return &Directory{api: api}
}

// Resolve returns the user's conversations on the item. A non-owner always
// has exactly one, with the owner; the owner has one per distinct identity
// discovered in the item's messages, in discovery order.
func (d *Directory) Resolve(ctx context.Context, item Item, currentUser string) ([]Conversation, error) {
	if currentUser != item.OwnerEmail {
		return []Conversation{{ItemID: item.ID, Counterpart: item.OwnerEmail}}, nil
	}
	counterparts, err := d.api.ListCounterparts(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	convs := make([]Conversation, 0, len(counterparts))
	for _, cp := range counterparts {
		convs = append(convs, Conversation{ItemID: item.ID, Counterpart: cp})
	}
	return convs, nil
}
