package swapit

import "sync"

// Scope is the pair (item, counterpart) whose messages are visible, from the
// viewpoint of User.
type Scope struct {
	ItemID      uint64
	User        string
	Counterpart string
}

// Matches reports whether the message belongs to this scope: same item, and
// the (sender, receiver) pair is exactly {User, Counterpart}.
func (s Scope) Matches(m Message) bool {
	if m.ItemID != s.ItemID {
		return false
	}
	return (m.SenderEmail == s.User && m.ReceiverEmail == s.Counterpart) ||
		(m.SenderEmail == s.Counterpart && m.ReceiverEmail == s.User)
}

// Reconciler maintains an append-only overlay of live messages on top of a
// fetched history. A message identity is admitted at most once regardless of
// how it arrives: the optimistic local append at send time, the feed echo of
// that same send, and the history fetch all funnel through the same dedup.
type Reconciler struct {
	mu       sync.Mutex
	scope    Scope
	seen     map[uint64]struct{}
	timeline []Message
}

func NewReconciler(scope Scope) *Reconciler {
	return &Reconciler{
		scope: scope,
		seen:  make(map[uint64]struct{}),
	}
}

// Admit offers a message to the timeline. Off-scope and already-known
// messages are dropped; the return value reports whether the timeline grew.
// Events may arrive out of order relative to a concurrent history fetch;
// identity-based dedup absorbs that, no re-sorting happens.
func (r *Reconciler) Admit(m Message) bool {
	if !r.scope.Matches(m) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[m.ID]; ok {
		return false
	}
	r.seen[m.ID] = struct{}{}
	r.timeline = append(r.timeline, m)
	return true
}

// SetHistory installs a fetched history as the timeline base. Live messages
// admitted before the fetch resolved are kept, re-appended after the history
// unless the fetch already contains them.
func (r *Reconciler) SetHistory(msgs []Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inHistory := make(map[uint64]struct{}, len(msgs))
	merged := make([]Message, 0, len(msgs)+len(r.timeline))
	for _, m := range msgs {
		if !r.scope.Matches(m) {
			continue
		}
		if _, ok := inHistory[m.ID]; ok {
			continue
		}
		inHistory[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range r.timeline {
		if _, ok := inHistory[m.ID]; !ok {
			merged = append(merged, m)
		}
	}

	r.timeline = merged
	r.seen = make(map[uint64]struct{}, len(merged))
	for _, m := range merged {
		r.seen[m.ID] = struct{}{}
	}
}

// Timeline returns a snapshot of the visible messages.
func (r *Reconciler) Timeline() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.timeline))
	copy(out, r.timeline)
	return out
}

// CounterpartTracker is the second consumer of the shared feed: it watches
// every event on the item, in or out of the active scope, and grows the
// owner's conversation list when a new counterpart appears. Message content
// is never exposed here; only identities.
type CounterpartTracker struct {
	mu     sync.Mutex
	itemID uint64
	owner  string
	seen   map[string]struct{}
	order  []string
}

func NewCounterpartTracker(itemID uint64, owner string) *CounterpartTracker {
	return &CounterpartTracker{
		itemID: itemID,
		owner:  owner,
		seen:   make(map[string]struct{}),
	}
}

// Seed installs the counterparts discovered by the directory scan.
func (t *CounterpartTracker) Seed(counterparts []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, cp := range counterparts {
		t.addLocked(cp)
	}
}

// Observe inspects a feed event and records the non-owner party if the
// message involves the owner. Returns true when a new counterpart appeared.
func (t *CounterpartTracker) Observe(m Message) bool {
	if m.ItemID != t.itemID {
		return false
	}
	other := ""
	switch t.owner {
	case m.SenderEmail:
		other = m.ReceiverEmail
	case m.ReceiverEmail:
		other = m.SenderEmail
	default:
		return false
	}
	if other == t.owner || other == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addLocked(other)
}

func (t *CounterpartTracker) addLocked(cp string) bool {
	if cp == "" || cp == t.owner {
		return false
	}
	if _, ok := t.seen[cp]; ok {
		return false
	}
	t.seen[cp] = struct{}{}
	t.order = append(t.order, cp)
	return true
}

// List returns the counterparts in discovery order.
func (t *CounterpartTracker) List() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
