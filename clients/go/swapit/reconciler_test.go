package swapit

import "testing"

const (
	owner     = "owner@x.edu"
	requester = "requester@x.edu"
	other     = "other@x.edu"
)

func msg(id uint64, item uint64, sender, receiver, content string) Message {
	return Message{ID: id, ItemID: item, SenderEmail: sender, ReceiverEmail: receiver, Content: content}
}

func TestReconcilerDedup(t *testing.T) {
	scope := Scope{ItemID: 1, User: owner, Counterpart: requester}
	m := msg(7, 1, owner, requester, "Yes!")

	tests := []struct {
		name  string
		admit []Message
	}{
		{"optimistic then echo", []Message{m, m}},
		{"echo delivered three times", []Message{m, m, m}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReconciler(scope)
			grew := 0
			for _, m := range tt.admit {
				if r.Admit(m) {
					grew++
				}
			}
			if grew != 1 {
				t.Fatalf("timeline grew %d times, want 1", grew)
			}
			if got := len(r.Timeline()); got != 1 {
				t.Fatalf("timeline has %d entries, want 1", got)
			}
		})
	}
}

func TestReconcilerScopeIsolation(t *testing.T) {
	scope := Scope{ItemID: 1, User: owner, Counterpart: requester}
	r := NewReconciler(scope)

	tests := []struct {
		name string
		m    Message
		want bool
	}{
		{"in scope, requester to owner", msg(1, 1, requester, owner, "hi"), true},
		{"in scope, owner to requester", msg(2, 1, owner, requester, "hello"), true},
		{"other counterpart same item", msg(3, 1, other, owner, "me too"), false},
		{"owner to other counterpart", msg(4, 1, owner, other, "sure"), false},
		{"same pair different item", msg(5, 2, requester, owner, "hi"), false},
		{"unrelated pair", msg(6, 1, other, "x@x.edu", "psst"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Admit(tt.m); got != tt.want {
				t.Fatalf("Admit=%v want %v", got, tt.want)
			}
		})
	}

	for _, m := range r.Timeline() {
		if m.SenderEmail == other || m.ReceiverEmail == other {
			t.Fatalf("timeline leaked message %d from another pair", m.ID)
		}
	}
}

func TestReconcilerSetHistoryMergesEarlyEvents(t *testing.T) {
	scope := Scope{ItemID: 1, User: owner, Counterpart: requester}
	r := NewReconciler(scope)

	// Feed events land before the concurrent history fetch resolves.
	early := msg(3, 1, requester, owner, "are you there?")
	dup := msg(2, 1, owner, requester, "Yes!")
	r.Admit(early)
	r.Admit(dup)

	history := []Message{
		msg(1, 1, requester, owner, "Is this available?"),
		msg(2, 1, owner, requester, "Yes!"),
	}
	r.SetHistory(history)

	got := r.Timeline()
	wantIDs := []uint64{1, 2, 3}
	if len(got) != len(wantIDs) {
		t.Fatalf("timeline has %d entries, want %d: %+v", len(got), len(wantIDs), got)
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("timeline[%d].ID=%d want %d", i, got[i].ID, id)
		}
	}

	// The echo of a message already installed by history stays deduplicated.
	if r.Admit(dup) {
		t.Fatal("echo of a history message was admitted twice")
	}
}

func TestCounterpartTracker(t *testing.T) {
	tr := NewCounterpartTracker(1, owner)
	tr.Seed([]string{requester})

	events := []Message{
		msg(1, 1, requester, owner, "again"),   // already known
		msg(2, 1, other, owner, "is it free?"), // new counterpart
		msg(3, 1, owner, other, "yes"),         // known, owner side
		msg(4, 2, "new@x.edu", owner, "hi"),    // different item
		msg(5, 1, "a@x.edu", "b@x.edu", "…"),   // owner not involved
	}
	var grew []uint64
	for _, m := range events {
		if tr.Observe(m) {
			grew = append(grew, m.ID)
		}
	}
	if len(grew) != 1 || grew[0] != 2 {
		t.Fatalf("tracker grew on %v, want only event 2", grew)
	}

	got := tr.List()
	want := []string{requester, other}
	if len(got) != len(want) {
		t.Fatalf("counterparts=%v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("counterparts=%v want %v", got, want)
		}
	}
	for _, cp := range got {
		if cp == owner {
			t.Fatal("tracker listed the owner as their own counterpart")
		}
	}
}
