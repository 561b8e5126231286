package swapit

import (
	"context"
	"errors"
	"testing"
)

func TestDirectoryResolveNonOwner(t *testing.T) {
	// The counterpart list must not even be consulted for a non-owner.
	api := &fakeAPI{counterpartsErr: errors.New("must not be called")}
	d := NewDirectory(api)

	convs, err := d.Resolve(context.Background(), testItem(), requester)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(convs) != 1 || convs[0].Counterpart != owner || convs[0].ItemID != 1 {
		t.Fatalf("convs=%+v want exactly the thread with the owner", convs)
	}
}

func TestDirectoryResolveOwner(t *testing.T) {
	tests := []struct {
		name         string
		counterparts []string
		want         int
	}{
		{"empty inbox", nil, 0},
		{"two discovered requesters", []string{requester, other}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDirectory(&fakeAPI{counterparts: tt.counterparts})
			convs, err := d.Resolve(context.Background(), testItem(), owner)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if len(convs) != tt.want {
				t.Fatalf("got %d conversations, want %d", len(convs), tt.want)
			}
			for i, c := range convs {
				if c.Counterpart != tt.counterparts[i] {
					t.Fatalf("convs[%d]=%q want discovery order preserved (%q)", i, c.Counterpart, tt.counterparts[i])
				}
			}
		})
	}
}

func TestDirectoryResolveOwnerError(t *testing.T) {
	d := NewDirectory(&fakeAPI{counterpartsErr: errors.New("db down")})
	if _, err := d.Resolve(context.Background(), testItem(), owner); err == nil {
		t.Fatal("a failed counterpart listing must surface, not return an empty inbox")
	}
}
