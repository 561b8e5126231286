package swapit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeAPI struct {
	mu              sync.Mutex
	history         map[string][]Message
	historyErr      error
	counterparts    []string
	counterpartsErr error
	sendNext        *Message
	sendErr         error
	sendCalls       int
}

func (f *fakeAPI) FetchHistory(ctx context.Context, itemID uint64, counterpart string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[counterpart], nil
}

func (f *fakeAPI) ListCounterparts(ctx context.Context, itemID uint64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counterpartsErr != nil {
		return nil, f.counterpartsErr
	}
	return f.counterparts, nil
}

func (f *fakeAPI) Send(ctx context.Context, itemID uint64, receiver, content string) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.sendNext, nil
}

type fakeHandle struct {
	feed *fakeFeed
}

func (h *fakeHandle) Close() error {
	atomic.AddInt32(&h.feed.active, -1)
	return nil
}

type fakeFeed struct {
	mu         sync.Mutex
	subscribes int
	active     int32
	onEvent    func(Message)
}

func (f *fakeFeed) Subscribe(ctx context.Context, itemID uint64, onEvent func(Message)) (FeedHandle, error) {
	f.mu.Lock()
	f.subscribes++
	f.onEvent = onEvent
	f.mu.Unlock()
	atomic.AddInt32(&f.active, 1)
	return &fakeHandle{feed: f}, nil
}

func (f *fakeFeed) Emit(m Message) {
	f.mu.Lock()
	fn := f.onEvent
	f.mu.Unlock()
	if fn != nil {
		fn(m)
	}
}

func testItem() Item {
	return Item{ID: 1, Title: "Study Lamp", OwnerEmail: owner}
}

func newTestSession(t *testing.T, identity string, item Item, api *fakeAPI, feed *fakeFeed) (*Session, chan struct{}) {
	t.Helper()
	s := NewSession(api, feed, identity, item)
	updates := make(chan struct{}, 16)
	s.OnUpdate = func() { updates <- struct{}{} }
	return s, updates
}

func waitUpdate(t *testing.T, updates chan struct{}) {
	t.Helper()
	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a session update")
	}
}

func TestNonOwnerOpenLandsInThreadWithOwner(t *testing.T) {
	api := &fakeAPI{history: map[string][]Message{
		owner: {msg(1, 1, requester, owner, "Is this available?")},
	}}
	feed := &fakeFeed{}
	s, updates := newTestSession(t, requester, testItem(), api, feed)

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := s.State(); got != ViewThread {
		t.Fatalf("state=%v want thread", got)
	}
	if sc := s.ActiveScope(); sc.Counterpart != owner {
		t.Fatalf("scope counterpart=%q want the item owner", sc.Counterpart)
	}
	if s.Counterparts() != nil {
		t.Fatal("a non-owner must never see an inbox")
	}

	waitUpdate(t, updates)
	tl := s.Timeline()
	if len(tl) != 1 || tl[0].ID != 1 {
		t.Fatalf("timeline=%+v want the fetched history", tl)
	}
	s.Close()
}

func TestOwnerOpenLandsInInbox(t *testing.T) {
	api := &fakeAPI{counterparts: []string{requester, other}}
	feed := &fakeFeed{}
	s, updates := newTestSession(t, owner, testItem(), api, feed)

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := s.State(); got != ViewInbox {
		t.Fatalf("state=%v want inbox", got)
	}
	waitUpdate(t, updates)

	got := s.Counterparts()
	if len(got) != 2 || got[0] != requester || got[1] != other {
		t.Fatalf("counterparts=%v want [%s %s]", got, requester, other)
	}
	s.Close()
}

func TestOwnerEmptyInboxIsNotAnError(t *testing.T) {
	api := &fakeAPI{counterparts: nil}
	feed := &fakeFeed{}
	s, _ := newTestSession(t, owner, testItem(), api, feed)

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open with no conversations: %v", err)
	}
	if got := s.State(); got != ViewInbox {
		t.Fatalf("state=%v want inbox", got)
	}
	if got := s.Counterparts(); len(got) != 0 {
		t.Fatalf("counterparts=%v want empty", got)
	}
	s.Close()
}

func TestOwnerSelectAndBack(t *testing.T) {
	api := &fakeAPI{
		counterparts: []string{requester},
		history: map[string][]Message{
			requester: {msg(1, 1, requester, owner, "Is this available?")},
		},
	}
	feed := &fakeFeed{}
	s, updates := newTestSession(t, owner, testItem(), api, feed)

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitUpdate(t, updates)

	if err := s.SelectCounterpart(context.Background(), "stranger@x.edu"); err == nil {
		t.Fatal("selecting an undiscovered counterpart must fail")
	}
	if err := s.SelectCounterpart(context.Background(), owner); err == nil {
		t.Fatal("the owner selecting themselves must fail")
	}

	if err := s.SelectCounterpart(context.Background(), requester); err != nil {
		t.Fatalf("SelectCounterpart: %v", err)
	}
	if got := s.State(); got != ViewThread {
		t.Fatalf("state=%v want thread", got)
	}
	waitUpdate(t, updates)
	if tl := s.Timeline(); len(tl) != 1 {
		t.Fatalf("timeline=%+v want one message", tl)
	}

	if err := s.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if got := s.State(); got != ViewInbox {
		t.Fatalf("state=%v want inbox after back", got)
	}
	if tl := s.Timeline(); tl != nil {
		t.Fatalf("timeline=%+v want cleared after back", tl)
	}

	// One subscription served the whole open/select/back sequence.
	if feed.subscribes != 1 {
		t.Fatalf("feed subscribed %d times, want 1", feed.subscribes)
	}
	s.Close()
}

func TestRequesterCannotGoBack(t *testing.T) {
	api := &fakeAPI{history: map[string][]Message{}}
	feed := &fakeFeed{}
	s, _ := newTestSession(t, requester, testItem(), api, feed)

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Back(); err == nil {
		t.Fatal("a non-owner must not reach the inbox via back")
	}
	s.Close()
}

func TestSampleItemRejectsChat(t *testing.T) {
	item := testItem()
	item.Sample = true
	item.OwnerEmail = ""
	feed := &fakeFeed{}
	s, _ := newTestSession(t, requester, item, &fakeAPI{}, feed)

	var verr *ValidationError
	if err := s.Open(context.Background()); !errors.As(err, &verr) {
		t.Fatalf("Open on a sample item=%v, want validation error", err)
	}
	if got := s.State(); got != ViewHidden {
		t.Fatalf("state=%v want hidden", got)
	}
	if feed.subscribes != 0 {
		t.Fatal("sample items must not open a feed subscription")
	}
}

func TestOwnerChatWithOwnerAffordanceRejected(t *testing.T) {
	feed := &fakeFeed{}
	s, _ := newTestSession(t, owner, testItem(), &fakeAPI{}, feed)

	err := s.OpenRequesterThread(context.Background())
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Reason != "this is your item" {
		t.Fatalf("err=%v, want 'this is your item'", err)
	}
	if got := s.State(); got != ViewHidden {
		t.Fatalf("state=%v want hidden", got)
	}
}

func TestCloseReleasesSubscription(t *testing.T) {
	api := &fakeAPI{history: map[string][]Message{}}
	feed := &fakeFeed{}
	s, _ := newTestSession(t, requester, testItem(), api, feed)

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := atomic.LoadInt32(&feed.active); got != 1 {
		t.Fatalf("active subscriptions=%d want 1", got)
	}
	s.Close()
	if got := atomic.LoadInt32(&feed.active); got != 0 {
		t.Fatalf("active subscriptions=%d want 0 after close", got)
	}
	if got := s.State(); got != ViewHidden {
		t.Fatalf("state=%v want hidden", got)
	}

	// Events arriving after close are dropped, not resurrected.
	feed.Emit(msg(9, 1, owner, requester, "late"))
	if tl := s.Timeline(); tl != nil {
		t.Fatalf("timeline=%+v want nil after close", tl)
	}
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	api := &fakeAPI{history: map[string][]Message{
		owner: {msg(1, 1, requester, owner, "current")},
	}}
	feed := &fakeFeed{}
	s, updates := newTestSession(t, requester, testItem(), api, feed)

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitUpdate(t, updates)

	// A fetch issued under an older scope token resolves now; its result must
	// not overwrite the current timeline.
	api.mu.Lock()
	api.history[owner] = []Message{msg(2, 1, requester, owner, "stale snapshot")}
	api.mu.Unlock()
	s.fetchHistory(context.Background(), 0, owner)

	tl := s.Timeline()
	if len(tl) != 1 || tl[0].ID != 1 {
		t.Fatalf("timeline=%+v, stale fetch overwrote the current scope", tl)
	}
	s.Close()
}

func TestSendOptimisticAppendAndEchoDedup(t *testing.T) {
	sent := msg(42, 1, requester, owner, "Is this available?")
	api := &fakeAPI{
		history:  map[string][]Message{},
		sendNext: &sent,
	}
	feed := &fakeFeed{}
	s, updates := newTestSession(t, requester, testItem(), api, feed)

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitUpdate(t, updates)

	if err := s.Send(context.Background(), "Is this available?"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitUpdate(t, updates)

	// The feed echoes the same insert back.
	feed.Emit(sent)

	tl := s.Timeline()
	if len(tl) != 1 || tl[0].ID != 42 {
		t.Fatalf("timeline=%+v want exactly one copy of the sent message", tl)
	}
	s.Close()
}

func TestSendFailureLeavesTimelineUntouched(t *testing.T) {
	api := &fakeAPI{
		history: map[string][]Message{},
		sendErr: &SendError{Diagnostic: "policy denial"},
	}
	feed := &fakeFeed{}
	s, updates := newTestSession(t, requester, testItem(), api, feed)

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitUpdate(t, updates)

	var serr *SendError
	if err := s.Send(context.Background(), "hello"); !errors.As(err, &serr) {
		t.Fatalf("err=%v want SendError", err)
	}
	if tl := s.Timeline(); len(tl) != 0 {
		t.Fatalf("timeline=%+v want empty after a failed send", tl)
	}
	s.Close()
}

func TestOwnerThreadTracksNewCounterpartsOffScope(t *testing.T) {
	api := &fakeAPI{
		counterparts: []string{requester},
		history:      map[string][]Message{requester: {}},
	}
	feed := &fakeFeed{}
	s, updates := newTestSession(t, owner, testItem(), api, feed)

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitUpdate(t, updates)
	if err := s.SelectCounterpart(context.Background(), requester); err != nil {
		t.Fatalf("SelectCounterpart: %v", err)
	}
	waitUpdate(t, updates)

	// A first message from a brand-new requester arrives while the owner is
	// reading another thread: it grows the inbox without entering the
	// visible timeline.
	feed.Emit(msg(8, 1, other, owner, "is it still free?"))
	waitUpdate(t, updates)

	cps := s.Counterparts()
	if len(cps) != 2 || cps[1] != other {
		t.Fatalf("counterparts=%v want discovery of %s", cps, other)
	}
	if tl := s.Timeline(); len(tl) != 0 {
		t.Fatalf("timeline=%+v leaked an off-scope message", tl)
	}
	s.Close()
}
