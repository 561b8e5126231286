package swapit

import (
	"context"
	"sync"
)

// ViewState is what the chat surface currently shows.
type ViewState int

const (
	// ViewHidden: chat is closed; nothing fetched, nothing subscribed.
	ViewHidden ViewState = iota
	// ViewInbox: the owner's list of conversations, one per counterpart.
	ViewInbox
	// ViewThread: a live two-party timeline for the active scope.
	ViewThread
)

func (v ViewState) String() string {
	switch v {
	case ViewInbox:
		return "inbox"
	case ViewThread:
		return "thread"
	default:
		return "hidden"
	}
}

// SessionAPI is the slice of the Client a session drives.
type SessionAPI interface {
	FetchHistory(ctx context.Context, itemID uint64, counterpart string) ([]Message, error)
	ListCounterparts(ctx context.Context, itemID uint64) ([]string, error)
	Send(ctx context.Context, itemID uint64, receiver, content string) (*Message, error)
}

// Session is the conversation view for one user on one item. It owns the
// role branch (owner inbox vs requester thread), the single live feed
// subscription, and the scope-epoch guard that keeps a slow history fetch
// from overwriting a newer timeline.
//
// History fetches run asynchronously; set OnUpdate before Open to observe
// timeline changes. Fetch failures are reported through OnNotice and leave
// the current view at its last-known-good state.
type Session struct {
	api      SessionAPI
	feed     Feed
	identity string
	item     Item

	// OnUpdate fires after the timeline or counterpart list changed.
	// OnNotice receives non-fatal fetch errors. Set both before Open.
	OnUpdate func()
	OnNotice func(error)

	mu      sync.Mutex
	state   ViewState
	epoch   uint64 // scope token; bumped on every scope change and close
	scope   Scope
	rec     *Reconciler
	tracker *CounterpartTracker
	sub     FeedHandle
}

func NewSession(api SessionAPI, feed Feed, identity string, item Item) *Session {
	return &Session{
		api:      api,
		feed:     feed,
		identity: identity,
		item:     item,
		state:    ViewHidden,
	}
}

// Open enters the chat view, branching on role: the item owner lands in the
// inbox, anyone else lands directly in the thread with the owner. Sample
// listings never open chat. Errors returned here mean the view stayed Hidden.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != ViewHidden {
		s.mu.Unlock()
		return nil
	}
	if err := s.openableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	isOwner := s.identity == s.item.OwnerEmail
	if isOwner {
		s.state = ViewInbox
		s.tracker = NewCounterpartTracker(s.item.ID, s.item.OwnerEmail)
	}
	s.mu.Unlock()

	// Subscribe before fetching so nothing inserted in between is missed;
	// the reconciler's dedup absorbs the overlap.
	if err := s.subscribe(ctx); err != nil {
		s.Close()
		return err
	}

	if isOwner {
		// The directory is recomputed on every open; counterparts may have
		// appeared since last time.
		counterparts, err := s.api.ListCounterparts(ctx, s.item.ID)
		if err != nil {
			s.notice(err)
			return nil
		}
		s.tracker.Seed(counterparts)
		s.update()
		return nil
	}

	s.enterThread(ctx, s.item.OwnerEmail)
	return nil
}

// OpenRequesterThread is the "Chat with Owner" affordance. The owner tapping
// it on their own listing is rejected and the view stays Hidden.
func (s *Session) OpenRequesterThread(ctx context.Context) error {
	s.mu.Lock()
	if s.state != ViewHidden {
		s.mu.Unlock()
		return nil
	}
	if err := s.openableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.identity == s.item.OwnerEmail {
		s.mu.Unlock()
		return &ValidationError{Reason: "this is your item"}
	}
	s.mu.Unlock()

	if err := s.subscribe(ctx); err != nil {
		s.Close()
		return err
	}
	s.enterThread(ctx, s.item.OwnerEmail)
	return nil
}

func (s *Session) openableLocked() error {
	if s.item.Sample {
		return &ValidationError{Reason: "sample listings do not support chat"}
	}
	if s.identity == "" {
		return &ValidationError{Reason: "sign in to chat"}
	}
	return nil
}

// SelectCounterpart moves the owner from the inbox into the thread with one
// of the discovered counterparts.
func (s *Session) SelectCounterpart(ctx context.Context, counterpart string) error {
	s.mu.Lock()
	if s.state != ViewInbox {
		s.mu.Unlock()
		return &ValidationError{Reason: "no inbox is open"}
	}
	if counterpart == s.identity {
		s.mu.Unlock()
		return &ValidationError{Reason: "this is your item"}
	}
	known := false
	for _, cp := range s.tracker.List() {
		if cp == counterpart {
			known = true
			break
		}
	}
	if !known {
		s.mu.Unlock()
		return &ValidationError{Reason: "unknown counterpart"}
	}
	s.mu.Unlock()

	s.enterThread(ctx, counterpart)
	return nil
}

// Back returns the owner from a thread to the inbox. The abandoned timeline
// is dropped, not cached; reselecting the counterpart refetches it.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ViewThread {
		return &ValidationError{Reason: "no conversation is open"}
	}
	if s.identity != s.item.OwnerEmail {
		return &ValidationError{Reason: "only the owner has an inbox"}
	}
	s.epoch++
	s.scope = Scope{}
	s.rec = nil
	s.state = ViewInbox
	return nil
}

// Close leaves the chat view from any state: the feed subscription is
// released and the in-memory timeline cleared. The next Open starts fresh.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == ViewHidden && s.sub == nil {
		s.mu.Unlock()
		return
	}
	s.epoch++
	s.state = ViewHidden
	s.scope = Scope{}
	s.rec = nil
	s.tracker = nil
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
	}
}

// Send inserts a message into the active thread and appends it optimistically.
// The feed echo of the same message is deduplicated by identity. On failure
// nothing is appended and no state changes, so the caller can retry with the
// user's input intact.
func (s *Session) Send(ctx context.Context, content string) error {
	s.mu.Lock()
	if s.state != ViewThread {
		s.mu.Unlock()
		return &ValidationError{Reason: "no conversation is open"}
	}
	counterpart := s.scope.Counterpart
	rec := s.rec
	s.mu.Unlock()

	msg, err := s.api.Send(ctx, s.item.ID, counterpart, content)
	if err != nil {
		return err
	}
	if rec.Admit(*msg) {
		s.update()
	}
	return nil
}

func (s *Session) State() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) ActiveScope() Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Timeline returns the visible messages of the active thread.
func (s *Session) Timeline() []Message {
	s.mu.Lock()
	rec := s.rec
	s.mu.Unlock()
	if rec == nil {
		return nil
	}
	return rec.Timeline()
}

// Counterparts returns the owner's conversation list in discovery order.
func (s *Session) Counterparts() []string {
	s.mu.Lock()
	tracker := s.tracker
	s.mu.Unlock()
	if tracker == nil {
		return nil
	}
	return tracker.List()
}

func (s *Session) enterThread(ctx context.Context, counterpart string) {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.scope = Scope{ItemID: s.item.ID, User: s.identity, Counterpart: counterpart}
	s.rec = NewReconciler(s.scope)
	s.state = ViewThread
	s.mu.Unlock()

	go s.fetchHistory(ctx, epoch, counterpart)
}

// fetchHistory resolves asynchronously. The epoch recorded at issue time is
// compared on completion: if the scope moved on while the fetch was in
// flight, the stale result is discarded instead of overwriting the newer
// timeline.
func (s *Session) fetchHistory(ctx context.Context, epoch uint64, counterpart string) {
	msgs, err := s.api.FetchHistory(ctx, s.item.ID, counterpart)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.mu.Unlock()
		s.notice(err)
		return
	}
	rec := s.rec
	s.mu.Unlock()

	rec.SetHistory(msgs)
	s.update()
}

// subscribe opens the single live feed subscription for this session. The
// feed is scoped to the item; scope changes reuse it rather than resubscribe,
// so duplicate delivery from overlapping subscriptions cannot happen.
func (s *Session) subscribe(ctx context.Context) error {
	s.mu.Lock()
	if s.sub != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	handle, err := s.feed.Subscribe(ctx, s.item.ID, s.handleEvent)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sub = handle
	s.mu.Unlock()
	return nil
}

// handleEvent fans one feed event into the two logical subscribers: the
// scope-filtered message appender and the owner-only counterpart tracker.
func (s *Session) handleEvent(m Message) {
	s.mu.Lock()
	if s.state == ViewHidden {
		s.mu.Unlock()
		return
	}
	rec := s.rec
	tracker := s.tracker
	s.mu.Unlock()

	changed := false
	if tracker != nil && tracker.Observe(m) {
		changed = true
	}
	if rec != nil && rec.Admit(m) {
		changed = true
	}
	if changed {
		s.update()
	}
}

func (s *Session) update() {
	if s.OnUpdate != nil {
		s.OnUpdate()
	}
}

func (s *Session) notice(err error) {
	if s.OnNotice != nil {
		s.OnNotice(err)
	}
}
