package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/reusehub/swapit-backend/internal/model"
)

// Hub fans newly inserted messages out to every feed subscriber of the
// message's item. Scoping stops at the item; filtering down to a participant
// pair is the client's responsibility.
type Hub struct {
	id string // instance identity, used to skip our own frames on the Redis bridge

	mu    sync.RWMutex
	items map[uint64]map[string]func([]byte) error

	bridge *redisBridge
}

func NewHub() *Hub {
	return &Hub{
		id:    uuid.NewString(),
		items: make(map[uint64]map[string]func([]byte) error),
	}
}

// Subscribe registers a send function for the item's feed and returns an
// unsubscribe func. The send function must not block.
func (h *Hub) Subscribe(itemID uint64, send func([]byte) error) func() {
	subID := uuid.NewString()

	h.mu.Lock()
	subs, ok := h.items[itemID]
	if !ok {
		subs = make(map[string]func([]byte) error)
		h.items[itemID] = subs
	}
	subs[subID] = send
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		if subs, ok := h.items[itemID]; ok {
			delete(subs, subID)
			if len(subs) == 0 {
				delete(h.items, itemID)
			}
		}
		h.mu.Unlock()
	}
}

// Publish delivers an inserted message to local subscribers and, when a Redis
// bridge is attached, to the other instances. Best-effort: a failed subscriber
// is skipped, not retried.
func (h *Hub) Publish(ctx context.Context, msg model.Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		log.Printf("feed: marshal message %d: %v", msg.ID, err)
		return
	}
	h.broadcast(msg.ItemID, frame)
	if h.bridge != nil {
		h.bridge.publish(ctx, h.id, msg.ItemID, frame)
	}
}

func (h *Hub) broadcast(itemID uint64, frame []byte) {
	h.mu.RLock()
	sends := make([]func([]byte) error, 0, len(h.items[itemID]))
	for _, send := range h.items[itemID] {
		sends = append(sends, send)
	}
	h.mu.RUnlock()

	for _, send := range sends {
		if err := send(frame); err != nil {
			log.Printf("feed: drop subscriber on item %d: %v", itemID, err)
		}
	}
}
