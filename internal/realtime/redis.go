package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const channelPattern = "swapit:item:*"

type redisBridge struct {
	client *redis.Client
}

type bridgeEnvelope struct {
	Origin string          `json:"origin"`
	ItemID uint64          `json:"itemId"`
	Frame  json.RawMessage `json:"frame"`
}

// AttachRedis connects the hub to a Redis pub/sub channel so feed frames reach
// subscribers on every instance, not only the one that handled the insert.
func (h *Hub) AttachRedis(ctx context.Context, url string) error {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis: ping: %w", err)
	}

	h.bridge = &redisBridge{client: client}
	go h.relayLoop(ctx)
	return nil
}

func (b *redisBridge) publish(ctx context.Context, origin string, itemID uint64, frame []byte) {
	env := bridgeEnvelope{Origin: origin, ItemID: itemID, Frame: frame}
	payload, err := json.Marshal(env)
	if err != nil {
		log.Printf("feed: marshal bridge envelope: %v", err)
		return
	}
	channel := fmt.Sprintf("swapit:item:%d", itemID)
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("feed: redis publish item %d: %v", itemID, err)
	}
}

// relayLoop re-broadcasts frames originated on other instances. Frames we
// published ourselves carry our origin id and are skipped to avoid double
// delivery to local subscribers.
func (h *Hub) relayLoop(ctx context.Context) {
	sub := h.bridge.client.PSubscribe(ctx, channelPattern)
	defer sub.Close()

	for msg := range sub.Channel() {
		var env bridgeEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			log.Printf("feed: bad bridge payload on %s: %v", msg.Channel, err)
			continue
		}
		if env.Origin == h.id {
			continue
		}
		h.broadcast(env.ItemID, env.Frame)
	}
}
