package swapit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// FeedHandle is an open feed subscription. Close releases it; a session holds
// at most one live handle at a time.
type FeedHandle interface {
	Close() error
}

// Feed delivers every message inserted on an item, in backend insertion
// order. Pair-level filtering is the subscriber's job.
type Feed interface {
	Subscribe(ctx context.Context, itemID uint64, onEvent func(Message)) (FeedHandle, error)
}

// WebsocketFeed implements Feed against the server's per-item websocket
// endpoint.
type WebsocketFeed struct {
	BaseURL string // http(s) base, converted to ws(s)
	Token   string
	Dialer  *websocket.Dialer
}

func NewWebsocketFeed(baseURL, token string) *WebsocketFeed {
	return &WebsocketFeed{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Dialer:  websocket.DefaultDialer,
	}
}

type wsHandle struct {
	conn *websocket.Conn
	once sync.Once
}

func (h *wsHandle) Close() error {
	var err error
	h.once.Do(func() {
		deadline := time.Now().Add(3 * time.Second)
		_ = h.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = h.conn.Close()
	})
	return err
}

func (f *WebsocketFeed) Subscribe(ctx context.Context, itemID uint64, onEvent func(Message)) (FeedHandle, error) {
	endpoint := fmt.Sprintf("%s/api/items/%d/feed", wsBase(f.BaseURL), itemID)
	if f.Token != "" {
		endpoint += "?token=" + url.QueryEscape(f.Token)
	}
	conn, _, err := f.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, &QueryError{Op: "subscribe feed", Err: err}
	}
	handle := &wsHandle{conn: conn}

	go func() {
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			onEvent(msg)
		}
	}()

	return handle, nil
}

func wsBase(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
