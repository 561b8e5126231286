package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/reusehub/swapit-backend/internal/realtime"
)

// FeedHandler serves the per-item websocket event feed. The server pushes one
// frame per inserted message on the item; clients filter by participant pair.
type FeedHandler struct {
	hub *realtime.Hub
}

func NewFeedHandler(hub *realtime.Hub) *FeedHandler {
	return &FeedHandler{hub: hub}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The feed is read-only and token-authenticated; origin is not load-bearing.
		return true
	},
}

func (h *FeedHandler) Subscribe(c echo.Context) error {
	email, _ := c.Get("email").(string)
	if email == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing identity"))
	}
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item id"))
	}

	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	conn := realtime.NewConn(ws)
	conn.Start()
	unsubscribe := h.hub.Subscribe(itemID, conn.Send)
	defer func() {
		unsubscribe()
		conn.Close(websocket.CloseNormalClosure, "bye")
	}()

	// The feed is one-way; the read loop only notices disconnects.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return nil
		}
	}
}
