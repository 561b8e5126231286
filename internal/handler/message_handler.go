package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/reusehub/swapit-backend/internal/model"
	"github.com/reusehub/swapit-backend/internal/service"
)

type MessageHandler struct {
	svc service.MessageService
}

func NewMessageHandler(svc service.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

type MessageResponse struct {
	ID            uint64 `json:"id"`
	ItemID        uint64 `json:"itemId"`
	SenderEmail   string `json:"senderEmail"`
	ReceiverEmail string `json:"receiverEmail"`
	Content       string `json:"content"`
	CreatedAt     string `json:"createdAt"`
}

type SendMessageRequest struct {
	ReceiverEmail string `json:"receiverEmail"`
	Content       string `json:"content"`
}

type CounterpartsResponse struct {
	Counterparts []string `json:"counterparts"`
}

// History returns the pair-scoped timeline: the caller on one side, the
// ?with= identity on the other, oldest first.
func (h *MessageHandler) History(c echo.Context) error {
	email, _ := c.Get("email").(string)
	if email == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing identity"))
	}
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item id"))
	}
	with := c.QueryParam("with")
	if with == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "with is required"))
	}
	msgs, err := h.svc.History(c.Request().Context(), itemID, email, with)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "item not found"))
		case errors.Is(err, service.ErrForbidden):
			return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not a participant"))
		default:
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
		}
	}
	resp := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, toMessageResponse(m))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *MessageHandler) Counterparts(c echo.Context) error {
	email, _ := c.Get("email").(string)
	if email == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing identity"))
	}
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item id"))
	}
	list, err := h.svc.Counterparts(c.Request().Context(), itemID, email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "item not found"))
		case errors.Is(err, service.ErrForbidden):
			return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "only the owner has an inbox"))
		default:
			return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch counterparts"))
		}
	}
	if list == nil {
		list = []string{}
	}
	return c.JSON(http.StatusOK, CounterpartsResponse{Counterparts: list})
}

func (h *MessageHandler) Send(c echo.Context) error {
	email, _ := c.Get("email").(string)
	if email == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing identity"))
	}
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item id"))
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	msg, err := h.svc.Send(c.Request().Context(), itemID, email, req.ReceiverEmail, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "item not found"))
		case errors.Is(err, service.ErrForbidden):
			return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "conversation must include the item owner"))
		default:
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
		}
	}
	return c.JSON(http.StatusCreated, toMessageResponse(*msg))
}

func toMessageResponse(m model.Message) MessageResponse {
	return MessageResponse{
		ID:            m.ID,
		ItemID:        m.ItemID,
		SenderEmail:   m.SenderEmail,
		ReceiverEmail: m.ReceiverEmail,
		Content:       m.Content,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339),
	}
}
