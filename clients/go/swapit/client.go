// Package swapit is the Go client for the SwapIt campus reuse marketplace,
// centered on its per-item, per-counterpart messaging model: pair-scoped
// history, an owner inbox derived from the message set, optimistic sends and
// a live feed reconciled without duplicates.
package swapit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLen mirrors the server-side cap on message content.
const MaxMessageLen = 500

type Message struct {
	ID            uint64    `json:"id"`
	ItemID        uint64    `json:"itemId"`
	SenderEmail   string    `json:"senderEmail"`
	ReceiverEmail string    `json:"receiverEmail"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Item struct {
	ID         uint64  `json:"id"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Location   string  `json:"location"`
	PhotoURL   *string `json:"photoUrl,omitempty"`
	OwnerEmail string  `json:"ownerEmail"`
	Sample     bool    `json:"sample"`
}

// Client talks to the SwapIt API on behalf of one authenticated identity.
// The identity is resolved once at sign-in and threaded through explicitly;
// components never re-read ambient session state.
type Client struct {
	BaseURL    string
	Identity   string // the signed-in user's email
	Token      string // Firebase ID token
	HTTPClient *http.Client
}

func NewClient(baseURL, identity, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Identity:   identity,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchHistory returns the full timeline between the client's identity and
// counterpart on the given item, oldest first. Messages of other pairs on the
// same item are never included.
func (c *Client) FetchHistory(ctx context.Context, itemID uint64, counterpart string) ([]Message, error) {
	endpoint := fmt.Sprintf("%s/api/items/%d/messages?with=%s", c.BaseURL, itemID, url.QueryEscape(counterpart))
	var msgs []Message
	if err := c.getJSON(ctx, endpoint, &msgs); err != nil {
		return nil, &QueryError{Op: "fetch history", Err: err}
	}
	return msgs, nil
}

// ListCounterparts returns the distinct identities that have messaged the
// client about the item, in discovery order. Only the item owner may call it.
// An empty result is a valid empty inbox, not an error.
func (c *Client) ListCounterparts(ctx context.Context, itemID uint64) ([]string, error) {
	endpoint := fmt.Sprintf("%s/api/items/%d/counterparts", c.BaseURL, itemID)
	var resp struct {
		Counterparts []string `json:"counterparts"`
	}
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, &QueryError{Op: "list counterparts", Err: err}
	}
	return resp.Counterparts, nil
}

func (c *Client) GetItem(ctx context.Context, itemID uint64) (*Item, error) {
	endpoint := fmt.Sprintf("%s/api/items/%d", c.BaseURL, itemID)
	var item Item
	if err := c.getJSON(ctx, endpoint, &item); err != nil {
		return nil, &QueryError{Op: "fetch item", Err: err}
	}
	return &item, nil
}

// Send validates locally, then inserts the message. Validation failures never
// reach the network; backend rejections come back as *SendError with the
// server's diagnostic so the user can retry with their input intact.
func (c *Client) Send(ctx context.Context, itemID uint64, receiver, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &ValidationError{Reason: "message is empty"}
	}
	if utf8.RuneCountInString(content) > MaxMessageLen {
		return nil, &ValidationError{Reason: "message is too long"}
	}
	if receiver == "" {
		return nil, &ValidationError{Reason: "receiver is required"}
	}
	if receiver == c.Identity {
		return nil, &ValidationError{Reason: "cannot message yourself"}
	}

	body, _ := json.Marshal(map[string]string{
		"receiverEmail": receiver,
		"content":       content,
	})
	endpoint := fmt.Sprintf("%s/api/items/%d/messages", c.BaseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &SendError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &SendError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, &SendError{Diagnostic: readDiagnostic(resp.Body), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, &SendError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return &msg, nil
}

// DeleteItemAndMessages cascades: the backend removes the item's messages
// first, then the item. A partial failure (messages gone, item left) is
// reported as *PartialDeleteError, distinct from total failure.
func (c *Client) DeleteItemAndMessages(ctx context.Context, itemID uint64) error {
	endpoint := fmt.Sprintf("%s/api/items/%d", c.BaseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	code, message := readErrorEnvelope(resp.Body)
	if code == "partial_delete" {
		return &PartialDeleteError{Diagnostic: message}
	}
	if message == "" {
		message = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("delete item: %s", message)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, message := readErrorEnvelope(resp.Body)
		if message == "" {
			message = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("%s", message)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

func readErrorEnvelope(r io.Reader) (code, message string) {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return "", ""
	}
	return envelope.Error.Code, envelope.Error.Message
}

func readDiagnostic(r io.Reader) string {
	_, message := readErrorEnvelope(r)
	return message
}
