// Package dataapi is the REST client for the external data API the
// coordinator persists through (rooms, messages). The API owns storage;
// this side only consumes it.
package dataapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/core"
	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

type Client struct {
	base string
	http *http.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: marshal request: %v", core.ErrUpstream, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", core.ErrUpstream, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", core.ErrUpstream, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return core.ErrNotFound
	case resp.StatusCode >= 400:
		log.Warn().Str("module", "dataapi").Str("path", path).Int("status", resp.StatusCode).Msg("data api error")
		return fmt.Errorf("%w: %s %s: status %d", core.ErrUpstream, method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", core.ErrUpstream, err)
		}
	}
	return nil
}

func (c *Client) GetOrCreateRoom(ctx context.Context, a, b domain.UserID) (*domain.Room, error) {
	in := struct {
		ParticipantA domain.UserID `json:"participantA"`
		ParticipantB domain.UserID `json:"participantB"`
	}{a, b}
	var room domain.Room
	if err := c.do(ctx, http.MethodPost, "/rooms", in, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *Client) TouchRoom(ctx context.Context, roomID domain.RoomID, lastMessageID domain.MessageID, at time.Time) error {
	in := struct {
		LastMessageID  domain.MessageID `json:"lastMessageId"`
		LastActivityAt time.Time        `json:"lastActivityAt"`
	}{lastMessageID, at}
	return c.do(ctx, http.MethodPatch, "/rooms/"+string(roomID)+"/activity", in, nil)
}

func (c *Client) ListRoomMessages(ctx context.Context, roomID domain.RoomID) ([]*domain.Message, error) {
	var msgs []*domain.Message
	if err := c.do(ctx, http.MethodGet, "/rooms/"+string(roomID)+"/messages", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) CreateMessage(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	var stored domain.Message
	if err := c.do(ctx, http.MethodPost, "/messages", m, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (c *Client) GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	var msg domain.Message
	if err := c.do(ctx, http.MethodGet, "/messages/"+string(id), nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) UpdateMessage(ctx context.Context, id domain.MessageID, content string, editedAt time.Time) error {
	in := struct {
		Content  string    `json:"content"`
		EditedAt time.Time `json:"editedAt"`
	}{content, editedAt}
	return c.do(ctx, http.MethodPatch, "/messages/"+string(id), in, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, id domain.MessageID) error {
	return c.do(ctx, http.MethodDelete, "/messages/"+string(id), nil, nil)
}

func (c *Client) MarkMessageRead(ctx context.Context, id domain.MessageID) error {
	return c.do(ctx, http.MethodPost, "/messages/"+string(id)+"/read", nil, nil)
}
