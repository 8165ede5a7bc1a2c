// Package client talks to a running command-center server over HTTP and
// its WebSocket push channel.
package client

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

	"github.com/gorilla/websocket"

	"github.com/timvw/command-center/internal/events"
	"github.com/timvw/command-center/internal/model"
	"github.com/timvw/command-center/internal/server"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Client is an HTTP client for one server.
type Client struct {
	baseURL string
	client  *http.Client
}

// New returns a client for baseURL, e.g. "http://127.0.0.1:3000".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Launch asks the server to start a session.
func (c *Client) Launch(ctx context.Context, req model.LaunchRequest) (model.Session, error) {
	var s model.Session
	err := c.do(ctx, http.MethodPost, "/api/sessions/launch", req, &s)
	return s, err
}

// Sessions lists every known session.
func (c *Client) Sessions(ctx context.Context) ([]model.Session, error) {
	var out []model.Session
	err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &out)
	return out, err
}

// Kill terminates a session.
func (c *Client) Kill(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(id), nil, nil)
}

// SendInput types text into a session followed by Enter.
func (c *Client) SendInput(ctx context.Context, id, text string) error {
	return c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/input", server.InputRequest{Text: text}, nil)
}

// SendKeys sends raw key names to a session.
func (c *Client) SendKeys(ctx context.Context, id string, keys ...string) error {
	return c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/keys", server.KeysRequest{Keys: keys}, nil)
}

// Notifications returns the notification history and unread count.
func (c *Client) Notifications(ctx context.Context) (server.NotificationsResponse, error) {
	var out server.NotificationsResponse
	err := c.do(ctx, http.MethodGet, "/api/notifications", nil, &out)
	return out, err
}

// MarkAllRead marks every notification read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/read", nil, nil)
}

// Projects returns the configured project catalogue.
func (c *Client) Projects(ctx context.Context) ([]model.Project, error) {
	var out []model.Project
	err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var er server.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&er) == nil {
			apiErr.Kind = er.Error
			apiErr.Message = er.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// Frame is one message pushed over the WebSocket.
type Frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"ts"`
}

// Notification decodes the frame as a notification.
func (f Frame) Notification() (events.Notification, error) {
	var n events.Notification
	err := json.Unmarshal(f.Data, &n)
	return n, err
}

// Init decodes the frame as the connect snapshot.
func (f Frame) Init() (server.InitPayload, error) {
	var p server.InitPayload
	err := json.Unmarshal(f.Data, &p)
	return p, err
}

// Subscribe opens the push channel. Frames are delivered on the returned
// channel, which is closed when the connection drops or ctx ends.
func (c *Client) Subscribe(ctx context.Context) (<-chan Frame, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}

	out := make(chan Frame, 64)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()
	go func() {
		defer close(out)
		defer close(done)
		for {
			var f Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
