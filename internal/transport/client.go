package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/flitsinc/taskbridge/internal/protocol"
)

// Client speaks the task protocol over HTTP: JSON request/response for the
// unary operations and a websocket frame stream for live updates.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type sendRequest struct {
	Parts []protocol.Part `json:"parts"`
}

func (c *Client) Send(ctx context.Context, taskID string, parts []protocol.Part) (protocol.Task, error) {
	if taskID == "" {
		return protocol.Task{}, fmt.Errorf("task id is required")
	}
	var task protocol.Task
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/tasks/%s/messages", taskID), sendRequest{Parts: parts}, &task)
	if err != nil {
		return protocol.Task{}, &Error{Op: "send", Err: err}
	}
	return task, nil
}

func (c *Client) GetSnapshot(ctx context.Context, taskID string) (protocol.Task, error) {
	if taskID == "" {
		return protocol.Task{}, fmt.Errorf("task id is required")
	}
	var task protocol.Task
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/tasks/%s", taskID), nil, &task)
	if err != nil {
		return protocol.Task{}, &Error{Op: "snapshot", Err: err}
	}
	return task, nil
}

func (c *Client) Cancel(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task id is required")
	}
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/tasks/%s/cancel", taskID), nil, nil); err != nil {
		return &Error{Op: "cancel", Err: err}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
