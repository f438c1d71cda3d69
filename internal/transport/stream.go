package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/coder/websocket"
	"github.com/flitsinc/taskbridge/internal/protocol"
)

func (c *Client) StartStream(ctx context.Context, parts []protocol.Part) (Stream, error) {
	conn, err := c.dial(ctx, "/tasks/stream")
	if err != nil {
		return nil, &Error{Op: "start stream", Err: err}
	}
	payload, err := protocol.EncodeFrame(protocol.MessageFrame(protocol.Message{
		Role:  protocol.RoleUser,
		Parts: parts,
	}))
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "encode failed")
		return nil, &Error{Op: "start stream", Err: err}
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "write failed")
		return nil, &Error{Op: "start stream", Err: err}
	}
	return &wsStream{conn: conn}, nil
}

func (c *Client) Resubscribe(ctx context.Context, taskID string) (Stream, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task id is required")
	}
	conn, err := c.dial(ctx, fmt.Sprintf("/tasks/%s/stream", taskID))
	if err != nil {
		return nil, &Error{Op: "resubscribe", Err: err}
	}
	return &wsStream{conn: conn}, nil
}

func (c *Client) dial(ctx context.Context, path string) (*websocket.Conn, error) {
	opts := &websocket.DialOptions{HTTPClient: c.http}
	if c.token != "" {
		opts.HTTPHeader = map[string][]string{"Authorization": {"Bearer " + c.token}}
	}
	conn, _, err := websocket.Dial(ctx, wsURL(c.baseURL)+path, opts)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(4 << 20)
	return conn, nil
}

func wsURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Recv(ctx context.Context) (protocol.Frame, error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			return protocol.Frame{}, ErrStreamClosed
		}
		if ctx.Err() != nil {
			return protocol.Frame{}, ctx.Err()
		}
		return protocol.Frame{}, &Error{Op: "stream read", Err: err}
	}
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		return protocol.Frame{}, &Error{Op: "stream decode", Err: err}
	}
	return frame, nil
}

func (s *wsStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "done")
}
