package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flitsinc/taskbridge/internal/eventlog"
	"github.com/flitsinc/taskbridge/internal/planner"
)

const systemPrompt = "You are the mediator between a local user and a remote agent in a " +
	"turn-based conversation. Return JSON only, no markdown. " +
	`Schema: {"kind":"send_to_agent|read_attachment|ask_user|sleep|done",` +
	`"text":"...","attachments":["name"],"name":"...","purpose":"...",` +
	`"question":"...","summary":"..."}. ` +
	"Rules: send_to_agent only when can_send is true; reference attachments by their " +
	"listed names only; ask_user when you need information from the local user; " +
	"sleep when it is the remote side's turn and there is nothing to do; " +
	"done with a short summary when the conversation goal is reached."

// Config for an OpenAI-compatible chat-completions endpoint.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Client is an LLM-backed Oracle: one Decide call is one chat completion
// that must come back as a single tool-call JSON object.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("oracle base URL is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("oracle model is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Decide(ctx context.Context, snapshot planner.Context) (planner.ToolCall, error) {
	payload, err := json.Marshal(contextPayload(snapshot))
	if err != nil {
		return planner.ToolCall{}, fmt.Errorf("marshal oracle context: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Temperature: 0.1,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(payload)},
		},
	})
	if err != nil {
		return planner.ToolCall{}, fmt.Errorf("marshal oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return planner.ToolCall{}, fmt.Errorf("create oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return planner.ToolCall{}, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return planner.ToolCall{}, fmt.Errorf("read oracle response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return planner.ToolCall{}, fmt.Errorf("oracle status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var chat chatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return planner.ToolCall{}, fmt.Errorf("decode oracle response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return planner.ToolCall{}, fmt.Errorf("oracle returned no choices")
	}

	return parseToolCall(chat.Choices[0].Message.Content)
}

func contextPayload(snapshot planner.Context) map[string]any {
	events := make([]string, 0, len(snapshot.Events))
	for _, evt := range snapshot.Events {
		events = append(events, renderEvent(evt))
	}
	return map[string]any{
		"task_state":  string(snapshot.State),
		"task_exists": snapshot.TaskExists,
		"can_send":    snapshot.CanSend,
		"turns_taken": snapshot.Turns,
		"attachments": snapshot.Attachments,
		"events":      events,
	}
}

func renderEvent(evt eventlog.Event) string {
	switch evt.Kind {
	case eventlog.KindStatus:
		return "status: " + string(evt.State)
	case eventlog.KindUserMessage:
		return "user: " + evt.Text
	case eventlog.KindAgentMessage:
		return "agent: " + evt.Text
	case eventlog.KindSentToAgent:
		line := "sent: " + evt.Text
		if len(evt.Attachments) > 0 {
			line += " [attachments: " + strings.Join(evt.Attachments, ", ") + "]"
		}
		return line
	case eventlog.KindAskedUser:
		return "asked user: " + evt.Question
	case eventlog.KindAgentDocument:
		return "agent shared document: " + evt.Name + " (" + evt.Mime + ")"
	case eventlog.KindReadAttachment:
		if evt.OK {
			return "read attachment " + evt.Name + ": " + evt.Result
		}
		return "read attachment " + evt.Name + " failed: " + evt.Reason
	case eventlog.KindError:
		return "error " + evt.Code + ": " + evt.Details
	default:
		return string(evt.Kind)
	}
}

// parseToolCall accepts the raw completion text, tolerating code fences
// and prose around the JSON object.
func parseToolCall(content string) (planner.ToolCall, error) {
	raw := extractJSON(content)
	var call planner.ToolCall
	if err := json.Unmarshal([]byte(raw), &call); err != nil {
		return planner.ToolCall{}, fmt.Errorf("parse tool call: %w", err)
	}
	switch call.Kind {
	case planner.ToolSendToAgent, planner.ToolReadAttachment, planner.ToolAskUser, planner.ToolSleep, planner.ToolDone:
		return call, nil
	default:
		return planner.ToolCall{}, fmt.Errorf("unknown tool call kind %q", call.Kind)
	}
}

func extractJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}
