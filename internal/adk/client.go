// Package adk is an HTTP client for an agent runtime exposing the ADK API
// server routes (sessions and run_sse).
package adk

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/set-night/agentchat/internal/domain"
)

// AgentHeader carries the agent a turn is routed to.
const AgentHeader = "X-Agent-Name"

// Client talks to the agent runtime over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default().With("component", "adk"),
	}
}

type sessionPayload struct {
	ID             string         `json:"id"`
	AppName        string         `json:"appName"`
	UserID         string         `json:"userId"`
	State          map[string]any `json:"state"`
	LastUpdateTime float64        `json:"lastUpdateTime"`
}

func (p sessionPayload) toDomain() *domain.RuntimeSession {
	sec, frac := math.Modf(p.LastUpdateTime)
	var updated time.Time
	if p.LastUpdateTime > 0 {
		updated = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	return &domain.RuntimeSession{
		ID:             p.ID,
		AppName:        p.AppName,
		UserID:         p.UserID,
		State:          p.State,
		LastUpdateTime: updated,
	}
}

func (c *Client) sessionsURL(appName, userID string) string {
	return fmt.Sprintf("%s/apps/%s/users/%s/sessions",
		c.baseURL, url.PathEscape(appName), url.PathEscape(userID))
}

// GetSession returns domain.ErrRuntimeSessionNotFound when the runtime has
// no such session for the user.
func (c *Client) GetSession(ctx context.Context, appName, userID, sessionID string) (*domain.RuntimeSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.sessionsURL(appName, userID)+"/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get runtime session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrRuntimeSessionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("get runtime session", resp)
	}

	var p sessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode runtime session: %w", err)
	}
	if p.ID == "" {
		return nil, domain.ErrRuntimeSessionNotFound
	}
	return p.toDomain(), nil
}

func (c *Client) CreateSession(ctx context.Context, appName, userID string, state map[string]any) (*domain.RuntimeSession, error) {
	if state == nil {
		state = map[string]any{}
	}
	body, err := json.Marshal(map[string]any{"state": state})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sessionsURL(appName, userID), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create runtime session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, statusError("create runtime session", resp)
	}

	var p sessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode runtime session: %w", err)
	}
	if p.ID == "" {
		return nil, errors.New("create runtime session: empty session id")
	}
	return p.toDomain(), nil
}

type runRequest struct {
	AppName    string  `json:"appName"`
	UserID     string  `json:"userId"`
	SessionID  string  `json:"sessionId"`
	NewMessage Content `json:"newMessage"`
	Streaming  bool    `json:"streaming"`
}

// RunTurn executes one query and drains the event stream. The text of the
// last final response wins; "" means the agent produced none.
func (c *Client) RunTurn(ctx context.Context, turn domain.Turn) (string, error) {
	body, err := json.Marshal(runRequest{
		AppName:   turn.AppName,
		UserID:    turn.UserID,
		SessionID: turn.SessionID,
		NewMessage: Content{
			Role:  "user",
			Parts: []Part{{Text: turn.Query}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run_sse", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if turn.Agent != "" {
		req.Header.Set(AgentHeader, turn.Agent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("run agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("run agent", resp)
	}

	var final string
	var events int
	err = parseSSE(resp.Body, func(ev SSEEvent) error {
		if ev.Data == "" {
			return nil
		}
		var e Event
		if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		events++
		if e.Error != "" {
			return fmt.Errorf("agent error: %s", e.Error)
		}
		if text := e.FinalText(); text != "" {
			final = text
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Debug("agent turn finished",
		"session_id", turn.SessionID,
		"agent", turn.Agent,
		"events", events,
		"has_response", final != "",
	)
	return final, nil
}

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s: runtime returned status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(b)))
}

// SSEEvent is one dispatched server-sent event.
type SSEEvent struct {
	Event string
	Data  string
}

// maxSSELine bounds a single data line; events carry whole model replies.
const maxSSELine = 4 << 20

func parseSSE(r io.Reader, handler func(SSEEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxSSELine)
	var event SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line dispatches the pending event
		if line == "" {
			if event.Event != "" || event.Data != "" {
				if err := handler(event); err != nil {
					return err
				}
				event = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event:") {
			event.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if event.Data != "" {
				event.Data += "\n" + data
			} else {
				event.Data = data
			}
		}
	}

	if event.Event != "" || event.Data != "" {
		if err := handler(event); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return nil
}
