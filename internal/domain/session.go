package domain

import (
	"time"
)

// Session mirrors a conversation held by the agent runtime. SessionID is
// always the identifier the runtime assigned.
type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Platform  Platform  `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewSession struct {
	UserID   string
	Platform Platform
}

// SessionFilter selects sessions for listing. Platform is required.
type SessionFilter struct {
	Platform Platform
	UserID   string
}

// Resource is a structured attachment carried by a user message, e.g. a
// parsed trade history upload.
type Resource map[string]any

type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	Sender    Sender    `json:"sender"`
	Resource  Resource  `json:"resource"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewMessage struct {
	Message  string
	Sender   Sender
	Resource Resource
}

// TurnMessages builds the user/ai pair recorded for one chat turn. The
// resource only ever rides on the user message.
func TurnMessages(query string, resource Resource, response string) []NewMessage {
	return []NewMessage{
		{Message: query, Sender: SenderUser, Resource: resource},
		{Message: response, Sender: SenderAI},
	}
}

// RuntimeSession is the agent runtime's view of a session.
type RuntimeSession struct {
	ID             string
	AppName        string
	UserID         string
	State          map[string]any
	LastUpdateTime time.Time
}

// Turn is one query executed against a runtime session.
type Turn struct {
	AppName   string
	Agent     string
	UserID    string
	SessionID string
	Query     string
}

// ChatResult is returned to the caller after a recorded turn.
type ChatResult struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}
