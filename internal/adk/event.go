package adk

import "strings"

// Event is the subset of a runtime event the chat flow reads.
type Event struct {
	ID                 string   `json:"id,omitempty"`
	Author             string   `json:"author,omitempty"`
	InvocationID       string   `json:"invocationId,omitempty"`
	Content            *Content `json:"content,omitempty"`
	Partial            bool     `json:"partial,omitempty"`
	TurnComplete       bool     `json:"turnComplete,omitempty"`
	Actions            Actions  `json:"actions"`
	LongRunningToolIDs []string `json:"longRunningToolIds,omitempty"`
	ErrorCode          string   `json:"errorCode,omitempty"`
	ErrorMessage       string   `json:"errorMessage,omitempty"`
	// Error is set by the API server when the run itself failed.
	Error string `json:"error,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text             string         `json:"text,omitempty"`
	FunctionCall     map[string]any `json:"functionCall,omitempty"`
	FunctionResponse map[string]any `json:"functionResponse,omitempty"`
}

type Actions struct {
	SkipSummarization bool `json:"skipSummarization,omitempty"`
}

// IsFinalResponse reports whether the event is the agent's answer for the
// turn rather than an intermediate step.
func (e *Event) IsFinalResponse() bool {
	if e.Actions.SkipSummarization || len(e.LongRunningToolIDs) > 0 {
		return true
	}
	return !e.hasFunctionCalls() && !e.hasFunctionResponses() && !e.Partial
}

func (e *Event) hasFunctionCalls() bool {
	if e.Content == nil {
		return false
	}
	for _, p := range e.Content.Parts {
		if p.FunctionCall != nil {
			return true
		}
	}
	return false
}

func (e *Event) hasFunctionResponses() bool {
	if e.Content == nil {
		return false
	}
	for _, p := range e.Content.Parts {
		if p.FunctionResponse != nil {
			return true
		}
	}
	return false
}

// FinalText returns the trimmed text of the first part of a final response,
// or "" when the event carries none.
func (e *Event) FinalText() string {
	if !e.IsFinalResponse() || e.Content == nil || len(e.Content.Parts) == 0 {
		return ""
	}
	return strings.TrimSpace(e.Content.Parts[0].Text)
}
