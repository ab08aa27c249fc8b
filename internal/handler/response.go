package handler

import "github.com/set-night/agentchat/internal/domain"

type DataResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

type ListResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    []T    `json:"data"`
	Meta    Meta   `json:"meta"`
}

type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type ErrorResponse struct {
	Success    bool          `json:"success"`
	StatusCode int           `json:"status_code"`
	Message    string        `json:"message"`
	ErrorType  string        `json:"error_type"`
	Errors     []ErrorDetail `json:"errors,omitempty"`
}

// ChatData is the payload of a successful chat turn.
type ChatData struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	UserQuery string `json:"user_query"`
}

func dataResponse(message string, data any) DataResponse {
	return DataResponse{Success: true, Message: message, Data: data}
}

func listResponse[T any](message string, r domain.ListResult[T]) ListResponse[T] {
	return ListResponse[T]{
		Success: true,
		Message: message,
		Data:    r.Items,
		Meta: Meta{
			Total:      r.Total,
			Page:       r.Page,
			PageSize:   r.PageSize,
			TotalPages: r.TotalPages,
		},
	}
}
