package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/set-night/agentchat/internal/domain"
)

const (
	errTypeValidation = "validation_error"
	errTypeBadRequest = "bad_request"
	errTypeNotFound   = "not_found"
	errTypeConflict   = "conflict"
	errTypeRuntime    = "runtime_error"
	errTypeRateLimit  = "rate_limited"
	errTypeTooLarge   = "payload_too_large"
	errTypeInternal   = "internal_error"
	errTypeHTTP       = "http_error"
)

// ErrorHandler renders every handler error as an ErrorResponse. Internal
// failures are logged and their details withheld from the client.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	resp := errorResponse(err)
	if resp.StatusCode >= http.StatusInternalServerError {
		slog.Error("request failed",
			"error", err,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
		)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(resp.StatusCode)
	} else {
		werr = c.JSON(resp.StatusCode, resp)
	}
	if werr != nil {
		slog.Error("write error response", "error", werr)
	}
}

func errorResponse(err error) ErrorResponse {
	var verrs validator.ValidationErrors
	var tooLarge *http.MaxBytesError
	var he *echo.HTTPError

	switch {
	case errors.As(err, &verrs):
		details := make([]ErrorDetail, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, ErrorDetail{
				Field:   fe.Field(),
				Message: fieldMessage(fe),
				Type:    fe.Tag(),
			})
		}
		return ErrorResponse{
			StatusCode: http.StatusUnprocessableEntity,
			Message:    "Validation error",
			ErrorType:  errTypeValidation,
			Errors:     details,
		}
	case errors.As(err, &tooLarge):
		return newError(http.StatusRequestEntityTooLarge, errTypeTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, domain.ErrInvalidPlatform),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidPage):
		return newError(http.StatusUnprocessableEntity, errTypeValidation, err.Error())
	case errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrInvalidPayload):
		return newError(http.StatusBadRequest, errTypeBadRequest, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		return newError(http.StatusNotFound, errTypeNotFound, err.Error())
	case errors.Is(err, domain.ErrSessionExists):
		return newError(http.StatusConflict, errTypeConflict, err.Error())
	case errors.Is(err, domain.ErrRuntime):
		return newError(http.StatusBadGateway, errTypeRuntime, "agent runtime is unavailable")
	case errors.As(err, &he):
		return newError(he.Code, httpErrorType(he.Code), fmt.Sprint(he.Message))
	}
	return newError(http.StatusInternalServerError, errTypeInternal, "Internal server error")
}

func newError(status int, errType, message string) ErrorResponse {
	return ErrorResponse{
		StatusCode: status,
		Message:    message,
		ErrorType:  errType,
	}
}

func httpErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return errTypeBadRequest
	case http.StatusNotFound:
		return errTypeNotFound
	case http.StatusRequestEntityTooLarge:
		return errTypeTooLarge
	case http.StatusTooManyRequests:
		return errTypeRateLimit
	}
	if status >= http.StatusInternalServerError {
		return errTypeInternal
	}
	return errTypeHTTP
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "platform":
		return fmt.Sprintf("must be one of %v", domain.Platforms)
	case "uuid":
		return "must be a valid UUID"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

// bindQuery binds query parameters into dst and validates it. Malformed
// values are validation failures, not bad requests.
func bindQuery(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, dst); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, bindMessage(err))
	}
	return c.Validate(dst)
}

func bindMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return fmt.Sprint(he.Message)
	}
	return err.Error()
}
