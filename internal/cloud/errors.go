package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches 401/403 platform responses via errors.Is.
	ErrUnauthorized = errors.New("platform rejected the api key")
	// ErrNotFound matches 404 platform responses via errors.Is.
	ErrNotFound = errors.New("platform resource not found")
	// ErrWaitTimeout is returned when a blocking wait exhausts its timeout
	// before the remote task reaches a terminal status.
	ErrWaitTimeout = errors.New("timed out waiting for task")
)

// APIError is a non-2xx platform response. Code and Message come from the
// platform error body when it parses; Body keeps the raw text otherwise.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform error: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("platform error: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and rate limiting (429).
// Other client errors (4xx) are considered permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Is lets errors.Is match the status-class sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	default:
		return false
	}
}

func newAPIError(status int, body []byte, requestID string) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		RequestID:  requestID,
		Body:       string(body),
	}
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
	}
	return apiErr
}

// TaskFailedError reports a remote task that reached a terminal failure
// status. It is permanent; resubmitting the source is the only recovery.
type TaskFailedError struct {
	TaskID string
	Status string
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s ended with status %q", e.TaskID, e.Status)
}
