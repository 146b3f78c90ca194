package discord

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Discord JSON error codes the wipe cares about.
const (
	CodeUnknownChannel = 10003
	CodeUnknownMessage = 10008
	CodeMissingAccess  = 50001
	CodeSystemMessage  = 50021 // cannot execute action on a system message
	CodeBulkTooOld     = 50034 // bulk delete only accepts messages under 14 days old
)

// ErrRateLimitExhausted is returned when a call keeps getting 429s past the retry bound.
var ErrRateLimitExhausted = errors.New("rate limit retries exhausted")

// APIError is any non-2xx response other than 429.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Code    int
	Message string
	Body    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api %s %s: %d %s", e.Method, e.Path, e.Status, e.Body)
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{
		Method: method,
		Path:   path,
		Status: status,
		Body:   string(body),
	}
	var msg discordgo.APIErrorMessage
	if err := json.Unmarshal(body, &msg); err == nil {
		e.Code = msg.Code
		e.Message = msg.Message
	}
	return e
}

// IsCode reports whether err is an APIError carrying the given Discord error code.
func IsCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
