package transport

import (
	"errors"
	"strings"
)

// Error kinds the relay core branches on. Classification from raw
// destination responses happens here, never in the core.
var (
	// ErrTopicInvalid means the destination rejected the topic id
	// (deleted topic, invalid thread). Triggers mapping invalidation.
	ErrTopicInvalid = errors.New("transport: topic invalid")
	// ErrNotModified means an edit target was already identical.
	ErrNotModified = errors.New("transport: message not modified")
	// ErrUnavailable covers network and auth failures.
	ErrUnavailable = errors.New("transport: destination unavailable")
)

// classifyAPIError maps a destination error description onto one of the
// structured kinds. The description strings are part of the Bot API
// contract; this is the single place they are inspected.
func classifyAPIError(code int, description string) error {
	desc := strings.ToLower(description)
	switch {
	case strings.Contains(desc, "not modified"):
		return ErrNotModified
	case strings.Contains(desc, "thread not found"),
		strings.Contains(desc, "topic_deleted"),
		strings.Contains(desc, "topic_closed"),
		strings.Contains(desc, "message to edit not found"):
		return ErrTopicInvalid
	case code == 401 || code == 403 || code >= 500:
		return ErrUnavailable
	}
	return &apiError{code: code, description: description}
}

// apiError is a destination-reported error with no special handling.
type apiError struct {
	code        int
	description string
}

func (e *apiError) Error() string {
	return "transport: api error " + strings.TrimSpace(e.description)
}
