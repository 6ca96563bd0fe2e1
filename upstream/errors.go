package upstream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Code, e.Message)
}

// RefreshRejectedError is a 2xx refresh reply whose status is not "success".
type RefreshRejectedError struct {
	Status  string
	Message string
}

func (e *RefreshRejectedError) Error() string {
	return fmt.Sprintf("refresh rejected (status %q): %s", e.Status, e.Message)
}

// errorMessage extracts {error} or {message} from an upstream body, falling
// back to the trimmed body text.
func errorMessage(body []byte) string {
	var payload struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if s, ok := payload.Error.(string); ok && s != "" {
			return s
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
