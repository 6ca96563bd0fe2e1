package fleet

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/go-fleet-collect/internal/errors"
)

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (e envelope) failure() error {
	msg := e.Error
	if msg == "" {
		msg = e.Message
	}
	if msg == "" {
		msg = "request unsuccessful"
	}
	return errors.Wrapf(errors.ErrUpstream, "%s", msg)
}

// DecodeList accepts either {success, data: [...]} or a bare array.
func DecodeList[T any](body []byte) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.Wrapf(errors.ErrUpstream, "empty list response")
	}

	out := []T{}
	if body[0] == '[' {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decoding list: %w", err)
		}
		return out, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding list envelope: %w", err)
	}
	if env.Success != nil && !*env.Success {
		return nil, env.failure()
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("decoding list data: %w", err)
	}
	return out, nil
}

// DecodeObject accepts either {success, data: {...}} or a bare object.
func DecodeObject[T any](body []byte) (T, error) {
	var out T
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return out, errors.Wrapf(errors.ErrUpstream, "empty response")
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return out, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Success != nil && !*env.Success {
		return out, env.failure()
	}
	payload := body
	if env.Success != nil && len(env.Data) > 0 {
		payload = env.Data
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decoding object: %w", err)
	}
	return out, nil
}
