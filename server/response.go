package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-fleet-collect/internal/errors"
	"github.com/jrsteele09/go-fleet-collect/token/refresh"
	"github.com/jrsteele09/go-fleet-collect/upstream"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, APIResponse{Success: true, Data: data})
}

func writeEnvelope(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorMessage(w, mapErrorToStatus(err), err.Error())
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, APIResponse{Success: false, Error: message})
}

// mapErrorToStatus walks the error chain for a known sentinel.
func mapErrorToStatus(err error) int {
	var statusErr *upstream.StatusError
	var refreshErr *refresh.RefreshError
	var urlErr *url.Error
	switch {
	case errors.Is(err, errors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrInvalidCredentials),
		errors.Is(err, errors.ErrUnauthorized),
		errors.Is(err, errors.ErrSessionExpired),
		errors.Is(err, errors.ErrSessionNotFound),
		errors.Is(err, errors.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, errors.ErrUnknownConflict):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrConflictResolved), errors.Is(err, errors.ErrConflictBusy):
		return http.StatusConflict
	case errors.Is(err, errors.ErrNetwork):
		return http.StatusServiceUnavailable
	case errors.Is(err, errors.ErrUpstream):
		return http.StatusBadGateway
	case stderrors.As(err, &statusErr):
		if statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden {
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	case stderrors.As(err, &urlErr):
		return http.StatusServiceUnavailable
	case stderrors.As(err, &refreshErr):
		if !refreshErr.Retryable {
			return http.StatusUnauthorized
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errors.Wrapf(errors.ErrValidation, "invalid request body (%v)", err)
	}
	return nil
}
