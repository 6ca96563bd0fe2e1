package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-fleet-collect/internal/errors"
	"github.com/jrsteele09/go-fleet-collect/token/refresh"
	"github.com/jrsteele09/go-fleet-collect/upstream"
)

func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errors.Wrapf(errors.ErrValidation, "vehicle id"), http.StatusBadRequest},
		{"expired session", errors.ErrSessionExpired, http.StatusUnauthorized},
		{"unknown conflict", errors.Wrapf(errors.ErrUnknownConflict, "ids [1]"), http.StatusNotFound},
		{"resolved conflict", errors.Wrapf(errors.ErrConflictResolved, "ids [1]"), http.StatusConflict},
		{"resolution in progress", errors.Wrapf(errors.ErrConflictBusy, "ids [1]"), http.StatusConflict},
		{"network", errors.ErrNetwork, http.StatusServiceUnavailable},
		{"upstream status", &upstream.StatusError{Code: http.StatusInternalServerError}, http.StatusBadGateway},
		{"upstream forbidden", &upstream.StatusError{Code: http.StatusForbidden}, http.StatusUnauthorized},
		{"terminal refresh", &refresh.RefreshError{Kind: refresh.KindInvalidToken}, http.StatusUnauthorized},
		{"retryable refresh", &refresh.RefreshError{Kind: refresh.KindNetwork, Retryable: true}, http.StatusServiceUnavailable},
		{"unmapped", http.ErrBodyNotAllowed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, mapErrorToStatus(tt.err))
		})
	}
}
