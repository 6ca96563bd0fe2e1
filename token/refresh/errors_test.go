package refresh_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-fleet-collect/internal/errors"
	"github.com/jrsteele09/go-fleet-collect/token/refresh"
	"github.com/jrsteele09/go-fleet-collect/upstream"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestCategorize(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      refresh.Kind
		retryable bool
	}{
		{"unauthorized", &upstream.StatusError{Code: http.StatusUnauthorized}, refresh.KindInvalidToken, false},
		{"forbidden", &upstream.StatusError{Code: http.StatusForbidden}, refresh.KindInvalidToken, false},
		{"server error", &upstream.StatusError{Code: http.StatusInternalServerError}, refresh.KindServer, true},
		{"rate limited", &upstream.StatusError{Code: http.StatusTooManyRequests}, refresh.KindServer, true},
		{"gateway timeout", &upstream.StatusError{Code: http.StatusGatewayTimeout}, refresh.KindTimeout, true},
		{"bad request", &upstream.StatusError{Code: http.StatusBadRequest}, refresh.KindUnknown, true},
		{"rejected invalid", &upstream.RefreshRejectedError{Status: "error", Message: "Invalid refresh token"}, refresh.KindInvalidToken, false},
		{"rejected other", &upstream.RefreshRejectedError{Status: "error", Message: "try later"}, refresh.KindUnknown, true},
		{"sentinel", fmt.Errorf("lookup: %w", errors.ErrRefreshTokenExpired), refresh.KindInvalidToken, false},
		{"deadline", context.DeadlineExceeded, refresh.KindTimeout, true},
		{"canceled", fmt.Errorf("refresh: %w", context.Canceled), refresh.KindTimeout, true},
		{"net timeout", &url.Error{Op: "Post", URL: "http://x", Err: timeoutErr{}}, refresh.KindTimeout, true},
		{"dial refused", &net.OpError{Op: "dial", Net: "tcp", Err: stderrors.New("connection refused")}, refresh.KindNetwork, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.example"}, refresh.KindNetwork, true},
		{"reset text", stderrors.New("read: connection reset by peer"), refresh.KindNetwork, true},
		{"unknown", stderrors.New("boom"), refresh.KindUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := refresh.Categorize(tt.err)
			require.NotNil(t, got)
			require.Equal(t, tt.kind, got.Kind)
			require.Equal(t, tt.retryable, got.Retryable)
			require.ErrorIs(t, got, tt.err)
		})
	}
}

func TestCategorize_NilAndPassThrough(t *testing.T) {
	require.Nil(t, refresh.Categorize(nil))

	orig := &refresh.RefreshError{Kind: refresh.KindServer, Message: "x", Retryable: true}
	require.Same(t, orig, refresh.Categorize(fmt.Errorf("wrapped: %w", orig)))
}
