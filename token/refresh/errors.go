package refresh

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-fleet-collect/internal/errors"
	"github.com/jrsteele09/go-fleet-collect/upstream"
)

// Kind classifies a failed refresh attempt.
type Kind string

const (
	KindNetwork      Kind = "NETWORK_ERROR"
	KindInvalidToken Kind = "INVALID_TOKEN"
	KindServer       Kind = "SERVER_ERROR"
	KindTimeout      Kind = "TIMEOUT"
	KindUnknown      Kind = "UNKNOWN"
)

// RefreshError is a categorised refresh failure.
type RefreshError struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Cause     error  `json:"-"`
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RefreshError) Unwrap() error {
	return e.Cause
}

var networkFragments = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"broken pipe",
	"failed to fetch",
}

// Categorize maps a low-level refresh failure onto the Kind taxonomy and
// decides whether it is worth retrying. Unknown failures stay retryable so
// an ambiguous error never logs an operator out on its own.
func Categorize(err error) *RefreshError {
	if err == nil {
		return nil
	}

	var re *RefreshError
	if stderrors.As(err, &re) {
		return re
	}

	newErr := func(kind Kind, retryable bool) *RefreshError {
		return &RefreshError{Kind: kind, Message: err.Error(), Retryable: retryable, Cause: err}
	}

	var statusErr *upstream.StatusError
	if stderrors.As(err, &statusErr) {
		switch code := statusErr.Code; {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return newErr(KindInvalidToken, false)
		case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
			return newErr(KindTimeout, true)
		case code == http.StatusTooManyRequests || code >= 500:
			return newErr(KindServer, true)
		default:
			return newErr(KindUnknown, true)
		}
	}

	var rejected *upstream.RefreshRejectedError
	if stderrors.As(err, &rejected) {
		msg := strings.ToLower(rejected.Message)
		if strings.Contains(msg, "invalid") || strings.Contains(msg, "expired") {
			return newErr(KindInvalidToken, false)
		}
		return newErr(KindUnknown, true)
	}

	if errors.Is(err, errors.ErrInvalidRefreshToken) ||
		errors.Is(err, errors.ErrRefreshTokenExpired) ||
		errors.Is(err, errors.ErrInvalidToken) {
		return newErr(KindInvalidToken, false)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newErr(KindTimeout, true)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return newErr(KindTimeout, true)
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var urlErr *url.Error
	if stderrors.As(err, &opErr) || stderrors.As(err, &dnsErr) || stderrors.As(err, &urlErr) {
		return newErr(KindNetwork, true)
	}
	text := strings.ToLower(err.Error())
	for _, fragment := range networkFragments {
		if strings.Contains(text, fragment) {
			return newErr(KindNetwork, true)
		}
	}

	return newErr(KindUnknown, true)
}
