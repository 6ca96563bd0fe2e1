package refresh

import (
	"context"
	"time"

	"github.com/jrsteele09/go-fleet-collect/upstream"
)

// TokenPair is the result of one successful refresh call. AccessExpiresAt
// may be zero when the issuer does not report it.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// Refresher performs a single network refresh call.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (*TokenPair, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return f(ctx, refreshToken)
}

type upstreamRefreshClient interface {
	Refresh(ctx context.Context, refreshToken string) (*upstream.RefreshResponse, error)
}

// UpstreamRefresher refreshes tokens against the upstream auth endpoint.
type UpstreamRefresher struct {
	client upstreamRefreshClient
}

func NewUpstreamRefresher(client upstreamRefreshClient) *UpstreamRefresher {
	return &UpstreamRefresher{client: client}
}

func (u *UpstreamRefresher) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	resp, err := u.client.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: resp.Token, RefreshToken: resp.RefreshToken}, nil
}
