package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-fleet-collect/internal/errors"
)

// SessionTokens issues and verifies the signed cookie value that binds a
// browser to a gateway session.
type SessionTokens struct {
	signer  Signer
	nowFunc func() time.Time
	revoked RevokedTokenCache
}

type SessionTokensOption func(*SessionTokens)

func WithNowFunc(now func() time.Time) SessionTokensOption {
	return func(s *SessionTokens) {
		s.nowFunc = now
	}
}

// WithRevokedTokenCache replaces the in-memory revocation list.
func WithRevokedTokenCache(c RevokedTokenCache) SessionTokensOption {
	return func(s *SessionTokens) {
		s.revoked = c
	}
}

func NewSessionTokens(signer Signer, options ...SessionTokensOption) *SessionTokens {
	s := &SessionTokens{signer: signer, nowFunc: time.Now, revoked: NewInMemoryRevokedTokenCache()}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Issue returns a signed token naming sessionID, valid for ttl.
func (s *SessionTokens) Issue(sessionID, userID string, ttl time.Duration) (string, error) {
	now := s.nowFunc()
	return s.signer.Sign(jwt.MapClaims{
		"sid": sessionID,
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": uuid.New().String(),
	})
}

// Verify checks the signature, expiry and revocation of raw and returns its
// session ID.
func (s *SessionTokens) Verify(raw string) (string, error) {
	claims, err := s.parse(raw)
	if err != nil {
		return "", err
	}
	if jti, _ := claims["jti"].(string); jti != "" && s.revoked.IsRevoked(jti) {
		return "", errors.Wrapf(errors.ErrInvalidToken, "session token revoked")
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return "", errors.Wrapf(errors.ErrInvalidToken, "session token has no sid")
	}
	return sid, nil
}

// Revoke rejects raw from now on. Tokens that no longer verify are ignored.
func (s *SessionTokens) Revoke(raw string) error {
	claims, err := s.parse(raw)
	if err != nil {
		return nil
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return errors.Wrapf(errors.ErrInvalidToken, "session token has no expiry")
	}
	s.revoked.Cleanup(s.nowFunc())
	return s.revoked.Add(jti, exp.Time)
}

func (s *SessionTokens) parse(raw string) (jwt.MapClaims, error) {
	if raw == "" {
		return nil, errors.ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(s.nowFunc),
		jwt.WithExpirationRequired(),
	)
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, s.signer.GetVerificationKey); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "session token rejected (%v)", err)
	}
	return claims, nil
}
