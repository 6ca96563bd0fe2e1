package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-fleet-collect/internal/errors"
	"github.com/jrsteele09/go-fleet-collect/token/refresh"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the caller's *sessionEntry
const ContextKeySession ContextKey = "session"

// RequireSession resolves the session cookie to a live gateway session.
// With trackActivity the request counts as operator activity.
func (s *Server) RequireSession(trackActivity bool) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			entry, err := s.sessionFromRequest(r)
			if err != nil {
				s.clearSessionCookie(w)
				writeError(w, err)
				return
			}

			if trackActivity {
				if err := entry.manager.TrackActivity(refresh.ActivityRequest); err != nil {
					s.clearSessionCookie(w)
					writeError(w, err)
					return
				}
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, entry)
			next(w, r.WithContext(ctx))
		}
	}
}

func (s *Server) sessionFromRequest(r *http.Request) (*sessionEntry, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnauthorized, "no session cookie")
	}
	sid, err := s.tokens.Verify(cookie.Value)
	if err != nil {
		return nil, err
	}
	entry, ok := s.registry.get(sid)
	if !ok {
		return nil, errors.Wrapf(errors.ErrSessionExpired, "session %s", sid)
	}
	if entry.manager.State().Terminal() {
		s.endSession(sid, "")
		return nil, errors.ErrSessionExpired
	}
	return entry, nil
}

func sessionFromContext(ctx context.Context) *sessionEntry {
	entry, _ := ctx.Value(ContextKeySession).(*sessionEntry)
	return entry
}

func (s *Server) setSessionCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.config.GetMaxSessionAge().Seconds()),
		HttpOnly: true,
		Secure:   s.env == "PROD",
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.env == "PROD",
		SameSite: http.SameSiteLaxMode,
	})
}

// endSession releases everything held for sid. It is the logout handler of
// every session manager and is safe to call more than once.
func (s *Server) endSession(sid string, reason refresh.Reason) {
	entry, ok := s.registry.remove(sid)
	if !ok {
		return
	}
	entry.catalog.Close()
	s.notices.forget(sid)
	if err := s.sessions.Delete(sid); err != nil {
		log.Warn().Err(err).Str("session_id", sid).Msg("failed to delete session")
	}
	s.metrics.SetActiveSessions(s.registry.len())
	log.Info().Str("session_id", sid).Str("reason", string(reason)).Msg("session released")
}
