package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-fleet-collect/assignment"
	"github.com/jrsteele09/go-fleet-collect/fleet"
	"github.com/jrsteele09/go-fleet-collect/internal/errors"
	"github.com/jrsteele09/go-fleet-collect/sessions"
	"github.com/jrsteele09/go-fleet-collect/token"
	"github.com/jrsteele09/go-fleet-collect/token/refresh"
	"github.com/jrsteele09/go-fleet-collect/upstream"
)

type loginRequest struct {
	Username   string `json:"username"`
	PassPhrase string `json:"pass_phrase"`
}

// sessionView is the client-visible part of a session; tokens never leave
// the gateway.
type sessionView struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Username        string          `json:"username"`
	DisplayName     string          `json:"display_name"`
	Role            string          `json:"role"`
	CompanyID       string          `json:"company_id"`
	StageID         string          `json:"stage_id,omitempty"`
	Rights          []string        `json:"rights"`
	Stats           json.RawMessage `json:"stats,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	LastActivity    time.Time       `json:"last_activity"`
	AccessExpiresAt time.Time       `json:"access_expires_at"`
}

func newSessionView(sess sessions.Session) sessionView {
	return sessionView{
		ID:              sess.ID,
		UserID:          sess.UserID,
		Username:        sess.Username,
		DisplayName:     sess.DisplayName,
		Role:            sess.Role,
		CompanyID:       sess.CompanyID,
		StageID:         sess.StageID,
		Rights:          sess.Rights,
		Stats:           sess.Stats,
		StartedAt:       sess.StartedAt,
		LastActivity:    sess.LastActivity,
		AccessExpiresAt: sess.AccessExpiresAt,
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}
		body.Username = strings.TrimSpace(body.Username)
		if body.Username == "" || body.PassPhrase == "" {
			writeError(w, errors.Wrapf(errors.ErrValidation, "username and pass_phrase are required"))
			return
		}

		resp, err := s.upstream.Login(r.Context(), body.Username, body.PassPhrase)
		if err != nil {
			var statusErr *upstream.StatusError
			if errors.As(err, &statusErr) && (statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden) {
				err = errors.Wrapf(errors.ErrInvalidCredentials, "%s", statusErr.Message)
			}
			log.Info().Err(err).Str("username", body.Username).Msg("login rejected")
			writeError(w, err)
			return
		}

		sess := s.newSession(resp)
		if err := s.sessions.Upsert(sess); err != nil {
			writeError(w, err)
			return
		}
		entry := s.newSessionEntry(sess)
		if err := entry.manager.Start(resp.RefreshToken); err != nil {
			_ = s.sessions.Delete(sess.ID)
			writeError(w, err)
			return
		}
		s.registry.put(entry)
		s.metrics.SetActiveSessions(s.registry.len())

		cookie, err := s.tokens.Issue(sess.ID, sess.UserID, s.config.GetMaxSessionAge())
		if err != nil {
			entry.manager.Stop()
			s.endSession(sess.ID, "")
			writeError(w, err)
			return
		}
		s.setSessionCookie(w, cookie)

		stored, err := s.sessions.Get(sess.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		log.Info().Str("session_id", sess.ID).Str("user_id", sess.UserID).Msg("session started")
		writeJSON(w, http.StatusOK, newSessionView(stored))
	}
}

func (s *Server) newSession(resp *upstream.LoginResponse) sessions.Session {
	now := s.sched.Now()
	accessExpiry := resp.AccessExpiresAt.Time
	if accessExpiry.IsZero() {
		accessExpiry = token.AccessTokenExpiry(resp.AccessToken)
	}
	if accessExpiry.IsZero() {
		accessExpiry = now.Add(s.config.GetDefaultAccessTokenTTL())
	}
	displayName := resp.User.FullName
	if displayName == "" {
		displayName = resp.User.Username
	}
	return sessions.Session{
		ID:               uuid.NewString(),
		UserID:           resp.User.ID.String(),
		Username:         resp.User.Username,
		DisplayName:      displayName,
		Role:             resp.Role,
		AccessToken:      resp.AccessToken,
		RefreshToken:     resp.RefreshToken,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: resp.RefreshExpiresAt.Time,
		StartedAt:        now,
		LastActivity:     now,
		CompanyID:        resp.User.CompanyID.String(),
		StageID:          resp.User.StageID.String(),
		Rights:           resp.User.Rights,
		Stats:            resp.User.Stats,
	}
}

func (s *Server) newSessionEntry(sess sessions.Session) *sessionEntry {
	opts := []refresh.ManagerOption{
		refresh.WithScheduler(s.sched),
		refresh.WithEvents(s.bus),
		refresh.WithMetrics(s.metrics),
		refresh.WithLogger(log.Logger),
	}
	if s.sleep != nil {
		opts = append(opts, refresh.WithSleep(s.sleep))
	}
	manager := refresh.NewManager(sess.ID, s.sessions, refresh.NewUpstreamRefresher(s.upstream), s.config, opts...)
	manager.SetLogoutHandler(func(reason refresh.Reason) {
		s.endSession(sess.ID, reason)
	})

	companyID, _ := strconv.ParseInt(sess.CompanyID, 10, 64)
	authed := s.upstream.WithTokenSource(manager)
	catalog := fleet.NewCatalog(authed, s.config.GetListCacheTTL(),
		fleet.WithLogger(log.Logger),
		fleet.WithNowFunc(s.sched.Now))
	protocol := assignment.NewProtocol(companyID, authed, catalog,
		assignment.WithMetrics(s.metrics),
		assignment.WithLogger(log.Logger))

	return &sessionEntry{
		id:        sess.ID,
		companyID: companyID,
		manager:   manager,
		protocol:  protocol,
		catalog:   catalog,
	}
}

// LogoutHandler ends the caller's session if there is one and always clears
// the cookie.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if entry, err := s.sessionFromRequest(r); err == nil {
			entry.manager.Logout()
		}
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			if err := s.tokens.Revoke(cookie.Value); err != nil {
				log.Warn().Err(err).Msg("failed to revoke session cookie")
			}
		}
		s.clearSessionCookie(w)
		writeEnvelope(w, http.StatusOK, APIResponse{Success: true, Message: "logged out"})
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry := sessionFromContext(r.Context())
		if _, err := entry.manager.RefreshWithRetry(r.Context(), ""); err != nil {
			if entry.manager.State().Terminal() {
				s.clearSessionCookie(w)
				writeError(w, errors.Wrapf(errors.ErrSessionExpired, "%v", err))
				return
			}
			writeError(w, err)
			return
		}
		st := entry.manager.Status()
		writeJSON(w, http.StatusOK, map[string]any{"access_expires_at": st.AccessExpiresAt})
	}
}

func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry := sessionFromContext(r.Context())
		sess, err := s.sessions.Get(entry.id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionView(sess))
	}
}

type statusView struct {
	refresh.Status
	Notice             *Notice `json:"notice,omitempty"`
	PendingConflicts   int     `json:"pending_conflicts"`
	InactivityDeadline string  `json:"inactivity_deadline"`
}

func (s *Server) SessionStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry := sessionFromContext(r.Context())
		st := entry.manager.Status()
		view := statusView{
			Status:             st,
			PendingConflicts:   len(entry.protocol.Outstanding()),
			InactivityDeadline: st.LastActivity.Add(s.config.GetInactivityTimeout()).UTC().Format(time.RFC3339),
		}
		if notice, ok := s.notices.get(entry.id); ok {
			view.Notice = &notice
		}
		writeJSON(w, http.StatusOK, view)
	}
}

type activityRequest struct {
	Kind   string `json:"kind"`
	Online *bool  `json:"online,omitempty"`
}

// ActivityHandler records a browser interaction and, when reported, the
// browser's connectivity.
func (s *Server) ActivityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry := sessionFromContext(r.Context())
		var body activityRequest
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}
		if body.Online != nil {
			entry.manager.SetOnline(*body.Online)
		}
		if body.Kind != "" {
			kind, err := refresh.ParseActivityKind(body.Kind)
			if err != nil {
				writeError(w, err)
				return
			}
			if err := entry.manager.TrackActivity(kind); err != nil {
				if errors.Is(err, errors.ErrSessionExpired) {
					s.clearSessionCookie(w)
				}
				writeError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, entry.manager.Status())
	}
}
