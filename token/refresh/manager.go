// Package refresh keeps one session's upstream access token valid and ends
// the session when it cannot: periodic and on-demand refresh with coalescing
// and exponential backoff, inactivity expiry and a hard session-age ceiling.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-fleet-collect/events"
	"github.com/jrsteele09/go-fleet-collect/internal/config"
	"github.com/jrsteele09/go-fleet-collect/internal/errors"
	"github.com/jrsteele09/go-fleet-collect/internal/metrics"
	"github.com/jrsteele09/go-fleet-collect/scheduler"
	"github.com/jrsteele09/go-fleet-collect/sessions"
	"github.com/jrsteele09/go-fleet-collect/token"
)

const flightKey = "refresh"

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Manager is the lifecycle manager of a single session. It is the only
// writer of that session's record once the session has been created.
type Manager struct {
	sessionID string
	repo      sessions.Repo
	refresher Refresher
	cfg       config.SessionConfig
	sched     scheduler.Scheduler
	sleep     SleepFunc
	logger    zerolog.Logger
	bus       *events.Bus
	metrics   *metrics.Metrics

	group singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	lock              sync.Mutex
	state             State
	reason            Reason
	online            bool
	retryCount        int
	lastErr           *RefreshError
	lastRefreshFailed bool
	logoutHandler     func(Reason)
	logoutFired       bool

	refreshTimer    scheduler.Handle
	inactivityTimer scheduler.Handle
	ceilingTimer    scheduler.Handle
	expiryTimer     scheduler.Handle
}

type ManagerOption func(*Manager)

func WithScheduler(s scheduler.Scheduler) ManagerOption {
	return func(m *Manager) {
		m.sched = s
	}
}

// WithSleep replaces the backoff wait between refresh attempts.
func WithSleep(sleep SleepFunc) ManagerOption {
	return func(m *Manager) {
		m.sleep = sleep
	}
}

func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

func WithEvents(bus *events.Bus) ManagerOption {
	return func(m *Manager) {
		m.bus = bus
	}
}

func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// NewManager creates an idle manager for sessionID. Call Start to arm it.
func NewManager(sessionID string, repo sessions.Repo, refresher Refresher, cfg config.SessionConfig, options ...ManagerOption) *Manager {
	m := &Manager{
		sessionID: sessionID,
		repo:      repo,
		refresher: refresher,
		cfg:       cfg,
		sched:     scheduler.New(),
		sleep:     sleepContext,
		logger:    log.Logger,
		online:    true,
	}
	for _, opt := range options {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "refresh").Str("session_id", sessionID).Logger()
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SessionID returns the session this manager owns.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// SetLogoutHandler installs the single subscriber that performs the logout
// redirect. It runs at most once, when the session ends by expiry or
// Logout; a later call replaces an earlier handler.
func (m *Manager) SetLogoutHandler(fn func(Reason)) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.logoutHandler = fn
}

// Start arms the periodic refresh, inactivity, session-ceiling and
// refresh-token expiry timers, replacing any armed by a previous Start.
// A non-empty refreshToken replaces the stored one.
func (m *Manager) Start(refreshToken string) error {
	m.lock.Lock()
	if m.state.Terminal() {
		m.lock.Unlock()
		return errors.ErrSessionExpired
	}
	fresh := m.state == StateIdle
	m.lock.Unlock()

	sess, err := m.repo.Get(m.sessionID)
	if err != nil {
		return errors.Wrapf(err, "starting session %s", m.sessionID)
	}
	now := m.sched.Now()
	if refreshToken != "" {
		sess.RefreshToken = refreshToken
	}
	if fresh {
		sess.StartedAt = now
		sess.LastActivity = now
	}
	if err := m.repo.Upsert(sess); err != nil {
		return errors.Wrapf(err, "starting session %s", m.sessionID)
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state.Terminal() {
		return errors.ErrSessionExpired
	}
	m.cancelTimersLocked()

	m.refreshTimer = m.sched.Schedule(m.cfg.GetRefreshInterval(), m.onRefreshTimer)

	idleLeft := m.cfg.GetInactivityTimeout() - now.Sub(sess.LastActivity)
	m.inactivityTimer = m.sched.Schedule(max(idleLeft, 0), m.onInactivityCheck)

	if maxAge := m.cfg.GetMaxSessionAge(); maxAge > 0 {
		m.ceilingTimer = m.sched.Schedule(max(sess.StartedAt.Add(maxAge).Sub(now), 0), func() {
			m.expire(ReasonSessionCeiling)
		})
	}
	if !sess.RefreshExpiresAt.IsZero() {
		m.expiryTimer = m.sched.Schedule(max(sess.RefreshExpiresAt.Sub(now), 0), func() {
			m.expire(ReasonRefreshExpired)
		})
	}

	if m.state == StateIdle {
		m.state = StateActive
	}
	m.logger.Debug().Bool("fresh", fresh).Msg("session timers armed")
	return nil
}

// Stop clears every timer and ends the session instance without invoking
// the logout handler. Used on teardown.
func (m *Manager) Stop() {
	m.terminate(StateLoggedOut, "", false)
}

// Logout ends the session at the operator's request and notifies the
// logout handler.
func (m *Manager) Logout() {
	m.terminate(StateLoggedOut, ReasonLogout, true)
}

func (m *Manager) expire(reason Reason) {
	m.terminate(StateExpired, reason, true)
}

func (m *Manager) terminate(state State, reason Reason, notify bool) {
	m.lock.Lock()
	if m.state.Terminal() {
		m.lock.Unlock()
		return
	}
	m.state = state
	m.reason = reason
	m.cancelTimersLocked()
	m.cancel()

	var handler func(Reason)
	if notify && !m.logoutFired {
		handler = m.logoutHandler
		m.logoutFired = true
	}
	m.lock.Unlock()

	if reason != "" {
		m.logger.Info().Str("reason", string(reason)).Str("state", state.String()).Msg("session ended")
		m.metrics.SessionExpired(string(reason))
		m.bus.Publish(events.NewSessionExpired(m.sessionID, m.sched.Now(), string(reason)))
	}
	if handler != nil {
		handler(reason)
	}
}

func (m *Manager) cancelTimersLocked() {
	for _, h := range []*scheduler.Handle{&m.refreshTimer, &m.inactivityTimer, &m.ceilingTimer, &m.expiryTimer} {
		if *h != 0 {
			m.sched.Cancel(*h)
			*h = 0
		}
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

// Status returns a snapshot for status endpoints.
func (m *Manager) Status() Status {
	m.lock.Lock()
	st := Status{
		State:      m.state,
		Reason:     m.reason,
		Online:     m.online,
		RetryCount: m.retryCount,
		LastError:  m.lastErr,
	}
	m.lock.Unlock()

	if sess, err := m.repo.Get(m.sessionID); err == nil {
		st.StartedAt = sess.StartedAt
		st.LastActivity = sess.LastActivity
		st.AccessExpiresAt = sess.AccessExpiresAt
	}
	return st
}

// ShouldRefresh reports whether an access token expiring at expiry falls
// inside the refresh lookahead window. An unknown (zero) expiry never does.
func (m *Manager) ShouldRefresh(expiry time.Time) bool {
	if expiry.IsZero() {
		return false
	}
	return expiry.Sub(m.sched.Now()) <= m.cfg.GetRefreshLookahead()
}

// flightJoined runs once a caller is attached to the refresh flight.
var flightJoined = func() {}

// RefreshWithRetry refreshes the session's tokens and returns the new
// access token. Concurrent callers share one in-flight attempt and see the
// same result. An empty refreshToken uses the stored one. The flight runs
// on the manager's own context: a caller whose ctx ends stops waiting but
// does not cancel the flight for the others.
func (m *Manager) RefreshWithRetry(ctx context.Context, refreshToken string) (string, error) {
	if m.State().Terminal() {
		return "", errors.ErrSessionExpired
	}

	ch := m.group.DoChan(flightKey, func() (any, error) {
		return m.runRefresh(refreshToken)
	})
	flightJoined()

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) runRefresh(refreshToken string) (string, error) {
	if refreshToken == "" {
		sess, err := m.repo.Get(m.sessionID)
		if err != nil {
			return "", errors.Wrapf(err, "loading refresh token")
		}
		refreshToken = sess.RefreshToken
	}

	maxRetries := max(m.cfg.GetRefreshMaxRetries(), 0)
	base := m.cfg.GetRefreshBaseDelay()

	var last *RefreshError
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if !m.setState(StateRefreshing) {
			return "", errors.ErrSessionExpired
		}
		attempts++

		pair, err := m.refresher.Refresh(m.ctx, refreshToken)
		if err == nil {
			m.metrics.RefreshAttempt("ok")
			return m.applyRefresh(pair, attempts)
		}
		if m.State().Terminal() {
			return "", errors.ErrSessionExpired
		}

		last = Categorize(err)
		m.metrics.RefreshAttempt(string(last.Kind))
		m.recordFailure(last, attempts)
		if !last.Retryable || attempt == maxRetries {
			break
		}

		delay := base * time.Duration(1<<attempt)
		m.logger.Warn().
			Str("kind", string(last.Kind)).
			Int("attempt", attempts).
			Dur("delay", delay).
			Msg("token refresh failed, retrying")
		m.bus.Publish(events.NewRefreshRetrying(m.sessionID, m.sched.Now(), attempts, delay, string(last.Kind), last.Message))
		if !m.setState(StateRetryBackoff) {
			return "", errors.ErrSessionExpired
		}
		if err := m.sleep(m.ctx, delay); err != nil {
			return "", errors.ErrSessionExpired
		}
	}

	m.logger.Error().
		Str("kind", string(last.Kind)).
		Bool("retryable", last.Retryable).
		Int("attempts", attempts).
		Msg("token refresh gave up")
	m.metrics.RefreshOutcome("failed")
	m.bus.Publish(events.NewRefreshFailed(m.sessionID, m.sched.Now(), string(last.Kind), last.Message, last.Retryable, attempts))

	reason := ReasonRetriesExhausted
	if !last.Retryable {
		reason = ReasonInvalidToken
	}
	m.expire(reason)
	return "", last
}

func (m *Manager) applyRefresh(pair *TokenPair, attempts int) (string, error) {
	now := m.sched.Now()
	expiry := pair.AccessExpiresAt
	if expiry.IsZero() {
		expiry = token.AccessTokenExpiry(pair.AccessToken)
	}
	if expiry.IsZero() {
		expiry = now.Add(m.cfg.GetDefaultAccessTokenTTL())
	}

	sess, err := m.repo.Get(m.sessionID)
	if err != nil {
		return "", errors.Wrapf(err, "storing refreshed tokens")
	}
	sess.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		sess.RefreshToken = pair.RefreshToken
	}
	sess.AccessExpiresAt = expiry
	if err := m.repo.Upsert(sess); err != nil {
		return "", errors.Wrapf(err, "storing refreshed tokens")
	}

	m.lock.Lock()
	if m.state.Terminal() {
		m.lock.Unlock()
		return "", errors.ErrSessionExpired
	}
	m.state = StateActive
	m.retryCount = 0
	m.lastErr = nil
	m.lastRefreshFailed = false
	wasOffline := !m.online
	m.online = true
	if m.refreshTimer != 0 {
		m.sched.Cancel(m.refreshTimer)
	}
	m.refreshTimer = m.sched.Schedule(m.cfg.GetRefreshInterval(), m.onRefreshTimer)
	m.lock.Unlock()

	if wasOffline {
		m.bus.Publish(events.NewNetworkStatus(m.sessionID, now, true))
	}
	m.metrics.RefreshOutcome("ok")
	m.bus.Publish(events.NewRefreshed(m.sessionID, now, expiry, attempts))
	m.logger.Debug().Int("attempts", attempts).Time("access_expires_at", expiry).Msg("token refreshed")
	return pair.AccessToken, nil
}

// setState moves a live manager to state and reports false once the
// session has ended.
func (m *Manager) setState(state State) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state.Terminal() {
		return false
	}
	m.state = state
	return true
}

func (m *Manager) recordFailure(rerr *RefreshError, attempts int) {
	m.lock.Lock()
	m.retryCount = attempts
	m.lastErr = rerr
	m.lastRefreshFailed = true
	goneOffline := m.online && (rerr.Kind == KindNetwork || rerr.Kind == KindTimeout)
	if goneOffline {
		m.online = false
	}
	m.lock.Unlock()

	if goneOffline {
		m.bus.Publish(events.NewNetworkStatus(m.sessionID, m.sched.Now(), false))
	}
}

func (m *Manager) onRefreshTimer() {
	if _, err := m.RefreshWithRetry(m.ctx, ""); err != nil {
		m.logger.Debug().Err(err).Msg("scheduled refresh did not complete")
	}
}

func (m *Manager) onInactivityCheck() {
	sess, err := m.repo.Get(m.sessionID)
	if err != nil {
		m.logger.Warn().Err(err).Msg("inactivity check could not load session")
		return
	}
	timeout := m.cfg.GetInactivityTimeout()
	idle := m.sched.Now().Sub(sess.LastActivity)
	if idle >= timeout {
		m.expire(ReasonInactivity)
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state.Terminal() {
		return
	}
	m.inactivityTimer = m.sched.Schedule(timeout-idle, m.onInactivityCheck)
}

// deadlineReason reports whether sess has already outlived its inactivity
// window or the session ceiling, whether or not the timers have fired yet.
func (m *Manager) deadlineReason(sess sessions.Session, now time.Time) (Reason, bool) {
	if !sess.LastActivity.IsZero() && now.Sub(sess.LastActivity) >= m.cfg.GetInactivityTimeout() {
		return ReasonInactivity, true
	}
	if maxAge := m.cfg.GetMaxSessionAge(); maxAge > 0 && !sess.StartedAt.IsZero() && now.Sub(sess.StartedAt) >= maxAge {
		return ReasonSessionCeiling, true
	}
	if sess.RefreshExpired(now) {
		return ReasonRefreshExpired, true
	}
	return "", false
}

// TrackActivity records an operator interaction. Activity cannot revive a
// session whose inactivity window has already elapsed. A visibility restore
// also schedules a refresh when the access token is about to expire.
func (m *Manager) TrackActivity(kind ActivityKind) error {
	if _, err := ParseActivityKind(string(kind)); err != nil {
		return err
	}
	if m.State().Terminal() {
		return errors.ErrSessionExpired
	}

	sess, err := m.repo.Get(m.sessionID)
	if err != nil {
		return errors.Wrapf(err, "tracking activity")
	}
	now := m.sched.Now()
	if reason, over := m.deadlineReason(sess, now); over {
		m.expire(reason)
		return errors.ErrSessionExpired
	}

	sess.LastActivity = now
	if err := m.repo.Upsert(sess); err != nil {
		return errors.Wrapf(err, "tracking activity")
	}

	if kind == ActivityVisibility && m.ShouldRefresh(sess.AccessExpiresAt) {
		m.scheduleBackgroundRefresh("visibility restored")
	}
	return nil
}

// SetOnline records a connectivity transition reported by the client.
// Coming back online while a refresh is due, or after a failed one,
// schedules an immediate refresh.
func (m *Manager) SetOnline(online bool) {
	m.lock.Lock()
	if m.state.Terminal() || m.online == online {
		m.lock.Unlock()
		return
	}
	m.online = online
	lastFailed := m.lastRefreshFailed
	live := m.state == StateActive
	m.lock.Unlock()

	m.logger.Info().Bool("online", online).Msg("network status changed")
	m.bus.Publish(events.NewNetworkStatus(m.sessionID, m.sched.Now(), online))

	if !online || !live {
		return
	}
	due := lastFailed
	if !due {
		if sess, err := m.repo.Get(m.sessionID); err == nil {
			due = m.ShouldRefresh(sess.AccessExpiresAt)
		}
	}
	if due {
		m.scheduleBackgroundRefresh("back online")
	}
}

func (m *Manager) scheduleBackgroundRefresh(why string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state.Terminal() {
		return
	}
	m.logger.Debug().Str("trigger", why).Msg("scheduling refresh")
	m.sched.Schedule(0, m.onRefreshTimer)
}

// EnsureFresh returns a usable access token, refreshing first when the
// current one is inside the lookahead window.
func (m *Manager) EnsureFresh(ctx context.Context) (string, error) {
	if m.State().Terminal() {
		return "", errors.ErrSessionExpired
	}
	sess, err := m.repo.Get(m.sessionID)
	if err != nil {
		return "", errors.Wrapf(err, "loading session")
	}
	if reason, over := m.deadlineReason(sess, m.sched.Now()); over {
		m.expire(reason)
		return "", errors.ErrSessionExpired
	}
	if sess.AccessToken != "" && !m.ShouldRefresh(sess.AccessExpiresAt) {
		return sess.AccessToken, nil
	}
	return m.RefreshWithRetry(ctx, sess.RefreshToken)
}

var _ oauth2.TokenSource = (*Manager)(nil)

// Token implements oauth2.TokenSource so upstream calls made on behalf of
// the session carry a fresh Bearer token.
func (m *Manager) Token() (*oauth2.Token, error) {
	access, err := m.EnsureFresh(m.ctx)
	if err != nil {
		if m.State().Terminal() && !errors.Is(err, errors.ErrSessionExpired) {
			return nil, fmt.Errorf("%w: %w", errors.ErrSessionExpired, err)
		}
		return nil, err
	}
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer"}, nil
}
