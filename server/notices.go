package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-fleet-collect/events"
)

// Notice is the latest lifecycle message for a session, shown by the client
// as a non-blocking banner ("reconnecting", "offline").
type Notice struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type noticeBoard struct {
	lock sync.Mutex
	last map[string]Notice
}

func newNoticeBoard() *noticeBoard {
	return &noticeBoard{last: make(map[string]Notice)}
}

func (n *noticeBoard) set(sessionID string, notice Notice) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.last[sessionID] = notice
}

func (n *noticeBoard) get(sessionID string) (Notice, bool) {
	n.lock.Lock()
	defer n.lock.Unlock()
	notice, ok := n.last[sessionID]
	return notice, ok
}

func (n *noticeBoard) forget(sessionID string) {
	n.lock.Lock()
	defer n.lock.Unlock()
	delete(n.last, sessionID)
}

// onSessionEvent logs lifecycle events and keeps the latest notice per
// session for the status endpoint.
func (s *Server) onSessionEvent(e events.Event) {
	logger := log.With().Str("session_id", e.SessionID()).Str("event", e.EventType()).Logger()

	var message string
	switch ev := e.(type) {
	case events.Refreshed:
		logger.Debug().Int("attempts", ev.Attempts).Time("access_expires_at", ev.AccessExpiresAt).Msg("session refreshed")
		s.notices.forget(e.SessionID())
		return
	case events.RefreshRetrying:
		message = fmt.Sprintf("Reconnecting, retry %d in %s", ev.Attempt, ev.Delay)
		logger.Info().Str("kind", ev.Kind).Int("attempt", ev.Attempt).Dur("delay", ev.Delay).Msg("refresh retrying")
	case events.RefreshFailed:
		message = "Your session could not be renewed"
		logger.Warn().Str("kind", ev.Kind).Bool("retryable", ev.Retryable).Int("attempts", ev.Attempts).Msg("refresh failed")
	case events.SessionExpired:
		message = "Session ended: " + ev.Reason
		logger.Info().Str("reason", ev.Reason).Msg("session expired")
	case events.NetworkStatus:
		message = "Back online"
		if !ev.Online {
			message = "Offline, changes may not be saved"
		}
		logger.Info().Bool("online", ev.Online).Msg("network status")
	default:
		return
	}
	s.notices.set(e.SessionID(), Notice{Type: e.EventType(), Message: message, At: e.Timestamp()})
}
