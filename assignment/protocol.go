// Package assignment runs the vehicle/crew assignment conflict protocol for
// one session: an assignment that collides with pending ones is never
// applied until the operator confirms or cancels that exact conflict.
package assignment

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-fleet-collect/internal/errors"
	"github.com/jrsteele09/go-fleet-collect/internal/metrics"
	"github.com/jrsteele09/go-fleet-collect/internal/utils"
	"github.com/jrsteele09/go-fleet-collect/upstream"
)

const (
	opAssign  = "assign"
	opConfirm = "confirm"
	opCancel  = "cancel"
)

// Backend issues the upstream writes.
type Backend interface {
	Assign(ctx context.Context, vehicleID int64, crewIDs []int64) (*upstream.AssignResponse, error)
	ConfirmAssignments(ctx context.Context, ids []int64) (*upstream.MessageResponse, error)
	CancelAssignments(ctx context.Context, ids []int64) (*upstream.MessageResponse, error)
}

// CacheInvalidator drops cached crew/vehicle reads after a mutation.
type CacheInvalidator interface {
	InvalidateAssignments()
}

type conflictState struct {
	conflict  Conflict
	resolving bool
	resolved  string // operation that resolved it, empty while outstanding
}

// Protocol is scoped to one session. Nothing it does is retried
// automatically; failures go back to the operator.
type Protocol struct {
	companyID   int64
	backend     Backend
	invalidator CacheInvalidator
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	lock      sync.Mutex
	conflicts map[string]*conflictState
}

type ProtocolOption func(*Protocol)

func WithLogger(l zerolog.Logger) ProtocolOption {
	return func(p *Protocol) {
		p.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) ProtocolOption {
	return func(p *Protocol) {
		p.metrics = m
	}
}

func NewProtocol(companyID int64, backend Backend, invalidator CacheInvalidator, opts ...ProtocolOption) *Protocol {
	p := &Protocol{
		companyID:   companyID,
		backend:     backend,
		invalidator: invalidator,
		logger:      log.Logger,
		conflicts:   make(map[string]*conflictState),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("component", "assignment").Int64("company_id", companyID).Logger()
	return p
}

// Assign submits the request as a single call. Several crew ids are treated
// atomically: a collision on any of them yields one Conflict for the call.
func (p *Protocol) Assign(ctx context.Context, vehicleID int64, crewIDs ...int64) Result {
	req := Request{VehicleID: vehicleID, CrewIDs: crewIDs}
	if err := req.Validate(); err != nil {
		return p.record(opAssign, failure(err))
	}

	resp, err := p.backend.Assign(ctx, req.VehicleID, req.CrewIDs)
	if err != nil {
		return p.record(opAssign, failure(classify(err)))
	}

	if len(resp.PendingAssignmentIDs) > 0 {
		conflict := Conflict{
			Code:        resp.Error,
			Message:     resp.Message,
			Explanation: resp.Explanation,
			PendingIDs:  slices.Clone([]int64(resp.PendingAssignmentIDs)),
		}
		if conflict.Message == "" {
			conflict.Message = "assignment conflicts with pending assignments"
		}
		p.lock.Lock()
		p.conflicts[utils.IDSetKey(conflict.PendingIDs)] = &conflictState{conflict: conflict}
		p.lock.Unlock()

		p.logger.Info().
			Int64("vehicle_id", vehicleID).
			Ints64("pending_ids", conflict.PendingIDs).
			Msg("assignment conflict")
		return p.record(opAssign, Result{Outcome: OutcomeConflict, Message: conflict.Message, Conflict: &conflict})
	}

	if resp.StatusCode == http.StatusConflict {
		err := errors.Wrapf(errors.ErrUpstream, "conflict response carried no pending assignment ids")
		return p.record(opAssign, failure(err))
	}

	p.invalidator.InvalidateAssignments()
	msg := resp.Message
	if msg == "" {
		msg = "assignment applied"
	}
	return p.record(opAssign, success(msg))
}

// Confirm finalises the pending assignments of an outstanding conflict.
func (p *Protocol) Confirm(ctx context.Context, ids []int64) Result {
	return p.resolve(ctx, opConfirm, ids, p.backend.ConfirmAssignments)
}

// Cancel discards the pending assignments of an outstanding conflict and
// leaves the prior state in place.
func (p *Protocol) Cancel(ctx context.Context, ids []int64) Result {
	return p.resolve(ctx, opCancel, ids, p.backend.CancelAssignments)
}

// Outstanding returns the unresolved conflicts.
func (p *Protocol) Outstanding() []Conflict {
	p.lock.Lock()
	defer p.lock.Unlock()

	out := make([]Conflict, 0, len(p.conflicts))
	for _, st := range p.conflicts {
		if st.resolved == "" {
			out = append(out, st.conflict)
		}
	}
	return out
}

func (p *Protocol) resolve(ctx context.Context, op string, ids []int64,
	call func(context.Context, []int64) (*upstream.MessageResponse, error),
) Result {
	if !utils.AllPositive(ids) {
		return p.record(op, failure(errors.Wrapf(errors.ErrValidation, "assignment ids must be a non-empty list of positive ids")))
	}
	key := utils.IDSetKey(ids)

	p.lock.Lock()
	st, ok := p.conflicts[key]
	switch {
	case !ok:
		p.lock.Unlock()
		return p.record(op, failure(errors.Wrapf(errors.ErrUnknownConflict, "ids %v", ids)))
	case st.resolved != "":
		p.lock.Unlock()
		return p.record(op, failure(errors.Wrapf(errors.ErrConflictResolved, "ids %v already resolved by %s", ids, st.resolved)))
	case st.resolving:
		p.lock.Unlock()
		return p.record(op, failure(errors.Wrapf(errors.ErrConflictBusy, "ids %v are being resolved", ids)))
	}
	st.resolving = true
	pending := slices.Clone(st.conflict.PendingIDs)
	p.lock.Unlock()

	resp, err := call(ctx, pending)

	p.lock.Lock()
	st.resolving = false
	if err == nil {
		st.resolved = op
	}
	p.lock.Unlock()

	if err != nil {
		return p.record(op, failure(classify(err)))
	}

	p.invalidator.InvalidateAssignments()
	msg := fmt.Sprintf("%d pending assignment(s) %sed", len(pending), op)
	if resp != nil && resp.Message != "" {
		msg = resp.Message
	}
	return p.record(op, success(msg))
}

func (p *Protocol) record(op string, res Result) Result {
	p.metrics.AssignmentOutcome(op, res.Outcome.String())
	if res.Outcome == OutcomeFailure {
		p.logger.Warn().Err(res.Err).Str("operation", op).Msg("assignment call failed")
	}
	return res
}

// classify maps an upstream failure onto the assignment error taxonomy,
// keeping the original error in the chain.
func classify(err error) error {
	var statusErr *upstream.StatusError
	switch {
	case errors.Is(err, errors.ErrSessionExpired), errors.Is(err, errors.ErrInvalidToken):
		return fmt.Errorf("%w: %w", errors.ErrUnauthorized, err)
	case stderrors.As(err, &statusErr):
		if statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden {
			return fmt.Errorf("%w: %w", errors.ErrUnauthorized, err)
		}
		return fmt.Errorf("%w: %w", errors.ErrUpstream, err)
	case isTransport(err):
		return fmt.Errorf("%w: %w", errors.ErrNetwork, err)
	default:
		return fmt.Errorf("%w: %w", errors.ErrUpstream, err)
	}
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var urlErr *url.Error
	var netErr net.Error
	return stderrors.As(err, &urlErr) || stderrors.As(err, &netErr)
}
