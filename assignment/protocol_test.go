package assignment_test

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-fleet-collect/assignment"
	"github.com/jrsteele09/go-fleet-collect/internal/errors"
	"github.com/jrsteele09/go-fleet-collect/upstream"
)

// fakeBackend models the upstream: pending assignments become applied on
// confirm and disappear on cancel.
type fakeBackend struct {
	mu          sync.Mutex
	assignResp  *upstream.AssignResponse
	assignErr   error
	resolveErrs []error
	pending     map[int64]bool
	applied     map[int64]bool
	calls       []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{pending: map[int64]bool{}, applied: map[int64]bool{}}
}

func (f *fakeBackend) Assign(_ context.Context, _ int64, _ []int64) (*upstream.AssignResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "assign")
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	for _, id := range f.assignResp.PendingAssignmentIDs {
		f.pending[id] = true
	}
	resp := *f.assignResp
	return &resp, nil
}

func (f *fakeBackend) resolve(op string, ids []int64, apply bool) (*upstream.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if len(f.resolveErrs) > 0 {
		err := f.resolveErrs[0]
		f.resolveErrs = f.resolveErrs[1:]
		return nil, err
	}
	for _, id := range ids {
		delete(f.pending, id)
		if apply {
			f.applied[id] = true
		}
	}
	return &upstream.MessageResponse{Message: op + " ok"}, nil
}

func (f *fakeBackend) ConfirmAssignments(_ context.Context, ids []int64) (*upstream.MessageResponse, error) {
	return f.resolve("confirm", ids, true)
}

func (f *fakeBackend) CancelAssignments(_ context.Context, ids []int64) (*upstream.MessageResponse, error) {
	return f.resolve("cancel", ids, false)
}

func (f *fakeBackend) appliedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.applied))
	for id := range f.applied {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) InvalidateAssignments() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func conflictResponse(ids ...int64) *upstream.AssignResponse {
	return &upstream.AssignResponse{
		StatusCode:           http.StatusConflict,
		Error:                "conflict",
		Message:              "crew member has a pending assignment",
		PendingAssignmentIDs: ids,
	}
}

func newProtocol(b *fakeBackend) (*assignment.Protocol, *countingInvalidator) {
	inv := &countingInvalidator{}
	return assignment.NewProtocol(3, b, inv), inv
}

func TestAssign_PlainSuccess(t *testing.T) {
	b := newFakeBackend()
	b.assignResp = &upstream.AssignResponse{StatusCode: http.StatusOK, Message: "ok"}
	p, inv := newProtocol(b)

	res := p.Assign(context.Background(), 42, 5)
	require.Equal(t, assignment.OutcomeSuccess, res.Outcome)
	require.Equal(t, "ok", res.Message)
	require.Nil(t, res.Conflict)
	require.NoError(t, res.Err)
	require.Equal(t, 1, inv.count())
}

func TestAssign_ConflictSurfacesPendingIDs(t *testing.T) {
	b := newFakeBackend()
	b.assignResp = conflictResponse(11)
	p, inv := newProtocol(b)

	res := p.Assign(context.Background(), 42, 5)
	require.Equal(t, assignment.OutcomeConflict, res.Outcome)
	require.NotNil(t, res.Conflict)
	require.Equal(t, []int64{11}, res.Conflict.PendingIDs)
	require.Equal(t, "conflict", res.Conflict.Code)
	require.Zero(t, inv.count())
	require.Len(t, p.Outstanding(), 1)
}

func TestAssign_PendingIDsOn200AreAConflict(t *testing.T) {
	b := newFakeBackend()
	b.assignResp = &upstream.AssignResponse{StatusCode: http.StatusOK, PendingAssignmentIDs: upstream.IDList{7, 9}}
	p, inv := newProtocol(b)

	res := p.Assign(context.Background(), 42, 5, 6)
	require.Equal(t, assignment.OutcomeConflict, res.Outcome)
	require.Equal(t, []int64{7, 9}, res.Conflict.PendingIDs)
	require.Zero(t, inv.count())
}

func TestConfirm_AppliesOnceThenReportsResolved(t *testing.T) {
	b := newFakeBackend()
	b.assignResp = conflictResponse(7, 9)
	p, inv := newProtocol(b)
	ctx := context.Background()

	res := p.Assign(ctx, 42, 5)
	require.Equal(t, assignment.OutcomeConflict, res.Outcome)

	res = p.Confirm(ctx, []int64{9, 7})
	require.Equal(t, assignment.OutcomeSuccess, res.Outcome)
	require.Equal(t, []int64{7, 9}, b.appliedIDs())
	require.Equal(t, 1, inv.count())
	require.Empty(t, p.Outstanding())

	res = p.Confirm(ctx, []int64{7, 9})
	require.Equal(t, assignment.OutcomeFailure, res.Outcome)
	require.ErrorIs(t, res.Err, errors.ErrConflictResolved)
	require.Equal(t, []string{"assign", "confirm"}, b.calls)
	require.Equal(t, 1, inv.count())
}

func TestCancel_LeavesPriorState(t *testing.T) {
	b := newFakeBackend()
	b.assignResp = conflictResponse(7, 9)
	p, inv := newProtocol(b)
	ctx := context.Background()

	p.Assign(ctx, 42, 5)
	res := p.Cancel(ctx, []int64{7, 9})
	require.Equal(t, assignment.OutcomeSuccess, res.Outcome)
	require.Empty(t, b.appliedIDs())
	require.Empty(t, b.pending)
	require.Equal(t, 1, inv.count())

	res = p.Confirm(ctx, []int64{7, 9})
	require.ErrorIs(t, res.Err, errors.ErrConflictResolved)
	require.Empty(t, b.appliedIDs())
}

func TestResolve_OnlyAcceptsTheConflictIDs(t *testing.T) {
	b := newFakeBackend()
	b.assignResp = conflictResponse(7, 9)
	p, _ := newProtocol(b)
	ctx := context.Background()

	res := p.Confirm(ctx, []int64{7, 9})
	require.ErrorIs(t, res.Err, errors.ErrUnknownConflict)

	p.Assign(ctx, 42, 5)
	res = p.Confirm(ctx, []int64{7})
	require.ErrorIs(t, res.Err, errors.ErrUnknownConflict)
	res = p.Cancel(ctx, nil)
	require.ErrorIs(t, res.Err, errors.ErrValidation)
	require.Equal(t, []string{"assign"}, b.calls)
}

func TestResolve_FailureKeepsConflictOutstanding(t *testing.T) {
	b := newFakeBackend()
	b.assignResp = conflictResponse(7, 9)
	b.resolveErrs = []error{&upstream.StatusError{Code: http.StatusBadGateway}}
	p, inv := newProtocol(b)
	ctx := context.Background()

	p.Assign(ctx, 42, 5)
	res := p.Confirm(ctx, []int64{7, 9})
	require.Equal(t, assignment.OutcomeFailure, res.Outcome)
	require.ErrorIs(t, res.Err, errors.ErrUpstream)
	require.Zero(t, inv.count())
	require.Len(t, p.Outstanding(), 1)

	res = p.Confirm(ctx, []int64{7, 9})
	require.Equal(t, assignment.OutcomeSuccess, res.Outcome)
	require.Equal(t, 1, inv.count())
}

func TestAssign_Failures(t *testing.T) {
	tests := []struct {
		name    string
		vehicle int64
		crew    []int64
		resp    *upstream.AssignResponse
		err     error
		want    error
	}{
		{name: "bad vehicle", vehicle: 0, crew: []int64{5}, want: errors.ErrValidation},
		{name: "no crew", vehicle: 42, want: errors.ErrValidation},
		{name: "negative crew", vehicle: 42, crew: []int64{5, -1}, want: errors.ErrValidation},
		{name: "unauthorized", vehicle: 42, crew: []int64{5}, err: &upstream.StatusError{Code: http.StatusForbidden}, want: errors.ErrUnauthorized},
		{name: "server", vehicle: 42, crew: []int64{5}, err: &upstream.StatusError{Code: http.StatusInternalServerError}, want: errors.ErrUpstream},
		{name: "transport", vehicle: 42, crew: []int64{5}, err: &url.Error{Op: "Post", URL: "http://x", Err: &net.OpError{Op: "dial", Err: stderrors.New("refused")}}, want: errors.ErrNetwork},
		{name: "expired session", vehicle: 42, crew: []int64{5}, err: &url.Error{Op: "Post", URL: "http://x", Err: errors.ErrSessionExpired}, want: errors.ErrUnauthorized},
		{name: "conflict without ids", vehicle: 42, crew: []int64{5}, resp: &upstream.AssignResponse{StatusCode: http.StatusConflict}, want: errors.ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend()
			b.assignResp = tt.resp
			b.assignErr = tt.err
			p, inv := newProtocol(b)

			res := p.Assign(context.Background(), tt.vehicle, tt.crew...)
			require.Equal(t, assignment.OutcomeFailure, res.Outcome)
			require.ErrorIs(t, res.Err, tt.want)
			require.Zero(t, inv.count())
			if errors.Is(tt.want, errors.ErrValidation) {
				require.Empty(t, b.calls)
			} else {
				require.Len(t, b.calls, 1, "never retried")
			}
		})
	}
}

// heldBackend holds ConfirmAssignments until release is closed.
type heldBackend struct {
	*fakeBackend
	started chan struct{}
	release chan struct{}
}

func (h *heldBackend) ConfirmAssignments(ctx context.Context, ids []int64) (*upstream.MessageResponse, error) {
	close(h.started)
	<-h.release
	return h.fakeBackend.ConfirmAssignments(ctx, ids)
}

func TestResolve_ConcurrentResolveIsAStateConflict(t *testing.T) {
	b := &heldBackend{fakeBackend: newFakeBackend(), started: make(chan struct{}), release: make(chan struct{})}
	b.assignResp = conflictResponse(7, 9)
	inv := &countingInvalidator{}
	p := assignment.NewProtocol(3, b, inv)
	ctx := context.Background()

	p.Assign(ctx, 42, 5)
	done := make(chan assignment.Result, 1)
	go func() {
		done <- p.Confirm(ctx, []int64{7, 9})
	}()
	<-b.started

	res := p.Cancel(ctx, []int64{7, 9})
	require.Equal(t, assignment.OutcomeFailure, res.Outcome)
	require.ErrorIs(t, res.Err, errors.ErrConflictBusy)
	require.NotErrorIs(t, res.Err, errors.ErrValidation)

	close(b.release)
	require.Equal(t, assignment.OutcomeSuccess, (<-done).Outcome)
	require.Equal(t, []string{"assign", "confirm"}, b.calls)
	require.Equal(t, 1, inv.count())
}
