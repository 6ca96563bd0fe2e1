package server

import (
	"net/http"

	"github.com/jrsteele09/go-fleet-collect/assignment"
	"github.com/jrsteele09/go-fleet-collect/internal/errors"
	"github.com/jrsteele09/go-fleet-collect/upstream"
)

type assignRequest struct {
	VehicleID int64            `json:"vehicle_id"`
	CrewID    upstream.CrewIDs `json:"crew_id"`
}

type resolveRequest struct {
	AssignmentIDs upstream.IDList `json:"assignment_ids"`
}

// conflictResponse is the 409 body: the client must confirm or cancel
// exactly PendingAssignmentIDs.
type conflictResponse struct {
	Success              bool    `json:"success"`
	Error                string  `json:"error"`
	Message              string  `json:"message"`
	Details              string  `json:"details,omitempty"`
	PendingAssignmentIDs []int64 `json:"pending_assignment_ids"`
}

func writeResult(w http.ResponseWriter, res assignment.Result) {
	switch res.Outcome {
	case assignment.OutcomeSuccess:
		writeEnvelope(w, http.StatusOK, APIResponse{Success: true, Message: res.Message})
	case assignment.OutcomeConflict:
		c := res.Conflict
		writeEnvelope(w, http.StatusConflict, conflictResponse{
			Error:                c.Code,
			Message:              c.Message,
			Details:              c.Explanation,
			PendingAssignmentIDs: c.PendingIDs,
		})
	default:
		writeError(w, res.Err)
	}
}

func (s *Server) AssignHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body assignRequest
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}
		entry := sessionFromContext(r.Context())
		writeResult(w, entry.protocol.Assign(r.Context(), body.VehicleID, body.CrewID...))
	}
}

func (s *Server) ConfirmHandler() http.HandlerFunc {
	return s.resolveHandler(func(entry *sessionEntry, r *http.Request, ids []int64) assignment.Result {
		return entry.protocol.Confirm(r.Context(), ids)
	})
}

func (s *Server) CancelHandler() http.HandlerFunc {
	return s.resolveHandler(func(entry *sessionEntry, r *http.Request, ids []int64) assignment.Result {
		return entry.protocol.Cancel(r.Context(), ids)
	})
}

func (s *Server) resolveHandler(resolve func(*sessionEntry, *http.Request, []int64) assignment.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body resolveRequest
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}
		if len(body.AssignmentIDs) == 0 {
			writeError(w, errors.Wrapf(errors.ErrValidation, "assignment_ids is required"))
			return
		}
		writeResult(w, resolve(sessionFromContext(r.Context()), r, body.AssignmentIDs))
	}
}
