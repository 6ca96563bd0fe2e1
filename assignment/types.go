package assignment

import (
	"github.com/jrsteele09/go-fleet-collect/internal/errors"
	"github.com/jrsteele09/go-fleet-collect/internal/utils"
)

// Request links one vehicle to one or more crew members.
type Request struct {
	VehicleID int64
	CrewIDs   []int64
}

func (r Request) Validate() error {
	if r.VehicleID <= 0 {
		return errors.Wrapf(errors.ErrValidation, "vehicle id must be positive, got %d", r.VehicleID)
	}
	if !utils.AllPositive(r.CrewIDs) {
		return errors.Wrapf(errors.ErrValidation, "crew ids must be a non-empty list of positive ids, got %v", r.CrewIDs)
	}
	return nil
}

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeConflict
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeConflict:
		return "conflict"
	default:
		return "failure"
	}
}

// Conflict is returned instead of an applied assignment when the upstream
// holds unresolved assignments that collide with the request. PendingIDs is
// the only valid input to a following Confirm or Cancel.
type Conflict struct {
	Code        string
	Message     string
	Explanation string
	PendingIDs  []int64
}

// Result is the outcome of Assign, Confirm or Cancel. Conflict is set only
// for OutcomeConflict and Err only for OutcomeFailure.
type Result struct {
	Outcome  Outcome
	Message  string
	Conflict *Conflict
	Err      error
}

func success(msg string) Result {
	return Result{Outcome: OutcomeSuccess, Message: msg}
}

func failure(err error) Result {
	return Result{Outcome: OutcomeFailure, Message: err.Error(), Err: err}
}
