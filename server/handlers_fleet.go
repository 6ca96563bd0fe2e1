package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-fleet-collect/fleet"
	"github.com/jrsteele09/go-fleet-collect/internal/errors"
)

// companyID reads the company_id query parameter, falling back to the
// session's company.
func companyID(r *http.Request, entry *sessionEntry) (int64, error) {
	raw := r.URL.Query().Get("company_id")
	if raw == "" {
		if entry.companyID <= 0 {
			return 0, errors.Wrapf(errors.ErrValidation, "company_id is required")
		}
		return entry.companyID, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(errors.ErrValidation, "invalid company_id %q", raw)
	}
	return id, nil
}

func fleetHandler[T any](load func(*sessionEntry) func(context.Context, int64) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry := sessionFromContext(r.Context())
		id, err := companyID(r, entry)
		if err != nil {
			writeError(w, err)
			return
		}
		data, err := load(entry)(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func (s *Server) CrewHandler() http.HandlerFunc {
	return fleetHandler(func(e *sessionEntry) func(context.Context, int64) ([]fleet.Crew, error) {
		return e.catalog.Crew
	})
}

func (s *Server) VehiclesHandler() http.HandlerFunc {
	return fleetHandler(func(e *sessionEntry) func(context.Context, int64) ([]fleet.Vehicle, error) {
		return e.catalog.Vehicles
	})
}

func (s *Server) DashboardHandler() http.HandlerFunc {
	return fleetHandler(func(e *sessionEntry) func(context.Context, int64) (fleet.DashboardStats, error) {
		return e.catalog.Dashboard
	})
}
