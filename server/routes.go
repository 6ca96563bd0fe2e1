package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware(s.RequireSession(false))...))

	// SESSION (status polling must not count as operator activity)
	s.RegisterRouteHandler("GET "+RouteSession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware(s.RequireSession(false))...))
	s.RegisterRouteHandler("GET "+RouteSessionStatus, ChainMiddleware(s.SessionStatusHandler(), s.APIMiddleware(s.RequireSession(false))...))
	s.RegisterRouteHandler("POST "+RouteSessionActivity, ChainMiddleware(s.ActivityHandler(), s.APIMiddleware(s.RequireSession(false))...))

	// FLEET
	s.RegisterRouteHandler("GET "+RouteCrew, ChainMiddleware(s.CrewHandler(), s.APIMiddleware(s.RequireSession(true))...))
	s.RegisterRouteHandler("GET "+RouteVehicles, ChainMiddleware(s.VehiclesHandler(), s.APIMiddleware(s.RequireSession(true))...))
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), s.APIMiddleware(s.RequireSession(true))...))

	// ASSIGNMENTS
	s.RegisterRouteHandler("POST "+RouteAssignVehicle, ChainMiddleware(s.AssignHandler(), s.APIMiddleware(s.RequireSession(true))...))
	s.RegisterRouteHandler("POST "+RouteAssignConfirm, ChainMiddleware(s.ConfirmHandler(), s.APIMiddleware(s.RequireSession(true))...))
	s.RegisterRouteHandler("DELETE "+RouteAssignConfirm, ChainMiddleware(s.CancelHandler(), s.APIMiddleware(s.RequireSession(true))...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": s.registry.len(),
		})
	}
}
