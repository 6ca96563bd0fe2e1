package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthLogin   = "/api/auth/login"
	RouteAuthLogout  = "/api/auth/logout"
	RouteAuthRefresh = "/api/auth/refresh"

	// Session Routes
	RouteSession         = "/api/session"
	RouteSessionStatus   = "/api/session/status"
	RouteSessionActivity = "/api/session/activity"

	// Fleet Routes
	RouteCrew      = "/api/crew"
	RouteVehicles  = "/api/vehicles"
	RouteDashboard = "/api/dashboard"

	// Assignment Routes
	RouteAssignVehicle = "/api/assign-vehicle"
	RouteAssignConfirm = "/api/assign-vehicle/confirm"

	// Operational Routes
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

// SessionCookieName carries the signed session token.
const SessionCookieName = "fleet_session"
