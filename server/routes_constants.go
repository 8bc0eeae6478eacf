package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteSignIn  = "/auth/admin/signin"
	RouteRefresh = "/auth/refresh"

	// Admin Routes
	RouteAdminMe         = "/admin/me"
	RouteAdminUsersCount = "/admin/users/count"
	RouteAdminResources  = "/admin/resources/{kind}"
	RouteAdminResource   = "/admin/resources/{kind}/{id}"

	RouteWellKnownJWKS = "/.well-known/jwks.json"
	RouteMetrics       = "/metrics"
	RouteHealth        = "/health"
)
