package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// CORS preflight for every path
	s.router.Methods(http.MethodOptions).HandlerFunc(ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.LoggingMiddleware, s.CorsMiddleware))

	s.RegisterRouteFunc(http.MethodGet, RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))

	// AUTH
	s.RegisterRouteFunc(http.MethodPost, RouteSignIn, ChainMiddleware(s.SignInHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc(http.MethodPost, RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))

	// Admin routes (require a bearer access token)
	s.RegisterRouteFunc(http.MethodGet, RouteAdminMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteFunc(http.MethodGet, RouteAdminUsersCount, ChainMiddleware(s.UsersCountHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteFunc(http.MethodGet, RouteAdminResources, ChainMiddleware(s.ListResourcesHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteFunc(http.MethodPost, RouteAdminResources, ChainMiddleware(s.CreateResourceHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireAdmin())...))
	s.RegisterRouteFunc(http.MethodGet, RouteAdminResource, ChainMiddleware(s.GetResourceHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteFunc(http.MethodPut, RouteAdminResource, ChainMiddleware(s.UpdateResourceHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireAdmin())...))
	s.RegisterRouteFunc(http.MethodDelete, RouteAdminResource, ChainMiddleware(s.DeleteResourceHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireAdmin())...))

	if s.rsaSigner != nil {
		s.RegisterRouteFunc(http.MethodGet, RouteWellKnownJWKS, ChainMiddleware(s.JWKSHandler(), s.APIMiddleware()...))
	}
	s.RegisterRouteHandler(RouteMetrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.router.NotFoundHandler = ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not_found", "Not found")
	}, s.LoggingMiddleware)
}
