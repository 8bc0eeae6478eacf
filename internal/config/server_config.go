package config

import "fmt"

// ServerConfig configures the development backend in cmd/server.
type ServerConfig interface {
	GetPort() string
	GetSigningSecret() string
	GetAdminEmail() string
	GetAdminPassword() string
	GetServerRateLimit() float64
}

type Server struct {
	file fileValues
}

var _ ServerConfig = Server{}

func (s Server) GetPort() string {
	port := s.file.get("PORT", "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

// GetSigningSecret is the HS256 secret for access tokens. Empty means an ephemeral RSA
// key published at /.well-known/jwks.json.
func (s Server) GetSigningSecret() string {
	return s.file.get("SIGNING_SECRET", "")
}

func (s Server) GetAdminEmail() string {
	return s.file.get("ADMIN_EMAIL", "admin@example.com")
}

func (s Server) GetAdminPassword() string {
	return s.file.get("ADMIN_PASSWORD", "Password123")
}

// GetServerRateLimit is requests per second per client IP; 0 disables limiting.
func (s Server) GetServerRateLimit() float64 {
	return s.file.float("SERVER_RATE_LIMIT", 0)
}
