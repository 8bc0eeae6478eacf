package config

import "time"

const (
	baseURLVar           = "API_BASE_URL"
	aiBaseURLVar         = "AI_BASE_URL"
	serviceTokenVar      = "SERVICE_TOKEN"
	serviceNameVar       = "SERVICE_NAME"
	appOriginVar         = "APP_ORIGIN"
	requestTimeoutVar    = "REQUEST_TIMEOUT"
	rateLimitBackoffVar  = "RATE_LIMIT_BACKOFF"
	requestsPerSecondVar = "REQUESTS_PER_SECOND"
	requestBurstVar      = "REQUEST_BURST"
)

type API struct {
	file fileValues
}

var _ APIConfig = API{}

// GetBaseURL returns the admin backend base URL (e.g., "https://api.example.com").
func (a API) GetBaseURL() string {
	return a.file.get(baseURLVar, "http://localhost:8080")
}

// GetAIBaseURL returns the AI service base URL. Empty means the AI client is not built.
func (a API) GetAIBaseURL() string {
	return a.file.get(aiBaseURLVar, "")
}

func (a API) GetServiceToken() string {
	return a.file.get(serviceTokenVar, "")
}

func (a API) GetServiceName() string {
	return a.file.get(serviceNameVar, "finadmin-dashboard")
}

// GetAppOrigin is the origin the dashboard itself is served from. The service token is
// only sent to that origin; empty means a native client with no CORS constraints.
func (a API) GetAppOrigin() string {
	return a.file.get(appOriginVar, "")
}

func (a API) GetRequestTimeout() time.Duration {
	return a.file.duration(requestTimeoutVar, 30*time.Second)
}

func (a API) GetRateLimitBackoff() time.Duration {
	return a.file.duration(rateLimitBackoffVar, 5*time.Second)
}

// GetRequestsPerSecond is the client-side throttle; 0 disables it.
func (a API) GetRequestsPerSecond() float64 {
	return a.file.float(requestsPerSecondVar, 0)
}

func (a API) GetRequestBurst() int {
	return a.file.integer(requestBurstVar, 1)
}
