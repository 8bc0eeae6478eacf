package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/jrsteele09/go-finadmin-client/authmodel"
	"github.com/jrsteele09/go-finadmin-client/internal/config"
	apperrors "github.com/jrsteele09/go-finadmin-client/internal/errors"
	"github.com/jrsteele09/go-finadmin-client/internal/logging"
	"github.com/jrsteele09/go-finadmin-client/internal/obs"
	"github.com/jrsteele09/go-finadmin-client/token"
	"github.com/jrsteele09/go-finadmin-client/token/refresh"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	SignInPath  = "/auth/admin/signin"
	RefreshPath = "/auth/refresh"

	HeaderRequestID    = "X-Request-ID"
	HeaderServiceName  = "X-Service-Name"
	HeaderServiceToken = "X-Service-Token"

	defaultTimeout          = 30 * time.Second
	defaultRateLimitBackoff = 5 * time.Second
)

// Client sends requests to one backend, attaching the bearer credential from the token
// store and classifying every outcome into success, NetworkError, RateLimitError,
// AuthError or HTTPError. A 429 is retried once; a 401 is refreshed and replayed once.
type Client struct {
	baseURL     string
	http        *http.Client // retries 429 once
	raw         *http.Client // refresh exchanges, never retried
	store       token.Store
	coordinator *refresh.Coordinator
	limiter     *rate.Limiter
	metrics     *obs.Metrics

	transport        http.RoundTripper
	timeout          time.Duration
	rateLimitBackoff time.Duration
	accessMaxAge     time.Duration
	refreshMaxAge    time.Duration

	serviceName      string
	serviceToken     string
	appOrigin        string
	sendServiceToken bool
}

// New constructs a client for baseURL. Unless WithCoordinator is given, the client builds
// its own refresh coordinator that exchanges through this client.
func New(baseURL string, store token.Store, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("[apiclient New] invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL:          strings.TrimRight(base.String(), "/"),
		store:            store,
		timeout:          defaultTimeout,
		rateLimitBackoff: defaultRateLimitBackoff,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.sendServiceToken = c.serviceToken != "" && (c.appOrigin == "" || sameOrigin(base, c.appOrigin))

	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.CheckRetry = retryPolicy
	rc.Backoff = c.backoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = logging.RetryLogger{}
	rc.HTTPClient.Timeout = c.timeout
	if c.transport != nil {
		rc.HTTPClient.Transport = c.transport
	}
	c.http = rc.StandardClient()
	c.raw = &http.Client{Transport: rc.HTTPClient.Transport, Timeout: c.timeout}

	if c.coordinator == nil {
		c.coordinator = refresh.New(store, c,
			refresh.WithMaxAges(c.accessMaxAge, c.refreshMaxAge),
			refresh.WithMetrics(c.metrics))
	}
	return c, nil
}

// NewFromConfig builds the admin backend client from configuration.
func NewFromConfig(cfg config.APIConfig, store token.Store, opts ...Option) (*Client, error) {
	return New(cfg.GetBaseURL(), store, append(configOptions(cfg), opts...)...)
}

// NewAIClient builds the AI service client. It shares the token store and the refresh
// coordinator of primary so both backends never exchange the same refresh token twice.
func NewAIClient(cfg config.APIConfig, primary *Client, opts ...Option) (*Client, error) {
	if cfg.GetAIBaseURL() == "" {
		return nil, fmt.Errorf("[apiclient NewAIClient] AI base URL is not configured")
	}
	opts = append(configOptions(cfg), append(opts, WithCoordinator(primary.coordinator), WithMetrics(primary.metrics))...)
	return New(cfg.GetAIBaseURL(), primary.store, opts...)
}

func configOptions(cfg config.APIConfig) []Option {
	opts := []Option{
		WithServiceIdentity(cfg.GetServiceName(), cfg.GetServiceToken(), cfg.GetAppOrigin()),
		WithTimeout(cfg.GetRequestTimeout()),
		WithRateLimitBackoff(cfg.GetRateLimitBackoff()),
	}
	if rps := cfg.GetRequestsPerSecond(); rps > 0 {
		opts = append(opts, WithLimiter(rate.NewLimiter(rate.Limit(rps), max(cfg.GetRequestBurst(), 1))))
	}
	return opts
}

// BaseURL is the backend this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Coordinator returns the refresh coordinator, for sharing with other clients and the
// session controller.
func (c *Client) Coordinator() *refresh.Coordinator {
	return c.coordinator
}

// Request is one outbound call. Body is JSON encoded unless it is already []byte.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 || v == nil {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// Do sends req and returns the response only when it is a 2xx.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("[Client Do] encode body: %w", err)
	}

	resp, sentWith, err := c.send(ctx, req, body, "")
	if err != nil {
		return nil, c.failed(err)
	}

	if resp.StatusCode == http.StatusUnauthorized && !isAuthPath(req.Path) {
		log.Debug().Str("method", req.Method).Str("path", req.Path).Msg("Access token rejected, refreshing")
		fresh, err := c.coordinator.Refresh(ctx, sentWith)
		if err != nil {
			return nil, c.failed(err)
		}
		// The replay is the only one for this request; a second 401 is returned as is.
		resp, _, err = c.send(ctx, req, body, fresh)
		if err != nil {
			return nil, c.failed(err)
		}
	}
	return c.classify(req.Method, resp)
}

// send performs a single exchange with the backend (plus the transport's own 429 retry).
// bearer overrides the token store when set. The returned string is the bearer credential
// the request carried.
func (c *Client) send(ctx context.Context, req *Request, body []byte, bearer string) (*rawResponse, string, error) {
	if err := c.wait(ctx); err != nil {
		return nil, "", err
	}
	httpReq, err := c.newRequest(ctx, req.Method, req.Path, req.Query, body)
	if err != nil {
		return nil, "", err
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	if !isAuthPath(req.Path) {
		if bearer == "" {
			bearer, _ = c.store.AccessToken()
		}
		if bearer != "" {
			httpReq.Header.Set("Authorization", "Bearer "+bearer)
		} else {
			log.Warn().Str("method", req.Method).Str("path", req.Path).Msg("No access token for request")
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, bearer, c.networkError(ctx, err)
	}
	raw, err := readResponse(httpReq, resp)
	if err != nil {
		return nil, bearer, c.networkError(ctx, err)
	}
	log.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", raw.StatusCode).
		Str("request_id", httpReq.Header.Get(HeaderRequestID)).
		Bool("bearer", bearer != "").
		Msg("API request")
	return raw, bearer, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("[Client wait] throttle: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Request, error) {
	full := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return nil, fmt.Errorf("[Client newRequest] %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, uuid.NewString())
	if c.serviceName != "" {
		req.Header.Set(HeaderServiceName, c.serviceName)
	}
	if c.sendServiceToken {
		req.Header.Set(HeaderServiceToken, c.serviceToken)
	}
	return req, nil
}

type rawResponse struct {
	Response
	url string
}

func readResponse(req *http.Request, resp *http.Response) (*rawResponse, error) {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &rawResponse{
		Response: Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: b},
		url:      req.URL.Redacted(),
	}, nil
}

// classify turns a received response into a result or a RateLimitError/HTTPError.
func (c *Client) classify(method string, resp *rawResponse) (*Response, error) {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		c.metrics.Request(obs.ClassSuccess)
		return &resp.Response, nil
	}
	err := c.responseError(method, resp)
	c.metrics.Request(classOf(err))
	return nil, err
}

func (c *Client) responseError(method string, resp *rawResponse) error {
	msg := errorMessage(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests {
		wait, ok := retryAfter(resp.Header.Get("Retry-After"), time.Now())
		if !ok {
			wait = c.rateLimitBackoff
		}
		return &apperrors.RateLimitError{RetryAfter: wait, Message: msg}
	}
	return &apperrors.HTTPError{
		Method:     method,
		URL:        resp.url,
		StatusCode: resp.StatusCode,
		Message:    msg,
		Body:       resp.Body,
	}
}

// failed records the class of an error that ended a request and returns it.
func (c *Client) failed(err error) error {
	c.metrics.Request(classOf(err))
	return err
}

// networkError wraps a transport failure unless the caller gave up on the request.
func (c *Client) networkError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	log.Warn().Err(err).Str("base_url", c.baseURL).Msg("Backend unreachable")
	return &apperrors.NetworkError{BaseURL: c.baseURL, Err: err}
}

func classOf(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrNetwork):
		return obs.ClassNetwork
	case apperrors.Is(err, apperrors.ErrRateLimited):
		return obs.ClassRateLimited
	case apperrors.Is(err, apperrors.ErrAuth):
		return obs.ClassAuth
	}
	return obs.ClassHTTP
}

func errorMessage(body []byte) string {
	var resp authmodel.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	if resp.Message != "" {
		return resp.Message
	}
	return resp.Error
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	}
	return json.Marshal(body)
}

func isAuthPath(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = "/" + strings.Trim(path, "/")
	return path == SignInPath || path == RefreshPath
}

func sameOrigin(base *url.URL, origin string) bool {
	o, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return false
	}
	return strings.EqualFold(base.Scheme, o.Scheme) && strings.EqualFold(base.Host, o.Host)
}
