package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-finadmin-client/authmodel"
	"github.com/jrsteele09/go-finadmin-client/token"
	"github.com/jrsteele09/go-finadmin-client/token/refresh"
)

var _ refresh.Exchanger = (*Client)(nil)

// SignIn posts credentials to the sign-in endpoint. It does not touch the token store;
// the session controller owns writes made at login.
func (c *Client) SignIn(ctx context.Context, creds authmodel.Credentials) (*authmodel.SignInResponse, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodPost, Path: SignInPath, Body: creds})
	if err != nil {
		return nil, err
	}
	var out authmodel.SignInResponse
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("[Client SignIn] decode response: %w", err)
	}
	if out.Tokens.AccessToken == "" || out.Tokens.RefreshToken == "" {
		return nil, fmt.Errorf("[Client SignIn] response is missing tokens")
	}
	return &out, nil
}

// Exchange trades refreshToken for a rotated pair. It bypasses the retry and refresh
// logic of Do: a 429 here is reported to the coordinator as a RateLimitError and a 401
// as an HTTPError.
func (c *Client) Exchange(ctx context.Context, refreshToken string) (token.Pair, error) {
	body, err := json.Marshal(authmodel.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return token.Pair{}, fmt.Errorf("[Client Exchange] encode body: %w", err)
	}
	if err := c.wait(ctx); err != nil {
		return token.Pair{}, err
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, RefreshPath, nil, body)
	if err != nil {
		return token.Pair{}, err
	}
	resp, err := c.raw.Do(httpReq)
	if err != nil {
		return token.Pair{}, c.networkError(ctx, err)
	}
	raw, err := readResponse(httpReq, resp)
	if err != nil {
		return token.Pair{}, c.networkError(ctx, err)
	}
	if raw.StatusCode < 200 || raw.StatusCode > 299 {
		return token.Pair{}, c.responseError(http.MethodPost, raw)
	}
	var out authmodel.RefreshResponse
	if err := raw.Decode(&out); err != nil {
		return token.Pair{}, fmt.Errorf("[Client Exchange] decode response: %w", err)
	}
	return out.Tokens, nil
}
