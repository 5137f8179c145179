package servicenow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/systmms/snowcred/internal/logging"
)

// contentNullMessage is reported when a 200 response has no usable body.
const contentNullMessage = "null content response returned"

// LookupQuery selects a single user's sys_id by user name.
type LookupQuery struct {
	Username string
}

// Values returns the Table API query parameters for the lookup.
func (q LookupQuery) Values() url.Values {
	v := url.Values{}
	v.Set("sysparm_display_value", "true")
	v.Set("sysparm_limit", "1")
	v.Set("sysparm_fields", "sys_id")
	v.Set("sysparm_query", "user_name="+q.Username)
	return v
}

// SetPasswordQuery asks ServiceNow to treat the body as a display value and to
// echo only the password field.
type SetPasswordQuery struct{}

// Values returns the Table API query parameters for the password update.
func (SetPasswordQuery) Values() url.Values {
	v := url.Values{}
	v.Set("sysparm_input_display_value", "true")
	v.Set("sysparm_fields", "user_password")
	return v
}

// Client issues the two Table API calls the credential actions need. It holds no
// per-call state and can be created fresh for every action.
type Client struct {
	httpClient *http.Client
	logger     *logging.Logger
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (custom transport, proxies,
// test servers).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a Client. Without options it uses an http.Client with no
// timeout of its own, so only the transport defaults bound a call.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		logger:     logging.New(false, true).WithWriter(io.Discard),
		userAgent:  "snowcred",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup issues GET address?<query> to resolve a user's sys_id.
func (c *Client) Lookup(ctx context.Context, address string, query LookupQuery, authHeader string) Outcome {
	return c.do(ctx, http.MethodGet, address, query.Values(), nil, authHeader)
}

// SetPassword issues PATCH address?<query> with body. The body is sent as-is;
// wiping it afterwards is up to the caller.
func (c *Client) SetPassword(ctx context.Context, address string, query SetPasswordQuery, body []byte, authHeader string) Outcome {
	return c.do(ctx, http.MethodPatch, address, query.Values(), body, authHeader)
}

func (c *Client) do(ctx context.Context, method, address string, query url.Values, body []byte, authHeader string) Outcome {
	c.logger.MethodStart("servicenow." + method)
	defer c.logger.MethodEnd("servicenow." + method)

	u, err := url.Parse(address)
	if err != nil {
		return TransportError{Message: fmt.Sprintf("invalid request address: %v", err), Err: err}
	}
	merged := u.Query()
	for key, values := range query {
		merged[key] = values
	}
	u.RawQuery = merged.Encode()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return TransportError{Message: fmt.Sprintf("failed to build request: %v", err), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", authHeader)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("%s %s%s", method, u.Host, u.Path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("%s request to %s failed before a response was received", method, u.Host)
		return TransportError{Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, readErr := io.ReadAll(resp.Body)
	c.logger.Debug("%s %s returned status %d", method, u.Path, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if readErr != nil || len(bytes.TrimSpace(data)) == 0 {
		return APIError{Message: contentNullMessage}
	}
	return Success{StatusCode: resp.StatusCode, Body: data}
}
