// Package api talks to the GreonXpert REST backend.
//
// Every response uses the same envelope, {success, data, message}. Calls
// return *Error values classified by Kind so that the wizards can map
// them to user-facing text.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/greonxpert/console/pkg/auth"
	"github.com/greonxpert/console/pkg/logging"
	"github.com/greonxpert/console/pkg/retry"
)

// Endpoint paths, relative to the base URL.
const (
	PathValidateAccess    = "/external-links/%s/validate"
	PathSubmitContent     = "/external-links/%s/submit"
	PathSubmitTestimonial = "/testimonials/external/%s"
	PathList              = "/%s"
)

// ContentSubmitPath returns the submission path for a content link.
func ContentSubmitPath(linkToken string) string {
	return fmt.Sprintf(PathSubmitContent, url.PathEscape(linkToken))
}

// TestimonialSubmitPath returns the submission path for a testimonial link.
func TestimonialSubmitPath(linkToken string) string {
	return fmt.Sprintf(PathSubmitTestimonial, url.PathEscape(linkToken))
}

// Envelope is the response body shape shared by every endpoint.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// AccessContext is what the server returns for a valid access code.
type AccessContext struct {
	AllowedCategories []string   `json:"allowedCategories,omitempty"`
	Label             string     `json:"linkName,omitempty"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
}

// Allows reports whether category may be submitted through this link. An
// empty allow list permits everything.
func (a AccessContext) Allows(category string) bool {
	if len(a.AllowedCategories) == 0 {
		return true
	}
	for _, c := range a.AllowedCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Client is safe for concurrent use.
type Client struct {
	base   string
	http   *http.Client
	policy retry.Policy
	logger logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithSession injects the session's bearer token into every request.
func WithSession(s *auth.Session) Option {
	return func(c *Client) {
		c.http.Transport = &auth.Transport{Session: s, Base: c.http.Transport}
	}
}

// WithRetry sets the policy used by List.
func WithRetry(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: 30 * time.Second},
		policy: retry.DefaultPolicy(),
		logger: logging.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CloseIdleConnections closes keep-alive connections that are not in use.
func (c *Client) CloseIdleConnections() { c.http.CloseIdleConnections() }

// ValidateAccess checks an access code against the link identified by
// linkToken. Rejections and transport failures are both returned as
// *Error; the server's message is kept when it sent one.
func (c *Client) ValidateAccess(ctx context.Context, linkToken, code string) (AccessContext, error) {
	const op = "validate access"

	body, err := json.Marshal(map[string]string{"password": code})
	if err != nil {
		return AccessContext{}, &Error{Kind: KindValidation, Op: op, Err: err}
	}

	path := fmt.Sprintf(PathValidateAccess, url.PathEscape(linkToken))
	var env Envelope[AccessContext]
	status, err := c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(body), &env)
	if err != nil {
		return AccessContext{}, c.classify(op, status, err, KindAuthentication)
	}
	if !env.Success {
		return AccessContext{}, &Error{Kind: KindAuthentication, Op: op, Status: status, Message: env.Message}
	}

	c.logger.Debug("access granted", logging.Int("categories", len(env.Data.AllowedCategories)))
	return env.Data, nil
}

// Submit posts sub as a single multipart request to path. It never
// retries: each call is exactly one request.
func (c *Client) Submit(ctx context.Context, path string, sub *Submission) (string, error) {
	const op = "submit"

	buf, contentType, err := sub.body()
	if err != nil {
		return "", &Error{Kind: KindValidation, Op: op, Err: err}
	}

	var env Envelope[json.RawMessage]
	status, err := c.do(ctx, http.MethodPost, path, contentType, buf, &env)
	if err != nil {
		return "", c.classify(op, status, err, KindRejected)
	}
	if !env.Success {
		return "", &Error{Kind: KindRejected, Op: op, Status: status, Message: env.Message}
	}
	return env.Message, nil
}

// List fetches every record of resource (e.g. "stories"). Transport
// failures and 5xx responses are retried per the client's policy.
func (c *Client) List(ctx context.Context, resource string) ([]map[string]any, error) {
	const op = "list"
	path := fmt.Sprintf(PathList, url.PathEscape(resource))

	return retry.Value(ctx, c.policy, func(ctx context.Context) ([]map[string]any, error) {
		var env Envelope[[]map[string]any]
		status, err := c.do(ctx, http.MethodGet, path, "", nil, &env)
		if err != nil {
			e := c.classify(op, status, err, KindRejected)
			if e.Kind == KindTransport || status >= http.StatusInternalServerError {
				c.logger.Warn("list fetch failed", logging.String("resource", resource), logging.Err(err))
				return nil, e
			}
			return nil, retry.Permanent(e)
		}
		if !env.Success {
			return nil, retry.Permanent(&Error{Kind: KindRejected, Op: op, Status: status, Message: env.Message})
		}
		if env.Data == nil {
			env.Data = []map[string]any{}
		}
		return env.Data, nil
	})
}

type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	if e.message != "" {
		return e.message
	}
	return http.StatusText(e.status)
}

// do issues one request and decodes the envelope into out. The returned
// status is 0 when no response arrived.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	decodeErr := json.Unmarshal(data, out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env Envelope[json.RawMessage]
		_ = json.Unmarshal(data, &env)
		return resp.StatusCode, &statusError{status: resp.StatusCode, message: env.Message}
	}
	if decodeErr != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", decodeErr)
	}
	return resp.StatusCode, nil
}

// classify wraps an error from do. A non-2xx response becomes kind k with
// the server's message; anything without a status is a transport error.
func (c *Client) classify(op string, status int, err error, k Kind) *Error {
	var se *statusError
	if errors.As(err, &se) {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			k = KindAuthentication
		}
		return &Error{Kind: k, Op: op, Status: status, Message: se.message, Err: se}
	}
	return &Error{Kind: KindTransport, Op: op, Status: status, Err: err}
}
