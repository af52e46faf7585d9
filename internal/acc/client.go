// Package acc is a client for the Autodesk Construction Cloud REST APIs used
// by the permission service: hubs, projects, the folder tree, project users,
// folder permissions and the signed-in user's profile.
package acc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/logger"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	UsersPageSize     int
	RetryCount        int
}

// Client calls the Autodesk APIs. A Client without a token is a template;
// WithToken returns a copy bound to one caller's access token. Copies share
// the HTTP transport and the outbound rate limit.
type Client struct {
	http          *resty.Client
	limiter       *rate.Limiter
	usersPageSize int
	token         string
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UsersPageSize <= 0 {
		opts.UsersPageSize = DefaultUsersPageSize
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() == http.StatusTooManyRequests
		})
	if opts.Timeout > 0 {
		hc.SetTimeout(opts.Timeout)
	}

	return &Client{
		http:          hc,
		limiter:       rate.NewLimiter(limit, burst),
		usersPageSize: opts.UsersPageSize,
	}
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req := c.http.R().SetContext(ctx)
	if c.token != "" {
		req.SetAuthToken(c.token)
	}
	return req, nil
}

func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf(errTransportFmt, op, apperrors.ErrNetwork, err)
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return &APIError{Op: op, StatusCode: resp.StatusCode(), Body: logger.SanitizeLogMessage(body)}
	}
	return nil
}

// APIError is a non-2xx response. It matches apperrors.ErrNetwork and, for
// 401, 403 and 404, the corresponding sentinel.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() []error {
	errs := []error{apperrors.ErrNetwork}
	switch e.StatusCode {
	case http.StatusUnauthorized:
		errs = append(errs, apperrors.ErrUnauthorized)
	case http.StatusForbidden:
		errs = append(errs, apperrors.ErrForbidden)
	case http.StatusNotFound:
		errs = append(errs, apperrors.ErrNotFound)
	}
	return errs
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// AccountProjectID strips the "b." prefix the data APIs put on project ids.
// The docs and admin APIs expect the bare id.
func AccountProjectID(id string) string {
	return strings.TrimPrefix(id, "b.")
}

// DataProjectID adds the "b." prefix if missing.
func DataProjectID(id string) string {
	if strings.HasPrefix(id, "b.") {
		return id
	}
	return "b." + id
}
