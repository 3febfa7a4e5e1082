package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/dtroode/gophdate-session/internal/logger"
	"github.com/dtroode/gophdate-session/internal/model"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

const (
	loginPath   = "/auth/login"
	refreshPath = "/auth/refresh"
	logoutPath  = "/auth/logout"
	profilePath = "/users/me"
)

var _ model.AuthBackend = (*Client)(nil)

// Client talks to the auth backend over HTTP.
type Client struct {
	http     *resty.Client
	validate *validator.Validate
	logger   *logger.Logger
}

// New creates a Client for baseURL. When jar is not nil it is installed on
// the underlying HTTP client so credential cookies travel with requests.
func New(baseURL string, jar http.CookieJar, logger *logger.Logger) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		OnBeforeRequest(setRequestID)
	if jar != nil {
		c.SetCookieJar(jar)
	}

	return &Client{
		http:     c,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

func setRequestID(_ *resty.Client, r *resty.Request) error {
	if r.Header.Get(RequestIDHeader) == "" {
		r.SetHeader(RequestIDHeader, uuid.NewString())
	}
	return nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (model.AuthResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		Post(loginPath)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("failed to call login endpoint: %w", err)
	}

	return c.decodeAuthResult(resp)
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (model.AuthResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"refreshToken": refreshToken}).
		Post(refreshPath)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("failed to call refresh endpoint: %w", err)
	}

	return c.decodeAuthResult(resp)
}

// Logout revokes the refresh token on the backend.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"refreshToken": refreshToken}).
		Post(logoutPath)
	if err != nil {
		return fmt.Errorf("failed to call logout endpoint: %w", err)
	}
	if resp.IsError() {
		return backendError(resp)
	}
	return nil
}

// UpdateProfile sends the profile to the backend and returns the stored copy.
func (c *Client) UpdateProfile(ctx context.Context, accessToken string, user model.UserProfile) (model.UserProfile, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetBody(user).
		Put(profilePath)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("failed to call profile endpoint: %w", err)
	}
	if resp.IsError() {
		return model.UserProfile{}, backendError(resp)
	}

	var body struct {
		User model.UserProfile `json:"user" validate:"required"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return model.UserProfile{}, fmt.Errorf("%w: %v", model.ErrInvalidResponse, err)
	}
	if err := c.validate.Struct(body); err != nil {
		return model.UserProfile{}, fmt.Errorf("%w: %v", model.ErrInvalidResponse, err)
	}

	return body.User, nil
}

func (c *Client) decodeAuthResult(resp *resty.Response) (model.AuthResult, error) {
	if resp.IsError() {
		return model.AuthResult{}, backendError(resp)
	}

	var result model.AuthResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return model.AuthResult{}, fmt.Errorf("%w: %v", model.ErrInvalidResponse, err)
	}
	if err := c.validate.Struct(result); err != nil {
		c.logger.Warn("Auth client: backend response failed validation",
			"path", resp.Request.URL,
			"error", err.Error())
		return model.AuthResult{}, fmt.Errorf("%w: %v", model.ErrInvalidResponse, err)
	}

	return result, nil
}

func backendError(resp *resty.Response) error {
	message := gjson.GetBytes(resp.Body(), "message").String()
	if message == "" {
		message = http.StatusText(resp.StatusCode())
	}
	return fmt.Errorf("%w: status %d: %s", model.ErrBackendRejected, resp.StatusCode(), message)
}
