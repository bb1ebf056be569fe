// Package authclient talks to the remote auth endpoints: login, refresh, logout and logout-all.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	LoginPath     = "/auth/login"
	RefreshPath   = "/auth/refresh"
	LogoutPath    = "/auth/logout"
	LogoutAllPath = "/auth/logout-all"

	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

type Client struct {
	baseURL        string
	httpc          *http.Client
	logger         zerolog.Logger
	logoutAttempts uint
	retryDelay     time.Duration
}

type Option func(*Client)

func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithLogoutRetry sets how many times a logout notification is attempted on network errors.
func WithLogoutRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.logoutAttempts = attempts
		}
		c.retryDelay = delay
	}
}

func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		httpc:          &http.Client{Timeout: defaultTimeout},
		logger:         log.Logger,
		logoutAttempts: 3,
		retryDelay:     200 * time.Millisecond,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a token pair. Rejections come back as *AuthError wrapping
// ErrInvalidCredentials with the server's message when it sent one.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	status, body, err := c.post(ctx, LoginPath, req, "")
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("%w: %v", ErrNetwork, err), Message: networkMessage}
	}
	if status < 200 || status > 299 {
		msg := serverMessage(body)
		if msg == "" {
			msg = invalidCredentialsMessage
		}
		return nil, &AuthError{Err: ErrInvalidCredentials, Status: status, Message: msg}
	}
	tr, err := decodeTokenResponse(body)
	if err != nil {
		return nil, &AuthError{Err: err, Status: status, Message: UnexpectedResponseMessage}
	}
	return tr, nil
}

// Refresh trades a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	status, body, err := c.post(ctx, RefreshPath, RefreshRequest{RefreshToken: refreshToken}, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if status < 200 || status > 299 {
		return nil, &AuthError{Err: ErrRefreshRejected, Status: status, Message: serverMessage(body)}
	}
	return decodeTokenResponse(body)
}

// Logout asks the server to revoke one refresh token. The response body is ignored.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.notify(ctx, LogoutPath, RefreshRequest{RefreshToken: refreshToken}, "")
}

// LogoutAll asks the server to revoke every refresh token issued to the bearer's user.
func (c *Client) LogoutAll(ctx context.Context, accessToken string) error {
	return c.notify(ctx, LogoutAllPath, nil, accessToken)
}

func (c *Client) notify(ctx context.Context, path string, payload any, bearer string) error {
	return retry.Do(
		func() error {
			status, body, err := c.post(ctx, path, payload, bearer)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrNetwork, err)
			}
			if status < 200 || status > 299 {
				return retry.Unrecoverable(&AuthError{Err: ErrRefreshRejected, Status: status, Message: serverMessage(body)})
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.logoutAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug().Err(err).Uint("attempt", n+1).Str("path", path).Msg("retrying auth notification")
		}),
	)
}

func (c *Client) post(ctx context.Context, path string, payload any, bearer string) (int, []byte, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func decodeTokenResponse(body []byte) (*TokenResponse, error) {
	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing accessToken", ErrInvalidResponse)
	}
	return &tr, nil
}

func serverMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return ""
	}
	if er.Message != "" {
		return er.Message
	}
	return er.Error
}

// IsNetwork reports whether err came from the transport rather than the server.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}
