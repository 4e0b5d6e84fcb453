package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/botlink/internal/logging"
	"github.com/aretw0/botlink/pkg/ast"
	"github.com/oapi-codegen/runtime"
)

var (
	// ErrNotAuthenticated is returned when the server rejects the robot's credentials.
	ErrNotAuthenticated = errors.New("server rejected credentials")

	// ErrUnexpectedStatus is returned for any other non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// DefaultTimeout bounds the version, authentication and registration calls.
const DefaultTimeout = 10 * time.Second

// Client talks to one server address.
type Client struct {
	address   string
	secure    bool
	verify    bool
	timeout   time.Duration
	http      *http.Client
	logger    *slog.Logger
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithSecure selects https (true, the default) or http.
func WithSecure(secure bool) Option {
	return func(c *Client) {
		c.secure = secure
	}
}

// WithVerify toggles TLS certificate verification.
func WithVerify(verify bool) Option {
	return func(c *Client) {
		c.verify = verify
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the underlying client. WithVerify is ignored when set.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for address ("host" or "host:port").
func New(address string, opts ...Option) *Client {
	c := &Client{
		address:   address,
		secure:    true,
		verify:    true,
		timeout:   DefaultTimeout,
		logger:    logging.NewNop(),
		userAgent: "botlink",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if !c.verify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		c.http = &http.Client{Transport: transport}
	}
	c.logger = c.logger.With("component", "api", "address", address)
	return c
}

// Address returns the server address the client targets.
func (c *Client) Address() string {
	return c.address
}

// BaseURL returns scheme://address.
func (c *Client) BaseURL() string {
	scheme := "https"
	if !c.secure {
		scheme = "http"
	}
	return scheme + "://" + c.address
}

// envelope is the server's standard response wrapper.
type envelope[T any] struct {
	Successful bool     `json:"successful"`
	Errors     []string `json:"errors,omitempty"`
	Output     T        `json:"output"`
}

// Version probes the server. Any network failure means the address did not answer.
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("Checking server version")
	body, err := c.do(ctx, http.MethodGet, "/api/v1/version", "", nil)
	if err != nil {
		return "", err
	}

	var v struct {
		Version string `json:"version"`
	}
	if json.Unmarshal(body, &v) == nil && v.Version != "" {
		return v.Version, nil
	}
	return strings.TrimSpace(string(body)), nil
}

// Authenticate logs the robot in and returns the session token.
// Only 401 and 403 count as a rejection; other statuses come back as a *StatusError.
func (c *Client) Authenticate(ctx context.Context, name, password string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := map[string]any{"name": name, "password": password, "role": "robot"}
	c.logger.Debug("Authenticating", "name", name)
	body, err := c.do(ctx, http.MethodPost, "/api/v1/session", "", req)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden) {
			return "", fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
		}
		return "", err
	}

	var resp envelope[struct {
		Token string `json:"token"`
	}]
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}
	if resp.Output.Token == "" {
		return "", fmt.Errorf("%w: no token in response", ErrNotAuthenticated)
	}
	return resp.Output.Token, nil
}

// Register asks the server to add an unknown robot.
func (c *Client) Register(ctx context.Context, machineName string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Info("Registering robot", "name", machineName)
	_, err := c.do(ctx, http.MethodPost, "/api/v1/robots/register", "", map[string]any{"machineName": machineName})
	return err
}

// FetchProgram downloads a compiled program.
func (c *Client) FetchProgram(ctx context.Context, token, user, program string) (*ast.Program, error) {
	userParam, err := runtime.StyleParamWithLocation("simple", false, "user", runtime.ParamLocationPath, user)
	if err != nil {
		return nil, fmt.Errorf("invalid user %q: %w", user, err)
	}
	programParam, err := runtime.StyleParamWithLocation("simple", false, "program", runtime.ParamLocationPath, program)
	if err != nil {
		return nil, fmt.Errorf("invalid program %q: %w", program, err)
	}

	path := "/api/v1/code/" + userParam + "/" + programParam
	c.logger.Debug("Downloading program", "path", path)
	body, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}

	var resp envelope[json.RawMessage]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode program response: %w", err)
	}
	if len(resp.Output) == 0 {
		return nil, errors.New("program response has no output")
	}
	return ast.DecodeProgram(resp.Output)
}

// StatusError carries a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Unwrap lets callers match ErrUnexpectedStatus.
func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

func (c *Client) do(ctx context.Context, method, path, token string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL()+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.logger.Debug("Response received", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
