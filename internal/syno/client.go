package syno

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// requestTimeout bounds every remote call. A timeout is surfaced as a
// transport error, never as session expiry.
const requestTimeout = 30 * time.Second

// BaseURLFunc supplies the remote base URL. It is consulted on every
// request, so a reconfigured address takes effect without a restart.
type BaseURLFunc func() string

// Client talks to the Synology Chat Web API of one DSM instance.
type Client struct {
	httpClient *http.Client
	base       BaseURLFunc
	logger     *zap.Logger
}

// NewClient creates a client for a fixed DSM base URL. insecure skips
// TLS verification for self-signed DSM certificates.
func NewClient(baseURL string, insecure bool, logger *zap.Logger) *Client {
	return NewClientWithSource(func() string { return baseURL }, insecure, logger)
}

// NewClientWithSource creates a client that resolves the base URL from
// base on every request.
func NewClientWithSource(base BaseURLFunc, insecure bool, logger *zap.Logger) *Client {
	transport := &http.Transport{}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout, Transport: transport},
		base:       base,
		logger:     logger,
	}
}

// NormalizeBaseURL defaults the scheme to https and strips any trailing
// slash, matching what users paste from their DSM address bar.
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}

// BaseURL returns the normalized base URL the client currently talks to.
func (c *Client) BaseURL() string {
	return NormalizeBaseURL(c.base())
}

// resolveBase normalizes the current base URL and rejects an unset one, so
// a daemon booted before initialization fails with a clear error instead
// of dialing a malformed address.
func (c *Client) resolveBase() (string, error) {
	base := NormalizeBaseURL(c.base())
	if base == "" {
		return "", ErrNoBaseURL
	}
	return base, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

type errorBody struct {
	Code int `json:"code"`
}

// Login performs the auth exchange and returns an opaque session token.
func (c *Client) Login(ctx context.Context, account, secret string) (string, error) {
	params := url.Values{
		"api":     {"SYNO.API.Auth"},
		"method":  {"login"},
		"version": {"7"},
		"account": {account},
		"passwd":  {secret},
		"session": {"Chat"},
		"format":  {"sid"},
	}

	base, err := c.resolveBase()
	if err != nil {
		return "", fmt.Errorf("login %q: %w", account, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		base+"/webapi/auth.cgi?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	var data struct {
		SID string `json:"sid"`
	}
	if err := c.do(req, "SYNO.API.Auth", &data); err != nil {
		return "", fmt.Errorf("login %q: %w", account, err)
	}
	return data.SID, nil
}

// ListChannels lists all channels visible to the session, each carrying
// its unread count. One batched call per account per cycle.
func (c *Client) ListChannels(ctx context.Context, sid string) ([]Channel, error) {
	form := url.Values{
		"api":        {"SYNO.Chat.Channel"},
		"method":     {"list"},
		"version":    {"5"},
		"limit":      {"100"},
		"offset":     {"0"},
		"additional": {`["unread"]`},
		"_sid":       {sid},
	}

	var data struct {
		Channels []Channel `json:"channels"`
	}
	if err := c.postEntry(ctx, "SYNO.Chat.Channel", form, &data); err != nil {
		return nil, err
	}
	return data.Channels, nil
}

// ListPosts returns up to limit recent posts of a channel, newest-first.
func (c *Client) ListPosts(ctx context.Context, sid string, channelID int64, limit int) ([]Post, error) {
	form := url.Values{
		"api":        {"SYNO.Chat.Post"},
		"method":     {"list"},
		"version":    {"8"},
		"channel_id": {strconv.FormatInt(channelID, 10)},
		"prev_count": {strconv.Itoa(limit)},
		"next_count": {"0"},
		"_sid":       {sid},
	}

	var data struct {
		Posts []Post `json:"posts"`
	}
	if err := c.postEntry(ctx, "SYNO.Chat.Post", form, &data); err != nil {
		return nil, err
	}
	return data.Posts, nil
}

// ListUsers lists the chat user directory.
func (c *Client) ListUsers(ctx context.Context, sid string) ([]User, error) {
	form := url.Values{
		"api":     {"SYNO.Chat.User"},
		"method":  {"list"},
		"version": {"3"},
		"_sid":    {sid},
	}

	var data struct {
		Users []User `json:"users"`
	}
	if err := c.postEntry(ctx, "SYNO.Chat.User", form, &data); err != nil {
		return nil, err
	}
	return data.Users, nil
}

func (c *Client) postEntry(ctx context.Context, api string, form url.Values, out any) error {
	base, err := c.resolveBase()
	if err != nil {
		return fmt.Errorf("%s: %w", api, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		base+"/webapi/entry.cgi", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, api, out)
}

func (c *Client) do(req *http.Request, api string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", api, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", api, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: decode response: %w", api, err)
	}
	if !env.Success {
		code := 0
		if env.Error != nil {
			code = env.Error.Code
		}
		return &APIError{API: api, Code: code}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", api, err)
		}
	}
	return nil
}
