package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"venuehub/internal/registry"
)

// maxErrorBodyBytes bounds how much of a failed response we keep for the
// error message.
const maxErrorBodyBytes = 512

// Client is the shared HTTP transport for adapters. It attaches the
// provider's credential per its auth style and classifies failures into the
// error taxonomy so the resilience layer can decide what to retry.
type Client struct {
	cfg  registry.ProviderConfig
	http *http.Client
}

func NewClient(cfg registry.ProviderConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// BuildURL joins the provider base URL with a path and encoded query
// parameters.
func (c *Client) BuildURL(path string, params url.Values) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	u = u.JoinPath(path)
	if params != nil {
		u.RawQuery = params.Encode()
	}
	return u.String(), nil
}

// GetJSON issues a GET and decodes the response body into out. All failures
// come back as *Error with a category the retry executor understands.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return NewError(ErrorClient, c.cfg.ID, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	switch c.cfg.AuthStyle {
	case registry.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+c.cfg.Credential)
	case registry.AuthHeader:
		req.Header.Set(c.cfg.AuthHeaderKey, c.cfg.Credential)
	case registry.AuthNone:
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return NewError(ErrorNetwork, c.cfg.ID, "request deadline exceeded", err)
		}
		return NewError(ErrorNetwork, c.cfg.ID, "request failed", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewError(ErrorData, c.cfg.ID, "decode response", err)
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	msg := fmt.Sprintf("status %d: %s", resp.StatusCode, body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewError(ErrorAuthentication, c.cfg.ID, msg, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewError(ErrorRateLimit, c.cfg.ID, msg, nil)
	case resp.StatusCode == http.StatusNotFound:
		return NewError(ErrorClient, c.cfg.ID, msg, ErrNotFound)
	case resp.StatusCode >= 500:
		return NewError(ErrorServer, c.cfg.ID, msg, nil)
	case resp.StatusCode >= 400:
		return NewError(ErrorClient, c.cfg.ID, msg, nil)
	default:
		return NewError(ErrorUnknown, c.cfg.ID, msg, nil)
	}
}
