package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/pawmart/storefront/pkg/config"
	pkgerrors "github.com/pawmart/storefront/pkg/errors"
	"github.com/pawmart/storefront/pkg/logger"
)

// Client talks to the remote store backend. Credentials ride on the cookie
// jar, matching the session-cookie scheme the backend uses.
type Client struct {
	base *url.URL
	http *http.Client
	logg *logger.Logger
}

func New(cfg config.BackendConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("backend base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing backend base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("building cookie jar: %w", err)
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: cfg.Timeout, Jar: jar},
		logg: logg,
	}, nil
}

// HTTPClient exposes the underlying client so the chat bridge can share the
// session cookies.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// errorPayload mirrors the backend's error envelope. available_stock rides
// along on stock rejections.
type errorPayload struct {
	Error          string `json:"error"`
	Message        string `json:"message"`
	Detail         string `json:"detail"`
	AvailableStock *int   `json:"available_stock"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	endpoint := *c.base
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backend unreachable")
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading backend response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.mapError(resp.StatusCode, raw)
	}

	if dest == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding backend response")
	}
	return nil
}

func (c *Client) mapError(status int, raw []byte) error {
	var payload errorPayload
	// Bodies that are not JSON still map by status.
	_ = json.Unmarshal(raw, &payload)

	message := payload.Error
	if message == "" {
		message = payload.Message
	}
	if message == "" {
		message = payload.Detail
	}
	if message == "" {
		message = fmt.Sprintf("backend returned status %d", status)
	}

	if payload.AvailableStock != nil {
		code := pkgerrors.CodeStockLimit
		if *payload.AvailableStock == 0 {
			code = pkgerrors.CodeOutOfStock
		}
		return pkgerrors.New(code, message).
			WithDetails(map[string]any{"available_stock": *payload.AvailableStock})
	}

	switch {
	case status == http.StatusUnauthorized:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, message)
	case status == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeForbidden, message)
	case status == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	case status == http.StatusConflict:
		return pkgerrors.New(pkgerrors.CodeConflict, message)
	case status >= 400 && status < 500:
		return pkgerrors.New(pkgerrors.CodeValidation, message)
	default:
		return pkgerrors.New(pkgerrors.CodeDependency, message)
	}
}
