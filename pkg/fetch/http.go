package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"tableflip.dev/tilegrid/pkg/imagecache"
)

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	// URLTemplate contains {id}, {size} and {face} placeholders, e.g.
	// https://img.example.com/cards/{id}/{size}/{face}.jpg
	URLTemplate string
	Timeout     time.Duration // Default: 15s.
	MaxBytes    int64         // Default: 8MB.
	UserAgent   string
}

func (c *HTTPConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 8 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "tilegrid/1.0"
	}
}

// HTTPTransport fetches images over HTTP.
type HTTPTransport struct {
	client *http.Client
	config HTTPConfig
}

// NewHTTPTransport validates the template and builds a transport.
func NewHTTPTransport(cfg HTTPConfig) (*HTTPTransport, error) {
	cfg.defaults()
	if !strings.Contains(cfg.URLTemplate, "{id}") {
		return nil, fmt.Errorf("fetch: url template %q lacks an {id} placeholder", cfg.URLTemplate)
	}
	u, err := url.Parse(strings.NewReplacer("{id}", "x", "{size}", "x", "{face}", "x").Replace(cfg.URLTemplate))
	if err != nil {
		return nil, fmt.Errorf("fetch: url template: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("fetch: url template scheme %q not supported", u.Scheme)
	}
	return &HTTPTransport{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}, nil
}

// URL expands the template for key.
func (h *HTTPTransport) URL(key imagecache.Key) string {
	key = key.Normalize()
	return strings.NewReplacer(
		"{id}", url.PathEscape(key.ID),
		"{size}", string(key.Size),
		"{face}", string(key.Face),
	).Replace(h.config.URLTemplate)
}

// Fetch retrieves the image bytes for key.
func (h *HTTPTransport) Fetch(ctx context.Context, key imagecache.Key) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", h.config.UserAgent)
	req.Header.Set("Accept", "image/*")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: http get %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch: %s: http %d", key, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body %s: %w", key, err)
	}
	if int64(len(body)) > h.config.MaxBytes {
		return nil, fmt.Errorf("fetch: %s: body exceeds %d bytes", key, h.config.MaxBytes)
	}
	if len(body) == 0 {
		return nil, errors.New("fetch: empty body for " + key.String())
	}
	return body, nil
}
