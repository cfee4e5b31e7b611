// Package fetch downloads templates and remote images described by URL
// descriptors.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/omofolarin/fill-pdf/internal/model"
)

// DefaultTimeout bounds a single request when the caller sets none.
const DefaultTimeout = 30 * time.Second

// Response is a successful fetch together with its cache validators.
type Response struct {
	Body         []byte
	ETag         string
	LastModified string
}

// Client performs descriptor-driven HTTP requests.
type Client struct {
	http *http.Client
}

// NewClient returns a client whose requests time out after timeout. A zero
// timeout uses DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// method normalises the descriptor method. Anything other than POST, PUT or
// PATCH is sent as GET.
func method(cfg model.URLConfig) string {
	switch m := strings.ToUpper(cfg.Method); m {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return m
	}
	return http.MethodGet
}

func (c *Client) newRequest(ctx context.Context, verb string, cfg model.URLConfig, withBody bool) (*http.Request, error) {
	var body io.Reader
	if withBody && len(cfg.Body) > 0 {
		body = bytes.NewReader(cfg.Body)
	}

	req, err := http.NewRequestWithContext(ctx, verb, cfg.URL, body)
	if err != nil {
		return nil, fmt.Errorf("invalid request for %s: %w", cfg.URL, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Fetch performs the request described by cfg. Non-2xx statuses are errors.
func (c *Client) Fetch(ctx context.Context, cfg model.URLConfig) (*Response, error) {
	req, err := c.newRequest(ctx, method(cfg), cfg, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", cfg.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch URL: %s - Status: %s", cfg.URL, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", cfg.URL, err)
	}

	return &Response{
		Body:         data,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// Validate sends a conditional HEAD request and reports whether the server
// answered 304 Not Modified.
func (c *Client) Validate(ctx context.Context, cfg model.URLConfig, etag, lastModified string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodHead, cfg, false)
	if err != nil {
		return false, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to validate %s: %w", cfg.URL, err)
	}
	resp.Body.Close()

	return resp.StatusCode == http.StatusNotModified, nil
}

// ResolveImages returns a copy of fields in which every remote image and
// signature has been downloaded and replaced by inline data. Fields whose
// download fails keep their remote source; one warning is returned per
// failure.
func (c *Client) ResolveImages(ctx context.Context, fields []model.FieldData) ([]model.FieldData, []error) {
	out := make([]model.FieldData, len(fields))
	copy(out, fields)

	var warnings []error
	for i, f := range out {
		src, ok := model.ImageSourceOf(f.Value)
		if !ok {
			continue
		}
		remote, ok := src.(model.RemoteImage)
		if !ok {
			continue
		}

		log.Printf("[fetch] Fetching image: %s", remote.URL.URL)
		resp, err := c.Fetch(ctx, remote.URL)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("failed to fetch image for %s: %w", f.FieldID, err))
			continue
		}
		out[i].Value = model.WithImageSource(f.Value, model.NewInlineImage(resp.Body))
	}
	return out, warnings
}

// Source is a parsed template location: either a local path or a request.
type Source struct {
	// Raw is the descriptor as given; it keys the template cache.
	Raw  string
	Path string
	URL  *model.URLConfig
}

// IsRemote reports whether the template has to be downloaded.
func (s Source) IsRemote() bool {
	return s.URL != nil
}

func (s Source) String() string {
	if s.URL != nil {
		return s.URL.URL
	}
	return s.Path
}

// ParseSource interprets a template argument. A JSON object is a request
// descriptor, an http(s) URL is a GET request, anything else is a path.
func ParseSource(raw string) (Source, error) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return Source{}, fmt.Errorf("empty template source")
	case strings.HasPrefix(trimmed, "{"):
		var cfg model.URLConfig
		if err := json.Unmarshal([]byte(trimmed), &cfg); err != nil {
			return Source{}, fmt.Errorf("invalid template descriptor: %w", err)
		}
		if cfg.URL == "" {
			return Source{}, fmt.Errorf("template descriptor without url")
		}
		return Source{Raw: raw, URL: &cfg}, nil
	case strings.HasPrefix(trimmed, "http://"), strings.HasPrefix(trimmed, "https://"):
		return Source{Raw: raw, URL: &model.URLConfig{URL: trimmed}}, nil
	}
	return Source{Raw: raw, Path: raw}, nil
}
