// internal/api/client.go

// Package api talks to the HazMap feed service. The client consults the
// external-api and performance fault categories so tests can rehearse
// upstream failures without a misbehaving server: an armed HTTP fault
// yields the same StatusError a real bad response yields.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazmap/simkit/internal/fault"
	"github.com/hazmap/simkit/pkg/core"
)

// StatusError reports a non-2xx response from the feed service.
type StatusError struct {
	Status int
	Op     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Op, e.Status)
}

// Unavailable reports whether the feed asked us to back off.
func (e *StatusError) Unavailable() bool {
	return e.Status == http.StatusServiceUnavailable || e.Status == http.StatusTooManyRequests
}

// Client handles communication with the HazMap feed service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	registry   *fault.Registry
}

// Option configures a Client.
type Option func(*Client)

// WithRegistry points the client at a fault registry other than the
// process-wide default.
func WithRegistry(r *fault.Registry) Option {
	return func(c *Client) { c.registry = r }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new feed client.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		registry:   fault.Default,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// checkFaults applies armed performance and external-api faults. A
// non-nil error is exactly what the real failure would have produced.
func (c *Client) checkFaults(ctx context.Context, op string) error {
	if d, ok := c.registry.Get(fault.CategoryPerformance); ok {
		if pf, ok := d.(fault.PerformanceFault); ok {
			c.registry.Hit(fault.CategoryPerformance, pf.Kind())
			select {
			case <-time.After(pf.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if d, ok := c.registry.Get(fault.CategoryExternalAPI); ok {
		if hf, ok := d.(fault.HTTPFault); ok {
			c.registry.Hit(fault.CategoryExternalAPI, hf.Kind())
			return &StatusError{Status: hf.Status, Op: op}
		}
	}
	return nil
}

// Healthcheck checks if the feed service is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	if err := c.checkFaults(ctx, "healthcheck"); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Status: resp.StatusCode, Op: "healthcheck"}
	}
	return nil
}

// FetchHazards pulls the current hazard zones from the feed.
func (c *Client) FetchHazards(ctx context.Context) ([]core.HazardZone, error) {
	if err := c.checkFaults(ctx, "fetch hazards"); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/hazards", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hazard request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode, Op: "fetch hazards"}
	}

	var zones []core.HazardZone
	if err := json.NewDecoder(resp.Body).Decode(&zones); err != nil {
		return nil, fmt.Errorf("failed to decode hazard feed: %w", err)
	}
	return zones, nil
}

// UploadFixture sends a serialized fixture file to the feed service so
// shared environments can replay it.
func (c *Client) UploadFixture(ctx context.Context, filePath string, meta core.FixtureMetadata) error {
	if err := c.checkFaults(ctx, "upload fixture"); err != nil {
		return err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		defer writer.Close()

		_ = writer.WriteField("secret", c.apiKey)
		_ = writer.WriteField("name", meta.Name)
		_ = writer.WriteField("seed", fmt.Sprintf("%d", meta.Seed))
		_ = writer.WriteField("checksum", meta.Checksum)

		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			errCh <- fmt.Errorf("failed to create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			errCh <- fmt.Errorf("failed to copy file: %w", err)
			return
		}
		errCh <- nil
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/fixtures/add", pr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if writeErr := <-errCh; writeErr != nil {
		return writeErr
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Status: resp.StatusCode, Op: "upload fixture"}
	}
	return nil
}
