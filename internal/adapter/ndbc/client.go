// Package ndbc downloads realtime reports from the National Data Buoy Center.
package ndbc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
	"github.com/couchcryptid/splashdown-etl/internal/observability"
)

// DefaultBaseURL is the NDBC data root.
const DefaultBaseURL = "https://www.ndbc.noaa.gov/data"

// maxBodyBytes bounds one download; realtime2 files cover 45 days and stay
// well under this.
const maxBodyBytes = 32 << 20

// Client fetches NDBC files over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an NDBC client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// LatestObs fetches the master station list, latest_obs/latest_obs.txt.
func (c *Client) LatestObs(ctx context.Context) ([]byte, error) {
	return c.get(ctx, "latest_obs/latest_obs.txt", domain.KindStations)
}

// Report fetches realtime2/<station>.txt or realtime2/<station>.spec.
func (c *Client) Report(ctx context.Context, stationID string, kind domain.ReportKind) ([]byte, error) {
	name := fmt.Sprintf("realtime2/%s.%s", url.PathEscape(stationID), kind)
	return c.get(ctx, name, kind)
}

// get downloads one file. Every failure wraps domain.ErrDownloadFailure.
func (c *Client) get(ctx context.Context, name string, kind domain.ReportKind) ([]byte, error) {
	start := time.Now()
	body, err := c.doRequest(ctx, c.baseURL+"/"+name)
	if c.metrics != nil {
		c.metrics.DownloadDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
		if err != nil {
			c.metrics.DownloadFailures.WithLabelValues(string(kind)).Inc()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrDownloadFailure, name, err)
	}
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", maxBodyBytes)
	}
	return body, nil
}
