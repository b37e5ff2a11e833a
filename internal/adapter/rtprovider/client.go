// Package rtprovider fetches reproduction-number estimates from the external
// infection rate model over HTTP.
package rtprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/couchcryptid/region-metrics-etl/internal/domain"
	"github.com/couchcryptid/region-metrics-etl/internal/observability"
)

// Client implements domain.InfectionRateProvider against the model's
// GET /regions/{fips}/rt endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an infection rate provider client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// InfectionRate returns the estimate for region, or nil when the model has
// none for it.
func (c *Client) InfectionRate(ctx context.Context, region domain.Region) (*domain.InfectionRateEstimate, error) {
	u := fmt.Sprintf("%s/regions/%s/rt", c.baseURL, url.PathEscape(region.FIPS))

	start := time.Now()
	est, err := c.doRequest(ctx, u)
	c.metrics.RtAPIDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.RtRequests.WithLabelValues("error").Inc()
		return nil, err
	case est.Empty():
		c.metrics.RtRequests.WithLabelValues("empty").Inc()
		c.logger.Debug("no infection rate estimate", "region", region.FIPS)
		return nil, nil
	default:
		c.metrics.RtRequests.WithLabelValues("success").Inc()
		return est, nil
	}
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (*domain.InfectionRateEstimate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("infection rate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("infection rate API error: status %d: %s", resp.StatusCode, body)
	}

	var rtResp response
	if err := json.NewDecoder(resp.Body).Decode(&rtResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return rtResp.estimate(), nil
}

// Model API response types. Column names follow the model's CSV output.

type response struct {
	FIPS   string `json:"fips"`
	Series []row  `json:"series"`
}

type row struct {
	Date   civil.Date `json:"date"`
	Rt     *float64   `json:"Rt_MAP_composite"`
	RtCI95 *float64   `json:"Rt_ci95_composite"`
}

func (r response) estimate() *domain.InfectionRateEstimate {
	if len(r.Series) == 0 {
		return nil
	}
	est := &domain.InfectionRateEstimate{
		Dates:  make([]civil.Date, len(r.Series)),
		Rt:     make([]float64, len(r.Series)),
		RtCI95: make([]float64, len(r.Series)),
	}
	for i, obs := range r.Series {
		est.Dates[i] = obs.Date
		est.Rt[i] = valueOrNull(obs.Rt)
		est.RtCI95[i] = valueOrNull(obs.RtCI95)
	}
	return est
}

func valueOrNull(v *float64) float64 {
	if v == nil {
		return domain.Null
	}
	return *v
}
