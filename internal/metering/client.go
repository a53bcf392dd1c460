package metering

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/myelectricaldata/importer/internal/config"
	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	_ "time/tzdata"
)

const (
	maxResponseSize   = 16 << 20
	calendarCacheSize = 16

	dailyWindowDays  = 365
	detailWindowDays = 7
)

// Store receives everything fetched from the gateway
type Store interface {
	StoreContract(ctx context.Context, id domain.UsagePointID, contract domain.Contract) error
	StoreAddress(ctx context.Context, id domain.UsagePointID, address domain.Address) error
	StoreDaily(ctx context.Context, id domain.UsagePointID, measure domain.MeasureType, readings []domain.Reading) error
	StoreDetail(ctx context.Context, id domain.UsagePointID, measure domain.MeasureType, readings []domain.Reading) error
	StoreMaxPower(ctx context.Context, id domain.UsagePointID, readings []domain.Reading) error
	StoreTempo(ctx context.Context, days []domain.CalendarDay) error
	StoreEcowatt(ctx context.Context, days []domain.EcowattDay) error
}

// Client talks to the MyElectricalData gateway and persists the answers
type Client struct {
	baseURL       string
	httpClient    *http.Client
	store         Store
	location      *time.Location
	dailyDays     int
	detailDays    int
	now           func() time.Time
	calendarCache *expirable.LRU[string, map[string]interface{}]
}

func NewClient(cfg *config.Config, store Store) (*Client, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}

	return &Client{
		baseURL:       strings.TrimSuffix(cfg.GatewayUrl, "/"),
		httpClient:    &http.Client{Timeout: cfg.GatewayTimeout},
		store:         store,
		location:      location,
		dailyDays:     cfg.GatewayDailyDays,
		detailDays:    cfg.GatewayDetailDays,
		now:           time.Now,
		calendarCache: expirable.NewLRU[string, map[string]interface{}](calendarCacheSize, nil, cfg.GatewayCalendarCacheTTL),
	}, nil
}

// WithClock replaces the clock used to compute the requested date windows
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

func usagePointPath(up domain.UsagePoint, parts ...string) string {
	path := "/" + strings.Join(parts, "/")
	if up.Cache {
		path += "/cache"
	}
	return path
}

// get returns the decoded body of a successful answer, a *RemoteError for a
// well-formed error answer, or a transport error
func (c *Client) get(ctx context.Context, endpoint string, path string, headers map[string]string) (map[string]interface{}, error) {

	callDurationTimer := prometheus.NewTimer(metrics.gatewayRequestDuration.WithLabelValues(endpoint))
	defer callDurationTimer.ObserveDuration()

	log := logger.Log.WithFields(logrus.Fields{"endpoint": endpoint, "path": path})

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for name, value := range headers {
		request.Header.Set(name, value)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		metrics.gatewayResponses.WithLabelValues(endpoint, "transport_error").Inc()
		return nil, fmt.Errorf("perform request: %w", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		metrics.gatewayResponses.WithLabelValues(endpoint, "transport_error").Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}

	var body map[string]interface{}
	decodeErr := json.Unmarshal(raw, &body)

	if response.StatusCode < 200 || response.StatusCode > 299 || (decodeErr == nil && isErrorBody(body)) {
		metrics.gatewayResponses.WithLabelValues(endpoint, "remote_error").Inc()
		remoteErr := newRemoteError(response.StatusCode, body, raw)
		log.WithFields(logrus.Fields{"status": response.StatusCode, "error": remoteErr}).Debug("Gateway returned an error")
		return nil, remoteErr
	}

	if decodeErr != nil {
		metrics.gatewayResponses.WithLabelValues(endpoint, "transport_error").Inc()
		return nil, fmt.Errorf("decode payload: %w", decodeErr)
	}

	metrics.gatewayResponses.WithLabelValues(endpoint, "success").Inc()
	log.Trace("Gateway call succeeded")

	return body, nil
}

func (c *Client) today() time.Time {
	now := c.now().In(c.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.location)
}

type dateWindow struct {
	start time.Time
	end   time.Time
}

// windows splits the days ending today into chunks of at most size days,
// most recent first
func (c *Client) windows(days int, size int) []dateWindow {
	end := c.today()
	oldest := end.AddDate(0, 0, -days)

	var result []dateWindow
	for end.After(oldest) {
		start := end.AddDate(0, 0, -size)
		if start.Before(oldest) {
			start = oldest
		}
		result = append(result, dateWindow{start: start, end: end})
		end = start
	}
	return result
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
