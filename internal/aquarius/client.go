// Package aquarius is a client for the Aquarius Publish API v2.
package aquarius

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"aquarius-catalog/internal/models"
	"aquarius-catalog/internal/timeutil"
	"aquarius-catalog/pkg/logging"
	"aquarius-catalog/pkg/metrics"
)

// Data API variants for point reads
const (
	DataAPICorrected = "Corrected"
	DataAPIRaw       = "Raw"
)

// AuthTokenHeader carries the session token on every request
const AuthTokenHeader = "X-Authentication-Token"

// ClientConfig configures a Client
type ClientConfig struct {
	// ServiceRootURL is the Publish API root, e.g. https://host/AQUARIUS/Publish/v2/
	ServiceRootURL string
	UserName       string
	Password       string
	Timeout        time.Duration
	Debug          bool
}

// Client handles requests to the Publish API
type Client struct {
	baseURL    string
	username   string
	password   string
	debug      bool
	httpClient *http.Client
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector

	mu    sync.RWMutex
	token string
}

// NewClient creates a new Publish API client
func NewClient(cfg ClientConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:  withTrailingSlash(cfg.ServiceRootURL),
		username: cfg.UserName,
		password: cfg.Password,
		debug:    cfg.Debug,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		logger:  logger,
		metrics: metricsCollector,
	}
}

// SetHTTPClient allows customizing the HTTP client (for testing)
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetBaseURL overrides the service root URL (for testing against mock servers)
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = withTrailingSlash(baseURL)
}

// BaseURL returns the service root URL in use
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authenticate obtains a session token with the configured credentials
func (c *Client) Authenticate(ctx context.Context) error {
	params := url.Values{}
	params.Set("Username", c.username)
	params.Set("EncryptedPassword", c.password)

	body, err := c.do(ctx, http.MethodGet, "GetAuthToken", params)
	if err != nil {
		return fmt.Errorf("authenticate %s: %w", c.username, err)
	}

	token := strings.Trim(strings.TrimSpace(string(body)), `"`)
	if token == "" {
		return fmt.Errorf("authenticate %s: empty token", c.username)
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return nil
}

// Close ends the session. It is a no-op without a token.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	hadToken := c.token != ""
	c.mu.Unlock()
	if !hadToken {
		return nil
	}

	_, err := c.do(ctx, http.MethodDelete, "session", nil)

	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// GetLocationDescriptionList reads all location descriptions
func (c *Client) GetLocationDescriptionList(ctx context.Context) ([]models.LocationDescription, error) {
	var resp models.LocationDescriptionListResponse
	if err := c.get(ctx, "GetLocationDescriptionList", nil, &resp); err != nil {
		return nil, fmt.Errorf("location descriptions: %w", err)
	}
	return resp.LocationDescriptions, nil
}

// GetLocationData reads the location data for one location identifier
func (c *Client) GetLocationData(ctx context.Context, locationIdentifier string) (*models.LocationData, error) {
	params := url.Values{}
	params.Set("LocationIdentifier", locationIdentifier)

	var resp models.LocationData
	if err := c.get(ctx, "GetLocationData", params, &resp); err != nil {
		return nil, fmt.Errorf("location data %s: %w", locationIdentifier, err)
	}
	return &resp, nil
}

// GetParameterList reads all parameter metadata
func (c *Client) GetParameterList(ctx context.Context) ([]models.ParameterMetadata, error) {
	var resp models.ParameterListResponse
	if err := c.get(ctx, "GetParameterList", nil, &resp); err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}
	return resp.Parameters, nil
}

// GetTimeSeriesUniqueIDList reads the unique ids of all non-deleted time series
func (c *Client) GetTimeSeriesUniqueIDList(ctx context.Context) ([]string, error) {
	var resp models.TimeSeriesUniqueIDListResponse
	if err := c.get(ctx, "GetTimeSeriesUniqueIdList", nil, &resp); err != nil {
		return nil, fmt.Errorf("time series unique ids: %w", err)
	}

	ids := make([]string, 0, len(resp.TimeSeriesUniqueIDs))
	for _, id := range resp.TimeSeriesUniqueIDs {
		if id.IsDeleted {
			continue
		}
		ids = append(ids, id.UniqueID)
	}
	return ids, nil
}

// GetTimeSeriesDescriptionList reads every time series description unfiltered
func (c *Client) GetTimeSeriesDescriptionList(ctx context.Context) ([]models.TimeSeriesDescription, error) {
	var resp models.TimeSeriesDescriptionListResponse
	if err := c.get(ctx, "GetTimeSeriesDescriptionList", nil, &resp); err != nil {
		return nil, fmt.Errorf("time series descriptions: %w", err)
	}
	return resp.TimeSeriesDescriptions, nil
}

// GetTimeSeriesDescriptionListByUniqueID reads descriptions for ids, issuing
// one request per chunk of at most MaxUniqueIDsPerRequest ids and
// concatenating the results in chunk order.
func (c *Client) GetTimeSeriesDescriptionListByUniqueID(ctx context.Context, ids []string) ([]models.TimeSeriesDescription, error) {
	normalized := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := NormalizeUniqueID(id)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, n)
	}

	chunks := ChunkStrings(normalized, MaxUniqueIDsPerRequest)
	var descriptions []models.TimeSeriesDescription
	for i, chunk := range chunks {
		params := url.Values{}
		params.Set("TimeSeriesUniqueIds", strings.Join(chunk, ","))

		var resp models.TimeSeriesDescriptionListResponse
		if err := c.get(ctx, "GetTimeSeriesDescriptionListByUniqueId", params, &resp); err != nil {
			return nil, fmt.Errorf("time series descriptions batch %d/%d: %w", i+1, len(chunks), err)
		}
		if c.metrics != nil {
			c.metrics.DescriptionBatchSize.Observe(float64(len(chunk)))
		}
		descriptions = append(descriptions, resp.TimeSeriesDescriptions...)
	}
	return descriptions, nil
}

// PointsRequest selects point data for one time series
type PointsRequest struct {
	UniqueID string
	DataAPI  string
	From     timeutil.DateTime
	To       timeutil.DateTime
	// Zone interprets From/To when they carry no zone; empty means machine zone
	Zone  string
	Debug bool
}

// GetTimeSeriesData reads points from the Corrected endpoint, or the Raw one
// when req.DataAPI is "Raw".
func (c *Client) GetTimeSeriesData(ctx context.Context, req PointsRequest) (*models.TimeSeriesDataResponse, error) {
	uniqueID, err := NormalizeUniqueID(req.UniqueID)
	if err != nil {
		return nil, err
	}

	endpoint := "GetTimeSeriesCorrectedData"
	if NormalizeDataAPI(req.DataAPI) == DataAPIRaw {
		endpoint = "GetTimeSeriesRawData"
	}

	params := url.Values{}
	params.Set("TimeSeriesUniqueId", uniqueID)
	if !req.From.IsZero() {
		from, err := queryTime(req.From, req.Zone)
		if err != nil {
			return nil, fmt.Errorf("query from: %w", err)
		}
		params.Set("QueryFrom", from)
	}
	if !req.To.IsZero() {
		to, err := queryTime(req.To, req.Zone)
		if err != nil {
			return nil, fmt.Errorf("query to: %w", err)
		}
		params.Set("QueryTo", to)
	}

	if req.Debug {
		c.logger.Info(ctx, "[VENDOR_POINTS_REQUEST] Requesting time series points", logging.Fields{
			"url": c.baseURL + endpoint + "?" + params.Encode(),
		})
	}

	var resp models.TimeSeriesDataResponse
	if err := c.get(ctx, endpoint, params, &resp); err != nil {
		return nil, fmt.Errorf("points %s: %w", uniqueID, err)
	}
	return &resp, nil
}

// GetVersion returns the service ApiVersion string
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	var resp models.VersionResponse
	if err := c.get(ctx, "version", nil, &resp); err != nil {
		return "", fmt.Errorf("version: %w", err)
	}
	return resp.APIVersion, nil
}

// NormalizeDataAPI returns Raw for any casing of "raw", otherwise Corrected
func NormalizeDataAPI(dataAPI string) string {
	if strings.EqualFold(strings.TrimSpace(dataAPI), DataAPIRaw) {
		return DataAPIRaw
	}
	return DataAPICorrected
}

func queryTime(d timeutil.DateTime, zone string) (string, error) {
	epoch, err := timeutil.ToEpochSeconds(d, zone)
	if err != nil {
		return "", err
	}
	return time.Unix(epoch, 0).UTC().Format(time.RFC3339), nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	body, err := c.do(ctx, http.MethodGet, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values) ([]byte, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	c.mu.RLock()
	if c.token != "" {
		req.Header.Set(AuthTokenHeader, c.token)
	}
	c.mu.RUnlock()

	if c.debug && endpoint != "GetAuthToken" {
		c.logger.Debug(ctx, "[VENDOR_REQUEST] Aquarius request", logging.Fields{
			"method": method,
			"url":    u,
		})
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(endpoint, "error", start)
		c.logger.Error(ctx, "[VENDOR_REQUEST_ERROR] Aquarius request failed", logging.Fields{
			"endpoint": endpoint,
		}, err)
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.record(endpoint, strconv.Itoa(resp.StatusCode), start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: truncate(string(body), 512)}
		c.logger.Warn(ctx, "[VENDOR_REQUEST_STATUS] Aquarius returned an error status", logging.Fields{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		})
		return nil, apiErr
	}

	return body, nil
}

func (c *Client) record(endpoint, status string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordVendorRequest(endpoint, status, time.Since(start))
	}
}

func withTrailingSlash(u string) string {
	if u != "" && !strings.HasSuffix(u, "/") {
		return u + "/"
	}
	return u
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
