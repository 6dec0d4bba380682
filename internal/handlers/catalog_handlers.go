package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"aquarius-catalog/internal/aquarius"
	"aquarius-catalog/internal/catalog"
	"aquarius-catalog/internal/datastore"
	"aquarius-catalog/internal/models"
	"aquarius-catalog/internal/repository"
	"aquarius-catalog/internal/services"
	"aquarius-catalog/internal/timeutil"
	"aquarius-catalog/internal/ts"
	"aquarius-catalog/pkg/logging"
	"aquarius-catalog/pkg/metrics"
)

// Exporter persists materialized series. It is nil when no database is configured.
type Exporter interface {
	Export(ctx context.Context, series *ts.TimeSeries) (*models.ExportSummary, error)
	GetExport(ctx context.Context, tsid string) (*models.StoredTimeSeries, []models.StoredValue, error)
	ListExports(ctx context.Context, limit, offset int) ([]*models.StoredTimeSeries, int, error)
	HealthCheck(ctx context.Context) error
}

// CatalogHandler serves catalog browsing and time series reads
type CatalogHandler struct {
	store   datastore.DataStore
	exports Exporter
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCatalogHandler creates a new catalog handler. exports may be nil.
func NewCatalogHandler(
	store datastore.DataStore,
	exports Exporter,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *CatalogHandler {
	return &CatalogHandler{
		store:   store,
		exports: exports,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// PointResponse is one value; missing values encode as null
type PointResponse struct {
	Time  time.Time `json:"time"`
	Value *float64  `json:"value"`
}

// TimeSeriesResponse is the body of a single read
type TimeSeriesResponse struct {
	TSID           string                 `json:"tsid"`
	Description    string                 `json:"description"`
	Units          string                 `json:"units"`
	Start          time.Time              `json:"start"`
	End            time.Time              `json:"end"`
	RequestedStart time.Time              `json:"requestedStart"`
	RequestedEnd   time.Time              `json:"requestedEnd"`
	Properties     map[string]interface{} `json:"properties"`
	Points         []PointResponse        `json:"points"`
}

// GetDataTypes handles GET /api/datatypes
func (h *CatalogHandler) GetDataTypes(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/datatypes")()

	q := r.URL.Query()
	wildcard := queryBool(q.Get("wildcard"))
	cat := h.store.CurrentCatalog()

	var types []string
	if queryBool(q.Get("counts")) {
		types = cat.DataTypeChoices(wildcard)
	} else {
		types = cat.DataTypes(wildcard)
	}

	h.metrics.RecordAPIRequest("/api/datatypes", "GET", "200")
	h.sendJSON(w, map[string]interface{}{"dataTypes": types}, http.StatusOK)
}

// GetIntervals handles GET /api/intervals
func (h *CatalogHandler) GetIntervals(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/intervals")()

	q := r.URL.Query()
	intervals := h.store.CurrentCatalog().DataIntervals(q.Get("datatype"), queryBool(q.Get("wildcard")))

	h.metrics.RecordAPIRequest("/api/intervals", "GET", "200")
	h.sendJSON(w, map[string]interface{}{"intervals": intervals}, http.StatusOK)
}

// GetLocations handles GET /api/locations
func (h *CatalogHandler) GetLocations(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/locations")()

	q := r.URL.Query()
	cat := h.store.CurrentCatalog()
	dataType, interval := q.Get("datatype"), q.Get("interval")

	h.metrics.RecordAPIRequest("/api/locations", "GET", "200")
	h.sendJSON(w, map[string]interface{}{
		"locations": cat.MatchingLocations(dataType, interval),
		"choices":   cat.LocationChoices(dataType, interval),
	}, http.StatusOK)
}

// GetFilters handles GET /api/filters
func (h *CatalogHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/filters")()

	h.metrics.RecordAPIRequest("/api/filters", "GET", "200")
	h.sendJSON(w, h.store.CurrentCatalog().InputFilters(), http.StatusOK)
}

// GetCatalog handles GET /api/catalog
func (h *CatalogHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/catalog")()

	q := r.URL.Query()
	page, limit := pagination(q.Get("page"), q.Get("limit"), 1000, 10000)

	query := catalog.Query{
		DataType: q.Get("datatype"),
		Interval: q.Get("interval"),
	}
	if location := q.Get("location"); location != "" {
		cond, err := catalog.ParseCondition(q.Get("operator"), location)
		if err != nil {
			h.sendFailure(w, r, "/api/catalog", err)
			return
		}
		query.Location = cond
	}

	rows := catalog.Rows(h.store.CurrentCatalog().Select(query))
	total := len(rows)
	from := min((page-1)*limit, total)
	to := min(from+limit, total)

	h.metrics.RecordAPIRequest("/api/catalog", "GET", "200")
	h.sendJSON(w, PaginatedResponse{
		Data:       rows[from:to],
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// GetTimeSeries handles GET /api/timeseries/{tsid}
func (h *CatalogHandler) GetTimeSeries(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/timeseries")()

	series, err := h.readFromRequest(r)
	if err != nil {
		h.sendFailure(w, r, "/api/timeseries", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/timeseries", "GET", "200")
	h.sendJSON(w, seriesResponse(series), http.StatusOK)
}

// ExportTimeSeries handles POST /api/timeseries/{tsid}/export
func (h *CatalogHandler) ExportTimeSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/timeseries/export")()

	if h.exports == nil {
		h.sendError(w, r, "/api/timeseries/export", "export database is not enabled", http.StatusServiceUnavailable)
		return
	}

	series, err := h.readFromRequest(r)
	if err != nil {
		h.sendFailure(w, r, "/api/timeseries/export", err)
		return
	}

	summary, err := h.exports.Export(ctx, series)
	if err != nil {
		h.sendFailure(w, r, "/api/timeseries/export", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/timeseries/export", "POST", "200")
	h.sendJSON(w, summary, http.StatusOK)
}

// ListExports handles GET /api/exports
func (h *CatalogHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/exports")()

	if h.exports == nil {
		h.sendError(w, r, "/api/exports", "export database is not enabled", http.StatusServiceUnavailable)
		return
	}

	page, limit := pagination(r.URL.Query().Get("page"), r.URL.Query().Get("limit"), 100, 1000)
	headers, total, err := h.exports.ListExports(ctx, limit, (page-1)*limit)
	if err != nil {
		h.sendFailure(w, r, "/api/exports", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/exports", "GET", "200")
	h.sendJSON(w, PaginatedResponse{
		Data:       headers,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// GetExport handles GET /api/exports/{tsid}
func (h *CatalogHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/exports/{tsid}")()

	if h.exports == nil {
		h.sendError(w, r, "/api/exports/{tsid}", "export database is not enabled", http.StatusServiceUnavailable)
		return
	}

	header, values, err := h.exports.GetExport(ctx, mux.Vars(r)["tsid"])
	if err != nil {
		h.sendFailure(w, r, "/api/exports/{tsid}", err)
		return
	}

	points := make([]PointResponse, 0, len(values))
	for _, v := range values {
		p := PointResponse{Time: v.ObservedAt}
		if v.Value.Valid {
			value := v.Value.Float64
			p.Value = &value
		}
		points = append(points, p)
	}

	h.metrics.RecordAPIRequest("/api/exports/{tsid}", "GET", "200")
	h.sendJSON(w, map[string]interface{}{
		"header": header,
		"points": points,
	}, http.StatusOK)
}

// RefreshCatalog handles POST /api/catalog/refresh
func (h *CatalogHandler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/catalog/refresh")()

	if err := h.store.RefreshCatalog(ctx); err != nil {
		h.sendFailure(w, r, "/api/catalog/refresh", err)
		return
	}

	h.logger.Info(ctx, "[API_CATALOG_REFRESH] Catalog refreshed on request", logging.Fields{
		"records": h.store.CurrentCatalog().Len(),
	})
	h.metrics.RecordAPIRequest("/api/catalog/refresh", "POST", "200")
	h.sendJSON(w, h.store.Status(), http.StatusOK)
}

// GetDataStore handles GET /api/datastore
func (h *CatalogHandler) GetDataStore(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/datastore")()

	h.metrics.RecordAPIRequest("/api/datastore", "GET", "200")
	h.sendJSON(w, map[string]interface{}{
		"status": h.store.Status(),
		"plugin": h.store.PluginProperties(),
	}, http.StatusOK)
}

// CheckRequirements handles GET /api/datastore/requirements?requirement=...
// Each requirement query value is checked separately.
func (h *CatalogHandler) CheckRequirements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/datastore/requirements")()

	requirements := r.URL.Query()["requirement"]
	if len(requirements) == 0 {
		h.sendError(w, r, "/api/datastore/requirements", "at least one requirement parameter is required", http.StatusBadRequest)
		return
	}

	checks := make([]datastore.RequirementCheck, 0, len(requirements))
	for _, req := range requirements {
		checks = append(checks, h.store.CheckRequirement(ctx, req))
	}

	h.metrics.RecordAPIRequest("/api/datastore/requirements", "GET", "200")
	h.sendJSON(w, map[string]interface{}{"checks": checks}, http.StatusOK)
}

// HealthCheck handles GET /health. A degraded datastore answers 200 with
// status "degraded"; an unreachable export database answers 503.
func (h *CatalogHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := h.store.Status()

	body := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"datastore": status.Name,
		"records":   status.Records,
	}
	if status.Degraded {
		body["status"] = "degraded"
		body["message"] = status.Message
	}

	if h.exports != nil {
		if err := h.exports.HealthCheck(ctx); err != nil {
			h.logger.Warn(ctx, "[HEALTH_CHECK_DB] Export database unreachable", logging.Fields{
				"error": err.Error(),
			})
			body["status"] = "unhealthy"
			body["database"] = err.Error()
			h.sendJSON(w, body, http.StatusServiceUnavailable)
			return
		}
		body["database"] = "ok"
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, body, http.StatusOK)
}

func (h *CatalogHandler) readFromRequest(r *http.Request) (*ts.TimeSeries, error) {
	q := r.URL.Query()
	req := services.ReadRequest{
		TSID:              mux.Vars(r)["tsid"],
		DataAPI:           q.Get("dataapi"),
		IrregularInterval: q.Get("irregular"),
		OutputTimeZone:    q.Get("tz"),
		ReadData:          !queryBool(q.Get("metadata_only")),
		Debug:             queryBool(q.Get("debug")),
	}

	var err error
	if s := q.Get("start"); s != "" {
		if req.ReadStart, err = timeutil.ParseDateTime(s); err != nil {
			return nil, &models.ValidationError{Field: "start", Value: s, Message: err.Error()}
		}
	}
	if s := q.Get("end"); s != "" {
		if req.ReadEnd, err = timeutil.ParseDateTime(s); err != nil {
			return nil, &models.ValidationError{Field: "end", Value: s, Message: err.Error()}
		}
	}

	return h.store.ReadTimeSeries(r.Context(), req)
}

func seriesResponse(series *ts.TimeSeries) TimeSeriesResponse {
	points := series.Points()
	out := TimeSeriesResponse{
		TSID:           series.Identifier.String(),
		Description:    series.Description,
		Units:          series.Units,
		Start:          series.Date1,
		End:            series.Date2,
		RequestedStart: series.Date1Original,
		RequestedEnd:   series.Date2Original,
		Properties:     series.Properties(),
		Points:         make([]PointResponse, 0, len(points)),
	}
	for _, p := range points {
		pr := PointResponse{Time: p.Time}
		if !series.IsMissing(p.Value) && !math.IsInf(p.Value, 0) {
			v := p.Value
			pr.Value = &v
		}
		out.Points = append(out.Points, pr)
	}
	return out
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) (int, string) {
	var (
		notFound   *services.NotFoundError
		ambiguous  *services.AmbiguousError
		validation *models.ValidationError
		stored     *repository.NotFoundError
		apiErr     *aquarius.APIError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, "validation_error"
	case errors.As(err, &notFound), errors.As(err, &stored):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &ambiguous):
		return http.StatusConflict, "ambiguous"
	case errors.Is(err, datastore.ErrDegraded):
		return http.StatusServiceUnavailable, "degraded"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *CatalogHandler) sendFailure(w http.ResponseWriter, r *http.Request, route string, err error) {
	status, errorType := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"route":  route,
			"path":   r.URL.Path,
			"status": status,
		}, err)
	}
	h.metrics.RecordAPIError(errorType, route)
	h.sendError(w, r, route, err.Error(), status)
}

func (h *CatalogHandler) observe(route string) func() {
	startTime := time.Now()
	return func() {
		h.metrics.APIRequestDuration.WithLabelValues(route).Observe(time.Since(startTime).Seconds())
	}
}

// sendJSON sends a JSON response
func (h *CatalogHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response labelled with the route template
func (h *CatalogHandler) sendError(w http.ResponseWriter, r *http.Request, route, message string, statusCode int) {
	h.metrics.RecordAPIRequest(route, r.Method, strconv.Itoa(statusCode))
	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}
	h.sendJSON(w, response, statusCode)
}

func queryBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

// pagination bounds page so that (page-1)*limit cannot overflow
func pagination(pageStr, limitStr string, defaultLimit, maxLimit int) (int, int) {
	page, limit := 1, defaultLimit
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = min(p, math.MaxInt/maxLimit)
	}
	if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= maxLimit {
		limit = l
	}
	return page, limit
}

// RegisterRoutes registers all catalog API routes
func (h *CatalogHandler) RegisterRoutes(router *mux.Router) {
	router.Use(RequestContext(h.logger))

	router.HandleFunc("/api/datatypes", h.GetDataTypes).Methods("GET")
	router.HandleFunc("/api/intervals", h.GetIntervals).Methods("GET")
	router.HandleFunc("/api/locations", h.GetLocations).Methods("GET")
	router.HandleFunc("/api/filters", h.GetFilters).Methods("GET")
	router.HandleFunc("/api/catalog", h.GetCatalog).Methods("GET")
	router.HandleFunc("/api/catalog/refresh", h.RefreshCatalog).Methods("POST")
	router.HandleFunc("/api/timeseries/{tsid}", h.GetTimeSeries).Methods("GET")
	router.HandleFunc("/api/timeseries/{tsid}/export", h.ExportTimeSeries).Methods("POST")
	router.HandleFunc("/api/exports", h.ListExports).Methods("GET")
	router.HandleFunc("/api/exports/{tsid}", h.GetExport).Methods("GET")
	router.HandleFunc("/api/datastore", h.GetDataStore).Methods("GET")
	router.HandleFunc("/api/datastore/requirements", h.CheckRequirements).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
}
