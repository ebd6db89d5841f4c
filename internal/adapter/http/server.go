package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/runwaylens/runwaylens-backend/internal/domain"
	"github.com/runwaylens/runwaylens-backend/internal/usecase/display"
	"github.com/runwaylens/runwaylens-backend/internal/usecase/refresh"
	"github.com/runwaylens/runwaylens-backend/internal/usecase/series"
)

// Server implements the RunwayLens HTTP API
type Server struct {
	RefreshService *refresh.RefreshService
	SnapshotRepo   domain.SnapshotRepository
	Normalizer     *display.Normalizer
	Forecast       series.ForecastOptions
}

// NewServer creates a new HTTP server instance
func NewServer(
	refreshService *refresh.RefreshService,
	snapshotRepo domain.SnapshotRepository,
	normalizer *display.Normalizer,
	forecast series.ForecastOptions,
) *Server {
	return &Server{
		RefreshService: refreshService,
		SnapshotRepo:   snapshotRepo,
		Normalizer:     normalizer,
		Forecast:       forecast,
	}
}

// Router builds the gin engine with every route registered.
// The health endpoint is open; everything under /v1 requires the API token.
func (s *Server) Router(apiToken string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())

	router.GET("/healthz", s.handleHealth)

	v1 := router.Group("/v1")
	v1.Use(AuthMiddleware(apiToken))
	v1.POST("/companies/:company_id/refresh", s.handleRefresh)
	v1.POST("/companies/:company_id/periods/:period/metrics", s.handleManualEntry)
	v1.GET("/companies/:company_id/metrics/:metric/series", s.handleSeries)
	v1.GET("/companies/:company_id/periods/:period/cards", s.handleCards)

	return router
}

// handleHealth reports process liveness
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleRefresh pulls every configured feed for one company month and
// returns the consolidated snapshot
func (s *Server) handleRefresh(c *gin.Context) {
	// Parse company ID
	companyID, err := uuid.Parse(c.Param("company_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company_id format"})
		return
	}

	// Parse period from the request body
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	period, err := domain.ParseMonth(req.Period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Call usecase service
	snapshot, err := s.RefreshService.Refresh(c.Request.Context(), companyID, period)
	if err != nil {
		mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, domainSnapshotToResponse(snapshot))
}

// handleManualEntry records founder-entered metric values for one company
// month and returns the rederived snapshot
func (s *Server) handleManualEntry(c *gin.Context) {
	// Parse company ID
	companyID, err := uuid.Parse(c.Param("company_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company_id format"})
		return
	}

	// Parse period
	period, err := domain.ParseMonth(c.Param("period"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Parse metric values from the request body
	var req manualEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	// Call usecase service
	snapshot, err := s.RefreshService.ApplyManual(c.Request.Context(), companyID, period, req.Metrics)
	if err != nil {
		mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, domainSnapshotToResponse(snapshot))
}

// handleSeries renders one metric across a company's months as a dense
// chart series, optionally extended with a linear trend
func (s *Server) handleSeries(c *gin.Context) {
	// Parse company ID
	companyID, err := uuid.Parse(c.Param("company_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company_id format"})
		return
	}

	// Resolve the metric against the catalog
	key := domain.MetricKey(c.Param("metric"))
	def, ok := domain.DefinitionOf(key)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown metric %q", key)})
		return
	}

	// Parse the optional trend extension, which is opt-in per request
	extend := c.Query("forecast") == "true"
	opts := s.Forecast
	if extend {
		if raw := c.Query("months"); raw != "" {
			months, err := strconv.Atoi(raw)
			if err != nil || months < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid months value"})
				return
			}
			opts.MonthsAhead = months
		}
	}

	// Load every stored month for the company
	snapshots, err := s.SnapshotRepo.ListByCompany(c.Request.Context(), companyID)
	if err != nil {
		mapError(c, err)
		return
	}

	points := series.Build(snapshots, key, series.OptionsFor(def))
	if extend {
		points = series.Extend(points, opts)
	}

	c.JSON(http.StatusOK, seriesResponse{
		Metric: key,
		Label:  def.Label,
		Points: points,
	})
}

// handleCards renders one company month as display-ready KPI cards.
// A month with no stored snapshot renders every card as missing.
func (s *Server) handleCards(c *gin.Context) {
	// Parse company ID
	companyID, err := uuid.Parse(c.Param("company_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company_id format"})
		return
	}

	// Parse period
	period, err := domain.ParseMonth(c.Param("period"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Load the stored snapshot, which may not exist yet
	snapshot, err := s.SnapshotRepo.Get(c.Request.Context(), companyID, period)
	if err != nil {
		mapError(c, err)
		return
	}

	currency := c.Query("currency")
	if currency == "" {
		currency = "USD"
	}

	cards := s.Normalizer.Normalize(snapshot, currency)

	c.JSON(http.StatusOK, cardsResponse{
		CompanyID: companyID.String(),
		Period:    period.Key(),
		Currency:  currency,
		Cards:     cards,
	})
}

// refreshRequest is the JSON body for the refresh endpoint
type refreshRequest struct {
	Period string `json:"period"`
}

// manualEntryRequest is the JSON body for the manual entry endpoint.
// An explicit null value clears the metric, subject to merge precedence.
type manualEntryRequest struct {
	Metrics domain.MetricPatch `json:"metrics"`
}

// snapshotResponse is the wire form of a consolidated snapshot
type snapshotResponse struct {
	CompanyID string                                  `json:"company_id"`
	Period    string                                  `json:"period"`
	Metrics   map[domain.MetricKey]domain.MetricValue `json:"metrics"`
	UpdatedAt time.Time                               `json:"updated_at"`
}

// seriesResponse is the wire form of one metric's chart series
type seriesResponse struct {
	Metric domain.MetricKey    `json:"metric"`
	Label  string              `json:"label"`
	Points []domain.ChartPoint `json:"points"`
}

// cardsResponse is the wire form of one period's KPI cards
type cardsResponse struct {
	CompanyID string                `json:"company_id"`
	Period    string                `json:"period"`
	Currency  string                `json:"currency"`
	Cards     []domain.MetricResult `json:"cards"`
}

// domainSnapshotToResponse converts a domain snapshot to its wire form
func domainSnapshotToResponse(snapshot *domain.Snapshot) snapshotResponse {
	return snapshotResponse{
		CompanyID: snapshot.CompanyID.String(),
		Period:    snapshot.Period.Key(),
		Metrics:   snapshot.Metrics,
		UpdatedAt: snapshot.UpdatedAt,
	}
}

// mapError converts usecase errors to HTTP error responses
func mapError(c *gin.Context, err error) {
	errorMsg := err.Error()

	// Map common validation errors to 400 Bad Request
	if strings.Contains(errorMsg, "invalid") ||
		strings.Contains(errorMsg, "unknown metric") ||
		strings.Contains(errorMsg, "is required") {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorMsg})
		return
	}

	// Map "not found" errors to 404 Not Found
	if strings.Contains(errorMsg, "not found") {
		c.JSON(http.StatusNotFound, gin.H{"error": errorMsg})
		return
	}

	// Default to 500 Internal Server Error for unknown errors
	c.JSON(http.StatusInternalServerError, gin.H{"error": errorMsg})
}
