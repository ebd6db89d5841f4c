//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runwaylens/runwaylens-backend/internal/adapter/repository/postgres"
	"github.com/runwaylens/runwaylens-backend/internal/domain"
)

var (
	db         *postgres.DB
	apiBase    string
	apiToken   string
	httpClient *http.Client
)

// TestMain sets up the test environment
func TestMain(m *testing.M) {
	// 1. Connect to Database
	dbConnStr := getDBConnectionString()
	var err error
	db, err = postgres.NewDB(dbConnStr)
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()

	// 2. Point at the running API server
	apiBase = getAPIAddress()
	apiToken = getAPIToken()
	httpClient = &http.Client{Timeout: 10 * time.Second}

	// Run tests
	code := m.Run()

	os.Exit(code)
}

// getDBConnectionString returns the database connection string from environment or defaults
func getDBConnectionString() string {
	connStr := os.Getenv("DB_CONN_STR")
	if connStr != "" {
		return connStr
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "localhost"
	}

	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("DB_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("DB_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("DB_NAME")
	if dbname == "" {
		dbname = "runwaylens"
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

// getAPIAddress returns the API server base URL from environment or defaults
func getAPIAddress() string {
	addr := os.Getenv("API_ADDRESS")
	if addr == "" {
		addr = "http://localhost:8080"
	}
	return addr
}

// getAPIToken returns the API token from environment or defaults
func getAPIToken() string {
	token := os.Getenv("API_TOKEN")
	if token == "" {
		token = "dev-token"
	}
	return token
}

// doRequest sends an authenticated request and returns the status code and body
func doRequest(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, apiBase+path, reader)
	require.NoError(t, err, "Should be able to build the request")
	req.Header.Set("Authorization", apiToken)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	require.NoError(t, err, "Request should reach the server")
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "Should be able to read the response body")
	return resp.StatusCode, data
}

// snapshotPayload mirrors the wire form of a consolidated snapshot
type snapshotPayload struct {
	CompanyID string                                  `json:"company_id"`
	Period    string                                  `json:"period"`
	Metrics   map[domain.MetricKey]domain.MetricValue `json:"metrics"`
}

// seriesPayload mirrors the wire form of a metric series
type seriesPayload struct {
	Metric string              `json:"metric"`
	Points []domain.ChartPoint `json:"points"`
}

// cardsPayload mirrors the wire form of a period's KPI cards
type cardsPayload struct {
	Period string                `json:"period"`
	Cards  []domain.MetricResult `json:"cards"`
}

// requireMetric fails the test unless the metric carries the expected value
func requireMetric(t *testing.T, metrics map[domain.MetricKey]domain.MetricValue, key domain.MetricKey, expected string, source domain.Provenance) {
	t.Helper()

	metric, ok := metrics[key]
	require.True(t, ok, "Metric %s should be present", key)
	require.NotNil(t, metric.Value, "Metric %s should carry a value", key)
	assert.True(t, metric.Value.Equal(decimal.RequireFromString(expected)),
		"Metric %s should be %s, got %s", key, expected, metric.Value.String())
	assert.Equal(t, source, metric.Source, "Metric %s provenance should match", key)
}

// TestConsolidationFlow tests the complete flow: manual entries across three
// months, derivation, chart series with a trend, and KPI cards
func TestConsolidationFlow(t *testing.T) {
	companyID := uuid.New()

	// Step A: Enter the first month. ARR and runway should be derived.
	status, body := doRequest(t, "POST",
		fmt.Sprintf("/v1/companies/%s/periods/2025-11/metrics", companyID),
		`{"metrics": {"mrr": 40000, "cash_balance": 200000, "burn_rate": 25000}}`)
	require.Equal(t, http.StatusOK, status, "Manual entry should succeed: %s", string(body))

	var first snapshotPayload
	require.NoError(t, json.Unmarshal(body, &first))
	assert.Equal(t, "2025-11", first.Period)
	requireMetric(t, first.Metrics, domain.MetricMRR, "40000", domain.ProvenanceManualEntry)
	requireMetric(t, first.Metrics, domain.MetricARR, "480000", domain.ProvenanceComputed)
	requireMetric(t, first.Metrics, domain.MetricRunwayMonths, "8", domain.ProvenanceComputed)
	growth, ok := first.Metrics[domain.MetricMRRGrowthMoM]
	require.True(t, ok)
	assert.Nil(t, growth.Value, "Growth should be null for the first tracked month")

	// Step B: Enter the second month. Growth should derive against month one.
	status, body = doRequest(t, "POST",
		fmt.Sprintf("/v1/companies/%s/periods/2025-12/metrics", companyID),
		`{"metrics": {"mrr": 44000}}`)
	require.Equal(t, http.StatusOK, status, "Manual entry should succeed: %s", string(body))

	var second snapshotPayload
	require.NoError(t, json.Unmarshal(body, &second))
	requireMetric(t, second.Metrics, domain.MetricMRRGrowthMoM, "10", domain.ProvenanceComputed)
	requireMetric(t, second.Metrics, domain.MetricARR, "528000", domain.ProvenanceComputed)

	// Step C: Enter the third month across the year boundary.
	status, body = doRequest(t, "POST",
		fmt.Sprintf("/v1/companies/%s/periods/2026-01/metrics", companyID),
		`{"metrics": {"mrr": 48000}}`)
	require.Equal(t, http.StatusOK, status, "Manual entry should succeed: %s", string(body))

	var third snapshotPayload
	require.NoError(t, json.Unmarshal(body, &third))
	requireMetric(t, third.Metrics, domain.MetricMRRGrowthMoM, "9.1", domain.ProvenanceComputed)

	// Step D: Verify all three months were persisted
	ctx := context.Background()
	var monthCount int
	countQuery := `SELECT COUNT(*) FROM snapshots WHERE company_id = $1`
	err := db.QueryRowContext(ctx, countQuery, companyID).Scan(&monthCount)
	require.NoError(t, err, "Should be able to count stored snapshots")
	assert.Equal(t, 3, monthCount, "Each entered month should be stored once")

	snapshotRepo := postgres.NewSnapshotRepository(db)
	stored, err := snapshotRepo.ListByCompany(ctx, companyID)
	require.NoError(t, err, "ListByCompany should succeed")
	require.Len(t, stored, 3)
	assert.Equal(t, "2025-11", stored[0].Period.Key(), "Snapshots should come back ordered by month")
	assert.Equal(t, "2026-01", stored[2].Period.Key())

	// Step E: The MRR series should span the three months densely
	status, body = doRequest(t, "GET",
		fmt.Sprintf("/v1/companies/%s/metrics/mrr/series", companyID), "")
	require.Equal(t, http.StatusOK, status, "Series should succeed: %s", string(body))

	var series seriesPayload
	require.NoError(t, json.Unmarshal(body, &series))
	require.Len(t, series.Points, 3)
	assert.Equal(t, "2025-11", series.Points[0].PeriodKey)
	assert.Equal(t, "2025-12", series.Points[1].PeriodKey)
	assert.Equal(t, "2026-01", series.Points[2].PeriodKey)
	require.NotNil(t, series.Points[2].Value)
	assert.True(t, series.Points[2].Value.Equal(decimal.RequireFromString("48000")))

	// Step F: The trend extension should continue the 4000/month slope
	status, body = doRequest(t, "GET",
		fmt.Sprintf("/v1/companies/%s/metrics/mrr/series?forecast=true&months=3", companyID), "")
	require.Equal(t, http.StatusOK, status, "Forecast series should succeed: %s", string(body))

	var extended seriesPayload
	require.NoError(t, json.Unmarshal(body, &extended))
	require.Len(t, extended.Points, 6)
	for i, expected := range []string{"52000", "56000", "60000"} {
		point := extended.Points[3+i]
		assert.Nil(t, point.Value, "Trend point %s should carry no historical value", point.PeriodKey)
		require.NotNil(t, point.Forecast, "Trend point %s should carry a forecast", point.PeriodKey)
		assert.True(t, point.Forecast.Equal(decimal.RequireFromString(expected)),
			"Trend point %s should be %s, got %s", point.PeriodKey, expected, point.Forecast.String())
	}
	assert.Equal(t, "2026-04", extended.Points[5].PeriodKey)

	// Step G: Cards for month one should show reported and derived values
	status, body = doRequest(t, "GET",
		fmt.Sprintf("/v1/companies/%s/periods/2025-11/cards", companyID), "")
	require.Equal(t, http.StatusOK, status, "Cards should succeed: %s", string(body))

	var cards cardsPayload
	require.NoError(t, json.Unmarshal(body, &cards))
	require.Len(t, cards.Cards, 11)

	byKey := make(map[domain.MetricKey]domain.MetricResult, len(cards.Cards))
	for _, card := range cards.Cards {
		byKey[card.Key] = card
	}
	assert.Equal(t, "$40,000", byKey[domain.MetricMRR].Formatted)
	assert.Equal(t, domain.StatusReported, byKey[domain.MetricMRR].Status)
	assert.Equal(t, "8 mo", byKey[domain.MetricRunwayMonths].Formatted)
	assert.Equal(t, domain.StatusDerived, byKey[domain.MetricRunwayMonths].Status)
	assert.Equal(t, domain.StatusMissing, byKey[domain.MetricChurn].Status)
	assert.Equal(t, "—", byKey[domain.MetricChurn].Formatted)
}

// TestRefreshIsIdempotent tests that refreshing a month with no feeds
// configured keeps manual values and rederives the computed ones
func TestRefreshIsIdempotent(t *testing.T) {
	companyID := uuid.New()

	status, body := doRequest(t, "POST",
		fmt.Sprintf("/v1/companies/%s/periods/2026-02/metrics", companyID),
		`{"metrics": {"mrr": 30000, "cash_balance": 90000, "burn_rate": 30000}}`)
	require.Equal(t, http.StatusOK, status, "Manual entry should succeed: %s", string(body))

	status, body = doRequest(t, "POST",
		fmt.Sprintf("/v1/companies/%s/refresh", companyID),
		`{"period":"2026-02"}`)
	require.Equal(t, http.StatusOK, status, "Refresh should succeed: %s", string(body))

	var refreshed snapshotPayload
	require.NoError(t, json.Unmarshal(body, &refreshed))
	requireMetric(t, refreshed.Metrics, domain.MetricMRR, "30000", domain.ProvenanceManualEntry)
	requireMetric(t, refreshed.Metrics, domain.MetricARR, "360000", domain.ProvenanceComputed)
	requireMetric(t, refreshed.Metrics, domain.MetricRunwayMonths, "3", domain.ProvenanceComputed)
}

// TestNegativeScenarios tests error handling for invalid inputs
func TestNegativeScenarios(t *testing.T) {
	companyID := uuid.New()

	// 1. Missing token: the API must reject unauthenticated requests
	t.Run("MissingToken", func(t *testing.T) {
		req, err := http.NewRequest("POST",
			fmt.Sprintf("%s/v1/companies/%s/refresh", apiBase, companyID),
			bytes.NewBufferString(`{"period":"2026-03"}`))
		require.NoError(t, err)

		resp, err := httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "Request without a token should be rejected")
	})

	// 2. Invalid token
	t.Run("InvalidToken", func(t *testing.T) {
		req, err := http.NewRequest("POST",
			fmt.Sprintf("%s/v1/companies/%s/refresh", apiBase, companyID),
			bytes.NewBufferString(`{"period":"2026-03"}`))
		require.NoError(t, err)
		req.Header.Set("Authorization", "wrong-token")

		resp, err := httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "Request with a wrong token should be rejected")
	})

	// 3. Unknown metric key in a manual entry
	t.Run("UnknownMetric", func(t *testing.T) {
		status, body := doRequest(t, "POST",
			fmt.Sprintf("/v1/companies/%s/periods/2026-03/metrics", companyID),
			`{"metrics": {"nps": 10}}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(body), "unknown metric")
	})

	// 4. Malformed company UUID
	t.Run("MalformedUUID", func(t *testing.T) {
		status, body := doRequest(t, "POST",
			"/v1/companies/not-a-uuid/refresh",
			`{"period":"2026-03"}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(body), "invalid company_id")
	})

	// 5. Malformed period key
	t.Run("InvalidPeriod", func(t *testing.T) {
		status, body := doRequest(t, "POST",
			fmt.Sprintf("/v1/companies/%s/periods/March/metrics", companyID),
			`{"metrics": {"mrr": 100}}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(body), "invalid period")
	})

	// 6. Unknown metric in the series path
	t.Run("UnknownSeriesMetric", func(t *testing.T) {
		status, body := doRequest(t, "GET",
			fmt.Sprintf("/v1/companies/%s/metrics/nps/series", companyID), "")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(body), "unknown metric")
	})
}
