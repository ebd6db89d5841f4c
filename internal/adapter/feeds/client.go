package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/runwaylens/runwaylens-backend/internal/domain"
)

// Client fetches one company month of metric readings from an upstream
// metrics endpoint. It implements domain.FeedSource; the provenance it was
// created with is what the merge engine stamps on its readings.
type Client struct {
	name       string
	provenance domain.Provenance
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewPaymentsClient creates the client for the payments instrumentation feed
func NewPaymentsClient(baseURL, apiKey string) *Client {
	return newClient("payments", domain.ProvenanceInstrumentFeed, baseURL, apiKey)
}

// NewSpreadsheetClient creates the client for the finance spreadsheet sync
func NewSpreadsheetClient(baseURL, apiKey string) *Client {
	return newClient("spreadsheet", domain.ProvenanceSpreadsheetFeed, baseURL, apiKey)
}

func newClient(name string, provenance domain.Provenance, baseURL, apiKey string) *Client {
	return &Client{
		name:       name,
		provenance: provenance,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name identifies the feed in logs
func (c *Client) Name() string {
	return c.name
}

// Provenance returns the provenance stamped on this feed's readings
func (c *Client) Provenance() domain.Provenance {
	return c.provenance
}

// feedResponse is the wire shape of the upstream metrics endpoint. Readings
// tolerate bare numbers, quoted numbers, tagged objects and nulls.
type feedResponse struct {
	Metrics domain.ReadingBatch `json:"metrics"`
}

// Fetch retrieves the metric readings for a company month
func (c *Client) Fetch(ctx context.Context, companyID uuid.UUID, period domain.Month) (domain.ReadingBatch, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("feed base url is not configured")
	}

	params := url.Values{}
	params.Set("period", period.Key())

	apiURL := fmt.Sprintf("%s/v1/companies/%s/metrics?%s", c.baseURL, companyID, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("feed error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return payload.Metrics, nil
}
