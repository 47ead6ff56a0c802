// Package backend calls the catalog/AI sidecar service. Job-name
// generation propagates failures to the caller; catalog reindexing is
// strictly fire-and-forget and never surfaces an error.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Client handles requests to the backend sidecar.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a backend client with the specified timeout.
func NewClient(baseURL string, timeoutMS int) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
		timeout: time.Duration(timeoutMS) * time.Millisecond,
	}
}

type jobNameRequest struct {
	CustomerName string `json:"customer_name"`
	Description  string `json:"description"`
}

type jobNameResponse struct {
	JobName string `json:"job_name"`
}

// GenerateJobName asks the backend to suggest a job name for a work item.
// Unlike ReindexCatalog, failures here are returned to the caller.
func (c *Client) GenerateJobName(ctx context.Context, customerName, description string) (string, error) {
	payload := jobNameRequest{
		CustomerName: customerName,
		Description:  description,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job name request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/job-name", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create job name request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("job name request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("job name request returned status %d", resp.StatusCode)
	}

	var decoded jobNameResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode job name response: %w", err)
	}
	if decoded.JobName == "" {
		return "", fmt.Errorf("backend returned empty job name")
	}

	return decoded.JobName, nil
}

// ReindexCatalog triggers a catalog reindex for a company. This method
// NEVER returns errors to the caller - all failures are logged at WARN
// level so indexing problems cannot impact the calling code.
func (c *Client) ReindexCatalog(ctx context.Context, companyID string) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/catalog/reindex?company_id="+companyID, nil)
	if err != nil {
		log.Warn().
			Err(err).
			Str("company_id", companyID).
			Msg("Failed to create catalog reindex request")
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || isTimeoutError(err) {
			log.Warn().
				Err(err).
				Dur("timeout_ms", c.timeout).
				Str("company_id", companyID).
				Msg("Catalog reindex timed out")
		} else {
			log.Warn().
				Err(err).
				Str("company_id", companyID).
				Msg("Failed to trigger catalog reindex")
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("company_id", companyID).
			Msg("Catalog reindex returned error status")
		return
	}

	log.Info().
		Str("company_id", companyID).
		Msg("Catalog reindex triggered")
}

// clientContext builds a detached context bounded by the client timeout,
// for callers that outlive the originating request.
func clientContext(c *Client) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// isTimeoutError checks if an error is a timeout error
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	return err.Error() == "context deadline exceeded" ||
		err.Error() == "Client.Timeout exceeded"
}
