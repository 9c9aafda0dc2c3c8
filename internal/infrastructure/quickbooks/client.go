package quickbooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Raulito1/collections-web/internal/domain/report"
	"github.com/Raulito1/collections-web/internal/domain/shared"
)

const (
	// maxReportResponseSize limits report bodies; aging reports for one
	// tenant fit comfortably under this.
	maxReportResponseSize = 10 * 1024 * 1024

	reportPath = "/qbo/reports/ar-aging-detail/simplified"
	statusPath = "/qbo/customers/status"
	loginPath  = "/auth/quickbooks/login"
)

// Config holds report backend settings.
type Config struct {
	// BaseURL is the API root of the report/status backend.
	BaseURL string
	// TimeoutSeconds bounds every backend call.
	TimeoutSeconds int
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("quickbooks: base_url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("quickbooks: invalid base_url: %w", err)
	}
	return nil
}

// Client implements report.Backend over HTTP.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a backend client.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// ArAgingReport fetches the simplified AR aging detail report.
func (c *Client) ArAgingReport(ctx context.Context, accessToken, reportDate string) (*report.RawReport, error) {
	endpoint := c.endpoint(reportPath)
	if reportDate != "" {
		endpoint += "?report_date=" + url.QueryEscape(reportDate)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quickbooks: report request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReportResponseSize))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quickbooks: report request returned %d", resp.StatusCode)
	}

	var raw report.RawReport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("quickbooks: malformed report response: %w", err)
	}
	return &raw, nil
}

// statusResponse is the status backend's acknowledgement envelope.
type statusResponse struct {
	OK bool `json:"ok"`
}

// UpdateCustomerStatus PATCHes one status edit. A non-2xx response or
// an ok:false envelope is a failure.
func (c *Client) UpdateCustomerStatus(ctx context.Context, accessToken string, update report.StatusUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.endpoint(statusPath), bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("quickbooks: status update failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("quickbooks: status update returned %d", resp.StatusCode)
	}

	var ack statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReportResponseSize)).Decode(&ack); err != nil {
		return fmt.Errorf("quickbooks: malformed status response: %w", err)
	}
	if !ack.OK {
		return shared.ErrBackendRejected
	}
	return nil
}

// loginResponse carries the provider redirect for the OAuth bootstrap.
type loginResponse struct {
	RedirectURL string `json:"redirect_url"`
	State       string `json:"state"`
}

// LoginRedirect asks the backend to start the QuickBooks OAuth flow and
// returns the URL the whole page must navigate to.
func (c *Client) LoginRedirect(ctx context.Context, accessToken, returnTo string) (string, error) {
	endpoint := c.endpoint(loginPath) + "?return_url=true&return_to=" + url.QueryEscape(returnTo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("quickbooks: login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("quickbooks: login failed with status %d", resp.StatusCode)
	}

	var login loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReportResponseSize)).Decode(&login); err != nil {
		return "", fmt.Errorf("quickbooks: malformed login response: %w", err)
	}
	if login.RedirectURL == "" {
		return "", fmt.Errorf("quickbooks: login response carried no redirect_url")
	}
	return login.RedirectURL, nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimSuffix(c.config.BaseURL, "/") + path
}

func (c *Client) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

var _ report.Backend = (*Client)(nil)
