// Package client speaks to the ledger platform's onboarding and transaction
// services. It owns the HTTP plumbing, the error taxonomy, and a global
// in-flight request cap so concurrent phases cannot stampede the platform.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// listLimit is the page size used for conflict-recovery lookups. It is
// sized above the largest per-parent entity count any volume preset creates.
const listLimit = 200

// API is the entity creation contract the orchestrator consumes. The List
// methods exist for conflict recovery: a 409 on create is resolved by
// finding the pre-existing entity.
type API interface {
	CreateOrganization(ctx context.Context, org *Organization) (EntityRef, error)
	CreateLedger(ctx context.Context, orgID string, ledger *Ledger) (EntityRef, error)
	CreateAsset(ctx context.Context, orgID, ledgerID string, asset *Asset) (EntityRef, error)
	CreatePortfolio(ctx context.Context, orgID, ledgerID string, portfolio *Portfolio) (EntityRef, error)
	CreateSegment(ctx context.Context, orgID, ledgerID string, segment *Segment) (EntityRef, error)
	CreateAccount(ctx context.Context, orgID, ledgerID string, account *Account) (EntityRef, error)
	CreateTransaction(ctx context.Context, orgID, ledgerID string, tx *Transaction) (EntityRef, error)

	ListOrganizations(ctx context.Context) ([]EntityRef, error)
	ListLedgers(ctx context.Context, orgID string) ([]EntityRef, error)
	ListAssets(ctx context.Context, orgID, ledgerID string) ([]EntityRef, error)
	ListPortfolios(ctx context.Context, orgID, ledgerID string) ([]EntityRef, error)
	ListSegments(ctx context.Context, orgID, ledgerID string) ([]EntityRef, error)
	ListAccounts(ctx context.Context, orgID, ledgerID string) ([]EntityRef, error)
}

// HTTPConfig configures the HTTP client.
type HTTPConfig struct {
	OnboardingURL  string        // Base URL of the onboarding service
	TransactionURL string        // Base URL of the transaction service
	RequestTimeout time.Duration // Per-request timeout
	MaxInFlight    int64         // Global cap on concurrent requests
}

// HTTPClient implements API over the platform's REST endpoints.
type HTTPClient struct {
	cfg    HTTPConfig
	http   *http.Client
	slots  *semaphore.Weighted
	logger *zap.Logger
}

// NewHTTPClient creates an HTTP client for the platform.
func NewHTTPClient(cfg HTTPConfig, logger *zap.Logger) *HTTPClient {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 20
	}
	if cfg.TransactionURL == "" {
		cfg.TransactionURL = cfg.OnboardingURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		cfg:    cfg,
		http:   &http.Client{},
		slots:  semaphore.NewWeighted(cfg.MaxInFlight),
		logger: logger,
	}
}

func (c *HTTPClient) CreateOrganization(ctx context.Context, org *Organization) (EntityRef, error) {
	return c.create(ctx, c.cfg.OnboardingURL+"/v1/organizations", org)
}

func (c *HTTPClient) CreateLedger(ctx context.Context, orgID string, ledger *Ledger) (EntityRef, error) {
	return c.create(ctx, fmt.Sprintf("%s/v1/organizations/%s/ledgers", c.cfg.OnboardingURL, orgID), ledger)
}

func (c *HTTPClient) CreateAsset(ctx context.Context, orgID, ledgerID string, asset *Asset) (EntityRef, error) {
	return c.create(ctx, c.ledgerPath(orgID, ledgerID, "assets"), asset)
}

func (c *HTTPClient) CreatePortfolio(ctx context.Context, orgID, ledgerID string, portfolio *Portfolio) (EntityRef, error) {
	return c.create(ctx, c.ledgerPath(orgID, ledgerID, "portfolios"), portfolio)
}

func (c *HTTPClient) CreateSegment(ctx context.Context, orgID, ledgerID string, segment *Segment) (EntityRef, error) {
	return c.create(ctx, c.ledgerPath(orgID, ledgerID, "segments"), segment)
}

func (c *HTTPClient) CreateAccount(ctx context.Context, orgID, ledgerID string, account *Account) (EntityRef, error) {
	return c.create(ctx, c.ledgerPath(orgID, ledgerID, "accounts"), account)
}

func (c *HTTPClient) CreateTransaction(ctx context.Context, orgID, ledgerID string, tx *Transaction) (EntityRef, error) {
	url := fmt.Sprintf("%s/v1/organizations/%s/ledgers/%s/transactions", c.cfg.TransactionURL, orgID, ledgerID)
	return c.create(ctx, url, tx)
}

func (c *HTTPClient) ListOrganizations(ctx context.Context) ([]EntityRef, error) {
	return c.list(ctx, c.cfg.OnboardingURL+"/v1/organizations")
}

func (c *HTTPClient) ListLedgers(ctx context.Context, orgID string) ([]EntityRef, error) {
	return c.list(ctx, fmt.Sprintf("%s/v1/organizations/%s/ledgers", c.cfg.OnboardingURL, orgID))
}

func (c *HTTPClient) ListAssets(ctx context.Context, orgID, ledgerID string) ([]EntityRef, error) {
	return c.list(ctx, c.ledgerPath(orgID, ledgerID, "assets"))
}

func (c *HTTPClient) ListPortfolios(ctx context.Context, orgID, ledgerID string) ([]EntityRef, error) {
	return c.list(ctx, c.ledgerPath(orgID, ledgerID, "portfolios"))
}

func (c *HTTPClient) ListSegments(ctx context.Context, orgID, ledgerID string) ([]EntityRef, error) {
	return c.list(ctx, c.ledgerPath(orgID, ledgerID, "segments"))
}

func (c *HTTPClient) ListAccounts(ctx context.Context, orgID, ledgerID string) ([]EntityRef, error) {
	return c.list(ctx, c.ledgerPath(orgID, ledgerID, "accounts"))
}

func (c *HTTPClient) ledgerPath(orgID, ledgerID, resource string) string {
	return fmt.Sprintf("%s/v1/organizations/%s/ledgers/%s/%s", c.cfg.OnboardingURL, orgID, ledgerID, resource)
}

func (c *HTTPClient) create(ctx context.Context, url string, payload any) (EntityRef, error) {
	var ref EntityRef
	if err := c.do(ctx, http.MethodPost, url, payload, &ref); err != nil {
		return EntityRef{}, err
	}
	return ref, nil
}

type listResponse struct {
	Items []EntityRef `json:"items"`
}

func (c *HTTPClient) list(ctx context.Context, url string) ([]EntityRef, error) {
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s?limit=%d", url, listLimit), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// do performs one request under the global in-flight cap. Every request
// carries its own timeout so a stuck connection cannot stall a worker
// indefinitely.
func (c *HTTPClient) do(ctx context.Context, method, url string, payload, out any) error {
	if err := c.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.slots.Release(1)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("request complete",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && len(data) > 0 {
		// Best effort: the platform returns {"code": ..., "message": ...}.
		var parsed struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &parsed) == nil && parsed.Message != "" {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Message
		} else {
			apiErr.Message = string(data)
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
