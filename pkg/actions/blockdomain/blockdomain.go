// Package blockdomain adds domains to the DNS filter's blocklist through
// its HTTP API (Pi-hole compatible).
package blockdomain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// BlockDomainAction implements the actions.Provider interface for DNS
// blocklist enforcement. Without an API token it degrades to
// simulate-only instead of failing dispatches.
type BlockDomainAction struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates the provider. baseURL points at the filter's API endpoint.
func New(baseURL, apiToken string, timeout time.Duration, logger zerolog.Logger) *BlockDomainAction {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BlockDomainAction{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("action", "block_domain").Logger(),
	}
}

// Type implements actions.Provider.
func (a *BlockDomainAction) Type() string { return "block_domain" }

// SimulateOnly implements actions.Provider. Without an endpoint or token
// the provider cannot make live calls.
func (a *BlockDomainAction) SimulateOnly() bool {
	return a.baseURL == "" || a.apiToken == ""
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Execute adds params["domain"] to the blocklist. The optional
// params["comment"] is stored alongside the blocklist entry.
func (a *BlockDomainAction) Execute(ctx context.Context, params map[string]string) (string, error) {
	domain := params["domain"]
	if domain == "" {
		return "", backoff.Permanent(fmt.Errorf("block_domain requires a domain parameter"))
	}

	query := url.Values{}
	query.Set("list", "black")
	query.Set("add", domain)
	query.Set("auth", a.apiToken)
	if comment := params["comment"]; comment != "" {
		query.Set("comment", comment)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return "", backoff.Permanent(err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("blocklist API call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading blocklist API response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("blocklist API returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", backoff.Permanent(fmt.Errorf("blocklist API returned status %d", resp.StatusCode))
	}

	// Some deployments answer plain 200 with no JSON body.
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err == nil && !parsed.Success {
		return "", backoff.Permanent(fmt.Errorf("blocklist API rejected %s: %s", domain, parsed.Message))
	}

	a.logger.Info().Str("domain", domain).Msg("Domain added to blocklist")
	return fmt.Sprintf("blocked %s", domain), nil
}
