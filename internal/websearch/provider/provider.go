package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/lk2023060901/websearch-gateway/internal/websearch/types"
)

// Provider defines the interface for search providers
type Provider interface {
	// Search executes a search query using the configuration bound at
	// construction
	Search(ctx context.Context, query string) (*types.SearchResponse, error)

	// GetID returns the provider ID
	GetID() types.ProviderID

	// GetName returns the human-readable provider name
	GetName() string

	// Validate checks local preconditions without performing any I/O
	Validate() error

	// Close releases network resources held by the provider
	Close()
}

// BaseProvider provides common functionality for all providers
type BaseProvider struct {
	config     *types.ProviderConfig
	name       string
	httpClient *http.Client
}

// NewBaseProvider creates a new base provider bound to config
func NewBaseProvider(config *types.ProviderConfig, name string) *BaseProvider {
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = types.DefaultTimeout * time.Second
	}

	return &BaseProvider{
		config: config,
		name:   name,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// GetID returns the provider ID
func (b *BaseProvider) GetID() types.ProviderID {
	return b.config.Provider
}

// GetName returns the provider name
func (b *BaseProvider) GetName() string {
	return b.name
}

// GetConfig returns the provider configuration
func (b *BaseProvider) GetConfig() *types.ProviderConfig {
	return b.config
}

// Validate checks that a required credential is present
func (b *BaseProvider) Validate() error {
	if err := b.config.Validate(); err != nil {
		return err
	}
	if b.config.Provider.RequiresAPIKey() && !b.config.HasAPIKey() {
		return &types.ProviderError{
			Provider: b.config.Provider,
			Code:     "MISSING_API_KEY",
			Message:  fmt.Sprintf("%s requires an API key", b.name),
			Err:      types.ErrMissingAPIKey,
		}
	}
	return nil
}

// Close releases idle connections held by the HTTP client
func (b *BaseProvider) Close() {
	b.httpClient.CloseIdleConnections()
}

// doGET executes a GET request and returns the response body
func (b *BaseProvider) doGET(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return b.do(req)
}

// doPOST executes a POST request with a JSON body and returns the response
// body
func (b *BaseProvider) doPOST(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return b.do(req)
}

// do executes the request, mapping every failure mode to a ProviderError.
// Each call makes exactly one attempt; the fallback chain is the retry
// policy.
func (b *BaseProvider) do(req *http.Request) ([]byte, error) {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &types.ProviderError{
				Provider: b.config.Provider,
				Code:     "TIMEOUT",
				Message:  fmt.Sprintf("request timeout after %d seconds", b.config.Timeout),
				Err:      types.ErrProviderTimeout,
			}
		}
		return nil, &types.ProviderError{
			Provider: b.config.Provider,
			Code:     "REQUEST_FAILED",
			Message:  "failed to execute request",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.ProviderError{
			Provider: b.config.Provider,
			Code:     "REQUEST_FAILED",
			Message:  "failed to read response body",
			Err:      err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &types.ProviderError{
			Provider: b.config.Provider,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  string(body),
		}
	}

	return body, nil
}

// isTimeout reports whether err is a client timeout or deadline expiry
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// newResponse assembles the normalized response envelope. A zero
// totalResults falls back to the number of results.
func (b *BaseProvider) newResponse(query string, results []*types.SearchResult, totalResults int, searchTime float64, metadata map[string]interface{}) *types.SearchResponse {
	if totalResults == 0 {
		totalResults = len(results)
	}
	if results == nil {
		results = []*types.SearchResult{}
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return &types.SearchResponse{
		Query:        query,
		Provider:     b.config.Provider,
		Results:      results,
		TotalResults: totalResults,
		SearchTime:   searchTime,
		Metadata:     metadata,
	}
}

// truncateResults caps results at max entries, preserving backend order
func truncateResults(results []*types.SearchResult, max int) []*types.SearchResult {
	if max > 0 && len(results) > max {
		return results[:max]
	}
	return results
}
