package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/lk2023060901/websearch-gateway/internal/pkg/logger"
	"github.com/lk2023060901/websearch-gateway/internal/websearch/manager"
	"github.com/lk2023060901/websearch-gateway/internal/websearch/types"
)

const (
	mcpServerName    = "websearch-gateway"
	mcpServerVersion = "1.0.0"

	mcpDefaultSearchResults = 10
	mcpMaxSearchResults     = 50
	mcpDefaultMultiResults  = 5
	mcpMaxMultiResults      = 20
)

type SearchWebArgs struct {
	Query      string `json:"query" jsonschema:"the search query string"`
	Provider   string `json:"provider,omitempty" jsonschema:"search provider to use (serpapi, perplexity, duckduckgo, tavily, claude)"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of results to return (1-50)"`
}

type FallbackSearchArgs struct {
	Query      string `json:"query" jsonschema:"the search query string"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of results to return (1-50)"`
}

type MultiSearchArgs struct {
	Query                 string   `json:"query" jsonschema:"the search query string"`
	Providers             []string `json:"providers,omitempty" jsonschema:"provider names to query, all providers when omitted"`
	MaxResultsPerProvider int      `json:"max_results_per_provider,omitempty" jsonschema:"maximum results per provider (1-20)"`
}

type ProviderStatusArgs struct{}

// NewMCPServer builds the MCP server exposing the search operations as
// tools. Provider failures surface as an error key in the tool payload,
// never as protocol errors.
func NewMCPServer(m *manager.Manager, log *logger.Logger) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    mcpServerName,
		Version: mcpServerVersion,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_web",
		Description: "Search the web using various search providers",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SearchWebArgs) (*mcp.CallToolResult, map[string]any, error) {
		providerName := args.Provider
		var id types.ProviderID
		if providerName == "" {
			id = m.DefaultProvider()
			providerName = string(id)
		} else {
			var err error
			id, err = types.ParseProviderID(providerName)
			if err != nil {
				return nil, map[string]any{"error": unknownProviderMessage(providerName)}, nil
			}
		}

		maxResults := clampToolResults(args.MaxResults, mcpDefaultSearchResults, mcpMaxSearchResults)

		resp, err := m.Search(ctx, args.Query, id, maxResults)
		if err != nil {
			log.Warn("search_web tool failed",
				zap.String("provider", providerName),
				zap.String("query", args.Query),
				zap.Error(err))
			return nil, map[string]any{
				"error":    fmt.Sprintf("Search failed: %v", err),
				"query":    args.Query,
				"provider": providerName,
			}, nil
		}

		return nil, searchResponsePayload(resp), nil
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_with_fallback",
		Description: "Search the web with automatic fallback to other providers if primary fails",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FallbackSearchArgs) (*mcp.CallToolResult, map[string]any, error) {
		maxResults := clampToolResults(args.MaxResults, mcpDefaultSearchResults, mcpMaxSearchResults)

		resp := m.SearchWithFallback(ctx, args.Query, maxResults)
		return nil, searchResponsePayload(resp), nil
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "multi_provider_search",
		Description: "Search across multiple providers simultaneously for comparison",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args MultiSearchArgs) (*mcp.CallToolResult, map[string]any, error) {
		names := args.Providers
		if len(names) == 0 {
			names = types.AllProviderNames()
		}

		ids := make([]types.ProviderID, 0, len(names))
		for _, name := range names {
			id, err := types.ParseProviderID(name)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}

		if len(ids) == 0 {
			return nil, map[string]any{
				"error": fmt.Sprintf("No valid providers specified. Available: %s",
					strings.Join(types.AllProviderNames(), ", ")),
			}, nil
		}

		maxResults := clampToolResults(args.MaxResultsPerProvider, mcpDefaultMultiResults, mcpMaxMultiResults)

		responses := m.MultiProviderSearch(ctx, args.Query, ids, maxResults)

		providers := make(map[string]any, len(responses))
		for name, resp := range responses {
			providers[name] = map[string]any{
				"total_results": resp.TotalResults,
				"search_time":   resp.SearchTime,
				"results":       searchResultPayloads(resp.Results),
				"metadata":      resp.Metadata,
			}
		}

		return nil, map[string]any{
			"query":     args.Query,
			"providers": providers,
		}, nil
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_available_providers",
		Description: "Get list of available search providers and their status",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ProviderStatusArgs) (*mcp.CallToolResult, map[string]any, error) {
		status := m.AvailableProviders()

		chain := m.FallbackChain()
		chainNames := make([]string, len(chain))
		for i, id := range chain {
			chainNames[i] = string(id)
		}

		total := 0
		for _, available := range status {
			if available {
				total++
			}
		}

		return nil, map[string]any{
			"providers":        status,
			"default_provider": string(m.DefaultProvider()),
			"fallback_chain":   chainNames,
			"total_available":  total,
		}, nil
	})

	return srv
}

// ServeMCPStdio runs the MCP server over stdin/stdout until the client
// disconnects or the context is cancelled
func ServeMCPStdio(ctx context.Context, srv *mcp.Server) error {
	return srv.Run(ctx, &mcp.StdioTransport{})
}

// NewMCPHTTPHandler exposes the MCP server over the streamable HTTP
// transport
func NewMCPHTTPHandler(srv *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return srv },
		&mcp.StreamableHTTPOptions{
			Stateless:    true,
			JSONResponse: true,
		},
	)
}

func clampToolResults(n, def, max int) int {
	if n == 0 {
		return def
	}
	if n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}

func unknownProviderMessage(name string) string {
	return fmt.Sprintf("Invalid provider '%s'. Available: %s",
		name, strings.Join(types.AllProviderNames(), ", "))
}

// searchResultPayloads serializes results with every key present, null
// values included, so tool consumers see a stable shape
func searchResultPayloads(results []*types.SearchResult) []map[string]any {
	payloads := make([]map[string]any, 0, len(results))
	for _, r := range results {
		payloads = append(payloads, map[string]any{
			"title":          r.Title,
			"url":            r.URL,
			"snippet":        r.Snippet,
			"source":         r.Source,
			"published_date": r.PublishedDate,
			"metadata":       r.Metadata,
		})
	}
	return payloads
}

func searchResponsePayload(resp *types.SearchResponse) map[string]any {
	return map[string]any{
		"query":         resp.Query,
		"provider":      string(resp.Provider),
		"total_results": resp.TotalResults,
		"search_time":   resp.SearchTime,
		"results":       searchResultPayloads(resp.Results),
		"metadata":      resp.Metadata,
	}
}
