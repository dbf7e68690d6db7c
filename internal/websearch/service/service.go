package service

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/websearch-gateway/internal/websearch/manager"
	"github.com/lk2023060901/websearch-gateway/internal/websearch/types"
)

const (
	defaultSearchResults = 10
	maxSearchResults     = 50
	defaultMultiResults  = 5
	maxMultiResults      = 20
)

type SearchService struct {
	mgr    *manager.Manager
	logger *zap.Logger
}

func NewSearchService(mgr *manager.Manager, logger *zap.Logger) *SearchService {
	return &SearchService{
		mgr:    mgr,
		logger: logger,
	}
}

type SearchRequest struct {
	Query      string `json:"query" binding:"required"`
	Provider   string `json:"provider"`
	MaxResults int    `json:"max_results"`
}

type FallbackSearchRequest struct {
	Query      string `json:"query" binding:"required"`
	MaxResults int    `json:"max_results"`
}

type MultiSearchRequest struct {
	Query                 string   `json:"query" binding:"required"`
	Providers             []string `json:"providers"`
	MaxResultsPerProvider int      `json:"max_results_per_provider"`
}

// ProviderResult is one provider's slice of a multi-provider response
type ProviderResult struct {
	TotalResults int                    `json:"total_results"`
	SearchTime   float64                `json:"search_time"`
	Results      []*types.SearchResult  `json:"results"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// clampResults maps the zero value to the default, then bounds the rest
func clampResults(n, def, max int) int {
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

func invalidProviderMessage(name string) string {
	return fmt.Sprintf("Invalid provider '%s'. Available: %s",
		name, strings.Join(types.AllProviderNames(), ", "))
}

func (s *SearchService) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	providerName := req.Provider
	var id types.ProviderID
	if providerName == "" {
		id = s.mgr.DefaultProvider()
		providerName = string(id)
	} else {
		var err error
		id, err = types.ParseProviderID(providerName)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": invalidProviderMessage(providerName)})
			return
		}
	}

	maxResults := clampResults(req.MaxResults, defaultSearchResults, maxSearchResults)

	resp, err := s.mgr.Search(c.Request.Context(), req.Query, id, maxResults)
	if err != nil {
		s.logger.Error("search failed",
			zap.String("provider", providerName),
			zap.String("query", req.Query),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    fmt.Sprintf("Search failed: %v", err),
			"query":    req.Query,
			"provider": providerName,
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *SearchService) SearchWithFallback(c *gin.Context) {
	var req FallbackSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	maxResults := clampResults(req.MaxResults, defaultSearchResults, maxSearchResults)

	// Degraded responses still come back 200; the metadata carries the story
	resp := s.mgr.SearchWithFallback(c.Request.Context(), req.Query, maxResults)
	c.JSON(http.StatusOK, resp)
}

func (s *SearchService) MultiProviderSearch(c *gin.Context) {
	var req MultiSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	names := req.Providers
	if len(names) == 0 {
		names = types.AllProviderNames()
	}

	// Unrecognized names are dropped, not rejected
	ids := make([]types.ProviderID, 0, len(names))
	for _, name := range names {
		id, err := types.ParseProviderID(name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("No valid providers specified. Available: %s",
				strings.Join(types.AllProviderNames(), ", ")),
		})
		return
	}

	maxResults := clampResults(req.MaxResultsPerProvider, defaultMultiResults, maxMultiResults)

	responses := s.mgr.MultiProviderSearch(c.Request.Context(), req.Query, ids, maxResults)

	providers := make(map[string]*ProviderResult, len(responses))
	for name, resp := range responses {
		providers[name] = &ProviderResult{
			TotalResults: resp.TotalResults,
			SearchTime:   resp.SearchTime,
			Results:      resp.Results,
			Metadata:     resp.Metadata,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"query":     req.Query,
		"providers": providers,
	})
}

func (s *SearchService) GetProviders(c *gin.Context) {
	status := s.mgr.AvailableProviders()

	chain := s.mgr.FallbackChain()
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

	c.JSON(http.StatusOK, gin.H{
		"providers":        status,
		"default_provider": string(s.mgr.DefaultProvider()),
		"fallback_chain":   chainNames,
		"total_available":  total,
	})
}

func (s *SearchService) RegisterRoutes(r *gin.RouterGroup) {
	search := r.Group("/search")
	{
		search.POST("", s.Search)
		search.POST("/fallback", s.SearchWithFallback)
		search.POST("/multi", s.MultiProviderSearch)
	}
	r.GET("/providers", s.GetProviders)
}
