package provider

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lk2023060901/websearch-gateway/internal/websearch/types"
)

const serpAPIBaseURL = "https://serpapi.com/search"

// SerpAPIProvider implements the SerpAPI search provider
type SerpAPIProvider struct {
	*BaseProvider
	baseURL string
}

// NewSerpAPIProvider creates a new SerpAPI provider
func NewSerpAPIProvider(config *types.ProviderConfig) (Provider, error) {
	return &SerpAPIProvider{
		BaseProvider: NewBaseProvider(config, "SerpAPI"),
		baseURL:      serpAPIBaseURL,
	}, nil
}

// Search executes a search via SerpAPI
func (p *SerpAPIProvider) Search(ctx context.Context, query string) (*types.SearchResponse, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	cfg := p.GetConfig()

	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", cfg.APIKey)
	params.Set("engine", cfg.Engine)
	params.Set("num", strconv.Itoa(cfg.MaxResults))
	if cfg.SafeSearch {
		params.Set("safe", "active")
	} else {
		params.Set("safe", "off")
	}
	if cfg.Region != "" {
		params.Set("gl", cfg.Region)
	}
	if cfg.Language != "" {
		params.Set("hl", cfg.Language)
	}

	body, err := p.doGET(ctx, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	data := gjson.ParseBytes(body)
	results := p.parseResults(data)

	metadata := map[string]interface{}{
		"engine":             cfg.Engine,
		"search_parameters":  data.Get("search_parameters").Value(),
		"search_information": data.Get("search_information").Value(),
	}

	return p.newResponse(
		query,
		results,
		int(data.Get("search_information.total_results").Int()),
		time.Since(startTime).Seconds(),
		metadata,
	), nil
}

// parseResults maps organic and news entries into normalized results
func (p *SerpAPIProvider) parseResults(data gjson.Result) []*types.SearchResult {
	var results []*types.SearchResult

	for _, item := range data.Get("organic_results").Array() {
		results = append(results, &types.SearchResult{
			Title:         item.Get("title").String(),
			URL:           item.Get("link").String(),
			Snippet:       item.Get("snippet").String(),
			Source:        item.Get("source").String(),
			PublishedDate: item.Get("date").String(),
			Metadata: map[string]interface{}{
				"position":         item.Get("position").Value(),
				"displayed_link":   item.Get("displayed_link").Value(),
				"cached_page_link": item.Get("cached_page_link").Value(),
			},
		})
	}

	for _, item := range data.Get("news_results").Array() {
		results = append(results, &types.SearchResult{
			Title:         item.Get("title").String(),
			URL:           item.Get("link").String(),
			Snippet:       item.Get("snippet").String(),
			Source:        item.Get("source").String(),
			PublishedDate: item.Get("date").String(),
			Metadata: map[string]interface{}{
				"position":  item.Get("position").Value(),
				"thumbnail": item.Get("thumbnail").Value(),
				"type":      "news",
			},
		})
	}

	return truncateResults(results, p.GetConfig().MaxResults)
}
