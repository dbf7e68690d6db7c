package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lk2023060901/websearch-gateway/internal/websearch/types"
)

const tavilyBaseURL = "https://api.tavily.com/search"

// TavilyProvider implements the Tavily search provider
type TavilyProvider struct {
	*BaseProvider
	baseURL string
}

// NewTavilyProvider creates a new Tavily provider
func NewTavilyProvider(config *types.ProviderConfig) (Provider, error) {
	return &TavilyProvider{
		BaseProvider: NewBaseProvider(config, "Tavily"),
		baseURL:      tavilyBaseURL,
	}, nil
}

// tavilyRequest represents a Tavily API request
type tavilyRequest struct {
	APIKey            string   `json:"api_key"`
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth"`
	IncludeAnswer     bool     `json:"include_answer"`
	IncludeRawContent bool     `json:"include_raw_content"`
	MaxResults        int      `json:"max_results"`
	IncludeDomains    []string `json:"include_domains"`
	ExcludeDomains    []string `json:"exclude_domains"`
	Language          string   `json:"language,omitempty"`
}

// tavilyResponse represents a Tavily API response
type tavilyResponse struct {
	Answer            string         `json:"answer"`
	FollowUpQuestions []string       `json:"follow_up_questions"`
	ResponseTime      float64        `json:"response_time"`
	Results           []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	RawContent    string  `json:"raw_content"`
	Source        string  `json:"source"`
	PublishedDate string  `json:"published_date"`
}

// Search executes a search via the Tavily API
func (p *TavilyProvider) Search(ctx context.Context, query string) (*types.SearchResponse, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	cfg := p.GetConfig()

	reqBody, err := json.Marshal(tavilyRequest{
		APIKey:            cfg.APIKey,
		Query:             query,
		SearchDepth:       "advanced",
		IncludeAnswer:     true,
		IncludeRawContent: false,
		MaxResults:        cfg.MaxResults,
		IncludeDomains:    []string{},
		ExcludeDomains:    []string{},
		Language:          cfg.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := p.doPOST(ctx, p.baseURL, nil, reqBody)
	if err != nil {
		return nil, err
	}

	var apiResp tavilyResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &types.ProviderError{
			Provider: cfg.Provider,
			Code:     "INVALID_RESPONSE",
			Message:  "failed to decode response",
			Err:      err,
		}
	}

	metadata := map[string]interface{}{
		"answer":              apiResp.Answer,
		"follow_up_questions": apiResp.FollowUpQuestions,
		"search_depth":        "advanced",
		"response_time":       apiResp.ResponseTime,
	}

	return p.newResponse(
		query,
		p.parseResults(&apiResp),
		0,
		time.Since(startTime).Seconds(),
		metadata,
	), nil
}

// parseResults maps the AI answer and web results into normalized results
func (p *TavilyProvider) parseResults(resp *tavilyResponse) []*types.SearchResult {
	var results []*types.SearchResult

	if resp.Answer != "" {
		results = append(results, &types.SearchResult{
			Title:   "AI Answer",
			Snippet: resp.Answer,
			Source:  "Tavily AI",
			Metadata: map[string]interface{}{
				"type":                "ai_answer",
				"follow_up_questions": resp.FollowUpQuestions,
			},
		})
	}

	for _, item := range resp.Results {
		results = append(results, &types.SearchResult{
			Title:         item.Title,
			URL:           item.URL,
			Snippet:       item.Content,
			Source:        item.Source,
			PublishedDate: item.PublishedDate,
			Metadata: map[string]interface{}{
				"score":       item.Score,
				"raw_content": item.RawContent,
				"type":        "search_result",
			},
		})
	}

	return truncateResults(results, p.GetConfig().MaxResults)
}
