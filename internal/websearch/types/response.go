package types

// SearchResult represents a single normalized search result
type SearchResult struct {
	Title         string                 `json:"title"`
	URL           string                 `json:"url"`
	Snippet       string                 `json:"snippet"`
	Source        string                 `json:"source,omitempty"`
	PublishedDate string                 `json:"published_date,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// SearchResponse represents a normalized response from a search provider
type SearchResponse struct {
	Query        string                 `json:"query"`
	Provider     ProviderID             `json:"provider"`
	Results      []*SearchResult        `json:"results"`
	TotalResults int                    `json:"total_results,omitempty"`
	SearchTime   float64                `json:"search_time,omitempty"` // seconds
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}
