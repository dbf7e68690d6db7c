package provider

import (
	"context"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lk2023060901/websearch-gateway/internal/websearch/types"
)

const (
	ddgSearchURL        = "https://html.duckduckgo.com/html"
	ddgInstantAnswerURL = "https://api.duckduckgo.com/"
	ddgUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	ddgRelatedTopicLimit = 3
)

var (
	ddgResultLinkRe    = regexp.MustCompile(`class="result__a"[^>]*href="([^"]+)"`)
	ddgResultTitleRe   = regexp.MustCompile(`class="result__a"[^>]*>([\s\S]*?)</a>`)
	ddgResultSnippetRe = regexp.MustCompile(`class="result__snippet"[^>]*>([\s\S]*?)</a>`)
	ddgResultURLRe     = regexp.MustCompile(`class="result__url"[^>]*>([\s\S]*?)</span>`)
	ddgHTMLTagRe       = regexp.MustCompile(`<[^>]*>`)
)

// DuckDuckGoProvider implements the DuckDuckGo search provider. It needs
// no API key: instant answers come from the public JSON API and web
// results are scraped from the HTML endpoint.
type DuckDuckGoProvider struct {
	*BaseProvider
	searchURL        string
	instantAnswerURL string
}

// NewDuckDuckGoProvider creates a new DuckDuckGo provider
func NewDuckDuckGoProvider(config *types.ProviderConfig) (Provider, error) {
	return &DuckDuckGoProvider{
		BaseProvider:     NewBaseProvider(config, "DuckDuckGo"),
		searchURL:        ddgSearchURL,
		instantAnswerURL: ddgInstantAnswerURL,
	}, nil
}

// Search combines instant answers and scraped web results. Either phase
// failing contributes no results rather than failing the search.
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string) (*types.SearchResponse, error) {
	startTime := time.Now()
	cfg := p.GetConfig()

	instant := p.instantAnswers(ctx, query)
	web := p.webResults(ctx, query)

	combined := make([]*types.SearchResult, 0, len(instant)+len(web))
	combined = append(combined, instant...)
	combined = append(combined, web...)

	metadata := map[string]interface{}{
		"instant_answers_count": len(instant),
		"web_results_count":     len(web),
		"safesearch":            cfg.SafeSearchLevel,
	}

	return p.newResponse(
		query,
		truncateResults(combined, cfg.MaxResults),
		0,
		time.Since(startTime).Seconds(),
		metadata,
	), nil
}

// instantAnswers queries the instant answer API for abstracts, direct
// answers and related topics.
func (p *DuckDuckGoProvider) instantAnswers(ctx context.Context, query string) []*types.SearchResult {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	body, err := p.doGET(ctx, p.instantAnswerURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil
	}

	data := gjson.ParseBytes(body)
	var results []*types.SearchResult

	if abstract := data.Get("Abstract").String(); abstract != "" {
		title := data.Get("Heading").String()
		if title == "" {
			title = query
		}
		results = append(results, &types.SearchResult{
			Title:   title,
			URL:     data.Get("AbstractURL").String(),
			Snippet: abstract,
			Source:  data.Get("AbstractSource").String(),
			Metadata: map[string]interface{}{
				"type":  "abstract",
				"image": data.Get("Image").Value(),
			},
		})
	}

	if answer := data.Get("Answer").String(); answer != "" {
		source := data.Get("AnswerType").String()
		if source == "" {
			source = "DuckDuckGo"
		}
		results = append(results, &types.SearchResult{
			Title:   "Answer: " + query,
			Snippet: answer,
			Source:  source,
			Metadata: map[string]interface{}{
				"type":        "answer",
				"answer_type": data.Get("AnswerType").Value(),
			},
		})
	}

	topics := data.Get("RelatedTopics").Array()
	if len(topics) > ddgRelatedTopicLimit {
		topics = topics[:ddgRelatedTopicLimit]
	}
	for _, topic := range topics {
		text := topic.Get("Text").String()
		if text == "" {
			continue
		}
		title, _, _ := strings.Cut(text, " - ")
		results = append(results, &types.SearchResult{
			Title:   title,
			URL:     topic.Get("FirstURL").String(),
			Snippet: text,
			Source:  "DuckDuckGo",
			Metadata: map[string]interface{}{
				"type": "related_topic",
				"icon": topic.Get("Icon.URL").Value(),
			},
		})
	}

	return results
}

// webResults scrapes the HTML search endpoint
func (p *DuckDuckGoProvider) webResults(ctx context.Context, query string) []*types.SearchResult {
	cfg := p.GetConfig()

	params := url.Values{}
	params.Set("q", query)
	params.Set("safesearch", cfg.SafeSearchLevel)

	headers := map[string]string{"User-Agent": ddgUserAgent}

	body, err := p.doGET(ctx, p.searchURL+"?"+params.Encode(), headers)
	if err != nil {
		return nil
	}

	return parseDDGWebResults(string(body), cfg.MaxResults)
}

// parseDDGWebResults extracts result entries from the HTML page. Links,
// titles, snippets and displayed URLs are matched separately and zipped by
// index; entries past the first missing title are dropped.
func parseDDGWebResults(page string, max int) []*types.SearchResult {
	links := ddgResultLinkRe.FindAllStringSubmatch(page, -1)
	titles := ddgResultTitleRe.FindAllStringSubmatch(page, -1)
	snippets := ddgResultSnippetRe.FindAllStringSubmatch(page, -1)
	displayed := ddgResultURLRe.FindAllStringSubmatch(page, -1)

	n := len(links)
	if len(titles) < n {
		n = len(titles)
	}
	if max > 0 && max < n {
		n = max
	}

	results := make([]*types.SearchResult, 0, n)
	for i := 0; i < n; i++ {
		resultURL := extractDDGURL(html.UnescapeString(links[i][1]))
		title := cleanHTMLText(titles[i][1])
		if resultURL == "" || title == "" {
			continue
		}

		snippet := ""
		if i < len(snippets) {
			snippet = cleanHTMLText(snippets[i][1])
		}
		displayedURL := ""
		if i < len(displayed) {
			displayedURL = cleanHTMLText(displayed[i][1])
		}

		results = append(results, &types.SearchResult{
			Title:   title,
			URL:     resultURL,
			Snippet: snippet,
			Source:  "DuckDuckGo",
			Metadata: map[string]interface{}{
				"type":          "web_result",
				"displayed_url": displayedURL,
			},
		})
	}
	return results
}

// extractDDGURL unwraps DuckDuckGo's redirect wrapper around result links
func extractDDGURL(rawURL string) string {
	if strings.Contains(rawURL, "uddg=") {
		parsed, err := url.Parse(rawURL)
		if err == nil {
			if uddg := parsed.Query().Get("uddg"); uddg != "" {
				return uddg
			}
		}
	}
	if strings.HasPrefix(rawURL, "//") {
		return "https:" + rawURL
	}
	return rawURL
}

// cleanHTMLText strips markup and entities from a matched fragment
func cleanHTMLText(fragment string) string {
	return strings.TrimSpace(html.UnescapeString(ddgHTMLTagRe.ReplaceAllString(fragment, "")))
}
