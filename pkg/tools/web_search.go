package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebSearch queries a Firecrawl-compatible search API. Registered only when
// an API key is configured.
type WebSearch struct {
	baseURL string
	apiKey  string
	limit   int
	client  *http.Client
}

// NewWebSearch creates the tool.
func NewWebSearch(baseURL, apiKey string, limit int) *WebSearch {
	if limit < 1 {
		limit = 5
	}
	return &WebSearch{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		limit:   limit,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements Tool.
func (t *WebSearch) Name() string { return "web_search" }

// Description implements Tool.
func (t *WebSearch) Description() string {
	return "Search the web for information not covered by the ingested material. Input: a search query."
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Success bool   `json:"success"`
	Warning string `json:"warning,omitempty"`
	Data    []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
	} `json:"data"`
}

// Call implements Tool.
func (t *WebSearch) Call(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", NewError(KindBadInput, fmt.Errorf("empty search query"))
	}

	body, err := json.Marshal(searchRequest{Query: query, Limit: t.limit})
	if err != nil {
		return "", NewError(KindToolError, fmt.Errorf("failed to encode search request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return "", NewError(KindToolError, fmt.Errorf("failed to build search request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", NewError(KindUnavailable, fmt.Errorf("web search request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", NewError(KindUnavailable, fmt.Errorf("web search returned status %d", resp.StatusCode))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", NewError(KindToolError, fmt.Errorf("failed to decode search response: %w", err))
	}
	if !parsed.Success {
		return "", NewError(KindUnavailable, fmt.Errorf("web search reported failure: %s", parsed.Warning))
	}
	if len(parsed.Data) == 0 {
		return "No web results found.", nil
	}

	var sb strings.Builder
	for i, item := range parsed.Data {
		if i >= t.limit {
			break
		}
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("[%d] %s\n%s\n%s", i+1, item.Title, item.URL, item.Description))
	}
	return sb.String(), nil
}
