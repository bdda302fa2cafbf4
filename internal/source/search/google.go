package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/util"
)

const (
	defaultGoogleURL = "https://www.googleapis.com/customsearch/v1"
	googleMaxNum     = 10
)

// GoogleProvider implements the Custom Search JSON API.
type GoogleProvider struct {
	apiKey   string
	engineID string
	apiURL   string
	client   *http.Client
}

func NewGoogleProvider(apiKey, engineID, apiURL string, client *http.Client) (*GoogleProvider, error) {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(engineID) == "" {
		return nil, fmt.Errorf("google api key and engine id are required")
	}
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultGoogleURL
	}
	return &GoogleProvider{apiKey: apiKey, engineID: engineID, apiURL: apiURL, client: orDefault(client)}, nil
}

func (p *GoogleProvider) Name() string { return providerGoogle }

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (p *GoogleProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	endpoint, err := url.Parse(p.apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse google url: %w", err)
	}
	q := endpoint.Query()
	q.Set("key", p.apiKey)
	q.Set("cx", p.engineID)
	q.Set("q", query)
	num := opts.Limit
	if num <= 0 || num > googleMaxNum {
		num = googleMaxNum
	}
	q.Set("num", strconv.Itoa(num))
	if r := strings.ToLower(opts.Region); r != "" {
		q.Set("gl", r)
		q.Set("cr", "country"+strings.ToUpper(r))
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create google request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := util.CheckStatus("google", resp); err != nil {
		return nil, err
	}

	var decoded googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode google response: %w", err)
	}
	results := make([]Result, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		results = append(results, Result{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: strings.TrimSpace(item.Snippet),
		})
	}
	return results, nil
}
