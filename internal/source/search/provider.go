// Package search wraps web search APIs behind a single Provider interface.
package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/util"
)

const (
	providerBrave   = "brave"
	providerSearxng = "searxng"
	providerGoogle  = "google"
)

// Provider runs one web search.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Options tune a single request. Region is an ISO 3166 alpha-2 code used as
// a geographic bias where the API supports one.
type Options struct {
	Limit  int
	Region string
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(cfg config.SearchConfig) (Provider, error) {
	timeout := cfg.HTTP.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := util.NewHTTPClient(timeout, cfg.HTTP.UserAgent)
	switch strings.ToLower(cfg.Provider) {
	case providerBrave:
		return NewBraveProvider(cfg.APIKey, cfg.BaseURL, client)
	case providerSearxng:
		return NewSearxngProvider(cfg.BaseURL, client)
	case providerGoogle:
		return NewGoogleProvider(cfg.APIKey, cfg.EngineID, cfg.BaseURL, client)
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", cfg.Provider)
	}
}

func orDefault(c *http.Client) *http.Client {
	if c == nil {
		return util.NewHTTPClient(15*time.Second, "")
	}
	return c
}
