// Package source holds the connectors that pull raw event candidates from
// external services.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/cache"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/country"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/quota"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/source/search"
)

// Connector fetches candidates for the given profile. Zero results is not an
// error.
type Connector interface {
	Name() string
	Fetch(ctx context.Context, p country.Profile) ([]model.RawCandidate, error)
}

// Deps are the shared collaborators handed to every connector. Nil Cache and
// Quota disable caching and budgeting.
type Deps struct {
	Cache   cache.Cache
	TTLs    cache.TTLs
	Quota   *quota.Manager
	Queries country.QueryOptions
	Log     *logrus.Entry
	Now     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// NewFromConfig builds the connector described by c, wrapped with retries
// and a circuit breaker.
func NewFromConfig(c config.SourceConfig, deps Deps) (Connector, error) {
	deps = deps.withDefaults()
	var conn Connector
	switch c.Type {
	case "search", "social":
		p, err := search.NewProvider(c.Search)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", c.Type, err)
		}
		conn = NewSearchConnector(defaultName(c), p, c.Type == "social", c.Search, deps)
	case "feed":
		conn = NewFeedConnector(defaultName(c), c.Feed, deps)
	case "ics":
		conn = NewICSConnector(defaultName(c), c.Feed, deps)
	default:
		return nil, fmt.Errorf("unknown source type: %s", c.Type)
	}
	return NewResilient(conn, c.Resilience, deps.Log), nil
}

func defaultName(c config.SourceConfig) string {
	if c.Name != "" {
		return c.Name
	}
	if c.Type == "search" || c.Type == "social" {
		return c.Type + ":" + c.Search.Provider
	}
	return c.Type
}
