package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/cache"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/country"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/quota"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/source/search"
)

var defaultSocialSites = []string{"linkedin.com", "facebook.com", "eventbrite.com", "meetup.com"}

// SearchConnector runs the profile's prioritized queries against a web
// search provider. In social mode each query is restricted to event and
// social sites.
type SearchConnector struct {
	name     string
	provider search.Provider
	kind     cache.Kind
	sites    []string
	perQuery int
	deps     Deps
}

func NewSearchConnector(name string, p search.Provider, social bool, cfg config.SearchConfig, deps Deps) *SearchConnector {
	deps = deps.withDefaults()
	c := &SearchConnector{name: name, provider: p, kind: cache.KindSearch, perQuery: cfg.ResultsPerQuery, deps: deps}
	if social {
		c.kind = cache.KindSocial
		c.sites = cfg.Sites
		if len(c.sites) == 0 {
			c.sites = defaultSocialSites
		}
	}
	if c.perQuery <= 0 {
		c.perQuery = 10
	}
	return c
}

func (c *SearchConnector) Name() string { return c.name }

func (c *SearchConnector) Fetch(ctx context.Context, p country.Profile) ([]model.RawCandidate, error) {
	log := c.deps.Log.WithFields(logrus.Fields{"source": c.name, "country": p.ID})
	var (
		out    []model.RawCandidate
		errs   []error
		issued int
	)
	for _, q := range p.Queries(c.deps.Queries) {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		text := c.decorate(q.Text)
		results, err := c.lookup(ctx, p, text, &issued)
		if errors.Is(err, quota.ErrExhausted) {
			log.WithField("remaining", 0).Warn("search quota exhausted, skipping remaining queries")
			break
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("query %q: %w", text, err))
			continue
		}
		now := c.deps.Now()
		for _, r := range results {
			if !looksLikeEvent(r.Title + " " + r.Snippet) {
				continue
			}
			out = append(out, model.RawCandidate{
				Source:      c.name,
				Title:       r.Title,
				DateText:    r.Snippet,
				Location:    extractLocation(r.Snippet),
				URL:         r.URL,
				Summary:     r.Snippet,
				RetrievedAt: now,
				Scoped:      q.Scoped,
			})
		}
	}
	log.WithFields(logrus.Fields{"candidates": len(out), "api_calls": issued, "errors": len(errs)}).Debug("search fetch done")
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		log.WithError(err).Warn("search query failed")
	}
	return out, nil
}

func (c *SearchConnector) decorate(q string) string {
	if len(c.sites) == 0 {
		return q
	}
	parts := make([]string, len(c.sites))
	for i, s := range c.sites {
		parts[i] = "site:" + s
	}
	return q + " (" + strings.Join(parts, " OR ") + ")"
}

// lookup serves text from the cache or spends one unit of quota on it.
func (c *SearchConnector) lookup(ctx context.Context, p country.Profile, text string, issued *int) ([]search.Result, error) {
	key := cache.Key(c.provider.Name(), string(c.kind), p.ID, text)
	if c.deps.Cache != nil {
		if b, ok, err := c.deps.Cache.Get(ctx, key); err != nil {
			c.deps.Log.WithError(err).Debug("cache get")
		} else if ok {
			var res []search.Result
			if err := json.Unmarshal(b, &res); err == nil {
				return res, nil
			}
		}
	}
	if c.deps.Quota != nil {
		if err := c.deps.Quota.Reserve(1); err != nil {
			return nil, err
		}
	}
	*issued++
	res, err := c.provider.Search(ctx, text, search.Options{Limit: c.perQuery, Region: p.Code})
	if err != nil {
		return nil, err
	}
	if c.deps.Cache != nil {
		if b, err := json.Marshal(res); err == nil {
			if err := c.deps.Cache.Set(ctx, key, b, c.ttl()); err != nil {
				c.deps.Log.WithError(err).Debug("cache set")
			}
		}
	}
	return res, nil
}

func (c *SearchConnector) ttl() time.Duration {
	if d := c.deps.TTLs.For(c.kind); d > 0 {
		return d
	}
	return 2 * time.Hour
}
