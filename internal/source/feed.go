package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/cache"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/country"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/normalize"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/util"
)

const maxFeedBytes = 8 << 20

// FeedConnector reads RSS and Atom feeds. Feeds bound to a country are only
// read while that country is active, and their items count as scoped.
type FeedConnector struct {
	name   string
	feeds  []config.FeedEntry
	client *http.Client
	deps   Deps
}

func NewFeedConnector(name string, cfg config.FeedConfig, deps Deps) *FeedConnector {
	return &FeedConnector{
		name:   name,
		feeds:  cfg.Feeds,
		client: util.NewHTTPClient(defaultDur(cfg.HTTP.Timeout, 15*time.Second), cfg.HTTP.UserAgent),
		deps:   deps.withDefaults(),
	}
}

func (f *FeedConnector) Name() string { return f.name }

func (f *FeedConnector) Fetch(ctx context.Context, p country.Profile) ([]model.RawCandidate, error) {
	parser := gofeed.NewParser()
	var (
		out  []model.RawCandidate
		errs []error
	)
	for _, fe := range activeFeeds(f.feeds, p) {
		body, err := fetchBody(ctx, f.client, fe.URL, f.deps, cache.KindNews)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		feed, err := parser.Parse(bytes.NewReader(body))
		if err != nil {
			errs = append(errs, fmt.Errorf("parse feed %s: %w", fe.URL, err))
			continue
		}
		now := f.deps.Now()
		for _, it := range feed.Items {
			summary := stripTags(firstNonEmpty(it.Description, it.Content))
			out = append(out, model.RawCandidate{
				Source:      f.name,
				Title:       it.Title,
				DateText:    itemDate(it, summary),
				Location:    firstNonEmpty(extractLocation(summary), fe.Location),
				URL:         it.Link,
				Summary:     summary,
				RetrievedAt: now,
				Scoped:      fe.Country != "",
			})
		}
	}
	return finish(f.deps.Log, f.name, out, errs)
}

// itemDate prefers an event date named in the title or summary over the
// item's publication date.
func itemDate(it *gofeed.Item, summary string) string {
	if d := normalize.ExtractDate(it.Title); d != "" {
		return d
	}
	if d := normalize.ExtractDate(summary); d != "" {
		return d
	}
	switch {
	case it.PublishedParsed != nil:
		return it.PublishedParsed.Format(time.RFC3339)
	case it.UpdatedParsed != nil:
		return it.UpdatedParsed.Format(time.RFC3339)
	default:
		return firstNonEmpty(it.Published, it.Updated)
	}
}

// activeFeeds drops feeds bound to a country other than p.
func activeFeeds(feeds []config.FeedEntry, p country.Profile) []config.FeedEntry {
	out := make([]config.FeedEntry, 0, len(feeds))
	for _, fe := range feeds {
		if fe.Country != "" && !strings.EqualFold(fe.Country, p.ID) {
			continue
		}
		out = append(out, fe)
	}
	return out
}

// fetchBody GETs url, serving and filling the response cache under kind.
func fetchBody(ctx context.Context, client *http.Client, url string, deps Deps, kind cache.Kind) ([]byte, error) {
	key := cache.Key("body", string(kind), url)
	if deps.Cache != nil {
		if b, ok, err := deps.Cache.Get(ctx, key); err == nil && ok {
			return b, nil
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if err := util.CheckStatus(url, resp); err != nil {
		return nil, err
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if deps.Cache != nil {
		if err := deps.Cache.Set(ctx, key, b, deps.TTLs.For(kind)); err != nil {
			deps.Log.WithError(err).Debug("cache set")
		}
	}
	return b, nil
}

// finish fails the fetch only when every feed failed.
func finish(log *logrus.Entry, name string, out []model.RawCandidate, errs []error) ([]model.RawCandidate, error) {
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		log.WithField("source", name).WithError(err).Warn("feed failed")
	}
	return out, nil
}

var inlineTags = map[string]bool{
	"a": true, "b": true, "i": true, "em": true, "strong": true, "span": true,
	"u": true, "small": true, "abbr": true, "time": true, "mark": true,
}

// stripTags reduces an HTML fragment to its decoded text. Script and style
// bodies are dropped; block tags separate words.
func stripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				switch tt {
				case html.StartTagToken:
					skip++
				case html.EndTagToken:
					if skip > 0 {
						skip--
					}
				}
			}
			if !inlineTags[tag] {
				b.WriteByte(' ')
			}
		}
	}
}
