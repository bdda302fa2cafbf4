package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/cache"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/country"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/util"
)

// ICSConnector reads iCalendar feeds. Recurrence rules are not expanded; each
// VEVENT yields one candidate at its DTSTART.
type ICSConnector struct {
	name   string
	feeds  []config.FeedEntry
	client *http.Client
	deps   Deps
}

func NewICSConnector(name string, cfg config.FeedConfig, deps Deps) *ICSConnector {
	return &ICSConnector{
		name:   name,
		feeds:  cfg.Feeds,
		client: util.NewHTTPClient(defaultDur(cfg.HTTP.Timeout, 15*time.Second), cfg.HTTP.UserAgent),
		deps:   deps.withDefaults(),
	}
}

func (c *ICSConnector) Name() string { return c.name }

func (c *ICSConnector) Fetch(ctx context.Context, p country.Profile) ([]model.RawCandidate, error) {
	var (
		out  []model.RawCandidate
		errs []error
	)
	for _, fe := range activeFeeds(c.feeds, p) {
		body, err := fetchBody(ctx, c.client, fe.URL, c.deps, cache.KindNews)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cal, err := ical.ParseCalendar(bytes.NewReader(body))
		if err != nil {
			errs = append(errs, fmt.Errorf("parse ics %s: %w", fe.URL, err))
			continue
		}
		now := c.deps.Now()
		for _, ve := range cal.Events() {
			summary := prop(ve, ical.ComponentPropertyDescription)
			out = append(out, model.RawCandidate{
				Source:      c.name,
				Title:       prop(ve, ical.ComponentPropertySummary),
				DateText:    startText(ve),
				Location:    firstNonEmpty(prop(ve, ical.ComponentPropertyLocation), fe.Location),
				URL:         prop(ve, ical.ComponentPropertyUrl),
				Summary:     summary,
				RetrievedAt: now,
				Scoped:      fe.Country != "",
			})
		}
	}
	return finish(c.deps.Log, c.name, out, errs)
}

func prop(ve *ical.VEvent, p ical.ComponentProperty) string {
	if v := ve.GetProperty(p); v != nil {
		return strings.TrimSpace(v.Value)
	}
	return ""
}

// startText resolves TZID-qualified starts through the library and passes
// UTC, floating and all-day values through as written.
func startText(ve *ical.VEvent) string {
	dt := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dt == nil {
		return ""
	}
	if tz, ok := dt.ICalParameters["TZID"]; ok && len(tz) > 0 {
		if t, err := ve.GetStartAt(); err == nil {
			return t.Format(time.RFC3339)
		}
	}
	return strings.TrimSpace(dt.Value)
}
