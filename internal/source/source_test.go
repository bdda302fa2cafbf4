package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/cache"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/country"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/quota"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/source/search"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/util"
)

var fixedNow = time.Date(2025, 3, 5, 10, 30, 0, 0, time.UTC)

func nigeria() country.Profile {
	return country.Profile{
		ID:          "Nigeria",
		Code:        "NG",
		SearchTerms: []string{"events in {city} Nigeria", "Nigerian tech conferences"},
		Cities:      []string{"Lagos", "Abuja"},
	}
}

type fakeProvider struct {
	calls   atomic.Int32
	queries []string
	results []search.Result
	err     error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(_ context.Context, q string, opts search.Options) ([]search.Result, error) {
	f.calls.Add(1)
	f.queries = append(f.queries, q+"|"+opts.Region)
	return f.results, f.err
}

func testDeps(t *testing.T) Deps {
	logger, _ := test.NewNullLogger()
	return Deps{Log: logrus.NewEntry(logger), Now: func() time.Time { return fixedNow }}
}

func TestSearchConnectorBuildsCandidates(t *testing.T) {
	fp := &fakeProvider{results: []search.Result{
		{Title: "Lagos Tech Summit", URL: "https://e.ng/summit", Snippet: "Join us March 14, 2025 at Landmark Centre for the tech conference"},
		{Title: "Naira exchange rate today", URL: "https://news.ng/fx", Snippet: "Markets update"},
	}}
	c := NewSearchConnector("search:fake", fp, false, config.SearchConfig{}, testDeps(t))

	out, err := c.Fetch(context.Background(), nigeria())
	require.NoError(t, err)
	require.EqualValues(t, 3, fp.calls.Load())
	require.Equal(t, "events in Lagos Nigeria|NG", fp.queries[0])
	require.Len(t, out, 3, "non-event result filtered from each query")
	require.Equal(t, model.RawCandidate{
		Source:      "search:fake",
		Title:       "Lagos Tech Summit",
		DateText:    "Join us March 14, 2025 at Landmark Centre for the tech conference",
		Location:    "Landmark Centre",
		URL:         "https://e.ng/summit",
		Summary:     "Join us March 14, 2025 at Landmark Centre for the tech conference",
		RetrievedAt: fixedNow,
		Scoped:      true,
	}, out[0])
}

func TestSearchConnectorSocialSites(t *testing.T) {
	fp := &fakeProvider{}
	p := nigeria()
	p.SearchTerms = []string{"Lagos meetups"}
	c := NewSearchConnector("social", fp, true, config.SearchConfig{}, testDeps(t))

	_, err := c.Fetch(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, []string{"Lagos meetups (site:linkedin.com OR site:facebook.com OR site:eventbrite.com OR site:meetup.com)|NG"}, fp.queries)
}

func TestSearchConnectorCacheAndQuota(t *testing.T) {
	fp := &fakeProvider{results: []search.Result{{Title: "Afrobeat concert", Snippet: "Friday"}}}
	deps := testDeps(t)
	deps.Cache = cache.NewLRU(10)
	deps.TTLs = cache.TTLs{cache.KindSearch: time.Hour}
	q, err := quota.New(config.QuotaConfig{DailyLimit: 2}, deps.Log)
	require.NoError(t, err)
	deps.Quota = q
	c := NewSearchConnector("s", fp, false, config.SearchConfig{}, deps)

	out, err := c.Fetch(context.Background(), nigeria())
	require.NoError(t, err, "an exhausted budget is not an error")
	require.EqualValues(t, 2, fp.calls.Load())
	require.Len(t, out, 2)
	require.Zero(t, q.Remaining())

	out, err = c.Fetch(context.Background(), nigeria())
	require.NoError(t, err)
	require.EqualValues(t, 2, fp.calls.Load(), "cached queries spend no quota")
	require.Len(t, out, 2)
}

func TestSearchConnectorAllQueriesFail(t *testing.T) {
	fp := &fakeProvider{err: &util.StatusError{Service: "fake", Code: 500}}
	c := NewSearchConnector("s", fp, false, config.SearchConfig{}, testDeps(t))

	out, err := c.Fetch(context.Background(), nigeria())
	require.Error(t, err)
	require.Nil(t, out)
	var se *util.StatusError
	require.True(t, errors.As(err, &se))
}

const rssBody = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Lagos Events</title>
<item><title>Eko Jazz Festival</title><link>https://e.ng/jazz</link>
<description>&lt;p&gt;Live music in Victoria Island&lt;/p&gt;</description>
<pubDate>Fri, 14 Mar 2025 18:00:00 +0100</pubDate></item>
</channel></rss>`

func TestFeedConnectorScoping(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssBody))
	}))
	defer srv.Close()

	cfg := config.FeedConfig{Feeds: []config.FeedEntry{
		{URL: srv.URL + "/ng", Country: "Nigeria", Location: "Lagos"},
		{URL: srv.URL + "/uk", Country: "United Kingdom"},
	}}
	deps := testDeps(t)
	deps.Cache = cache.NewLRU(10)
	deps.TTLs = cache.TTLs{cache.KindNews: time.Hour}
	f := NewFeedConnector("feed", cfg, deps)

	out, err := f.Fetch(context.Background(), nigeria())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Eko Jazz Festival", out[0].Title)
	start, err := time.Parse(time.RFC3339, out[0].DateText)
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2025, 3, 14, 17, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Victoria Island", out[0].Location)
	assert.Equal(t, "Live music in Victoria Island", out[0].Summary)
	assert.True(t, out[0].Scoped)
	require.EqualValues(t, 1, hits.Load(), "feed bound to another country is skipped")

	_, err = f.Fetch(context.Background(), nigeria())
	require.NoError(t, err)
	require.EqualValues(t, 1, hits.Load(), "second read served from cache")
}

func TestFeedConnectorAllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f := NewFeedConnector("feed", config.FeedConfig{Feeds: []config.FeedEntry{{URL: srv.URL}}}, testDeps(t))
	_, err := f.Fetch(context.Background(), nigeria())
	var se *util.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusGone, se.Code)
}

const icsBody = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:1@test\r\n" +
	"SUMMARY:Abuja Startup Meetup\r\n" +
	"DTSTART:20250320T170000Z\r\n" +
	"LOCATION:Abuja\r\n" +
	"URL:https://e.ng/meetup\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:2@test\r\n" +
	"SUMMARY:Book Fair\r\n" +
	"DTSTART;VALUE=DATE:20250322\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestICSConnector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(icsBody))
	}))
	defer srv.Close()

	c := NewICSConnector("ics", config.FeedConfig{Feeds: []config.FeedEntry{{URL: srv.URL, Location: "Lagos"}}}, testDeps(t))
	out, err := c.Fetch(context.Background(), nigeria())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Abuja Startup Meetup", out[0].Title)
	assert.Equal(t, "20250320T170000Z", out[0].DateText)
	assert.Equal(t, "Abuja", out[0].Location)
	assert.Equal(t, "https://e.ng/meetup", out[0].URL)
	assert.False(t, out[0].Scoped)
	assert.Equal(t, "20250322", out[1].DateText)
	assert.Equal(t, "Lagos", out[1].Location, "feed default location")
}

type flakyConnector struct {
	calls atomic.Int32
	fails int32
	err   error
}

func (f *flakyConnector) Name() string { return "flaky" }

func (f *flakyConnector) Fetch(context.Context, country.Profile) ([]model.RawCandidate, error) {
	if f.calls.Add(1) <= f.fails {
		return nil, f.err
	}
	return []model.RawCandidate{{Title: "ok"}}, nil
}

func fastResilience() config.ResilienceConfig {
	return config.ResilienceConfig{
		MaxRetries:       2,
		Backoff:          time.Millisecond,
		MaxBackoff:       2 * time.Millisecond,
		FailureThreshold: 2,
		FailureWindow:    2,
		BreakerDelay:     time.Hour,
	}
}

func TestResilientRetriesTransient(t *testing.T) {
	fc := &flakyConnector{fails: 2, err: errors.New("connection reset")}
	r := NewResilient(fc, fastResilience(), nil)

	out, err := r.Fetch(context.Background(), nigeria())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.EqualValues(t, 3, fc.calls.Load())
}

func TestResilientSkipsPermanent(t *testing.T) {
	fc := &flakyConnector{fails: 10, err: &util.StatusError{Service: "x", Code: http.StatusUnauthorized}}
	r := NewResilient(fc, fastResilience(), nil)

	_, err := r.Fetch(context.Background(), nigeria())
	var se *util.StatusError
	require.True(t, errors.As(err, &se))
	require.EqualValues(t, 1, fc.calls.Load())
}

func TestResilientOpensBreaker(t *testing.T) {
	fc := &flakyConnector{fails: 100, err: &util.StatusError{Service: "x", Code: http.StatusForbidden}}
	r := NewResilient(fc, fastResilience(), nil)

	for i := 0; i < 2; i++ {
		_, err := r.Fetch(context.Background(), nigeria())
		require.Error(t, err)
	}
	require.True(t, r.BreakerOpen())
	_, err := r.Fetch(context.Background(), nigeria())
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.EqualValues(t, 2, fc.calls.Load())
	require.Equal(t, "flaky", r.Name())
}

func TestNewFromConfig(t *testing.T) {
	c, err := NewFromConfig(config.SourceConfig{Type: "search", Search: config.SearchConfig{Provider: "brave", APIKey: "k"}}, Deps{})
	require.NoError(t, err)
	require.Equal(t, "search:brave", c.Name())
	require.IsType(t, &Resilient{}, c)

	c, err = NewFromConfig(config.SourceConfig{Type: "ics", Name: "calendars"}, Deps{})
	require.NoError(t, err)
	require.Equal(t, "calendars", c.Name())

	_, err = NewFromConfig(config.SourceConfig{Type: "search", Search: config.SearchConfig{Provider: "bing"}}, Deps{})
	require.Error(t, err)
	_, err = NewFromConfig(config.SourceConfig{Type: "twitter"}, Deps{})
	require.Error(t, err)
}

func TestExtractLocation(t *testing.T) {
	cases := map[string]string{
		"Concert at Eko Hotel this Friday": "Eko Hotel",
		"Meetup in Lagos":                  "Lagos",
		"Held @ Terra Kulture":             "Terra Kulture",
		"Parade down Broad Street":         "Broad Street",
		"no place mentioned":               "",
	}
	for in, want := range cases {
		require.Equal(t, want, extractLocation(in), in)
	}
	require.True(t, looksLikeEvent("Annual Tech SUMMIT"))
	require.False(t, looksLikeEvent(strings.Repeat("news ", 3)))
}

const rssArticleBody = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Lagos News</title>
<item><title>Lagos Art Fair returns</title><link>https://e.ng/art</link>
<description>&lt;p&gt;The fair holds on March 20, 2025 at &lt;b&gt;Eko&amp;nbsp;Hotel&lt;/b&gt;&lt;/p&gt;</description>
<pubDate>Wed, 05 Mar 2025 08:00:00 +0000</pubDate></item>
</channel></rss>`

func TestFeedConnectorPrefersEventDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssArticleBody))
	}))
	defer srv.Close()

	f := NewFeedConnector("feed", config.FeedConfig{Feeds: []config.FeedEntry{{URL: srv.URL}}}, testDeps(t))
	out, err := f.Fetch(context.Background(), nigeria())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "March 20, 2025", out[0].DateText)
	assert.Equal(t, "The fair holds on March 20, 2025 at Eko Hotel", out[0].Summary)
	assert.False(t, out[0].Scoped)
}

func TestStripTags(t *testing.T) {
	cases := map[string]string{
		"<p>Art &amp; Music Fair at <b>Eko&nbsp;Hotel</b> &lt;free&gt;</p>": "Art & Music Fair at Eko Hotel <free>",
		"<div>Day one</div><div>Day two</div>":                              "Day one Day two",
		"Talks<script>var x = '<b>';</script> and <style>p{}</style>demos":  "Talks and demos",
		"plain text":                                                          "plain text",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripTags(in), in)
	}
}
