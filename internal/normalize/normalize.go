// Package normalize turns raw connector candidates into events with a usable
// title and a parsed start time.
package normalize

import (
	"fmt"
	"strings"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/textkey"
)

// Reason explains why a candidate was dropped.
type Reason string

const (
	MissingTitle    Reason = "missing_title"
	MissingDate     Reason = "missing_date"
	UnparseableDate Reason = "unparseable_date"
)

// Drop is returned for candidates that cannot be minimally normalized.
type Drop struct {
	Reason Reason
	Source string
	Detail string
}

func (d *Drop) Error() string {
	if d.Detail == "" {
		return fmt.Sprintf("normalize %s: %s", d.Source, d.Reason)
	}
	return fmt.Sprintf("normalize %s: %s: %q", d.Source, d.Reason, d.Detail)
}

// Normalizer is stateless; the zero value is not usable, call New.
type Normalizer struct {
	dates *DateParser
}

func New() *Normalizer {
	return &Normalizer{dates: NewDateParser()}
}

// Normalize maps c into a NormalizedEvent evaluated under country. Relative
// dates resolve against c.RetrievedAt, and every start is expressed in its
// location, so the result depends on nothing but the candidate.
func (n *Normalizer) Normalize(c model.RawCandidate, country string) (model.NormalizedEvent, error) {
	title := collapse(c.Title)
	titleKey := textkey.Fold(title)
	if titleKey == "" {
		return model.NormalizedEvent{}, &Drop{Reason: MissingTitle, Source: c.Source}
	}
	dateText := collapse(c.DateText)
	if dateText == "" {
		return model.NormalizedEvent{}, &Drop{Reason: MissingDate, Source: c.Source}
	}
	start, ok := n.dates.Parse(dateText, c.RetrievedAt)
	if !ok {
		return model.NormalizedEvent{}, &Drop{Reason: UnparseableDate, Source: c.Source, Detail: truncate(dateText, 80)}
	}
	if !c.RetrievedAt.IsZero() {
		start = start.In(c.RetrievedAt.Location())
	}
	loc := collapse(c.Location)
	return model.NormalizedEvent{
		Title:       title,
		TitleKey:    titleKey,
		Start:       start,
		Location:    loc,
		LocationKey: textkey.Fold(loc),
		Source:      c.Source,
		URL:         strings.TrimSpace(c.URL),
		Summary:     collapse(c.Summary),
		Country:     country,
		Scoped:      c.Scoped,
	}, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
