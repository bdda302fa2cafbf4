// Package geofilter keeps only events consistent with the active country.
package geofilter

import (
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/country"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/textkey"
)

// Reason names the rule that decided an event.
type Reason string

const (
	CityMatch     Reason = "city_match"
	KeywordMatch  Reason = "keyword_match"
	ScopedDefault Reason = "scoped_default"

	ForeignSignal      Reason = "foreign_signal"
	NoGeographicSignal Reason = "no_geographic_signal"
)

// Decision is the outcome for one event. Token is the matched term, if any.
type Decision struct {
	Keep   bool
	Reason Reason
	Token  string
}

// TokenSource supplies folded match terms per country.
type TokenSource interface {
	TokensFor(id string) (country.Tokens, bool)
}

type Filter struct {
	tokens TokenSource
}

func New(tokens TokenSource) *Filter {
	return &Filter{tokens: tokens}
}

// Evaluate applies the allow/deny rules to the title and location of ev under
// profile p. A foreign mention without a local city is rejected even when a
// keyword of p also appears.
func (f *Filter) Evaluate(ev model.NormalizedEvent, p country.Profile) Decision {
	toks, ok := f.tokens.TokensFor(p.ID)
	if !ok {
		return Decision{Reason: NoGeographicSignal}
	}
	text := textkey.Fold(ev.Title + " " + ev.Location)

	city := firstMatch(text, toks.Cities)
	if foreign := firstMatch(text, toks.Exclusions); foreign != "" && city == "" {
		return Decision{Reason: ForeignSignal, Token: foreign}
	}
	if city != "" {
		return Decision{Keep: true, Reason: CityMatch, Token: city}
	}
	if kw := firstMatch(text, toks.Keywords); kw != "" {
		return Decision{Keep: true, Reason: KeywordMatch, Token: kw}
	}
	if ev.Scoped {
		return Decision{Keep: true, Reason: ScopedDefault}
	}
	return Decision{Reason: NoGeographicSignal}
}

func firstMatch(text string, tokens []string) string {
	for _, t := range tokens {
		if textkey.ContainsPhrase(text, t) {
			return t
		}
	}
	return ""
}
