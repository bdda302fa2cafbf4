package country

import "strings"

// Profile is the parameter set that scopes a cycle to one geography.
type Profile struct {
	ID            string   `yaml:"id" json:"id"`
	Code          string   `yaml:"code" json:"code,omitempty"` // ISO 3166 alpha-2
	SearchTerms   []string `yaml:"search_terms" json:"search_terms"`
	Cities        []string `yaml:"cities" json:"cities"`
	Keywords      []string `yaml:"keywords" json:"keywords"`
	Exclusions    []string `yaml:"exclusions" json:"exclusions"`
	PopularVenues []string `yaml:"popular_venues" json:"popular_venues,omitempty"`
	LocalSites    []string `yaml:"local_sites" json:"local_sites,omitempty"`
	TimeZone      string   `yaml:"time_zone" json:"time_zone,omitempty"`
	Currency      string   `yaml:"currency" json:"currency,omitempty"`
}

// Query is one search string derived from a profile.
type Query struct {
	Text string
	// Scoped is false for global terms that do not name the country.
	Scoped bool
}

// QueryOptions bounds query expansion.
type QueryOptions struct {
	MaxCities     int  // cities substituted into {city} templates, 0 means all
	Max           int  // total queries, 0 means unlimited
	IncludeGlobal bool // append globalTerms after the profile's own terms
}

var globalTerms = []string{
	"international conferences upcoming",
	"global tech summit",
	"virtual events online",
}

// Queries expands the profile's templates in order. Template order is the
// query priority, so truncation by Max keeps the most important queries.
func (p Profile) Queries(opts QueryOptions) []Query {
	cities := p.Cities
	if opts.MaxCities > 0 && len(cities) > opts.MaxCities {
		cities = cities[:opts.MaxCities]
	}
	seen := make(map[string]struct{})
	var out []Query
	add := func(q Query) bool {
		q.Text = strings.Join(strings.Fields(q.Text), " ")
		if q.Text == "" {
			return true
		}
		key := strings.ToLower(q.Text)
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		out = append(out, q)
		return opts.Max <= 0 || len(out) < opts.Max
	}

	for _, tmpl := range p.SearchTerms {
		t := strings.ReplaceAll(tmpl, "{country}", p.ID)
		if !strings.Contains(t, "{city}") {
			if !add(Query{Text: t, Scoped: true}) {
				return out
			}
			continue
		}
		for _, c := range cities {
			if !add(Query{Text: strings.ReplaceAll(t, "{city}", c), Scoped: true}) {
				return out
			}
		}
	}
	if opts.IncludeGlobal {
		for _, g := range globalTerms {
			if !add(Query{Text: g}) {
				return out
			}
		}
	}
	return out
}

// merge overlays the non-empty fields of o onto p.
func (p Profile) merge(o Profile) Profile {
	if len(o.SearchTerms) > 0 {
		p.SearchTerms = o.SearchTerms
	}
	if len(o.Cities) > 0 {
		p.Cities = o.Cities
	}
	if len(o.Keywords) > 0 {
		p.Keywords = o.Keywords
	}
	if len(o.Exclusions) > 0 {
		p.Exclusions = o.Exclusions
	}
	if len(o.PopularVenues) > 0 {
		p.PopularVenues = o.PopularVenues
	}
	if len(o.LocalSites) > 0 {
		p.LocalSites = o.LocalSites
	}
	if o.Code != "" {
		p.Code = o.Code
	}
	if o.TimeZone != "" {
		p.TimeZone = o.TimeZone
	}
	if o.Currency != "" {
		p.Currency = o.Currency
	}
	return p
}

// Merge applies overrides to base by ID. Overrides with an unknown ID are
// appended as new profiles.
func Merge(base, overrides []Profile) []Profile {
	out := make([]Profile, len(base))
	copy(out, base)
	for _, o := range overrides {
		id := strings.TrimSpace(o.ID)
		if id == "" {
			continue
		}
		found := false
		for i := range out {
			if strings.EqualFold(out[i].ID, id) {
				out[i] = out[i].merge(o)
				found = true
				break
			}
		}
		if !found {
			o.ID = id
			out = append(out, o)
		}
	}
	return out
}

// Select keeps the profiles named in ids, in the order of ids. An empty ids
// keeps everything.
func Select(profiles []Profile, ids []string) []Profile {
	if len(ids) == 0 {
		return profiles
	}
	var out []Profile
	for _, id := range ids {
		id = strings.TrimSpace(id)
		for _, p := range profiles {
			if strings.EqualFold(p.ID, id) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
