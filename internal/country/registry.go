package country

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/textkey"
)

// ErrNotFound is returned when an identifier is not a registered country.
var ErrNotFound = errors.New("country not found")

// Tokens are the folded match terms derived for one profile.
type Tokens struct {
	Cities     []string
	Keywords   []string
	Exclusions []string
}

// Registry holds the registered profiles and the process-wide active one.
// Profiles are immutable after construction; only the active pointer moves.
type Registry struct {
	order    []string
	profiles map[string]*Profile
	tokens   map[string]Tokens
	active   atomic.Pointer[Profile]
}

// NewRegistry builds a registry over profiles with active selected. An empty
// active selects the first profile.
func NewRegistry(profiles []Profile, active string) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, errors.New("country: no profiles registered")
	}
	r := &Registry{profiles: make(map[string]*Profile, len(profiles)), tokens: make(map[string]Tokens, len(profiles))}
	for i := range profiles {
		p := profiles[i]
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("country: profile %d has no id", i)
		}
		key := strings.ToLower(p.ID)
		if _, dup := r.profiles[key]; dup {
			return nil, fmt.Errorf("country: duplicate profile %q", p.ID)
		}
		r.profiles[key] = &p
		r.order = append(r.order, key)
	}
	for _, key := range r.order {
		r.tokens[key] = r.buildTokens(key)
	}
	if strings.TrimSpace(active) == "" {
		active = r.profiles[r.order[0]].ID
	}
	if err := r.SetActive(active); err != nil {
		return nil, err
	}
	return r, nil
}

// Active returns the profile new cycles run under.
func (r *Registry) Active() Profile {
	return *r.active.Load()
}

// SetActive swaps the active profile. Cycles already running keep the
// profile they loaded at start.
func (r *Registry) SetActive(id string) error {
	p, ok := r.profiles[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	r.active.Store(p)
	return nil
}

// Get looks up a profile by identifier, case-insensitively.
func (r *Registry) Get(id string) (Profile, bool) {
	p, ok := r.profiles[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Profile{}, false
	}
	return *p, true
}

// List returns every registered profile in registration order.
func (r *Registry) List() []Profile {
	out := make([]Profile, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.profiles[key])
	}
	return out
}

// IDs returns the registered identifiers in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.profiles[key].ID)
	}
	return out
}

// TokensFor returns the folded match terms for id.
func (r *Registry) TokensFor(id string) (Tokens, bool) {
	t, ok := r.tokens[strings.ToLower(strings.TrimSpace(id))]
	return t, ok
}

// buildTokens folds the profile's own cities and keywords and collects the
// exclusions: the explicit list plus every other profile's cities and
// keywords, minus anything the profile itself claims.
func (r *Registry) buildTokens(key string) Tokens {
	p := r.profiles[key]
	cities := foldAll(p.Cities)
	keywords := foldAll(p.Keywords)

	own := make(map[string]struct{}, len(cities)+len(keywords))
	for _, t := range cities {
		own[t] = struct{}{}
	}
	for _, t := range keywords {
		own[t] = struct{}{}
	}

	excl := make(map[string]struct{})
	addExcl := func(list []string) {
		for _, t := range foldAll(list) {
			if _, mine := own[t]; !mine {
				excl[t] = struct{}{}
			}
		}
	}
	addExcl(p.Exclusions)
	for _, other := range r.order {
		if other == key {
			continue
		}
		addExcl(r.profiles[other].Cities)
		addExcl(r.profiles[other].Keywords)
		addExcl([]string{r.profiles[other].ID})
	}
	exclusions := make([]string, 0, len(excl))
	for t := range excl {
		exclusions = append(exclusions, t)
	}
	return Tokens{Cities: byLength(cities), Keywords: byLength(keywords), Exclusions: byLength(exclusions)}
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		k := textkey.Fold(s)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// byLength sorts longest phrase first so multi-word names are tried before
// their parts.
func byLength(in []string) []string {
	sort.Slice(in, func(i, j int) bool {
		if len(in[i]) != len(in[j]) {
			return len(in[i]) > len(in[j])
		}
		return in[i] < in[j]
	})
	return in
}
