// Package postprocess attaches labels such as category and region to
// normalized events using keyword, regex and mapping rules.
package postprocess

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
)

const (
	CategoryLabel   = "category"
	DefaultCategory = "General"
)

type category struct {
	name  string
	words []string
}

// builtinCategories are checked in order; the first hit wins.
var builtinCategories = []category{
	{"Music", []string{"concert", "music", "band", "singer", "album", "tour", "festival", "afrobeat"}},
	{"Technology", []string{"tech", "technology", "startup", "coding", "developer", " ai ", "software", "hackathon"}},
	{"Business", []string{"business", "networking", "conference", "summit", "corporate"}},
	{"Arts", []string{"art ", "arts", "gallery", "exhibition", "museum", "painting", "sculpture"}},
	{"Sports", []string{"sports", "game", "match", "tournament", "championship", "athletic", "marathon"}},
	{"Food", []string{"food", "restaurant", "culinary", "cooking", "chef", "tasting"}},
	{"Education", []string{"workshop", "seminar", "training", "course", "lecture", "class"}},
	{"Entertainment", []string{"comedy", "theater", "theatre", "show", "performance", "entertainment"}},
}

// Engine is immutable after New and safe for concurrent use.
type Engine struct {
	builtin bool
	kw      []keywordRule
	regs    []regexRule
	maps    []mapRule
}

type keywordRule struct {
	words  []string
	all    bool
	labels map[string]string
}

type regexRule struct {
	field  string
	re     *regexp.Regexp
	labels map[string]string
}

type mapRule struct {
	field   string
	outKey  string
	mapping map[string]string
}

// New compiles cfg. An invalid regex is an error; empty rules are skipped.
func New(cfg config.PostProcessConfig) (*Engine, error) {
	eng := &Engine{builtin: cfg.Builtin == nil || *cfg.Builtin}
	for _, kr := range cfg.Keywords {
		words := make([]string, 0, len(kr.When))
		for _, w := range kr.When {
			if s := strings.TrimSpace(w); s != "" {
				words = append(words, strings.ToLower(s))
			}
		}
		if len(words) == 0 || len(kr.Labels) == 0 {
			continue
		}
		eng.kw = append(eng.kw, keywordRule{words: words, all: kr.All, labels: kr.Labels})
	}
	for i, rr := range cfg.Regex {
		if strings.TrimSpace(rr.Field) == "" || strings.TrimSpace(rr.Expr) == "" {
			continue
		}
		re, err := regexp.Compile(rr.Expr)
		if err != nil {
			return nil, fmt.Errorf("postprocess regex[%d]: %w", i, err)
		}
		eng.regs = append(eng.regs, regexRule{field: rr.Field, re: re, labels: rr.Labels})
	}
	for _, mr := range cfg.Maps {
		if strings.TrimSpace(mr.Field) == "" || len(mr.Mapping) == 0 {
			continue
		}
		out := mr.OutKey
		if out == "" {
			out = mr.Field
		}
		eng.maps = append(eng.maps, mapRule{field: mr.Field, outKey: out, mapping: mr.Mapping})
	}
	return eng, nil
}

// Apply returns ev with labels added. Rules run builtin categories first,
// then keyword, regex and map rules, so configured rules override the
// builtin category.
func (e *Engine) Apply(ev model.NormalizedEvent) model.NormalizedEvent {
	labels := make(map[string]string, len(ev.Labels)+2)
	for k, v := range ev.Labels {
		labels[k] = v
	}
	ev.Labels = labels

	text := " " + strings.ToLower(ev.Title+" "+ev.Summary) + " "
	if e.builtin {
		if _, set := labels[CategoryLabel]; !set {
			labels[CategoryLabel] = Categorize(text)
		}
	}
	for _, kr := range e.kw {
		if kr.match(text) {
			for k, v := range kr.labels {
				labels[k] = v
			}
		}
	}
	for _, rr := range e.regs {
		if val := field(&ev, rr.field); val != "" && rr.re.MatchString(val) {
			for k, v := range rr.labels {
				labels[k] = v
			}
		}
	}
	for _, mr := range e.maps {
		if mapped, ok := mr.mapping[field(&ev, mr.field)]; ok {
			labels[mr.outKey] = mapped
		}
	}
	if len(labels) == 0 {
		ev.Labels = nil
	}
	return ev
}

// Categorize returns the first builtin category whose words occur in text,
// or DefaultCategory.
func Categorize(text string) string {
	lc := " " + strings.ToLower(text) + " "
	for _, c := range builtinCategories {
		for _, w := range c.words {
			if strings.Contains(lc, w) {
				return c.name
			}
		}
	}
	return DefaultCategory
}

func (kr keywordRule) match(text string) bool {
	for _, w := range kr.words {
		hit := strings.Contains(text, w)
		if kr.all && !hit {
			return false
		}
		if !kr.all && hit {
			return true
		}
	}
	return kr.all
}

func field(e *model.NormalizedEvent, name string) string {
	switch strings.ToLower(name) {
	case "title":
		return e.Title
	case "summary":
		return e.Summary
	case "url":
		return e.URL
	case "location":
		return e.Location
	case "source":
		return e.Source
	case "country":
		return e.Country
	default:
		return e.Labels[name]
	}
}
