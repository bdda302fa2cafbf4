package source

import (
	"regexp"
	"strings"
	"time"
)

var eventWords = []string{
	"event", "concert", "festival", "conference", "workshop", "seminar",
	"meetup", "show", "performance", "exhibition", "fair", "party",
	"gathering", "celebration", "ceremony", "competition", "tournament",
	"summit", "hackathon", "expo",
}

// looksLikeEvent filters search noise such as news articles and listings.
func looksLikeEvent(text string) bool {
	lc := strings.ToLower(text)
	for _, w := range eventWords {
		if strings.Contains(lc, w) {
			return true
		}
	}
	return false
}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:\bin|\bat|@)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
	regexp.MustCompile(`\b([A-Z][a-z]+,\s*[A-Z]{2})\b`),
	regexp.MustCompile(`\b([A-Z][a-z]+\s+(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Boulevard|Blvd))\b`),
}

// extractLocation pulls a capitalized place name out of free text.
func extractLocation(text string) string {
	for _, re := range locationPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func defaultDur(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
