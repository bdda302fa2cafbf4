package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// zonedLayouts carry their own offset and are parsed as-is.
var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	"20060102T150405Z",
}

// localLayouts have no offset and are parsed in the reference location.
var localLayouts = []string{
	"20060102T150405",
	"20060102",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// humanDates are tried with each of humanTimes appended. Day-first numeric
// forms come before month-first ones.
var humanDates = []string{
	"Monday January 2 2006",
	"Mon January 2 2006",
	"Monday Jan 2 2006",
	"Mon Jan 2 2006",
	"January 2 2006",
	"Jan 2 2006",
	"Monday 2 January 2006",
	"Mon 2 Jan 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006/1/2",
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
	"1-2-2006",
	"2.1.2006",
}

var humanTimes = []string{"", " 15:04", " 3:04 PM", " 3:04PM", " 3 PM", " 3PM"}

// yearless forms resolve to the next occurrence on or after the reference day.
var yearless = []string{
	"Monday January 2",
	"Mon Jan 2",
	"January 2",
	"Jan 2",
	"Monday 2 January",
	"2 January",
	"2 Jan",
}

const monthAlt = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?`

// extractors find date-like substrings inside longer text, most specific
// first.
var extractors = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?`),
	regexp.MustCompile(`(?i)\b(?:(?:mon|tue|wed|thu|fri|sat|sun)[a-z]*,?\s+)?` + monthAlt + `\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthAlt + `,?\s+\d{4}\b`),
	regexp.MustCompile(`\b\d{4}/\d{1,2}/\d{1,2}\b|\b\d{1,2}[/.-]\d{1,2}[/.-]\d{4}\b`),
	regexp.MustCompile(`(?i)\b(?:today|tonight|tomorrow|this weekend|next week|(?:this|next)\s+(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)|in\s+\d+\s+days?)\b`),
	regexp.MustCompile(`(?i)\b` + monthAlt + `\s+\d{1,2}(?:st|nd|rd|th)?\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthAlt),
}

var (
	ordinal   = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)\b`)
	sept      = regexp.MustCompile(`(?i)\bsept\b`)
	ofWord    = regexp.MustCompile(`(?i)\s+of\s+`)
	inNDays   = regexp.MustCompile(`^in (\d+) days?$`)
	weekdayRe = regexp.MustCompile(`^(?:(this|next) )?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

// absoluteExtractors is the prefix of extractors whose matches carry a year.
const absoluteExtractors = 4

var defaultParser = NewDateParser()

// ExtractDate returns the first dated substring of text that parses on its
// own, or "". Relative and year-less phrases are ignored.
func ExtractDate(text string) string {
	for _, re := range extractors[:absoluteExtractors] {
		for _, m := range re.FindAllString(text, -1) {
			if _, ok := defaultParser.parseWhole(m, time.Time{}); ok {
				return m
			}
		}
	}
	return ""
}

// DateParser tries a fixed, ordered set of formats. The first success wins.
type DateParser struct {
	human []string
}

func NewDateParser() *DateParser {
	p := &DateParser{}
	for _, d := range humanDates {
		for _, t := range humanTimes {
			p.human = append(p.human, d+t)
		}
	}
	return p
}

// Parse resolves text to a start time. ref supplies the location for
// offset-less dates and the anchor for relative phrases; a zero ref disables
// both relative and year-less forms.
func (p *DateParser) Parse(text string, ref time.Time) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	if t, ok := p.parseWhole(text, ref); ok {
		return t, true
	}
	for _, re := range extractors {
		for _, m := range re.FindAllString(text, -1) {
			if t, ok := p.parseWhole(m, ref); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func (p *DateParser) parseWhole(s string, ref time.Time) (time.Time, bool) {
	loc := time.UTC
	if !ref.IsZero() {
		loc = ref.Location()
	}
	for _, l := range zonedLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	for _, l := range localLayouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t, true
		}
	}

	prepared := prepare(s)
	for _, l := range p.human {
		if t, err := time.ParseInLocation(l, prepared, loc); err == nil {
			return t, true
		}
	}
	if ref.IsZero() {
		return time.Time{}, false
	}
	if t, ok := relative(strings.ToLower(strings.Join(strings.Fields(s), " ")), ref); ok {
		return t, true
	}
	for _, l := range yearless {
		if t, err := time.ParseInLocation(l, prepared, loc); err == nil {
			return nextOccurrence(t, ref), true
		}
	}
	return time.Time{}, false
}

// prepare strips ordinals, commas and "of" and uppercases the result so the
// AM/PM marker matches Go's layout. Month and weekday names match
// case-insensitively.
func prepare(s string) string {
	s = ordinal.ReplaceAllString(s, "$1")
	s = sept.ReplaceAllString(s, "sep")
	s = ofWord.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, ",", " ")
	fields := strings.Fields(s)
	for i, f := range fields {
		if len(f) > 3 && strings.HasSuffix(f, ".") && !strings.ContainsAny(f, "0123456789") {
			fields[i] = strings.TrimSuffix(f, ".")
		}
	}
	return strings.ToUpper(strings.Join(fields, " "))
}

func dayOf(ref time.Time) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ref.Location())
}

// relative resolves phrases against the reference day. "next <weekday>" is
// the first such weekday strictly after the reference day; "this <weekday>"
// and a bare weekday may be the reference day itself.
func relative(s string, ref time.Time) (time.Time, bool) {
	today := dayOf(ref)
	switch s {
	case "today", "tonight":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	case "next week":
		return today.AddDate(0, 0, 7), true
	case "this weekend":
		switch today.Weekday() {
		case time.Saturday, time.Sunday:
			return today, true
		default:
			return today.AddDate(0, 0, int(time.Saturday-today.Weekday())), true
		}
	}
	if m := inNDays.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n > 366 {
			return time.Time{}, false
		}
		return today.AddDate(0, 0, n), true
	}
	if m := weekdayRe.FindStringSubmatch(s); m != nil {
		want := weekdays[m[2]]
		ahead := (int(want) - int(today.Weekday()) + 7) % 7
		if m[1] == "next" && ahead == 0 {
			ahead = 7
		}
		return today.AddDate(0, 0, ahead), true
	}
	return time.Time{}, false
}

func nextOccurrence(t, ref time.Time) time.Time {
	today := dayOf(ref)
	c := time.Date(today.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, ref.Location())
	if dayOf(c).Before(today) {
		c = c.AddDate(1, 0, 0)
	}
	return c
}
