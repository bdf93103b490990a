package dialog

import (
	"regexp"
	"strings"
	"time"
)

// CheckInResolver turns an arrival phrase into a calendar date in the motel's
// time zone.
type CheckInResolver struct {
	loc *time.Location
	now func() time.Time
}

// NewCheckInResolver creates a resolver for loc (UTC when nil).
func NewCheckInResolver(loc *time.Location) *CheckInResolver {
	if loc == nil {
		loc = time.UTC
	}
	return &CheckInResolver{loc: loc, now: time.Now}
}

// Resolve resolves phrase relative to the current day. A nil resolver never
// resolves.
func (r *CheckInResolver) Resolve(phrase string) (time.Time, bool) {
	if r == nil {
		return time.Time{}, false
	}
	return ResolveCheckIn(phrase, r.now().In(r.loc))
}

var (
	ordinalSuffix = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)\b`)
	spaceRun      = regexp.MustCompile(`\s+`)
)

// Layouts for day-month phrases, with and without a year. Month name
// matching in time.Parse ignores case.
var (
	datedLayouts = []string{
		"2006-01-02",
		"2 January 2006", "2 Jan 2006",
		"January 2 2006", "Jan 2 2006",
	}
	undatedLayouts = []string{
		"2 January", "2 Jan",
		"January 2", "Jan 2",
	}
)

// ResolveCheckIn resolves an arrival phrase relative to now (whose location
// is used). Supported: today, tonight, tomorrow, "day after tomorrow",
// weekday names optionally prefixed by "this" or "next", ISO dates, "12
// March", "March 12" with an optional ordinal suffix and year. Dates without
// a year resolve to the next such day on or after today.
func ResolveCheckIn(phrase string, now time.Time) (time.Time, bool) {
	p := normalizePhrase(phrase)
	if p == "" {
		return time.Time{}, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch p {
	case "today", "tonight":
		return today, true
	case "tomorrow", "tomorrow night":
		return today.AddDate(0, 0, 1), true
	case "day after tomorrow", "the day after tomorrow":
		return today.AddDate(0, 0, 2), true
	}

	if d, ok := resolveWeekday(p, today); ok {
		return d, true
	}

	for _, layout := range datedLayouts {
		if t, err := time.Parse(layout, p); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location()), true
		}
	}
	for _, layout := range undatedLayouts {
		t, err := time.Parse(layout, p)
		if err != nil {
			continue
		}
		return nextDayOfYear(today, t.Month(), t.Day())
	}
	return time.Time{}, false
}

// FormatCheckIn renders a resolved date for replies.
func FormatCheckIn(d time.Time) string {
	return d.Format("Monday 2 January 2006")
}

func normalizePhrase(phrase string) string {
	p := strings.ToLower(strings.TrimSpace(phrase))
	p = strings.Trim(p, ".,!?")
	p = strings.ReplaceAll(p, ",", " ")
	p = spaceRun.ReplaceAllString(p, " ")
	p = strings.TrimPrefix(p, "on ")
	p = strings.TrimPrefix(p, "the ")
	p = ordinalSuffix.ReplaceAllString(p, "$1")
	p = strings.Replace(p, " of ", " ", 1)
	return strings.TrimSpace(p)
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// resolveWeekday handles "friday", "this friday" (0-6 days ahead) and
// "next friday" (1-7 days ahead).
func resolveWeekday(p string, today time.Time) (time.Time, bool) {
	minAhead := 0
	switch {
	case strings.HasPrefix(p, "next "):
		p = strings.TrimPrefix(p, "next ")
		minAhead = 1
	case strings.HasPrefix(p, "this "):
		p = strings.TrimPrefix(p, "this ")
	}
	wd, ok := weekdays[p]
	if !ok {
		return time.Time{}, false
	}
	ahead := (int(wd) - int(today.Weekday()) + 7) % 7
	if ahead < minAhead {
		ahead += 7
	}
	return today.AddDate(0, 0, ahead), true
}

// nextDayOfYear returns the first month/day on or after today. 29 February
// moves to the next leap year.
func nextDayOfYear(today time.Time, month time.Month, day int) (time.Time, bool) {
	for year := today.Year(); year <= today.Year()+8; year++ {
		d := time.Date(year, month, day, 0, 0, 0, 0, today.Location())
		if d.Month() != month || d.Day() != day {
			continue
		}
		if !d.Before(today) {
			return d, true
		}
	}
	return time.Time{}, false
}
