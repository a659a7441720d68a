package llm

import (
	"regexp"
	"strings"
	"time"
)

// DateLayout is the wire format for every date the pipeline produces.
const DateLayout = "2006-01-02"

// DateAnchors are the concrete dates relative phrases resolve to.
type DateAnchors struct {
	Today     time.Time
	Tomorrow  time.Time
	NextWeek  time.Time
	NextMonth time.Time
	EndOfWeek time.Time
}

// AnchorsFor computes the anchors for the calendar day of now.
func AnchorsFor(now time.Time) DateAnchors {
	today := truncateDay(now)
	return DateAnchors{
		Today:     today,
		Tomorrow:  today.AddDate(0, 0, 1),
		NextWeek:  today.AddDate(0, 0, 7),
		NextMonth: addMonthClamped(today, 1),
		EndOfWeek: today.AddDate(0, 0, (int(time.Friday)-int(today.Weekday())+7)%7),
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// addMonthClamped moves t by months calendar months, clamping the day to the
// end of the target month (Jan 31 + 1 month is Feb 28 or 29).
func addMonthClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	return time.Date(first.Year(), first.Month(), min(d, last), 0, 0, 0, 0, t.Location())
}

// NextWeekday returns the first day strictly after today that falls on wd.
func NextWeekday(today time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(today.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return truncateDay(today).AddDate(0, 0, days)
}

var relativePhrases = []struct {
	pattern *regexp.Regexp
	resolve func(DateAnchors) time.Time
}{
	{regexp.MustCompile(`\bend of (?:the |this )?week\b`), func(a DateAnchors) time.Time { return a.EndOfWeek }},
	{regexp.MustCompile(`\bnext month\b`), func(a DateAnchors) time.Time { return a.NextMonth }},
	{regexp.MustCompile(`\bnext week\b`), func(a DateAnchors) time.Time { return a.NextWeek }},
	{regexp.MustCompile(`\btomorrow\b`), func(a DateAnchors) time.Time { return a.Tomorrow }},
	{regexp.MustCompile(`\b(?:today|tonight)\b`), func(a DateAnchors) time.Time { return a.Today }},
}

var weekdayPattern = regexp.MustCompile(`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ResolveRelativeDate finds the relative date phrases in text and resolves
// them against today. It reports false when there is no phrase or when the
// phrases disagree, in which case the model decides.
func ResolveRelativeDate(text string, today time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)
	anchors := AnchorsFor(today)

	var found []time.Time
	for _, p := range relativePhrases {
		if p.pattern.MatchString(lower) {
			found = append(found, p.resolve(anchors))
		}
	}
	for _, m := range weekdayPattern.FindAllString(lower, -1) {
		found = append(found, NextWeekday(anchors.Today, weekdays[m]))
	}

	if len(found) == 0 {
		return time.Time{}, false
	}
	for _, d := range found[1:] {
		if !d.Equal(found[0]) {
			return time.Time{}, false
		}
	}
	return found[0], true
}

var isoDate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// NormalizeDate pulls a YYYY-MM-DD date out of model output.
func NormalizeDate(raw string) (string, bool) {
	m := isoDate.FindString(raw)
	if m == "" {
		return "", false
	}
	if _, err := time.Parse(DateLayout, m); err != nil {
		return "", false
	}
	return m, true
}
