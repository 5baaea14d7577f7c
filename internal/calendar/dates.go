package calendar

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The resolver handles the expressions clients actually text us: relative
// words, weekday names, "June 15" style, and numeric m/d. Anything fancier
// is out of scope; an unresolved date just means no calendar lookup.

var (
	monthDayPattern = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+(\d{1,2})(st|nd|rd|th)?\b`)
	numericPattern  = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})(?:[/-](\d{2,4}))?\b`)
	weekdayPattern  = regexp.MustCompile(`(?i)\b(next\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var weekdaysByName = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	"sunday": time.Sunday,
}

// ResolveDate finds the most specific date expression in text and resolves
// it to a calendar day relative to now. Explicit dates win over relative
// words. Dates without a year roll forward: if the day already passed this
// year, it means next year.
func ResolveDate(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if m := monthDayPattern.FindStringSubmatch(text); m != nil {
		month, ok := monthsByPrefix[strings.ToLower(m[1])[:3]]
		if ok {
			day, err := strconv.Atoi(m[2])
			if err == nil && day >= 1 && day <= 31 {
				resolved := time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location())
				if resolved.Before(today) {
					resolved = resolved.AddDate(1, 0, 0)
				}
				return resolved, true
			}
		}
	}

	if m := numericPattern.FindStringSubmatch(text); m != nil {
		month, errM := strconv.Atoi(m[1])
		day, errD := strconv.Atoi(m[2])
		if errM == nil && errD == nil && month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			year := now.Year()
			explicitYear := false
			if m[3] != "" {
				y, err := strconv.Atoi(m[3])
				if err == nil {
					if y < 100 {
						y += 2000
					}
					year = y
					explicitYear = true
				}
			}
			resolved := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
			if !explicitYear && resolved.Before(today) {
				resolved = resolved.AddDate(1, 0, 0)
			}
			return resolved, true
		}
	}

	if strings.Contains(lower, "today") || strings.Contains(lower, "tonight") {
		return today, true
	}
	if strings.Contains(lower, "tomorrow") {
		return today.AddDate(0, 0, 1), true
	}

	if m := weekdayPattern.FindStringSubmatch(lower); m != nil {
		target := weekdaysByName[m[2]]
		ahead := (int(target) - int(today.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		if m[1] != "" && ahead < 7 {
			// "next friday" said on a Wednesday means the week after.
			ahead += 7
		}
		return today.AddDate(0, 0, ahead), true
	}

	return time.Time{}, false
}

// MentionsDate reports whether the text contains any recognizable date
// expression. Used to prune template questions the sender already answered.
func MentionsDate(text string) bool {
	_, ok := ResolveDate(text, time.Now())
	return ok
}
