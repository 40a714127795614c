package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Match is a detected date/time span: the resolved instant plus any
// duration attached to it (0 when the text names no duration or range).
type Match struct {
	Time     time.Time
	Duration time.Duration
}

// Detector scans free text for the first recognizable date/time
// expression. The reference clock and location are injected so relative
// expressions ("tomorrow", bare weekdays) resolve deterministically.
type Detector struct {
	loc *time.Location
	now func() time.Time
}

// NewDetector builds a detector. A nil loc means the local timezone and
// a nil now means time.Now.
func NewDetector(loc *time.Location, now func() time.Time) *Detector {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Detector{loc: loc, now: now}
}

var (
	reInstant = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(?::\d{2})?(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?\b`)

	reISODate   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	reSlashDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	reMonthDay  = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	reWeekday   = regexp.MustCompile(`(?i)\b(?:next\s+)?(Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday)\b`)
	reRelDay    = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow)\b`)

	reClock  = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?`)
	reHourAP = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm|a\.m\.|p\.m\.)\b`)

	reClockRange = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(am|pm)?\s*(?:-|–|to|until)\s*(\d{1,2}):(\d{2})\s*(am|pm)?\b`)
	reDuration   = regexp.MustCompile(`(?i)\bfor\s+(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?|m)\b`)

	monthIndex = map[string]time.Month{
		"january": time.January, "february": time.February, "march": time.March,
		"april": time.April, "may": time.May, "june": time.June,
		"july": time.July, "august": time.August, "september": time.September,
		"october": time.October, "november": time.November, "december": time.December,
	}
	weekdayIndex = map[string]time.Weekday{
		"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
		"thursday": time.Thursday, "friday": time.Friday,
		"saturday": time.Saturday, "sunday": time.Sunday,
	}
)

// Detect returns the first date/time span found in text. Only the first
// match is used; later mentions are not disambiguated.
func (d *Detector) Detect(text string) (Match, bool) {
	if strings.TrimSpace(text) == "" {
		return Match{}, false
	}

	// A full instant embedded in the text wins outright.
	if s := reInstant.FindString(text); s != "" {
		norm := NewNormalizer(d.loc)
		if t, ok := norm.Normalize(s); ok {
			return Match{Time: t.In(d.loc), Duration: d.duration(text, t)}, true
		}
	}

	day, hasDay := d.firstDay(text)
	tod, hasTime := d.firstClock(text)

	switch {
	case hasDay && hasTime:
		// combine detected day with detected time-of-day
	case hasDay:
		// date mention without a time resolves to noon
		tod = clock{hour: 12}
	case hasTime:
		day = DayOf(d.now().In(d.loc), d.loc)
	default:
		return Match{}, false
	}

	t := time.Date(day.Year(), day.Month(), day.Day(), tod.hour, tod.min, tod.sec, 0, d.loc)
	return Match{Time: t, Duration: d.duration(text, t)}, true
}

type dayMatch struct {
	pos int
	day time.Time
}

// firstDay finds the earliest calendar-day expression in the text.
func (d *Detector) firstDay(text string) (time.Time, bool) {
	best := dayMatch{pos: -1}
	consider := func(pos int, day time.Time, ok bool) {
		if !ok || pos < 0 {
			return
		}
		if best.pos < 0 || pos < best.pos {
			best = dayMatch{pos: pos, day: day}
		}
	}

	if m := reISODate.FindStringSubmatchIndex(text); m != nil {
		day, ok := d.numericDay(text[m[2]:m[3]], text[m[4]:m[5]], text[m[6]:m[7]])
		consider(m[0], day, ok)
	}
	if m := reSlashDate.FindStringSubmatchIndex(text); m != nil {
		// month/day/year
		day, ok := d.numericDay(text[m[6]:m[7]], text[m[2]:m[3]], text[m[4]:m[5]])
		consider(m[0], day, ok)
	}
	if m := reMonthDay.FindStringSubmatchIndex(text); m != nil {
		month := monthIndex[strings.ToLower(text[m[2]:m[3]])]
		mday, _ := strconv.Atoi(text[m[4]:m[5]])
		year := d.now().In(d.loc).Year()
		if m[6] >= 0 {
			year, _ = strconv.Atoi(text[m[6]:m[7]])
		}
		day := time.Date(year, month, mday, 0, 0, 0, 0, d.loc)
		consider(m[0], day, mday >= 1 && mday <= 31)
	}
	if m := reWeekday.FindStringSubmatchIndex(text); m != nil {
		target := weekdayIndex[strings.ToLower(text[m[2]:m[3]])]
		today := DayOf(d.now().In(d.loc), d.loc)
		ahead := (int(target) - int(today.Weekday()) + 7) % 7
		consider(m[0], today.AddDate(0, 0, ahead), true)
	}
	if m := reRelDay.FindStringSubmatchIndex(text); m != nil {
		today := DayOf(d.now().In(d.loc), d.loc)
		if strings.EqualFold(text[m[2]:m[3]], "tomorrow") {
			today = today.AddDate(0, 0, 1)
		}
		consider(m[0], today, true)
	}

	if best.pos < 0 {
		return time.Time{}, false
	}
	return best.day, true
}

// numericDay builds a calendar day from numeric components, rejecting
// out-of-range months and days.
func (d *Detector) numericDay(y, m, dd string) (time.Time, bool) {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(dd)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, d.loc), true
}

type clock struct {
	hour, min, sec int
}

// firstClock finds the earliest time-of-day expression in the text.
func (d *Detector) firstClock(text string) (clock, bool) {
	cPos, hPos := -1, -1
	var cm, hm []int
	if m := reClock.FindStringSubmatchIndex(text); m != nil {
		cPos, cm = m[0], m
	}
	if m := reHourAP.FindStringSubmatchIndex(text); m != nil {
		hPos, hm = m[0], m
	}

	switch {
	case cPos >= 0 && (hPos < 0 || cPos <= hPos):
		hour, _ := strconv.Atoi(text[cm[2]:cm[3]])
		min, _ := strconv.Atoi(text[cm[4]:cm[5]])
		sec := 0
		if cm[6] >= 0 {
			sec, _ = strconv.Atoi(text[cm[6]:cm[7]])
		}
		ap := ""
		if cm[8] >= 0 {
			ap = text[cm[8]:cm[9]]
		}
		hour, ok := applyMeridiem(hour, ap)
		if !ok || min > 59 || sec > 59 {
			return clock{}, false
		}
		return clock{hour: hour, min: min, sec: sec}, true
	case hPos >= 0:
		hour, _ := strconv.Atoi(text[hm[2]:hm[3]])
		hour, ok := applyMeridiem(hour, text[hm[4]:hm[5]])
		if !ok {
			return clock{}, false
		}
		return clock{hour: hour}, true
	}
	return clock{}, false
}

// applyMeridiem folds an am/pm marker into a 24h hour value.
func applyMeridiem(hour int, ap string) (int, bool) {
	switch strings.ToLower(strings.ReplaceAll(ap, ".", "")) {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return 0, false
		}
	}
	return hour, true
}

// duration extracts a duration attached to the match: either an explicit
// "for N hours/minutes" phrase or a clock range whose start equals the
// detected instant's time-of-day.
func (d *Detector) duration(text string, start time.Time) time.Duration {
	if m := reDuration.FindStringSubmatch(text); m != nil {
		amount, err := strconv.ParseFloat(m[1], 64)
		if err == nil && amount > 0 {
			unit := time.Minute
			if strings.HasPrefix(strings.ToLower(m[2]), "h") {
				unit = time.Hour
			}
			return time.Duration(amount * float64(unit))
		}
	}

	if m := reClockRange.FindStringSubmatch(text); m != nil {
		from, ok1 := rangeClock(m[1], m[2], m[3])
		to, ok2 := rangeClock(m[4], m[5], m[6])
		if ok1 && ok2 {
			// an unmarked end hour inherits pm from a pm start
			if m[6] == "" && strings.EqualFold(m[3], "pm") && to.hour < from.hour {
				to.hour += 12
			}
			if from.hour == start.Hour() && from.min == start.Minute() {
				fromD := time.Duration(from.hour)*time.Hour + time.Duration(from.min)*time.Minute
				toD := time.Duration(to.hour)*time.Hour + time.Duration(to.min)*time.Minute
				if toD > fromD {
					return toD - fromD
				}
			}
		}
	}
	return 0
}

func rangeClock(h, m, ap string) (clock, bool) {
	hour, _ := strconv.Atoi(h)
	min, _ := strconv.Atoi(m)
	hour, ok := applyMeridiem(hour, ap)
	if !ok || min > 59 {
		return clock{}, false
	}
	return clock{hour: hour, min: min}, true
}
