package booking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CalendarDate is a resolved year/month/day without a clock component.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// NewCalendarDate validates the triple, rejecting values like 2/30.
func NewCalendarDate(year int, month time.Month, day int) (CalendarDate, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return CalendarDate{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month || t.Day() != day {
		return CalendarDate{}, false
	}
	return CalendarDate{Year: year, Month: month, Day: day}, true
}

func (d CalendarDate) IsZero() bool { return d == CalendarDate{} }

// In returns midnight of the date in loc.
func (d CalendarDate) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At combines the date with a clock time in loc.
func (d CalendarDate) At(c ClockTime, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

func (d CalendarDate) Weekday() time.Weekday { return d.In(time.UTC).Weekday() }

func (d CalendarDate) Before(other CalendarDate) bool {
	return d.In(time.UTC).Before(other.In(time.UTC))
}

func (d CalendarDate) AddDays(n int) CalendarDate {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// Display renders the date the way replies echo it back ("Friday, October 23").
func (d CalendarDate) Display() string {
	return d.In(time.UTC).Format("Monday, January 2")
}

func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d CalendarDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *CalendarDate) UnmarshalText(text []byte) error {
	t, err := time.Parse("2006-01-02", string(text))
	if err != nil {
		return fmt.Errorf("booking: invalid date %q", string(text))
	}
	*d = DateOf(t)
	return nil
}

// ClockTime is a 24-hour wall clock time.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) valid() bool {
	return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
}

func (c ClockTime) minutes() int { return c.Hour*60 + c.Minute }

// Display renders the time for replies ("7:30 PM").
func (c ClockTime) Display() string {
	return time.Date(2000, 1, 1, c.Hour, c.Minute, 0, 0, time.UTC).Format("3:04 PM")
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(text []byte) error {
	t, err := time.Parse("15:04", string(text))
	if err != nil {
		return fmt.Errorf("booking: invalid time %q", string(text))
	}
	*c = ClockTime{Hour: t.Hour(), Minute: t.Minute()}
	return nil
}

// Window is an inclusive opening interval within one day.
type Window struct {
	Open  ClockTime
	Close ClockTime
}

func (w Window) Contains(c ClockTime) bool {
	return c.minutes() >= w.Open.minutes() && c.minutes() <= w.Close.minutes()
}

func (w Window) String() string {
	return w.Open.Display() + " to " + w.Close.Display()
}

// OpeningHours is indexed by time.Weekday.
type OpeningHours [7]Window

// DefaultOpeningHours is 11:30-22:00 on weekdays and 11:00-23:00 on weekends.
func DefaultOpeningHours() OpeningHours {
	weekday := Window{Open: ClockTime{11, 30}, Close: ClockTime{22, 0}}
	weekend := Window{Open: ClockTime{11, 0}, Close: ClockTime{23, 0}}
	var h OpeningHours
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d == time.Saturday || d == time.Sunday {
			h[d] = weekend
		} else {
			h[d] = weekday
		}
	}
	return h
}

func (h OpeningHours) Allows(day time.Weekday, c ClockTime) bool {
	return h[day].Contains(c)
}

// Normalizer resolves free-text dates and times against the restaurant's
// clock, location and opening hours.
type Normalizer struct {
	Hours    OpeningHours
	Location *time.Location
	Now      func() time.Time
}

// NewNormalizer returns a normalizer with default hours; nil loc means UTC.
func NewNormalizer(loc *time.Location) Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return Normalizer{Hours: DefaultOpeningHours(), Location: loc, Now: time.Now}
}

func (n Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.UTC
	}
	return n.Location
}

func (n Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now().In(n.location())
	}
	return n.Now().In(n.location())
}

// Current is the restaurant's wall clock.
func (n Normalizer) Current() time.Time { return n.now() }

// Today is the current date at the restaurant.
func (n Normalizer) Today() CalendarDate { return DateOf(n.now()) }

// ParseDate finds a date in text. A date with no year that already passed
// this year moves to next year; an explicit year in the past is rejected.
func (n Normalizer) ParseDate(text string) (CalendarDate, bool) {
	return parseCalendarDate(text, n.Today())
}

// ParseTime finds a clock time in text and checks it against the opening
// hours of ref, or of today when ref is nil.
func (n Normalizer) ParseTime(text string, ref *CalendarDate) (ClockTime, bool) {
	c, ok := ParseClock(text)
	if !ok {
		return ClockTime{}, false
	}
	day := n.Today()
	if ref != nil && !ref.IsZero() {
		day = *ref
	}
	if !n.Hours.Allows(day.Weekday(), c) {
		return ClockTime{}, false
	}
	return c, true
}

// Compose combines a date and time into an instant in the future. A past
// instant on today's date moves to tomorrow; any other past instant moves a
// year ahead. ok is false when the shifted day no longer opens at c or does
// not exist (February 29 into a common year).
func (n Normalizer) Compose(d CalendarDate, c ClockTime) (CalendarDate, time.Time, bool) {
	loc := n.location()
	now := n.now()
	at := d.At(c, loc)
	if at.Before(now) {
		if d == DateOf(now) {
			d = d.AddDays(1)
		} else {
			next, ok := NewCalendarDate(d.Year+1, d.Month, d.Day)
			if !ok {
				return d, at, false
			}
			d = next
		}
		at = d.At(c, loc)
	}
	if !n.Hours.Allows(d.Weekday(), c) {
		return d, at, false
	}
	return d, at, true
}

var monthTable = [12]struct {
	name string
	abbr string
}{
	{"january", "jan"}, {"february", "feb"}, {"march", "mar"}, {"april", "apr"},
	{"may", "may"}, {"june", "jun"}, {"july", "jul"}, {"august", "aug"},
	{"september", "sep"}, {"october", "oct"}, {"november", "nov"}, {"december", "dec"},
}

var (
	monthByName = buildMonthIndex()
	monthAlt    = buildMonthAlternation()

	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`)
	monthDayRe  = regexp.MustCompile(`(?i)\b(` + monthAlt + `)\b\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`)
	dayMonthRe  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthAlt + `)\b\.?(?:,?\s+(\d{4})\b)?`)

	meridiemRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?:[:.]([0-5]\d))?\s*([ap])\.?\s?m\b\.?`)
	oclockRe   = regexp.MustCompile(`(?i)\b(\d{1,2})\s*o['’]?\s?clock\b`)
	clock24Re  = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	bareHourRe = regexp.MustCompile(`\b(\d{1,2})\b`)
)

func buildMonthIndex() map[string]time.Month {
	idx := make(map[string]time.Month, 25)
	for i, m := range monthTable {
		idx[m.name] = time.Month(i + 1)
		idx[m.abbr] = time.Month(i + 1)
	}
	idx["sept"] = time.September
	return idx
}

// buildMonthAlternation lists full names before abbreviations so the regexp
// prefers "march" over "mar".
func buildMonthAlternation() string {
	parts := make([]string, 0, 25)
	for _, m := range monthTable {
		parts = append(parts, m.name)
	}
	parts = append(parts, "sept")
	for _, m := range monthTable {
		if m.abbr != m.name {
			parts = append(parts, m.abbr)
		}
	}
	return strings.Join(parts, "|")
}

// dateForms are tried in order by parseCalendarDate and stripDate.
var dateForms = []*regexp.Regexp{slashDateRe, monthDayRe, dayMonthRe}

// stripDate removes the first recognised date so the digits of "October 20"
// are not read back as a bare hour.
func stripDate(text string) string {
	for _, re := range dateForms {
		if loc := re.FindStringIndex(text); loc != nil {
			return text[:loc[0]] + " " + text[loc[1]:]
		}
	}
	return text
}

func parseCalendarDate(text string, today CalendarDate) (CalendarDate, bool) {
	if m := slashDateRe.FindStringSubmatch(text); m != nil {
		first, _ := strconv.Atoi(m[1])
		second, _ := strconv.Atoi(m[2])
		month, day := first, second
		switch {
		case first > 12:
			month, day = second, first
		case second > 12:
			month, day = first, second
		}
		return resolveDate(month, day, m[3], today)
	}
	if m := monthDayRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[2])
		return resolveDate(int(monthByName[strings.ToLower(m[1])]), day, m[3], today)
	}
	if m := dayMonthRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		return resolveDate(int(monthByName[strings.ToLower(m[2])]), day, m[3], today)
	}
	return CalendarDate{}, false
}

func resolveDate(month, day int, rawYear string, today CalendarDate) (CalendarDate, bool) {
	year := today.Year
	explicit := rawYear != ""
	if explicit {
		y, err := strconv.Atoi(rawYear)
		if err != nil {
			return CalendarDate{}, false
		}
		if len(rawYear) == 2 {
			y += 2000
		}
		year = y
	}
	d, ok := NewCalendarDate(year, time.Month(month), day)
	if !ok {
		return CalendarDate{}, false
	}
	if d.Before(today) {
		if explicit {
			return CalendarDate{}, false
		}
		return NewCalendarDate(year+1, time.Month(month), day)
	}
	return d, true
}

// ParseClock extracts a clock time without checking opening hours. Forms,
// in order: "7pm"/"7:30 p.m.", "7 o'clock", 24-hour "19:30", a bare hour.
// Bare hours 1-11 and o'clock hours 5-11 are read as evening.
func ParseClock(text string) (ClockTime, bool) {
	for _, m := range meridiemRe.FindAllStringSubmatch(text, -1) {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 {
			continue
		}
		pm := strings.EqualFold(m[3], "p")
		switch {
		case pm && hour != 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}
		return ClockTime{Hour: hour, Minute: minute}, true
	}
	if m := oclockRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour < 1 || hour > 12 {
			return ClockTime{}, false
		}
		if hour >= 5 && hour <= 11 {
			hour += 12
		}
		return ClockTime{Hour: hour}, true
	}
	if m := clock24Re.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return ClockTime{Hour: hour, Minute: minute}, true
	}
	if m := bareHourRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		switch {
		case hour >= 1 && hour <= 11:
			return ClockTime{Hour: hour + 12}, true
		case hour >= 12 && hour <= 23:
			return ClockTime{Hour: hour}, true
		}
	}
	return ClockTime{}, false
}
