package core

// dates.go turns the date encodings found in service sheets into calendar dates.
//
// Sheets mix hand-typed Turkish-style dates (03.02.2026, 3.2.26), ISO dates
// with or without a time suffix, raw spreadsheet serial numbers and native
// timestamps from typed connectors. ParseDate accepts all of them and never
// produces an impossible date: every candidate is rebuilt with time.Date and
// rejected unless the year, month and day survive unchanged.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// InvalidDateDisplay is what FormatLocalDisplay renders for values that do not parse.
const InvalidDateDisplay = "Geçersiz Tarih"

// Serial numbers outside this window are treated as plain numbers, not dates.
const (
	minSerialDay = 20000
	maxSerialDay = 100000
)

var (
	dottedDateRe   = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4}|\d{2})(?:\s.*)?$`)
	isoPrefixRe    = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[T\s].*)?$`)
	serialNumberRe = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

	serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

	// fallbackLayouts are tried last, against the raw string.
	fallbackLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		time.RFC1123Z,
		time.RFC1123,
		"2006/01/02",
		"02/01/2006",
		"2/1/2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"2 January 2006",
		"20060102",
	}
)

// CalendarDate is a real Gregorian date without a time component.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewCalendarDate validates a year/month/day triple. It returns false for
// impossible dates such as 30 February.
func NewCalendarDate(year, month, day int) (CalendarDate, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return CalendarDate{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return CalendarDate{}, false
	}
	return CalendarDate{Year: year, Month: time.Month(month), Day: day}, true
}

func dateOf(t time.Time) CalendarDate {
	t = t.UTC()
	return CalendarDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// String renders the date as YYYY-MM-DD.
func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Midnight returns 00:00:00 UTC of the date.
func (d CalendarDate) Midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Noon returns 12:00:00 UTC of the date, which renders as the same calendar
// day in every timezone between UTC-12 and UTC+11.
func (d CalendarDate) Noon() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

// MarshalText implements encoding.TextMarshaler.
func (d CalendarDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Only YYYY-MM-DD is accepted.
func (d *CalendarDate) UnmarshalText(b []byte) error {
	m := isoPrefixRe.FindStringSubmatch(string(b))
	if m == nil || len(b) != 10 {
		return fmt.Errorf("invalid calendar date %q", b)
	}
	parsed, ok := tripleFromStrings(m[1], m[2], m[3])
	if !ok {
		return fmt.Errorf("invalid calendar date %q", b)
	}
	*d = parsed
	return nil
}

// ParseDate converts an arbitrary cell value to a calendar date.
// It returns nil when the value cannot be read as a real date.
func ParseDate(value any) *CalendarDate {
	var s string

	switch v := value.(type) {
	case nil:
		return nil
	case CalendarDate:
		return &v
	case *CalendarDate:
		if v == nil {
			return nil
		}
		d := *v
		return &d
	case time.Time:
		if v.IsZero() {
			return nil
		}
		d := dateOf(v)
		return &d
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil
		}
		d := dateOf(*v)
		return &d
	case string:
		s = v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case fmt.Stringer:
		s = v.String()
	default:
		return nil
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if m := dottedDateRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			year = expandTwoDigitYear(year)
		}
		if d, ok := tripleFromStrings(strconv.Itoa(year), m[2], m[1]); ok {
			return &d
		}
	}

	if m := isoPrefixRe.FindStringSubmatch(s); m != nil {
		if d, ok := tripleFromStrings(m[1], m[2], m[3]); ok {
			return &d
		}
	}

	if serialNumberRe.MatchString(s) {
		if d, ok := fromSerial(s); ok {
			return &d
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := dateOf(t)
			return &d
		}
	}

	return nil
}

// expandTwoDigitYear maps 00-69 to 2000-2069 and 70-99 to 1970-1999.
func expandTwoDigitYear(yy int) int {
	if yy <= 69 {
		return 2000 + yy
	}
	return 1900 + yy
}

func tripleFromStrings(y, m, d string) (CalendarDate, bool) {
	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil {
		return CalendarDate{}, false
	}
	return NewCalendarDate(year, month, day)
}

func fromSerial(s string) (CalendarDate, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < minSerialDay || f > maxSerialDay {
		return CalendarDate{}, false
	}
	return dateOf(serialEpoch.AddDate(0, 0, int(math.Floor(f)))), true
}

// ToUTCNoonDate parses value and anchors it at 12:00 UTC.
func ToUTCNoonDate(value any) (time.Time, bool) {
	d := ParseDate(value)
	if d == nil {
		return time.Time{}, false
	}
	return d.Noon(), true
}

// ToISODateOnly returns the YYYY-MM-DD form of value, or false when it does not parse.
func ToISODateOnly(value any) (string, bool) {
	d := ParseDate(value)
	if d == nil {
		return "", false
	}
	return d.String(), true
}

// FormatLocalDisplay renders value as DD.MM.YYYY, or InvalidDateDisplay.
func FormatLocalDisplay(value any) string {
	d := ParseDate(value)
	if d == nil {
		return InvalidDateDisplay
	}
	return fmt.Sprintf("%02d.%02d.%04d", d.Day, int(d.Month), d.Year)
}

// DayRange is an inclusive UTC interval covering one calendar day.
type DayRange struct {
	Start time.Time
	End   time.Time
}

// DayRangeUTC returns 00:00:00.000 through 23:59:59.999 UTC for a YYYY-MM-DD string.
func DayRangeUTC(dateOnly string) (DayRange, error) {
	var d CalendarDate
	if err := d.UnmarshalText([]byte(strings.TrimSpace(dateOnly))); err != nil {
		return DayRange{}, err
	}
	start := d.Midnight()
	return DayRange{
		Start: start,
		End:   start.Add(24*time.Hour - time.Millisecond),
	}, nil
}
