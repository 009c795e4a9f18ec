package core

// convert.go turns loosely typed cell values into the strings the parse step
// works with.
//
// Connectors hand over whatever the source produced: formatted strings from
// Google Sheets, raw strings from xlsx and CSV, occasionally numbers. Exports
// also carry artifacts such as Excel's ="..." text prefix.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var clockRe = regexp.MustCompile(`^(\d{1,2})[:.](\d{2})(?::\d{2})?$`)

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, the ="..." text prefix and wrapping quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// CellString renders a cell value as cleaned text. Whole floats lose their
// fractional part so an id typed as 2720 does not become "2720.0".
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return CleanCell(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.UTC().Format(time.RFC3339)
	case interface{ String() string }:
		return CleanCell(x.String())
	default:
		return ""
	}
}

// IsBlank reports whether a cell carries no content.
func IsBlank(v any) bool {
	if t, ok := v.(time.Time); ok {
		return t.IsZero()
	}
	return CellString(v) == ""
}

// CollapseSpace trims s and collapses internal whitespace runs to one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeTime renders clock values as HH:MM. "9:30", "09.30", "0930" and
// "09:30:00" all become "09:30". Values that are not a valid clock time are
// returned trimmed.
func NormalizeTime(s string) string {
	s = CollapseSpace(s)
	if len(s) == 4 && isDigits(s) {
		s = s[:2] + ":" + s[2:]
	}

	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if h > 23 || minute > 59 {
		return s
	}
	return strconv.Itoa(h/10) + strconv.Itoa(h%10) + ":" + m[2]
}

// NormalizePhone keeps digits and a leading plus sign.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	if b.String() == "+" {
		return ""
	}
	return b.String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// optional returns nil for empty strings.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
