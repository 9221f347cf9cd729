package marc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// trimSet mirrors the characters stripped from both ends of every value.
const trimSet = " \t\n\r\x00\x0b"

// isoDate matches values that look like an ISO date, optionally followed by
// a time of day. Only the prefix is anchored.
var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}( \d{2}:\d{2}:\d{2})?`)

// ParseAnomaly reports text that looked like a date but did not parse.
// FormatValue still returns a usable value alongside it.
type ParseAnomaly struct {
	Value string
	Err   error
}

func (e *ParseAnomaly) Error() string {
	return fmt.Sprintf("invalid date %q: %v", e.Value, e.Err)
}

func (e *ParseAnomaly) Unwrap() error { return e.Err }

// CleanText replaces non-breaking spaces and trims surrounding whitespace
// and control characters.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Trim(s, trimSet)
}

// Normalize folds a value for key comparison: cleaned, NFKC, lowercased,
// with internal whitespace runs collapsed. Never used for output.
func Normalize(s string) string {
	s = norm.NFKC.String(CleanText(s))
	s = cases.Lower(language.Und).String(s)
	return strings.Join(strings.Fields(s), " ")
}

// FormatValue renders a raw cell value as output text. Dates become
// YYYY-MM-DD; nil, blank and the literal "none" become empty. A non-nil
// *ParseAnomaly is returned together with the trimmed original text when a
// date-like string fails to parse.
func FormatValue(v any) (string, error) {
	var s string
	switch val := v.(type) {
	case nil:
		return "", nil
	case time.Time:
		return val.Format(time.DateOnly), nil
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}

	s = CleanText(s)
	if s == "" || strings.EqualFold(s, "none") {
		return "", nil
	}
	if !isoDate.MatchString(s) {
		return s, nil
	}

	layout := time.DateOnly
	if strings.Contains(s, " ") {
		layout = time.DateTime
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return s, &ParseAnomaly{Value: s, Err: err}
	}
	return t.Format(time.DateOnly), nil
}

// IsRowEmpty reports whether every cell of a row formats to empty text.
func IsRowEmpty(row []any) bool {
	for _, cell := range row {
		if s, _ := FormatValue(cell); s != "" {
			return false
		}
	}
	return true
}

// splitTokens splits a cell on Delimiter and cleans each token. Empty
// tokens are kept so callers can align positions.
func splitTokens(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, Delimiter)
	for i, p := range parts {
		parts[i] = CleanText(p)
	}
	return parts
}
