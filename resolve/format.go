package resolve

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultDatePattern renders dates as day/month/year.
const DefaultDatePattern = "dd/MM/yyyy"

var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"JPY": "¥",
	"CHF": "CHF",
	"CAD": "CA$",
	"MAD": "MAD",
}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// Narrow no-break spaces are not representable in the core PDF fonts'
// encoding; the regular no-break space is.
var spaceNormalizer = strings.NewReplacer("\u202f", "\u00a0")

// Formatter renders numbers, amounts and dates for one locale.
// It is safe for concurrent use.
type Formatter struct {
	tag             language.Tag
	defaultCurrency currency.Unit
}

// NewFormatter returns a formatter for the given BCP 47 locale and default
// ISO 4217 currency. Unknown values fall back to French and EUR.
func NewFormatter(locale, defaultCurrency string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.French
	}
	unit, err := currency.ParseISO(defaultCurrency)
	if err != nil {
		unit = currency.EUR
	}
	return &Formatter{tag: tag, defaultCurrency: unit}
}

// Locale returns the formatter's language tag.
func (f *Formatter) Locale() language.Tag {
	return f.tag
}

// Number formats v with locale grouping and a fixed number of decimals.
// ok is false when v is not numeric; the raw value is returned then.
func (f *Formatter) Number(v any, decimals int) (string, bool) {
	n, ok := toFloat(v)
	if !ok {
		return rawString(v), false
	}
	if decimals < 0 {
		decimals = 0
	}
	p := message.NewPrinter(f.tag)
	return spaceNormalizer.Replace(p.Sprintf("%v", number.Decimal(n, number.Scale(decimals)))), true
}

// Currency formats v as an amount with two decimals and the currency symbol
// of code, or of the default currency when code is empty or unknown.
func (f *Formatter) Currency(v any, code string) (string, bool) {
	amount, ok := f.Number(v, 2)
	if !ok {
		return amount, false
	}

	unit := f.defaultCurrency
	if code != "" {
		if u, err := currency.ParseISO(strings.ToUpper(code)); err == nil {
			unit = u
		}
	}
	symbol, known := currencySymbols[unit.String()]
	if !known {
		symbol = unit.String()
	}

	if base, _ := f.tag.Base(); base.String() == "en" {
		if isLetters(symbol) {
			return symbol + "\u00a0" + amount, true
		}
		return symbol + amount, true
	}
	return amount + "\u00a0" + symbol, true
}

// Date parses v as a date and renders it with pattern. Supported tokens are
// yyyy, yy, MMMM, MM, dd, HH and mm. When v cannot be parsed the raw string is
// returned unchanged and ok is false.
func (f *Formatter) Date(v any, pattern string) (string, bool) {
	t, ok := toTime(v)
	if !ok {
		return rawString(v), false
	}
	if pattern == "" {
		pattern = DefaultDatePattern
	}

	return f.formatDate(t, pattern), true
}

// dateTokens are matched longest first; everything else in a pattern is
// copied literally.
var dateTokens = []string{"yyyy", "MMMM", "yy", "MM", "dd", "HH", "mm"}

func (f *Formatter) formatDate(t time.Time, pattern string) string {
	var sb strings.Builder
	for i := 0; i < len(pattern); {
		tok := ""
		for _, cand := range dateTokens {
			if strings.HasPrefix(pattern[i:], cand) {
				tok = cand
				break
			}
		}
		switch tok {
		case "yyyy":
			fmt.Fprintf(&sb, "%04d", t.Year())
		case "yy":
			fmt.Fprintf(&sb, "%02d", t.Year()%100)
		case "MMMM":
			sb.WriteString(f.monthName(t.Month()))
		case "MM":
			fmt.Fprintf(&sb, "%02d", int(t.Month()))
		case "dd":
			fmt.Fprintf(&sb, "%02d", t.Day())
		case "HH":
			fmt.Fprintf(&sb, "%02d", t.Hour())
		case "mm":
			fmt.Fprintf(&sb, "%02d", t.Minute())
		default:
			sb.WriteByte(pattern[i])
			i++
			continue
		}
		i += len(tok)
	}
	return sb.String()
}

func (f *Formatter) monthName(m time.Month) string {
	if base, _ := f.tag.Base(); base.String() == "fr" {
		return frenchMonths[m-1]
	}
	return m.String()
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

func rawString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

// toFloat accepts Go numeric types, json.Number and numeric strings written
// either as "1234.5" or in French style as "1 234,50".
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		return parseNumeric(x)
	}
	return 0, false
}

func parseNumeric(s string) (float64, bool) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\u00a0' || r == '\u202f' || r == '\'' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, !x.IsZero()
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case int, int64, float64, json.Number:
		secs, ok := toFloat(x)
		if !ok {
			return time.Time{}, false
		}
		return time.Unix(int64(secs), 0).UTC(), true
	}
	return time.Time{}, false
}

// Float converts v to a float64 the way currency and number fields do:
// numeric types, json.Number, and numeric strings in French or English style.
func Float(v any) (float64, bool) {
	return toFloat(v)
}
