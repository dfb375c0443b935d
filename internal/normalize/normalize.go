// Package normalize converts Italian-formatted statement values into canonical
// forms. Parsing never fails outright: callers get an explicit result that says
// whether the value was read or defaulted.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Placeholder replaces empty descriptions.
const Placeholder = "Transaction"

// now is swapped in tests.
var now = time.Now

// AmountResult is a parsed amount and whether it fell back to zero.
type AmountResult struct {
	Value     decimal.Decimal
	Defaulted bool
}

// DateResult is a parsed date and whether it fell back to today.
type DateResult struct {
	Time      time.Time
	Defaulted bool
}

var amountJunk = regexp.MustCompile(`[^\d,.\-]`)

// ParseAmount reads an Italian amount ("1.234,56", "4,99", "-15,24 €").
// The result is always non-negative; direction is decided elsewhere.
func ParseAmount(text string) AmountResult {
	s := amountJunk.ReplaceAllString(text, "")
	s = strings.ReplaceAll(s, "-", "")

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")
	switch {
	case hasDot && hasComma:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case hasComma:
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		// "1.234.567" only makes sense as grouped thousands
		s = strings.ReplaceAll(s, ".", "")
	}

	if s == "" {
		return AmountResult{Value: decimal.Zero, Defaulted: true}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return AmountResult{Value: decimal.Zero, Defaulted: true}
	}
	return AmountResult{Value: d.Abs()}
}

// Amount is ParseAmount with the zero fallback applied.
func Amount(text string) decimal.Decimal {
	return ParseAmount(text).Value
}

var negativeAmount = regexp.MustCompile(`^\s*-|-\s*(?:€|eur)?\s*$|\(\s*[\d.,]+\s*\)`)

// SignedAmount keeps the sign of text ("-120,00", "120,00-", "(120,00)").
// It is for balances; transaction amounts go through Amount.
func SignedAmount(text string) decimal.Decimal {
	v := Amount(text)
	if negativeAmount.MatchString(strings.ToLower(text)) {
		return v.Neg()
	}
	return v
}

var (
	isoDatePattern   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	dmyDatePattern    = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})\b`)
	serialDatePattern = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

	spreadsheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
)

// maxSerial is 9999-12-31 in spreadsheet serial days.
const maxSerial = 2958465

// ParseDate reads DD/MM/YYYY, DD/MM/YY, DD-MM-YYYY, DD.MM.YYYY, ISO dates and
// spreadsheet serial numbers. Two-digit years above 50 belong to the 1900s.
func ParseDate(text string) (time.Time, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, false
	}

	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return calendarDate(y, mo, d)
	}

	if m := dmyDatePattern.FindStringSubmatch(s); m != nil {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			if y > 50 {
				y += 1900
			} else {
				y += 2000
			}
		}
		return calendarDate(y, mo, d)
	}

	if serialDatePattern.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 1 || f > maxSerial {
			return time.Time{}, false
		}
		return spreadsheetEpoch.AddDate(0, 0, int(f)), true
	}

	return time.Time{}, false
}

func calendarDate(y, m, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31/02 into March; reject that
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

// ResolveDate parses text, falling back to the calendar day of ref.
func ResolveDate(text string, ref time.Time) DateResult {
	if t, ok := ParseDate(text); ok {
		return DateResult{Time: t}
	}
	y, m, d := ref.Date()
	return DateResult{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Defaulted: true}
}

// Date returns the ISO form of text, or today's date when it cannot be read.
func Date(text string) string {
	return ResolveDate(text, now()).Time.Format("2006-01-02")
}

// CleanDescription collapses whitespace runs and trims.
func CleanDescription(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if s == "" {
		return Placeholder
	}
	return s
}

// ForMatching lowercases, strips diacritics and collapses whitespace.
// The result is only used for comparisons, never stored.
func ForMatching(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, text)
	if err != nil {
		s = text
	}
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
