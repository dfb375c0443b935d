package parser

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/pfinance/internal/classifier"
)

// Tokens shared by the Italian line parsers.
const (
	// DD/MM/YYYY, DD/MM/YY, DD-MM-YYYY or DD.MM.YYYY
	dateExpr = `\d{2}[/.\-]\d{2}[/.\-](?:\d{4}|\d{2})`
	// 1.234,56 or 15,24, optionally signed
	amountExpr = `[-+]?\d[\d.]*,\d{2}`
)

var (
	datePattern   = regexp.MustCompile(`\b` + dateExpr + `\b`)
	amountPattern = regexp.MustCompile(`(?:^|\s)(` + amountExpr + `)(?:\s*(?:€|EUR))?(?:\s|$)`)

	// IT + 2 check digits + 23 BBAN characters, with optional spacing.
	ibanPattern = regexp.MustCompile(`(?i)\bIT\d{2}(?:\s?[A-Z0-9]){23}\b`)

	accountNumberPattern = regexp.MustCompile(`(?i)\b(?:conto|c/c)(?:\s+corrente)?(?:\s+bancoposta)?\s*(?:n\.?|nr\.?|numero)\s*:?\s*(\d{6,14})\b`)

	holderPattern = regexp.MustCompile(`(?i)\b(?:intestato a|intestatario|intestatari|titolare)\s*:?\s*(.+)$`)

	statementDatePattern = regexp.MustCompile(`(?i)\bestratto conto\s+(?:al|del)\s+(` + dateExpr + `)`)
)

// Lines that are never transactions: running balances, totals, page
// furniture and repeated column headings. leadingNoise must open the line
// (after any leading dates); anywhereNoise may appear at any word boundary.
var (
	leadingNoise = regexp.MustCompile(`(?i)^(?:` +
		`saldo\s+(?:iniziale|finale|contabile|disponibile|precedente|al)\b` +
		`|totali?\b` +
		`|segue\b` +
		`|a\s+riportare\b` +
		`|riporto\b` +
		`|estratto\s+conto\b` +
		`|www\.` +
		`)`)

	anywhereNoise = regexp.MustCompile(`(?i)\bpagina\s+\d+(?:\s+di\s+\d+)?\b` +
		`|\bdata\s+contabile\b` +
		`|\bdata\s+valuta\b` +
		`|\bdescrizione\s+operazioni\b` +
		`|\bservizio\s+clienti\b` +
		`|\bnumero\s+verde\b`)

	leadingDates = regexp.MustCompile(`^(?:\s*` + dateExpr + `)+\s*`)
)

// isNoiseLine reports whether line is statement furniture. A line that opens
// with an operation keyword is a movement whatever merchant text follows.
func isNoiseLine(line string) bool {
	rest := leadingDates.ReplaceAllString(strings.TrimSpace(line), "")
	if classifier.ExtractOperationType(rest) != "" {
		return false
	}
	return leadingNoise.MatchString(rest) || anywhereNoise.MatchString(rest)
}

func containsAny(text string, needles []string) bool {
	lower := strings.ToLower(text)
	for _, needle := range needles {
		if needle != "" && strings.Contains(lower, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}

// findDates returns every date token in line.
func findDates(line string) []string {
	return datePattern.FindAllString(line, -1)
}

// trailingAmount returns the amount that ends line, or "".
func trailingAmount(line string) string {
	trimmed := strings.TrimSpace(line)
	all := amountPattern.FindAllStringSubmatchIndex(trimmed, -1)
	if len(all) == 0 {
		return ""
	}
	last := all[len(all)-1]
	if last[1] != len(trimmed) {
		return ""
	}
	return trimmed[last[2]:last[3]]
}

func findIBAN(text string) string {
	m := ibanPattern.FindString(text)
	return strings.ToUpper(strings.ReplaceAll(m, " ", ""))
}

func findAccountNumber(text string) string {
	if iban := findIBAN(text); iban != "" {
		return iban
	}
	if m := accountNumberPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func findAccountHolder(lines []string) string {
	for _, line := range lines {
		if m := holderPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			// the holder is usually followed by a column gap and unrelated text
			name := strings.SplitN(m[1], "   ", 2)[0]
			return strings.TrimSpace(name)
		}
	}
	return ""
}

func findStatementDate(text string) string {
	if m := statementDatePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// Operation-specific cleanup applied after a description is assembled.
var (
	cardCodePattern  = regexp.MustCompile(`(?i)\bcarta\s*(?:n\.?\s*)?(?:[*xX]+\s*\d{4}|\d{4,})\b`)
	maskedPANPattern = regexp.MustCompile(`[*xX]{4,}\s*\d{4}\b`)
	opDatePattern    = regexp.MustCompile(`(?i)\b(?:operazione\s+)?(?:del\s+)?` + dateExpr + `\b`)
	timePattern      = regexp.MustCompile(`(?i)\b(?:ore\s+)?\d{1,2}[:.]\d{2}(?:[:.]\d{2})?\b`)

	referencePattern = regexp.MustCompile(`(?i)\b(?:trn|cro|rif(?:erimento)?|id(?:\s+operazione)?|end\s*to\s*end)(?:\s*[:.]\s*|\s+)[A-Z0-9\-]*\d[A-Z0-9\-]{3,}\b`)
	routingPattern   = regexp.MustCompile(`(?i)\b(?:bic|swift)\s*[:.]?\s*[A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?\b|\b(?:abi|cab)\s*[:.]?\s*\d{5}\b`)
	ibanLabel        = regexp.MustCompile(`(?i)\biban\s*:?\s*$`)
)

// cleanOperationDescription strips the parts of a description that identify
// the operation rather than the counterparty. POS payments lose timestamps
// and card codes; transfers lose reference and routing codes.
func cleanOperationDescription(op, desc string) string {
	upper := strings.ToUpper(op)
	switch {
	case strings.HasPrefix(upper, "PAGAMENTO POS"), strings.HasPrefix(upper, "PAGAMENTO CARTA"),
		strings.HasPrefix(upper, "PRELIEVO"):
		desc = cardCodePattern.ReplaceAllString(desc, "")
		desc = maskedPANPattern.ReplaceAllString(desc, "")
		desc = opDatePattern.ReplaceAllString(desc, "")
		desc = timePattern.ReplaceAllString(desc, "")
	case strings.HasPrefix(upper, "BONIFICO"), strings.HasPrefix(upper, "POSTAGIRO"):
		desc = ibanPattern.ReplaceAllString(desc, "")
		desc = referencePattern.ReplaceAllString(desc, "")
		desc = routingPattern.ReplaceAllString(desc, "")
		desc = ibanLabel.ReplaceAllString(strings.TrimSpace(desc), "")
	default:
		desc = cardCodePattern.ReplaceAllString(desc, "")
		desc = maskedPANPattern.ReplaceAllString(desc, "")
	}
	return strings.Trim(strings.Join(strings.Fields(desc), " "), " -:,;")
}
