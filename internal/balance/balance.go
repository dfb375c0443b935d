// Package balance reads balances stated in statements and reconciles them
// with the running balance computed from the ledger. Reconciliation is
// advisory: it produces an alert level, never an error.
package balance

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/pfinance/internal/models"
	"github.com/insightdelivered/pfinance/internal/normalize"
)

// Pattern is a named balance phrase.
type Pattern struct {
	Name string
	Re   *regexp.Regexp
}

// Patterns are tried in order; the first phrase found anywhere wins.
var Patterns = []Pattern{
	{Name: "saldo-finale", Re: regexp.MustCompile(`(?i)\bsaldo\s+finale\b`)},
	{Name: "saldo-contabile", Re: regexp.MustCompile(`(?i)\bsaldo\s+contabile\b`)},
	{Name: "saldo-al", Re: regexp.MustCompile(`(?i)\bsaldo\s+al\b`)},
	{Name: "saldo-disponibile", Re: regexp.MustCompile(`(?i)\bsaldo\s+disponibile\b`)},
	{Name: "closing-balance", Re: regexp.MustCompile(`(?i)\b(?:closing|ending|final)\s+balance\b`)},
	{Name: "saldo", Re: regexp.MustCompile(`(?i)\bsaldo\b`)},
	{Name: "balance", Re: regexp.MustCompile(`(?i)\bbalance\b`)},
}

var (
	openingPhrase = regexp.MustCompile(`(?i)\b(?:iniziale|precedente|opening|brought forward|start)\b`)
	amountToken   = regexp.MustCompile(`[-+]?\d[\d.]*,\d{2}-?`)
	dateToken     = regexp.MustCompile(`\b\d{2}[/.\-]\d{2}[/.\-](?:\d{4}|\d{2})\b|\b\d{4}-\d{2}-\d{2}\b`)
)

// NewAssertion builds an assertion from raw text values. available and
// dateText may be empty.
func NewAssertion(valueText, availableText, dateText, pattern string) *models.BalanceAssertion {
	a := &models.BalanceAssertion{
		Value:             normalize.SignedAmount(valueText),
		ExtractionPattern: pattern,
	}
	if availableText != "" {
		v := normalize.SignedAmount(availableText)
		a.Available = &v
	}
	if dateText != "" {
		if t, ok := normalize.ParseDate(dateText); ok {
			a.StatementDate = &t
		}
	}
	return a
}

// FromLines scans reconstructed text for a balance phrase and takes the last
// amount on the matching line. Opening balances are ignored.
func FromLines(lines []string) *models.BalanceAssertion {
	for _, p := range Patterns {
		for i := len(lines) - 1; i >= 0; i-- {
			line := lines[i]
			if !p.Re.MatchString(line) || openingPhrase.MatchString(line) {
				continue
			}
			amounts := amountToken.FindAllString(line, -1)
			if len(amounts) == 0 {
				continue
			}
			return NewAssertion(amounts[len(amounts)-1], "", nearbyDate(lines, i), p.Name)
		}
	}
	return nil
}

func nearbyDate(lines []string, i int) string {
	for _, j := range []int{i, i - 1, i + 1} {
		if j < 0 || j >= len(lines) {
			continue
		}
		if d := dateToken.FindString(lines[j]); d != "" {
			return d
		}
	}
	return ""
}

// FromRows looks for a labelled balance cell in a sheet. The value is the
// last numeric cell to the right of the label, or the cell just below it.
func FromRows(rows [][]string) *models.BalanceAssertion {
	for _, p := range Patterns {
		for r := len(rows) - 1; r >= 0; r-- {
			for c, label := range rows[r] {
				if !p.Re.MatchString(label) || openingPhrase.MatchString(label) {
					continue
				}
				value := lastNumericRight(rows[r], c)
				if value == "" && r+1 < len(rows) && c < len(rows[r+1]) && isNumericCell(rows[r+1][c]) {
					value = rows[r+1][c]
				}
				if value == "" {
					continue
				}
				return NewAssertion(value, "", rowDate(label, rows[r]), p.Name)
			}
		}
	}
	return nil
}

func lastNumericRight(row []string, c int) string {
	value := ""
	for _, cell := range row[c+1:] {
		if isNumericCell(cell) {
			value = cell
		}
	}
	return value
}

func isNumericCell(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || dateToken.MatchString(s) {
		return false
	}
	return !normalize.ParseAmount(s).Defaulted
}

func rowDate(label string, row []string) string {
	if d := dateToken.FindString(label); d != "" {
		return d
	}
	for _, cell := range row {
		if d := dateToken.FindString(cell); d != "" {
			return d
		}
	}
	return ""
}

// Thresholds are the alert bands as fractions of the base balance.
type Thresholds struct {
	Medium float64
	High   float64
}

// DefaultThresholds: under 1% no alert, up to 5% medium, beyond that high.
var DefaultThresholds = Thresholds{Medium: 0.01, High: 0.05}

var cent = decimal.New(1, -2)

// Running returns base + income - expense over the transactions that fall
// after the base date, applied in value-date order.
func Running(in models.BalanceInputs) decimal.Decimal {
	txs := make([]models.Transaction, len(in.Transactions))
	copy(txs, in.Transactions)
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].EffectiveDate().Before(txs[j].EffectiveDate())
	})

	total := in.BaseBalance
	for _, t := range txs {
		if in.BaseDate != nil && !t.EffectiveDate().After(*in.BaseDate) {
			continue
		}
		switch t.Type {
		case models.Income:
			total = total.Add(t.Amount)
		case models.Expense:
			total = total.Sub(t.Amount)
		}
	}
	return total
}

// Validate compares computed against asserted relative to base.
func Validate(computed, asserted, base decimal.Decimal, th Thresholds) models.BalanceValidation {
	diff := computed.Sub(asserted)
	return models.BalanceValidation{
		CurrentBalance: computed,
		Asserted:       asserted,
		BaseBalance:    base,
		Difference:     diff,
		AlertLevel:     Level(diff, base, asserted, th),
	}
}

// Level maps a difference to an alert band. Differences under a cent never
// alert. With a zero base the asserted balance is the reference, and with
// both zero any difference is high.
func Level(diff, base, asserted decimal.Decimal, th Thresholds) models.AlertLevel {
	abs := diff.Abs()
	if abs.LessThan(cent) {
		return models.AlertNone
	}
	ref := base.Abs()
	if ref.IsZero() {
		ref = asserted.Abs()
	}
	if ref.IsZero() {
		return models.AlertHigh
	}
	ratio, _ := abs.Div(ref).Float64()
	switch {
	case ratio < th.Medium:
		return models.AlertNone
	case ratio <= th.High:
		return models.AlertMedium
	default:
		return models.AlertHigh
	}
}

// Reconcile computes the running balance from in and validates it against a
// document's assertion. When the assertion carries a date, transactions
// after that date are left out of the computed side.
func Reconcile(in models.BalanceInputs, a *models.BalanceAssertion, th Thresholds) models.BalanceValidation {
	if a != nil && a.StatementDate != nil {
		in = upTo(in, *a.StatementDate)
	}
	computed := Running(in)
	if a == nil {
		return models.BalanceValidation{
			CurrentBalance: computed,
			BaseBalance:    in.BaseBalance,
			AlertLevel:     models.AlertNone,
		}
	}
	return Validate(computed, a.Value, in.BaseBalance, th)
}

func upTo(in models.BalanceInputs, end time.Time) models.BalanceInputs {
	kept := make([]models.Transaction, 0, len(in.Transactions))
	for _, t := range in.Transactions {
		if !t.EffectiveDate().After(end) {
			kept = append(kept, t)
		}
	}
	in.Transactions = kept
	return in
}
