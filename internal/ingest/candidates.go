package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/insightdelivered/pfinance/internal/classifier"
	"github.com/insightdelivered/pfinance/internal/dedup"
	"github.com/insightdelivered/pfinance/internal/models"
	"github.com/insightdelivered/pfinance/internal/normalize"
)

// toTransactions normalizes and classifies parser output. Unreadable dates
// fall back to the day of now and unreadable amounts to zero; both are
// counted in stats rather than rejected.
func toTransactions(kind models.SourceKind, cands []models.RawCandidate, now time.Time, stats *models.IngestStats) []models.Transaction {
	txs := make([]models.Transaction, 0, len(cands))
	for i, c := range cands {
		dateText := c.AccountingDate
		if strings.TrimSpace(dateText) == "" {
			dateText = c.ValueDate
		}
		date := normalize.ResolveDate(dateText, now)
		if date.Defaulted {
			stats.DefaultedDates++
		}

		amount := normalize.ParseAmount(c.AmountText)
		if amount.Defaulted {
			stats.DefaultedAmounts++
		}

		desc := normalize.CleanDescription(c.Description)
		txType := c.Type
		if txType == "" {
			txType = classifier.Classify(c.OperationHint, desc)
		}

		t := models.Transaction{
			Date:        date.Time,
			Amount:      amount.Value,
			Description: desc,
			Type:        txType,
			Source:      kind,
		}
		if vd, ok := normalize.ParseDate(c.ValueDate); ok {
			t.ValueDate = &vd
		}
		t.ID = makeID(kind, t.Date, t.Amount.StringFixed(2), desc, i)
		t.Hash = dedup.HashTransaction(t)
		txs = append(txs, t)
	}
	return txs
}

// makeID derives a stable id from the document kind, date, amount, the first
// alphanumerics of the description and the candidate's position.
func makeID(kind models.SourceKind, date time.Time, amount, desc string, seq int) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	cents := strings.Replace(amount, ".", "", 1)
	return fmt.Sprintf("%s_%s_%s_%s_%03d", kind, date.Format("20060102"), cents, prefix, seq)
}
