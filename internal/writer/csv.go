package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/pfinance/internal/models"
)

// Ledger is what gets exported: transactions in the order they should
// appear, plus an optional base balance that turns on the running column.
type Ledger struct {
	BaseBalance  *decimal.Decimal
	Transactions []models.Transaction
}

// CSVWriter writes the ledger to CSV format.
type CSVWriter struct {
	IncludeHeader bool
	// Comma is the field delimiter; zero means ','.
	Comma rune
}

// WriteToFile writes the ledger to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, l *Ledger) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	if err := w.Write(f, l); err != nil {
		return err
	}
	return f.Close()
}

// Write writes the ledger in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, l *Ledger) error {
	writer := csv.NewWriter(out)
	if w.Comma != 0 {
		writer.Comma = w.Comma
	}

	// Metadata rows
	if w.IncludeHeader {
		writer.Write([]string{"# Transactions", strconv.Itoa(len(l.Transactions))})
		if l.BaseBalance != nil {
			writer.Write([]string{"# Base Balance", l.BaseBalance.StringFixed(2)})
		}
	}

	header := []string{"Date", "Value Date", "Description", "Type", "Category", "Amount", "Balance", "Hash"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	var running decimal.Decimal
	if l.BaseBalance != nil {
		running = *l.BaseBalance
	}
	for _, txn := range l.Transactions {
		signed := signedAmount(txn)
		balance := ""
		if l.BaseBalance != nil {
			running = running.Add(signed)
			balance = running.StringFixed(2)
		}
		row := []string{
			txn.DateISO(),
			formatDate(txn.ValueDate),
			txn.Description,
			string(txn.Type),
			txn.Category,
			signed.StringFixed(2),
			balance,
			txn.Hash,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func signedAmount(txn models.Transaction) decimal.Decimal {
	if txn.Type == models.Expense {
		return txn.Amount.Neg()
	}
	return txn.Amount
}

func formatDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format(models.DateLayout)
}
