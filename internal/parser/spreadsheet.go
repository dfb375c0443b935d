package parser

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/pfinance/internal/classifier"
	"github.com/insightdelivered/pfinance/internal/models"
	"github.com/insightdelivered/pfinance/internal/normalize"
)

// ErrHeaderNotFound means no row of the sheet looks like a column header.
// It is the only parse failure that aborts a document.
var ErrHeaderNotFound = errors.New("spreadsheet header row not found")

var minSheetAmount = decimal.RequireFromString("0.01")

// SpreadsheetParser maps exported statement rows to candidates. The header row
// decides which column is which; debit/credit columns decide direction.
//
//	Data contabile | Data valuta | Addebiti | Accrediti | Descrizione operazioni
//	45913          | 45913       | 15.24    |           | PAGAMENTO POS BAR
type SpreadsheetParser struct{}

func (p *SpreadsheetParser) BankName() string {
	return "Spreadsheet"
}

// Columns holds resolved column indices; -1 means absent.
type Columns struct {
	AccountingDate int
	ValueDate      int
	Debit          int
	Credit         int
	Amount         int
	Description    int
}

func (c Columns) hasDirection() bool {
	return c.Debit >= 0 || c.Credit >= 0
}

// ParseRows finds the header, resolves columns and reads every data row
// below it. Rows that cannot be read are skipped, not reported.
func (p *SpreadsheetParser) ParseRows(rows [][]string) (*models.StatementInfo, error) {
	info := &models.StatementInfo{Bank: models.BankSpreadsheet}

	headerIdx := FindHeaderRow(rows)
	if headerIdx < 0 {
		return nil, ErrHeaderNotFound
	}
	cols := ResolveColumns(rows[headerIdx])
	if cols.AccountingDate < 0 && cols.ValueDate < 0 {
		return nil, ErrHeaderNotFound
	}
	info.DebugLines = append(info.DebugLines, models.DebugLine{
		LineNum: headerIdx + 1,
		Text:    strings.Join(rows[headerIdx], " | "),
		Result:  "header",
	})

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		cand, ok := cols.candidate(row)
		if !ok {
			if !cols.allEmpty(row) {
				info.Skipped++
				info.DebugLines = append(info.DebugLines, models.DebugLine{LineNum: i + 1, Text: strings.Join(row, " | "), Result: "skipped"})
			}
			continue
		}
		cand.Line = i + 1
		info.Candidates = append(info.Candidates, cand)
		info.DebugLines = append(info.DebugLines, models.DebugLine{LineNum: i + 1, Text: strings.Join(row, " | "), Result: "parsed", Method: "row"})
	}

	return info, nil
}

// FindHeaderRow returns the index of the first header-looking row, or -1.
// A header's first cell names the accounting date, or names a date on a row
// that is wide enough (or mentions an amount column) to be a movement table.
func FindHeaderRow(rows [][]string) int {
	for i, row := range rows {
		first := strings.ToLower(strings.TrimSpace(firstNonEmpty(row)))
		if first == "" {
			continue
		}
		if strings.Contains(first, "data contabile") || strings.Contains(first, "accounting date") ||
			strings.Contains(first, "data operazione") {
			return i
		}
		if !strings.Contains(first, "data") && !strings.Contains(first, "date") {
			continue
		}
		if countNonEmpty(row) > 3 || containsAny(strings.Join(row, " "), []string{"importo", "amount"}) {
			return i
		}
	}
	return -1
}

// ResolveColumns maps header cells to roles by case-insensitive substring.
// The first cell claiming a role keeps it.
func ResolveColumns(header []string) Columns {
	c := Columns{AccountingDate: -1, ValueDate: -1, Debit: -1, Credit: -1, Amount: -1, Description: -1}
	claim := func(dst *int, idx int) {
		if *dst < 0 {
			*dst = idx
		}
	}
	for i, cell := range header {
		h := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case h == "":
		case containsAny(h, []string{"valuta", "value date"}):
			claim(&c.ValueDate, i)
		case containsAny(h, []string{"data", "date"}):
			claim(&c.AccountingDate, i)
		case containsAny(h, []string{"addebit", "uscite", "dare", "debit", "money out"}):
			claim(&c.Debit, i)
		case containsAny(h, []string{"accredit", "entrate", "avere", "credit", "money in"}):
			claim(&c.Credit, i)
		case containsAny(h, []string{"importo", "amount"}):
			claim(&c.Amount, i)
		case containsAny(h, []string{"descrizione", "causale", "description", "dettagli", "details"}):
			claim(&c.Description, i)
		}
	}
	return c
}

func (c Columns) candidate(row []string) (models.RawCandidate, bool) {
	if c.allEmpty(row) {
		return models.RawCandidate{}, false
	}

	date := cell(row, c.AccountingDate)
	valueDate := cell(row, c.ValueDate)
	if date == "" {
		date = valueDate
	}
	desc := normalize.CleanDescription(cell(row, c.Description))
	if date == "" || desc == normalize.Placeholder {
		return models.RawCandidate{}, false
	}

	var amountText string
	var txType models.TxType
	switch {
	case c.hasDirection():
		if debit := cell(row, c.Debit); debit != "" && normalize.Amount(debit).GreaterThan(decimal.Zero) {
			amountText, txType = debit, models.Expense
		} else if credit := cell(row, c.Credit); credit != "" {
			amountText, txType = credit, models.Income
		}
	case c.Amount >= 0:
		amountText = cell(row, c.Amount)
		txType = models.Income
		if normalize.SignedAmount(amountText).IsNegative() {
			txType = models.Expense
		}
	}
	if amountText == "" || !normalize.Amount(amountText).GreaterThan(minSheetAmount) {
		return models.RawCandidate{}, false
	}

	op := classifier.ExtractOperationType(desc)
	return models.RawCandidate{
		AccountingDate: date,
		ValueDate:      valueDate,
		AmountText:     amountText,
		Description:    cleanOperationDescription(op, desc),
		OperationHint:  op,
		Type:           txType,
	}, true
}

func (c Columns) allEmpty(row []string) bool {
	for _, idx := range []int{c.AccountingDate, c.ValueDate, c.Debit, c.Credit, c.Amount, c.Description} {
		if cell(row, idx) != "" {
			return false
		}
	}
	return true
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func firstNonEmpty(row []string) string {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}

func countNonEmpty(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}
