package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType is the direction of a transaction.
type TxType string

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

// SourceKind identifies the document family a transaction was read from.
type SourceKind string

const (
	SourcePDF         SourceKind = "pdf"
	SourceSpreadsheet SourceKind = "spreadsheet"
)

// BankType represents supported statement layouts.
type BankType string

const (
	BankGeneric     BankType = "generic"
	BankBancoPosta  BankType = "bancoposta"
	BankSpreadsheet BankType = "spreadsheet"
)

// Fragment is a positioned run of text from a PDF page.
// Width is zero when the extractor cannot measure it.
type Fragment struct {
	Text  string
	X     float64
	Y     float64
	Width float64
}

// RawCandidate is an untyped, pre-normalization transaction as read by a parser.
type RawCandidate struct {
	AccountingDate string
	ValueDate      string
	AmountText     string
	Description    string
	OperationHint  string
	// Type is set only when the layout itself encodes direction
	// (debit/credit spreadsheet columns); empty means "ask the classifier".
	Type TxType
	Line int
}

// Transaction is a normalized, classified ledger entry.
type Transaction struct {
	ID               string          `json:"id"`
	Date             time.Time       `json:"date"`
	ValueDate        *time.Time      `json:"valueDate,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description"`
	Type             TxType          `json:"type"`
	Category         string          `json:"category"`
	IsManualOverride bool            `json:"isManualOverride"`
	ManualCategoryID *int64          `json:"manualCategoryId,omitempty"`
	Hash             string          `json:"hash"`
	Source           SourceKind      `json:"source"`
}

// EffectiveDate is the value date when known, else the accounting date.
func (t Transaction) EffectiveDate() time.Time {
	if t.ValueDate != nil {
		return *t.ValueDate
	}
	return t.Date
}

// DateISO returns the canonical date string.
func (t Transaction) DateISO() string {
	return t.Date.Format(DateLayout)
}

// DateLayout is the canonical ISO date format.
const DateLayout = "2006-01-02"

// DebugLine captures what the parser did with each input line.
type DebugLine struct {
	LineNum int    `json:"lineNum"`
	Text    string `json:"text"`
	Result  string `json:"result"` // "parsed", "skipped", "header", "noise", "description", "detail"
	Method  string `json:"method,omitempty"`
}

// StatementInfo holds everything a parser read from one document.
type StatementInfo struct {
	Bank          BankType
	AccountHolder string
	AccountNumber string
	StatementDate string
	Candidates    []RawCandidate
	Balance       *BalanceAssertion
	DebugLines    []DebugLine
	Skipped       int
}
