package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertLevel is the severity of a balance discrepancy.
type AlertLevel string

const (
	AlertNone   AlertLevel = "none"
	AlertMedium AlertLevel = "medium"
	AlertHigh   AlertLevel = "high"
)

// BalanceAssertion is a balance read directly from a document.
type BalanceAssertion struct {
	Value             decimal.Decimal  `json:"value"`
	Available         *decimal.Decimal `json:"available,omitempty"`
	ExtractionPattern string           `json:"extractionPattern"`
	StatementDate     *time.Time       `json:"statementDate,omitempty"`
}

// BalanceValidation compares a computed running balance with an asserted one.
type BalanceValidation struct {
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	Asserted       decimal.Decimal `json:"asserted"`
	BaseBalance    decimal.Decimal `json:"baseBalance"`
	Difference     decimal.Decimal `json:"difference"`
	AlertLevel     AlertLevel      `json:"alertLevel"`
}

// BalanceInputs is what the store hands the reconciler.
type BalanceInputs struct {
	BaseBalance decimal.Decimal
	// BaseDate is nil when the base is a manual override with no date, in
	// which case every transaction contributes.
	BaseDate     *time.Time
	Manual       bool
	Transactions []Transaction
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Inserted         int `json:"inserted"`
	Duplicates       int `json:"duplicates"`
	TotalParsed      int `json:"totalParsed"`
	Skipped          int `json:"skipped"`
	DefaultedDates   int `json:"defaultedDates"`
	DefaultedAmounts int `json:"defaultedAmounts"`
}
