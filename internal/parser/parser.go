package parser

import (
	"fmt"
	"strings"

	"github.com/insightdelivered/pfinance/internal/models"
)

// Parser defines the interface for line-oriented statement parsers.
type Parser interface {
	// Parse takes reconstructed lines, in document order, and returns the
	// candidates and metadata found in them. Unreadable lines are skipped.
	Parse(lines []string) (*models.StatementInfo, error)
	// BankName returns the human-readable layout name.
	BankName() string
}

// New returns the parser for the given layout.
func New(bankType models.BankType) (Parser, error) {
	switch bankType {
	case models.BankGeneric:
		return &GenericParser{}, nil
	case models.BankBancoPosta:
		return &BancoPostaParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported statement layout: %q", bankType)
	}
}

// AutoDetect picks a layout from the text. Anything that is not recognizably
// BancoPosta goes through the generic parser.
func AutoDetect(lines []string) models.BankType {
	if isBancoPosta(strings.Join(lines, "\n")) {
		return models.BankBancoPosta
	}
	return models.BankGeneric
}
