package parser

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/pfinance/internal/classifier"
	"github.com/insightdelivered/pfinance/internal/models"
)

// GenericParser handles free-text statements where each transaction fits on
// one reconstructed line. Three patterns are tried in order:
//
//	1. two dates, amount, operation keyword, description
//	   "13/09/2025    13/09/2025    15,24    PAGAMENTO POS BAR ROMA"
//	2. two dates, amount, free description (operation inferred from its prefix)
//	   "13/09/2025    13/09/2025    BAR ROMA    15,24"
//	3. one date, amount, description (single-date statements)
//	   "13/09/25 COOP LOMBARDIA 4,99"
//
// Lines matching none of them are continuations or noise and are skipped.
type GenericParser struct{}

func (p *GenericParser) BankName() string {
	return "Generic"
}

var (
	operationAlternation = buildOperationAlternation()

	genericTwoDatesOp = regexp.MustCompile(
		`(?i)^(` + dateExpr + `)\s+(` + dateExpr + `)\s+` +
			`(?:(` + amountExpr + `)\s*(?:€|EUR)?\s+(` + operationAlternation + `)\b\s*(.*?)` +
			`|(` + operationAlternation + `)\b\s*(.*?)\s+(` + amountExpr + `)\s*(?:€|EUR)?)\s*$`,
	)

	genericTwoDates = regexp.MustCompile(
		`^(` + dateExpr + `)\s+(` + dateExpr + `)\s+` +
			`(?:(` + amountExpr + `)\s*(?:€|EUR)?\s+(.+?)` +
			`|(.+?)\s+(` + amountExpr + `)\s*(?:€|EUR)?)\s*$`,
	)

	genericOneDate = regexp.MustCompile(
		`^(` + dateExpr + `)\s+` +
			`(?:(` + amountExpr + `)\s*(?:€|EUR)?\s+(.+?)` +
			`|(.+?)\s+(` + amountExpr + `)\s*(?:€|EUR)?)\s*$`,
	)
)

func buildOperationAlternation() string {
	quoted := make([]string, len(classifier.OperationTypes))
	for i, op := range classifier.OperationTypes {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(op), " ", `\s+`)
	}
	return strings.Join(quoted, "|")
}

// Parse implements Parser.
func (p *GenericParser) Parse(lines []string) (*models.StatementInfo, error) {
	info := &models.StatementInfo{Bank: models.BankGeneric}

	all := strings.Join(lines, "\n")
	info.AccountHolder = findAccountHolder(lines)
	info.AccountNumber = findAccountNumber(all)
	info.StatementDate = findStatementDate(all)

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if isNoiseLine(line) {
			info.DebugLines = append(info.DebugLines, models.DebugLine{LineNum: i + 1, Text: line, Result: "noise"})
			continue
		}

		cand, method, ok := parseGenericLine(line)
		if !ok {
			if len(findDates(line)) > 0 {
				info.Skipped++
			}
			info.DebugLines = append(info.DebugLines, models.DebugLine{LineNum: i + 1, Text: line, Result: "skipped"})
			continue
		}
		cand.Line = i + 1
		info.Candidates = append(info.Candidates, cand)
		info.DebugLines = append(info.DebugLines, models.DebugLine{LineNum: i + 1, Text: line, Result: "parsed", Method: method})
	}

	return info, nil
}

// parseGenericLine tries the three patterns in order and reports which one
// matched.
func parseGenericLine(line string) (models.RawCandidate, string, bool) {
	if m := genericTwoDatesOp.FindStringSubmatch(line); m != nil {
		amount, op, desc := m[3], m[4], m[5]
		if amount == "" {
			op, desc, amount = m[6], m[7], m[8]
		}
		op = strings.ToUpper(strings.Join(strings.Fields(op), " "))
		full := strings.TrimSpace(op + " " + desc)
		return models.RawCandidate{
			AccountingDate: m[1],
			ValueDate:      m[2],
			AmountText:     amount,
			Description:    cleanOperationDescription(op, full),
			OperationHint:  op,
		}, "two-dates-operation", true
	}

	if m := genericTwoDates.FindStringSubmatch(line); m != nil {
		amount, desc := m[3], m[4]
		if amount == "" {
			desc, amount = m[5], m[6]
		}
		desc = stripColumnGaps(desc)
		op := classifier.ExtractOperationType(desc)
		return models.RawCandidate{
			AccountingDate: m[1],
			ValueDate:      m[2],
			AmountText:     amount,
			Description:    cleanOperationDescription(op, desc),
			OperationHint:  op,
		}, "two-dates", true
	}

	if m := genericOneDate.FindStringSubmatch(line); m != nil {
		amount, desc := m[2], m[3]
		if amount == "" {
			desc, amount = m[4], m[5]
		}
		desc = stripColumnGaps(desc)
		op := classifier.ExtractOperationType(desc)
		return models.RawCandidate{
			AccountingDate: m[1],
			AmountText:     amount,
			Description:    cleanOperationDescription(op, desc),
			OperationHint:  op,
		}, "one-date", true
	}

	return models.RawCandidate{}, "", false
}

func stripColumnGaps(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
