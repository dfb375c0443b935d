package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/insightdelivered/pfinance/internal/balance"
	"github.com/insightdelivered/pfinance/internal/classifier"
	"github.com/insightdelivered/pfinance/internal/models"
)

// BancoPostaParser handles BancoPosta statements, where one movement spans
// up to three physical lines:
//
//	PAGAMENTO POS STAZIONE FRUTTA ROMA CARTA ****2943      (description)
//	13/09/2025    13/09/2025    15,24                       (anchor)
//	OPERAZIONE DEL 12/09/2025 ORE 18.32                     (optional detail)
//
// The anchor line carries exactly two dates (accounting, value) and ends with
// the amount. The header of the first page carries the holder, the account
// and a "saldo contabile ... saldo disponibile ..." pair.
type BancoPostaParser struct{}

func (p *BancoPostaParser) BankName() string {
	return "BancoPosta"
}

// State is a position of the line scanner.
type State int

const (
	SeekingSection State = iota
	SeekingColumns
	Parsing
	Done
)

func (s State) String() string {
	switch s {
	case SeekingSection:
		return "seeking-section"
	case SeekingColumns:
		return "seeking-columns"
	case Parsing:
		return "parsing"
	case Done:
		return "done"
	}
	return "unknown"
}

const (
	lookBehind      = 3
	maxDetailLength = 60
)

var (
	bancoPostaMarkers = []string{"bancoposta", "poste italiane", "postagiro", "lista movimenti"}

	sectionMarkers = []string{"lista movimenti", "elenco movimenti", "dettaglio movimenti", "movimenti del conto"}

	columnMarkers = []string{"data contabile", "descrizione operazioni", "addebiti", "accrediti"}

	bancoPostaBalance = regexp.MustCompile(
		`(?is)saldo\s+contabile(?:\s+al\s+(` + dateExpr + `))?\s*:?\s*(?:€|eur)?\s*(` + amountExpr + `)` +
			`.{0,200}?saldo\s+disponibile(?:\s+al\s+` + dateExpr + `)?\s*:?\s*(?:€|eur)?\s*(` + amountExpr + `)`,
	)
)

// scanner is the explicit state machine over an indexable line array.
type scanner struct {
	lines    []string
	state    State
	consumed []bool
	logged   []bool
	info     *models.StatementInfo
}

// Parse implements Parser.
func (p *BancoPostaParser) Parse(lines []string) (*models.StatementInfo, error) {
	info := &models.StatementInfo{Bank: models.BankBancoPosta}

	all := strings.Join(lines, "\n")
	info.AccountHolder = findAccountHolder(lines)
	info.AccountNumber = findAccountNumber(all)
	info.StatementDate = findStatementDate(all)
	info.Balance = extractBancoPostaBalance(all)

	s := newScanner(lines, info)
	s.run()
	return info, nil
}

func newScanner(lines []string, info *models.StatementInfo) *scanner {
	s := &scanner{
		lines:    make([]string, len(lines)),
		consumed: make([]bool, len(lines)),
		logged:   make([]bool, len(lines)),
		info:     info,
		state:    SeekingSection,
	}
	for i, l := range lines {
		s.lines[i] = strings.TrimSpace(l)
	}
	// Excerpts without the section heading start straight in Parsing.
	if !containsAny(strings.Join(s.lines, "\n"), sectionMarkers) {
		s.state = Parsing
	}
	return s
}

func (s *scanner) run() {
	for i := 0; i < len(s.lines); i++ {
		s.step(i)
	}
	s.state = Done

	for i, line := range s.lines {
		if line != "" && !s.logged[i] {
			s.debug(i, "skipped", "")
		}
	}
	sort.SliceStable(s.info.DebugLines, func(a, b int) bool {
		return s.info.DebugLines[a].LineNum < s.info.DebugLines[b].LineNum
	})
}

// step advances the machine by one line.
func (s *scanner) step(i int) {
	line := s.lines[i]
	if line == "" {
		return
	}

	switch s.state {
	case SeekingSection:
		if containsAny(line, sectionMarkers) {
			s.state = SeekingColumns
			s.debug(i, "header", SeekingSection.String())
		}
	case SeekingColumns:
		switch {
		case isColumnHeader(line):
			s.state = Parsing
			s.debug(i, "header", SeekingColumns.String())
		case isAnchor(line):
			s.state = Parsing
			s.anchor(i)
		}
	case Parsing:
		switch {
		case s.consumed[i]:
		case isAnchor(line):
			s.anchor(i)
		case isColumnHeader(line), containsAny(line, sectionMarkers):
			s.debug(i, "header", "")
		case isNoiseLine(line):
			s.debug(i, "noise", "")
		case len(findDates(line)) > 0 && trailingAmount(line) != "":
			// dated and priced but not a two-date anchor
			s.info.Skipped++
		}
	}
}

// anchor builds one candidate around the anchor line at i.
func (s *scanner) anchor(i int) {
	line := s.lines[i]
	dates := findDates(line)
	amount := trailingAmount(line)

	desc := inlineDescription(line, dates, amount)
	if desc == "" {
		if j := s.lookBack(i); j >= 0 {
			desc = s.lines[j]
			s.consumed[j] = true
			s.debug(j, "description", "")
		}
	}
	if j := s.lookForward(i); j >= 0 {
		desc += " " + s.lines[j]
		s.consumed[j] = true
		s.debug(j, "detail", "")
	}

	desc = stripColumnGaps(desc)
	op := classifier.ExtractOperationType(desc)
	s.info.Candidates = append(s.info.Candidates, models.RawCandidate{
		AccountingDate: dates[0],
		ValueDate:      dates[1],
		AmountText:     amount,
		Description:    cleanOperationDescription(op, desc),
		OperationHint:  op,
		Line:           i + 1,
	})
	s.consumed[i] = true
	s.debug(i, "parsed", "anchor")
}

// lookBack returns the nearest usable description line above i, or -1.
// It stops at lines that already belong to another movement.
func (s *scanner) lookBack(i int) int {
	for j := i - 1; j >= 0 && j >= i-lookBehind; j-- {
		line := s.lines[j]
		switch {
		case s.consumed[j], isAnchor(line), isColumnHeader(line):
			return -1
		case line == "", isNoiseLine(line):
			continue
		default:
			return j
		}
	}
	return -1
}

// lookForward returns i+1 when it is a short detail line of the movement at
// i rather than the description of the next one, or -1.
func (s *scanner) lookForward(i int) int {
	j := i + 1
	if j >= len(s.lines) {
		return -1
	}
	line := s.lines[j]
	if line == "" || len(line) > maxDetailLength || isNoiseLine(line) || isAnchor(line) || isColumnHeader(line) {
		return -1
	}
	if classifier.ExtractOperationType(line) != "" {
		return -1
	}
	if j+1 < len(s.lines) && isAnchor(s.lines[j+1]) {
		return -1
	}
	return j
}

func (s *scanner) debug(i int, result, method string) {
	s.logged[i] = true
	s.info.DebugLines = append(s.info.DebugLines, models.DebugLine{
		LineNum: i + 1,
		Text:    s.lines[i],
		Result:  result,
		Method:  method,
	})
}

// isAnchor reports whether line has exactly two dates and ends with an amount.
func isAnchor(line string) bool {
	return len(findDates(line)) == 2 && trailingAmount(line) != "" && !isNoiseLine(line)
}

func isColumnHeader(line string) bool {
	lower := strings.ToLower(line)
	hits := 0
	for _, m := range columnMarkers {
		if strings.Contains(lower, m) {
			hits++
		}
	}
	return hits >= 2 || (strings.Contains(lower, "data") && strings.Contains(lower, "valuta") && strings.Contains(lower, "descrizione"))
}

// inlineDescription is whatever text sits on the anchor line besides the two
// dates and the amount.
func inlineDescription(line string, dates []string, amount string) string {
	rest := strings.TrimSpace(line)
	rest = strings.TrimSpace(strings.TrimSuffix(rest, "EUR"))
	rest = strings.TrimSpace(strings.TrimSuffix(rest, "€"))
	rest = strings.TrimSuffix(rest, amount)
	for _, d := range dates {
		rest = strings.Replace(rest, d, "", 1)
	}
	rest = stripColumnGaps(rest)
	if strings.Trim(rest, "-+.,€ ") == "" {
		return ""
	}
	return rest
}

// extractBancoPostaBalance reads the book/available balance pair printed in
// the statement header.
func extractBancoPostaBalance(text string) *models.BalanceAssertion {
	m := bancoPostaBalance.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return balance.NewAssertion(m[2], m[3], m[1], "bancoposta-saldo-contabile")
}

// isBancoPosta reports whether the text looks like a BancoPosta statement.
func isBancoPosta(text string) bool {
	return containsAny(text, bancoPostaMarkers)
}
