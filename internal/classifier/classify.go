// Package classifier decides whether a statement line is money in or money
// out. The decision is an ordered cascade of named rules; the first rule
// whose predicate holds supplies the verdict and anything unresolved is an
// expense.
package classifier

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/pfinance/internal/models"
	"github.com/insightdelivered/pfinance/internal/normalize"
)

// OperationTypes are the operation keywords recognized at the start of a
// description, longest first so that "PAGAMENTO POS" wins over "PAGAMENTO".
var OperationTypes = []string{
	"PAGAMENTO POS",
	"PAGAMENTO CARTA",
	"PAGAMENTO BOLLETTINO",
	"PAGAMENTO F24",
	"PAGAMENTO",
	"BONIFICO SEPA",
	"BONIFICO ISTANTANEO",
	"BONIFICO",
	"POSTAGIRO",
	"ADDEBITO DIRETTO",
	"ADDEBITO SDD",
	"ADDEBITO",
	"PRELIEVO ATM",
	"PRELIEVO",
	"ACCREDITO",
	"VERSAMENTO",
	"COMMISSIONI",
	"IMPOSTA DI BOLLO",
	"CANONE",
	"RICARICA",
	"STIPENDIO",
}

// input is the pre-normalized view every rule predicate sees.
type input struct {
	hint      string
	desc      string
	remainder string // desc with leading operation words removed
	transfer  bool
}

// Rule is one named step of the cascade.
type Rule struct {
	Name    string
	Verdict models.TxType
	match   func(in input) bool
}

var (
	incomeKeywords = regexp.MustCompile(`\b(?:accredit[oi]|stipendi[oi]|emolumenti|pension[ei]|rimbors[oi]|interessi creditori|dividend[oi]|versamento|salary|pension|refund|deposit|interest|dividends?)\b`)

	expenseKeywords = regexp.MustCompile(`\b(?:pagamento|pagam|pos|addebito|sdd|prelievo|prelevamento|commission[ei]|canone|impost[ae]|bollo|tass[ae]|f24|pedaggi?o?|telepass|multa|sanzione|carta|bancomat|rata|payment|withdrawal|fees?|tax|toll|fine|card|direct debit)\b`)

	expenseHints = regexp.MustCompile(`\b(?:pagamento|addebito|prelievo|imposta|bollo|payment|debit|tax)\b`)

	transferWords = regexp.MustCompile(`\b(?:bonifico|bonif|postagiro|giroconto)\b`)

	// operationPrefix strips the operation wording that precedes the
	// counterparty on transfer lines, e.g. "bonifico sepa istantaneo n. 12".
	operationPrefix = regexp.MustCompile(`^(?:(?:bonifico|bonif|postagiro|giroconto|sepa|sct|istantaneo|instant|ordinario|europeo|bancario|disposto|ricevuto|n\.?\s*\d+|del\s+\d{2}[/.\-]\d{2}[/.\-]\d{2,4})[\s:.,\-]*)+`)

	incomingPhrase = regexp.MustCompile(`\b(?:in entrata|ricevuto|a (?:vostro|vs\.?|suo) favore)\b`)
	outgoingPhrase = regexp.MustCompile(`\b(?:in uscita|disposto)\b`)

	fromPreposition = regexp.MustCompile(`^da\b`)
	toPreposition   = regexp.MustCompile(`^(?:a|ad|verso|per)\b`)

	businessName = regexp.MustCompile(`(?:^|[\s,])(?:srl|s\.r\.l\.?|srls|spa|s\.p\.a\.?|snc|s\.n\.c\.?|sas|s\.a\.s\.?|ltd|gmbh|inc|llc|coop|onlus)(?:$|[\s,.])|\b(?:amazon|enel|eni|tim|vodafone|wind|iliad|fastweb|paypal|netflix|spotify|apple|google|esselunga|conad|carrefour|lidl|ikea|zalando|trenitalia|italo|autostrade|hera|a2a|iren|sky|agenzia entrate)\b`)

	personalTitle = regexp.MustCompile(`\b(?:dott|dott\.ssa|dr|ing|sig|sigra|sig\.ra|avv|prof|geom|rag|mr|mrs|ms|eng)\b`)
)

// Rules is the cascade in evaluation order.
var Rules = []Rule{
	{Name: "income-keyword", Verdict: models.Income, match: func(in input) bool {
		return incomeKeywords.MatchString(in.desc)
	}},
	{Name: "transfer-incoming", Verdict: models.Income, match: func(in input) bool {
		return in.transfer && incomingPhrase.MatchString(in.desc)
	}},
	{Name: "transfer-outgoing", Verdict: models.Expense, match: func(in input) bool {
		return in.transfer && outgoingPhrase.MatchString(in.desc)
	}},
	{Name: "transfer-from", Verdict: models.Income, match: func(in input) bool {
		return in.transfer && fromPreposition.MatchString(in.remainder)
	}},
	{Name: "transfer-to", Verdict: models.Expense, match: func(in input) bool {
		return in.transfer && toPreposition.MatchString(in.remainder)
	}},
	{Name: "transfer-business", Verdict: models.Expense, match: func(in input) bool {
		return in.transfer && businessName.MatchString(in.remainder)
	}},
	{Name: "transfer-personal", Verdict: models.Income, match: func(in input) bool {
		return in.transfer && personalTitle.MatchString(in.remainder)
	}},
	{Name: "transfer-default", Verdict: models.Expense, match: func(in input) bool {
		return in.transfer
	}},
	{Name: "expense-keyword", Verdict: models.Expense, match: func(in input) bool {
		return expenseKeywords.MatchString(in.desc) || expenseHints.MatchString(in.hint)
	}},
	{Name: "from-preposition", Verdict: models.Income, match: func(in input) bool {
		return fromPreposition.MatchString(in.remainder)
	}},
	{Name: "to-preposition", Verdict: models.Expense, match: func(in input) bool {
		return toPreposition.MatchString(in.remainder)
	}},
}

// DefaultRule names the verdict used when no rule matches.
const DefaultRule = "default-expense"

// Classify returns income or expense for a description and an optional
// operation hint. It never fails.
func Classify(hint, description string) models.TxType {
	t, _ := Explain(hint, description)
	return t
}

// Explain is Classify plus the name of the rule that decided.
func Explain(hint, description string) (models.TxType, string) {
	in := prepare(hint, description)
	for _, r := range Rules {
		if r.match(in) {
			return r.Verdict, r.Name
		}
	}
	return models.Expense, DefaultRule
}

func prepare(hint, description string) input {
	in := input{
		hint: normalize.ForMatching(hint),
		desc: normalize.ForMatching(description),
	}
	in.transfer = transferWords.MatchString(in.hint) || transferWords.MatchString(in.desc)
	in.remainder = stripOperation(in.desc)
	return in
}

// stripOperation drops the operation wording at the start of a normalized
// description so prepositions can be tested against what follows.
func stripOperation(desc string) string {
	rest := operationPrefix.ReplaceAllString(desc, "")
	if op := ExtractOperationType(rest); op != "" {
		rest = rest[len(op):]
	}
	return strings.TrimLeft(rest, " :.,-*/")
}

// ExtractOperationType returns the operation keyword that opens desc, in
// upper case, or "" when the description starts with something else.
func ExtractOperationType(desc string) string {
	upper := strings.ToUpper(strings.Join(strings.Fields(desc), " "))
	for _, op := range OperationTypes {
		if !strings.HasPrefix(upper, op) {
			continue
		}
		if len(upper) == len(op) || !isWordChar(upper[len(op)]) {
			return op
		}
	}
	return ""
}

func isWordChar(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
