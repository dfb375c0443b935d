package classifier

import (
	"testing"

	"github.com/insightdelivered/pfinance/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		hint     string
		desc     string
		want     models.TxType
		wantRule string
	}{
		{"salary", "", "ACCREDITO STIPENDIO ACME SRL", models.Income, "income-keyword"},
		{"pension", "", "Pensione INPS settembre", models.Income, "income-keyword"},
		{"refund english", "", "Amazon refund 1234", models.Income, "income-keyword"},
		{"transfer from person", "BONIFICO", "DA MARIO ROSSI", models.Income, "transfer-from"},
		{"transfer from in description", "", "BONIFICO SEPA DA MARIO ROSSI causale affitto", models.Income, "transfer-from"},
		{"postagiro to", "POSTAGIRO", "A FAVORE DI LUCA BIANCHI", models.Expense, "transfer-to"},
		{"transfer verso", "", "BONIFICO VERSO GIULIA VERDI", models.Expense, "transfer-to"},
		{"transfer in our favour", "", "BONIFICO A VOSTRO FAVORE DA CLIENTE", models.Income, "transfer-incoming"},
		{"transfer outgoing wording", "", "BONIFICO DISPOSTO GIULIA VERDI", models.Expense, "transfer-outgoing"},
		{"transfer business", "BONIFICO", "ENEL ENERGIA SPA", models.Expense, "transfer-business"},
		{"transfer legal suffix", "BONIFICO", "Rossi Costruzioni S.r.l.", models.Expense, "transfer-business"},
		{"transfer personal title", "BONIFICO", "DOTT. MARCO NERI", models.Income, "transfer-personal"},
		{"transfer unresolved", "BONIFICO", "MARCO NERI", models.Expense, "transfer-default"},
		{"pos payment", "", "PAGAMENTO POS STAZIONE FRUTTA CARTA ****2943", models.Expense, "expense-keyword"},
		{"direct debit", "", "ADDEBITO SDD TIM", models.Expense, "expense-keyword"},
		{"stamp duty via hint", "IMPOSTA", "DI BOLLO", models.Expense, "expense-keyword"},
		{"withdrawal", "", "Prelievo ATM via Roma", models.Expense, "expense-keyword"},
		{"generic from", "", "da Anna per cena", models.Income, "from-preposition"},
		{"generic to", "", "verso conto titoli", models.Expense, "to-preposition"},
		{"default", "", "MOVIMENTO 123", models.Expense, DefaultRule},
		{"empty", "", "", models.Expense, DefaultRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := Explain(tt.hint, tt.desc)
			if got != tt.want {
				t.Errorf("Classify(%q, %q): got %q, want %q", tt.hint, tt.desc, got, tt.want)
			}
			if rule != tt.wantRule {
				t.Errorf("rule: got %q, want %q", rule, tt.wantRule)
			}
		})
	}
}

func TestClassify_Total(t *testing.T) {
	inputs := []string{"", " ", "???", "da", "a", "bonifico", "BONIFICO DA", "\x00\xff", "Caffè Perché", "1.234,56"}
	for _, hint := range inputs {
		for _, desc := range inputs {
			got := Classify(hint, desc)
			if got != models.Income && got != models.Expense {
				t.Errorf("Classify(%q, %q) = %q", hint, desc, got)
			}
			if again := Classify(hint, desc); again != got {
				t.Errorf("Classify(%q, %q) not deterministic: %q then %q", hint, desc, got, again)
			}
		}
	}
}

func TestExtractOperationType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"PAGAMENTO POS STAZIONE FRUTTA", "PAGAMENTO POS"},
		{"pagamento   pos bar", "PAGAMENTO POS"},
		{"PAGAMENTO F24", "PAGAMENTO F24"},
		{"PAGAMENTO BOLLETTA", "PAGAMENTO"},
		{"BONIFICO SEPA DA X", "BONIFICO SEPA"},
		{"POSTAGIRO A FAVORE", "POSTAGIRO"},
		{"POSTAGIROX", ""},
		{"ADDEBITO DIRETTO SDD", "ADDEBITO DIRETTO"},
		{"Supermercato", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ExtractOperationType(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
