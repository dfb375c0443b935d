package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenericParser_Parse(t *testing.T) {
	lines := []string{
		"Banca Esempio S.p.A.",
		"Estratto conto al 30/09/2025",
		"Intestatario: ANNA VERDI",
		"Data    Valuta    Importo    Descrizione",
		"12/09/2025    12/09/2025    15,24    PAGAMENTO POS BAR SPORT CARTA ****2943",
		"13/09/2025    14/09/2025    BONIFICO DA MARIO ROSSI TRN 0306912345678    1.250,00",
		"15/09/2025    15/09/2025    42,50    SUPERMERCATO COOP",
		"20/09/25 Canone mensile conto 2,00",
		"riferimento pratica senza importo",
		"SALDO FINALE 30/09/2025 3.456,78",
	}

	p := &GenericParser{}
	info, err := p.Parse(lines)
	require.NoError(t, err)

	assert.Equal(t, "ANNA VERDI", info.AccountHolder)
	assert.Equal(t, "30/09/2025", info.StatementDate)
	require.Len(t, info.Candidates, 4)

	pos := info.Candidates[0]
	assert.Equal(t, "12/09/2025", pos.AccountingDate)
	assert.Equal(t, "15,24", pos.AmountText)
	assert.Equal(t, "PAGAMENTO POS", pos.OperationHint)
	assert.Equal(t, "PAGAMENTO POS BAR SPORT", pos.Description)
	assert.Equal(t, 5, pos.Line)

	transfer := info.Candidates[1]
	assert.Equal(t, "14/09/2025", transfer.ValueDate)
	assert.Equal(t, "1.250,00", transfer.AmountText)
	assert.Equal(t, "BONIFICO", transfer.OperationHint)
	assert.Equal(t, "BONIFICO DA MARIO ROSSI", transfer.Description)

	free := info.Candidates[2]
	assert.Equal(t, "42,50", free.AmountText)
	assert.Equal(t, "", free.OperationHint)
	assert.Equal(t, "SUPERMERCATO COOP", free.Description)

	single := info.Candidates[3]
	assert.Equal(t, "20/09/25", single.AccountingDate)
	assert.Equal(t, "", single.ValueDate)
	assert.Equal(t, "2,00", single.AmountText)
	assert.Equal(t, "CANONE", single.OperationHint)
	assert.Equal(t, "Canone mensile conto", single.Description)
}

func TestParseGenericLine_Method(t *testing.T) {
	tests := []struct {
		line   string
		method string
		ok     bool
	}{
		{"12/09/2025 12/09/2025 15,24 PAGAMENTO POS BAR", "two-dates-operation", true},
		{"12/09/2025 12/09/2025 POSTAGIRO DA LUCA 100,00", "two-dates-operation", true},
		{"12/09/2025 12/09/2025 15,24 BAR", "two-dates", true},
		{"12/09/2025 BAR 15,24", "one-date", true},
		{"12/09/2025 15,24", "", false},
		{"PAGAMENTO POS BAR 15,24", "", false},
		{"just words", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, method, ok := parseGenericLine(tt.line)
			if ok != tt.ok || method != tt.method {
				t.Errorf("got (%q, %v), want (%q, %v)", method, ok, tt.method, tt.ok)
			}
		})
	}
}

func TestGenericParser_SkipsNoiseAndCountsMisses(t *testing.T) {
	lines := []string{
		"Saldo iniziale 01/09/2025 1.000,00",
		"12/09/2025 senza importo",
		"Totale uscite 57,74",
	}
	info, err := (&GenericParser{}).Parse(lines)
	require.NoError(t, err)
	assert.Empty(t, info.Candidates)
	assert.Equal(t, 1, info.Skipped)

	results := map[string]int{}
	for _, d := range info.DebugLines {
		results[d.Result]++
	}
	assert.Equal(t, 2, results["noise"])
	assert.Equal(t, 1, results["skipped"])
}

func TestGenericParser_MerchantNamesThatLookLikeFurniture(t *testing.T) {
	lines := []string{
		"13/09/2025 13/09/2025 PAGAMENTO POS TOTALERG ROMA 45,00",
		"14/09/2025 14/09/2025 45,00 TOTALERG NAPOLI",
		"15/09/2025 RISTORANTE IL RIPORTO 62,00",
		"Totale uscite 152,00",
	}
	info, err := (&GenericParser{}).Parse(lines)
	require.NoError(t, err)
	require.Len(t, info.Candidates, 3)

	assert.Equal(t, "PAGAMENTO POS", info.Candidates[0].OperationHint)
	assert.Contains(t, info.Candidates[0].Description, "TOTALERG ROMA")
	assert.Equal(t, "45,00", info.Candidates[0].AmountText)
	assert.Equal(t, "TOTALERG NAPOLI", info.Candidates[1].Description)
	assert.Equal(t, "RISTORANTE IL RIPORTO", info.Candidates[2].Description)
	assert.Equal(t, 0, info.Skipped)
}
