package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input     string
		want      string
		defaulted bool
	}{
		{"1.234,56", "1234.56", false},
		{"4,99", "4.99", false},
		{"-15,24", "15.24", false},
		{"+2.500,00 €", "2500", false},
		{"€ 15,24", "15.24", false},
		{"1.234.567", "1234567", false},
		{"12.50", "12.5", false},
		{"garbage", "0", true},
		{"", "0", true},
		{"-", "0", true},
		{"1,2,3", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseAmount(tt.input)
			assert.Equal(t, tt.want, got.Value.String())
			assert.Equal(t, tt.defaulted, got.Defaulted)
			assert.False(t, got.Value.IsNegative())
		})
	}
}

func TestAmount_FallsBackToZero(t *testing.T) {
	assert.True(t, Amount("garbage").IsZero())
	assert.Equal(t, "1234.56", Amount("1.234,56").String())
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"13/09/25", "2025-09-13", true},
		{"13/09/2025", "2025-09-13", true},
		{"13-09-2025", "2025-09-13", true},
		{"13.09.2025", "2025-09-13", true},
		{"01/02/51", "1951-02-01", true},
		{"01/02/50", "2050-02-01", true},
		{"1/2/2024", "2024-02-01", true},
		{"2025-09-13", "2025-09-13", true},
		{"2025-09-13T00:00:00Z", "2025-09-13", true},
		{"45913", "2025-09-13", true},
		{"45913.5", "2025-09-13", true},
		{"13/09/2025 10:15", "2025-09-13", true},
		{"31/02/2025", "", false},
		{"13/13/2025", "", false},
		{"not a date", "", false},
		{"", "", false},
		{"0", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.Format("2006-01-02"))
			}
		})
	}
}

// Unreadable dates silently become "today". This is a known correctness
// risk; the Defaulted flag is what lets callers tell the two apart.
func TestResolveDate_DefaultsToToday(t *testing.T) {
	ref := time.Date(2026, time.March, 4, 17, 30, 0, 0, time.UTC)

	got := ResolveDate("??/??", ref)
	assert.True(t, got.Defaulted)
	assert.Equal(t, "2026-03-04", got.Time.Format("2006-01-02"))

	got = ResolveDate("04/03/2026", ref)
	assert.False(t, got.Defaulted)
}

func TestDate_UsesClock(t *testing.T) {
	orig := now
	defer func() { now = orig }()
	now = func() time.Time { return time.Date(2024, time.July, 1, 9, 0, 0, 0, time.UTC) }

	assert.Equal(t, "2025-09-13", Date("13/09/25"))
	assert.Equal(t, "2024-07-01", Date("garbage"))
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "PAGAMENTO POS ESSELUNGA", CleanDescription("  PAGAMENTO   POS\tESSELUNGA  "))
	assert.Equal(t, Placeholder, CleanDescription("   "))
	assert.Equal(t, Placeholder, CleanDescription(""))
}

func TestForMatching(t *testing.T) {
	assert.Equal(t, "caffe perche citta", ForMatching("  Caffè   Perché CITTÀ "))
	assert.Equal(t, "pagamento pos", ForMatching("PAGAMENTO\nPOS"))
}

func TestSignedAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.234,56", "1234.56"},
		{"-120,00", "-120"},
		{"120,00-", "-120"},
		{"(45,10)", "-45.1"},
		{"- 3,00 €", "-3"},
		{"garbage", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := SignedAmount(tt.input)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}
