package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/pfinance/internal/dedup"
	"github.com/insightdelivered/pfinance/internal/models"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func tx(id string, date time.Time, amount string, desc string, typ models.TxType) models.Transaction {
	t := models.Transaction{
		ID:          id,
		Date:        date,
		Amount:      decimal.RequireFromString(amount),
		Description: desc,
		Type:        typ,
		Category:    "Other",
		Source:      models.SourcePDF,
	}
	t.Hash = dedup.HashTransaction(t)
	return t
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	hashes, err := s.LoadExistingHashes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hashes)
}

func TestInsertBatch_DuplicatesAreCounted(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	vd := day(2025, 9, 14)
	a := tx("pdf_1", day(2025, 9, 13), "15.24", "PAGAMENTO POS STAZIONE FRUTTA", models.Expense)
	a.ValueDate = &vd
	b := tx("pdf_2", day(2025, 9, 15), "1200", "STIPENDIO", models.Income)

	res, err := s.InsertBatch(ctx, []models.Transaction{a, b}, nil, "run-1")
	require.NoError(t, err)
	assert.Equal(t, InsertResult{Inserted: 2}, res)

	res, err = s.InsertBatch(ctx, []models.Transaction{a, b}, nil, "run-2")
	require.NoError(t, err)
	assert.Equal(t, InsertResult{Duplicates: 2}, res)

	hashes, err := s.LoadExistingHashes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.Hash, b.Hash}, hashes)

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "pdf_1", txs[0].ID)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("15.24")))
	require.NotNil(t, txs[0].ValueDate)
	assert.Equal(t, vd, *txs[0].ValueDate)
	assert.Equal(t, models.Expense, txs[0].Type)
	assert.Equal(t, models.SourcePDF, txs[0].Source)
	assert.Nil(t, txs[1].ValueDate)
}

func TestInsertBatch_IsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	good := tx("pdf_1", day(2025, 9, 13), "10", "BAR", models.Expense)
	bad := tx("pdf_2", day(2025, 9, 13), "20", "BAR", models.Expense)
	bad.Hash = ""

	_, err := s.InsertBatch(ctx, []models.Transaction{good, bad}, &models.BalanceAssertion{
		Value: decimal.NewFromInt(5), ExtractionPattern: "saldo",
	}, "run")
	require.Error(t, err)

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
	rec, err := s.SelectedBalance(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestBalanceRecords_LatestStatementSelected(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	sep, aug := day(2025, 9, 30), day(2025, 8, 31)
	_, err := s.InsertBatch(ctx, nil, &models.BalanceAssertion{
		Value: decimal.RequireFromString("984.76"), ExtractionPattern: "saldo-finale", StatementDate: &sep,
	}, "r1")
	require.NoError(t, err)
	_, err = s.InsertBatch(ctx, nil, &models.BalanceAssertion{
		Value: decimal.RequireFromString("1000"), ExtractionPattern: "saldo-finale", StatementDate: &aug,
	}, "r2")
	require.NoError(t, err)

	rec, err := s.SelectedBalance(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Value.Equal(decimal.RequireFromString("984.76")))
	require.NotNil(t, rec.StatementDate)
	assert.Equal(t, sep, *rec.StatementDate)
}

func TestGetRunningBalanceInputs(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	in, err := s.GetRunningBalanceInputs(ctx)
	require.NoError(t, err)
	assert.True(t, in.BaseBalance.IsZero())
	assert.Nil(t, in.BaseDate)
	assert.False(t, in.Manual)

	stmt := day(2025, 8, 31)
	_, err = s.InsertBatch(ctx,
		[]models.Transaction{tx("pdf_1", day(2025, 9, 2), "200", "AFFITTO", models.Expense)},
		&models.BalanceAssertion{Value: decimal.NewFromInt(1000), ExtractionPattern: "saldo", StatementDate: &stmt},
		"run")
	require.NoError(t, err)

	in, err = s.GetRunningBalanceInputs(ctx)
	require.NoError(t, err)
	assert.True(t, in.BaseBalance.Equal(decimal.NewFromInt(1000)))
	require.NotNil(t, in.BaseDate)
	assert.Equal(t, stmt, *in.BaseDate)
	assert.Len(t, in.Transactions, 1)

	require.NoError(t, s.SetManualBalance(ctx, decimal.RequireFromString("50.5"), nil))
	in, err = s.GetRunningBalanceInputs(ctx)
	require.NoError(t, err)
	assert.True(t, in.Manual)
	assert.True(t, in.BaseBalance.Equal(decimal.RequireFromString("50.5")))
	assert.Nil(t, in.BaseDate)

	require.NoError(t, s.ClearManualBalance(ctx))
	in, err = s.GetRunningBalanceInputs(ctx)
	require.NoError(t, err)
	assert.False(t, in.Manual)
	assert.True(t, in.BaseBalance.Equal(decimal.NewFromInt(1000)))
}

func TestRules(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	groceries, err := s.AddCategory(ctx, "Groceries")
	require.NoError(t, err)
	again, err := s.AddCategory(ctx, "Groceries")
	require.NoError(t, err)
	assert.Equal(t, groceries, again)

	dining, err := s.AddCategory(ctx, "Dining")
	require.NoError(t, err)

	_, err = s.AddRule(ctx, models.CategoryRule{CategoryID: groceries, Pattern: "coop", Priority: 20, Enabled: true})
	require.NoError(t, err)
	_, err = s.AddRule(ctx, models.CategoryRule{CategoryID: groceries, Pattern: "esselunga", Priority: 20, Enabled: true})
	require.NoError(t, err)
	barID, err := s.AddRule(ctx, models.CategoryRule{CategoryID: dining, Pattern: "bar", MatchType: models.MatchStartsWith, Priority: 5, Enabled: true})
	require.NoError(t, err)

	_, err = s.AddRule(ctx, models.CategoryRule{CategoryID: dining, Pattern: "x", MatchType: "regex", Enabled: true})
	assert.Error(t, err)
	_, err = s.AddRule(ctx, models.CategoryRule{CategoryID: dining, Pattern: "  ", Enabled: true})
	assert.Error(t, err)

	rules, err := s.LoadActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, "bar", rules[0].Pattern)
	assert.Equal(t, "Dining", rules[0].Category)
	assert.Equal(t, "esselunga", rules[1].Pattern)
	assert.Equal(t, "coop", rules[2].Pattern)
	assert.Equal(t, models.MatchContains, rules[2].MatchType)

	require.NoError(t, s.SetRuleEnabled(ctx, barID, false))
	require.NoError(t, s.SetCategoryActive(ctx, groceries, false))
	rules, err = s.LoadActiveRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	all, err := s.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.ErrorIs(t, s.SetRuleEnabled(ctx, 999, true), ErrNotFound)
}

func TestSetManualCategory(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	a := tx("pdf_1", day(2025, 9, 13), "9.90", "NETFLIX", models.Expense)
	_, err := s.InsertBatch(ctx, []models.Transaction{a}, nil, "run")
	require.NoError(t, err)

	subs, err := s.AddCategory(ctx, "Subscriptions")
	require.NoError(t, err)
	require.NoError(t, s.SetManualCategory(ctx, a.Hash, subs))

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].IsManualOverride)
	require.NotNil(t, txs[0].ManualCategoryID)
	assert.Equal(t, subs, *txs[0].ManualCategoryID)
	assert.Equal(t, "Subscriptions", txs[0].Category)

	assert.ErrorIs(t, s.SetManualCategory(ctx, "nohash", subs), ErrNotFound)
	assert.ErrorIs(t, s.SetManualCategory(ctx, a.Hash, 999), ErrNotFound)
}

func TestUpdateCategories(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	a := tx("pdf_1", day(2025, 9, 13), "3", "COOP", models.Expense)
	b := tx("pdf_2", day(2025, 9, 14), "4", "BAR", models.Expense)
	_, err := s.InsertBatch(ctx, []models.Transaction{a, b}, nil, "run")
	require.NoError(t, err)

	require.NoError(t, s.UpdateCategories(ctx, map[string]string{a.Hash: "Groceries"}))

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "Groceries", txs[0].Category)
	assert.Equal(t, "Other", txs[1].Category)
}

func TestSetManualBalance_ValueAndDateMoveTogether(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	first := day(2025, 8, 31)
	require.NoError(t, s.SetManualBalance(ctx, decimal.NewFromInt(100), &first))
	require.NoError(t, s.SetManualBalance(ctx, decimal.NewFromInt(50), nil))

	in, err := s.GetRunningBalanceInputs(ctx)
	require.NoError(t, err)
	assert.True(t, in.BaseBalance.Equal(decimal.NewFromInt(50)))
	assert.Nil(t, in.BaseDate)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	second := day(2025, 9, 30)
	assert.Error(t, s.SetManualBalance(cancelled, decimal.NewFromInt(75), &second))

	in, err = s.GetRunningBalanceInputs(ctx)
	require.NoError(t, err)
	assert.True(t, in.BaseBalance.Equal(decimal.NewFromInt(50)))
	assert.Nil(t, in.BaseDate)
}

func TestRulesVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	v0, err := s.RulesVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v0)

	cat, err := s.AddCategory(ctx, "Fuel")
	require.NoError(t, err)
	v1, err := s.RulesVersion(ctx)
	require.NoError(t, err)
	assert.Greater(t, v1, v0)

	// re-adding an existing category is not a change
	_, err = s.AddCategory(ctx, "Fuel")
	require.NoError(t, err)
	v, err := s.RulesVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1, v)

	// a rejected rule is not a change
	_, err = s.AddRule(ctx, models.CategoryRule{CategoryID: cat, Pattern: " ", Enabled: true})
	require.Error(t, err)
	v, err = s.RulesVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1, v)

	// a second handle on the same file sees changes made through the first
	other, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })

	id, err := s.AddRule(ctx, models.CategoryRule{CategoryID: cat, Pattern: "totalerg", Enabled: true})
	require.NoError(t, err)
	v2, err := other.RulesVersion(ctx)
	require.NoError(t, err)
	assert.Greater(t, v2, v1)

	require.NoError(t, other.SetRuleEnabled(ctx, id, false))
	v3, err := s.RulesVersion(ctx)
	require.NoError(t, err)
	assert.Greater(t, v3, v2)

	require.NoError(t, s.SetCategoryActive(ctx, cat, false))
	v4, err := other.RulesVersion(ctx)
	require.NoError(t, err)
	assert.Greater(t, v4, v3)
}
