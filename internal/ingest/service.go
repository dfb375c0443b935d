// Package ingest runs a statement document through extraction, parsing,
// normalization, classification, deduplication, categorization and
// persistence, and reconciles the stated balance.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/pfinance/internal/balance"
	"github.com/insightdelivered/pfinance/internal/categorizer"
	"github.com/insightdelivered/pfinance/internal/config"
	"github.com/insightdelivered/pfinance/internal/dedup"
	"github.com/insightdelivered/pfinance/internal/extractor"
	"github.com/insightdelivered/pfinance/internal/models"
	"github.com/insightdelivered/pfinance/internal/parser"
	"github.com/insightdelivered/pfinance/internal/store"
)

const (
	ruleCacheTTL     = 15 * time.Minute
	ruleCacheCleanup = 30 * time.Minute
)

// ruleSnapshotKey ties a cached snapshot to the rules version it was built from.
func ruleSnapshotKey(version int64) string {
	return fmt.Sprintf("rules:%d", version)
}

// FragmentExtractor yields positioned text per PDF page.
type FragmentExtractor interface {
	ExtractFragments(data []byte) ([][]models.Fragment, error)
}

// CellExtractor yields a spreadsheet as a row-major grid.
type CellExtractor interface {
	ExtractCells(data []byte) ([][]string, error)
}

// Store is the persistence contract the pipeline needs.
type Store interface {
	LoadExistingHashes(ctx context.Context) ([]string, error)
	LoadActiveRules(ctx context.Context) ([]models.CategoryRule, error)
	RulesVersion(ctx context.Context) (int64, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	InsertBatch(ctx context.Context, txs []models.Transaction, a *models.BalanceAssertion, runID string) (store.InsertResult, error)
	GetRunningBalanceInputs(ctx context.Context) (models.BalanceInputs, error)
	SelectedBalance(ctx context.Context) (*models.BalanceAssertion, error)
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
	UpdateCategories(ctx context.Context, byHash map[string]string) error
}

// Options tunes one Service.
type Options struct {
	MinPDFBytes int
	ColumnGap   float64
	Thresholds  balance.Thresholds
	Fallback    string
	// Bank forces a PDF layout; empty means auto-detect.
	Bank models.BankType
}

// OptionsFromConfig maps the config file onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MinPDFBytes: cfg.Ingest.MinPDFBytes,
		ColumnGap:   cfg.Ingest.ColumnGap,
		Thresholds: balance.Thresholds{
			Medium: cfg.Balance.MediumThreshold,
			High:   cfg.Balance.HighThreshold,
		},
		Fallback: cfg.Categories.Fallback,
	}
}

// Statement is the document metadata found by the parser.
type Statement struct {
	Bank          models.BankType `json:"bank"`
	AccountHolder string          `json:"accountHolder,omitempty"`
	AccountNumber string          `json:"accountNumber,omitempty"`
	StatementDate string          `json:"statementDate,omitempty"`
}

// Result is the outcome of one successful ingestion. Transactions holds
// every transaction read from the document, including duplicates.
type Result struct {
	RunID            string                    `json:"runId"`
	Kind             models.SourceKind         `json:"kind"`
	Statement        Statement                 `json:"statement"`
	Transactions     []models.Transaction      `json:"transactions"`
	BalanceAssertion *models.BalanceAssertion  `json:"balanceAssertion,omitempty"`
	Validation       *models.BalanceValidation `json:"validation,omitempty"`
	Stats            models.IngestStats        `json:"stats"`
	DebugLines       []models.DebugLine        `json:"debugLines,omitempty"`
}

// Service ingests documents one at a time.
type Service struct {
	store Store
	pdf   FragmentExtractor
	sheet CellExtractor
	opts  Options
	log   zerolog.Logger
	rules *cache.Cache
	now   func() time.Time

	mu sync.Mutex
}

// NewService wires a Service. Nil extractors mean the built-in ones.
func NewService(st Store, pdf FragmentExtractor, sheet CellExtractor, log zerolog.Logger, opts Options) *Service {
	if pdf == nil {
		pdf = extractor.PDFExtractor{}
	}
	if sheet == nil {
		sheet = extractor.SheetExtractor{}
	}
	if opts.ColumnGap <= 0 {
		opts.ColumnGap = extractor.DefaultColumnGap
	}
	if opts.Thresholds == (balance.Thresholds{}) {
		opts.Thresholds = balance.DefaultThresholds
	}
	if opts.Fallback == "" {
		opts.Fallback = categorizer.DefaultFallback
	}
	return &Service{
		store: st,
		pdf:   pdf,
		sheet: sheet,
		opts:  opts,
		log:   log,
		rules: cache.New(ruleCacheTTL, ruleCacheCleanup),
		now:   time.Now,
	}
}

// parsed is what extraction and parsing hand to the rest of the pipeline.
type parsed struct {
	info      *models.StatementInfo
	assertion *models.BalanceAssertion
}

// Ingest runs one document end to end. Structural failures return a
// *FatalError and persist nothing; unreadable lines are only counted.
func (s *Service) Ingest(ctx context.Context, data []byte, kind models.SourceKind) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Str("kind", string(kind)).Logger()
	log.Info().Int("bytes", len(data)).Msg("ingest start")

	var (
		p   *parsed
		err error
	)
	switch kind {
	case models.SourcePDF:
		p, err = s.parsePDF(data, log)
	case models.SourceSpreadsheet:
		p, err = s.parseSheet(data, log)
	default:
		err = fatal(kind, "unsupported kind", ErrUnsupportedKind)
	}
	if err != nil {
		log.Warn().Err(err).Msg("ingest aborted")
		return nil, err
	}

	res := &Result{
		RunID: runID,
		Kind:  kind,
		Statement: Statement{
			Bank:          p.info.Bank,
			AccountHolder: p.info.AccountHolder,
			AccountNumber: p.info.AccountNumber,
			StatementDate: p.info.StatementDate,
		},
		BalanceAssertion: p.assertion,
		DebugLines:       p.info.DebugLines,
	}
	res.Stats.Skipped = p.info.Skipped

	txs := toTransactions(kind, p.info.Candidates, start, &res.Stats)
	res.Stats.TotalParsed = len(txs)
	log.Info().
		Int("candidates", len(p.info.Candidates)).
		Int("skipped", res.Stats.Skipped).
		Int("defaulted_dates", res.Stats.DefaultedDates).
		Int("defaulted_amounts", res.Stats.DefaultedAmounts).
		Msg("normalized")

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	snap.Apply(txs)
	res.Transactions = txs

	existing, err := s.store.LoadExistingHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading existing hashes: %w", err)
	}
	fresh, dups := dedup.NewSet(existing).Split(txs)

	if p.assertion != nil {
		v, err := s.reconcile(ctx, fresh, p.assertion)
		if err != nil {
			return nil, err
		}
		res.Validation = v
		ev := log.Info()
		if v.AlertLevel != models.AlertNone {
			ev = log.Warn()
		}
		ev.Str("asserted", v.Asserted.StringFixed(2)).
			Str("computed", v.CurrentBalance.StringFixed(2)).
			Str("difference", v.Difference.StringFixed(2)).
			Str("alert", string(v.AlertLevel)).
			Msg("balance reconciled")
	}

	ins, err := s.store.InsertBatch(ctx, fresh, p.assertion, runID)
	if err != nil {
		return nil, fmt.Errorf("persisting batch: %w", err)
	}
	res.Stats.Inserted = ins.Inserted
	res.Stats.Duplicates = dups + ins.Duplicates

	log.Info().
		Int("total", res.Stats.TotalParsed).
		Int("inserted", res.Stats.Inserted).
		Int("duplicates", res.Stats.Duplicates).
		Dur("duration", s.now().Sub(start)).
		Msg("ingest done")
	return res, nil
}

func (s *Service) parsePDF(data []byte, log zerolog.Logger) (*parsed, error) {
	if len(data) < s.opts.MinPDFBytes {
		return nil, fatal(models.SourcePDF, fmt.Sprintf("%d bytes, minimum is %d", len(data), s.opts.MinPDFBytes), ErrDocumentTooSmall)
	}
	pages, err := s.pdf.ExtractFragments(data)
	if err != nil {
		return nil, fatal(models.SourcePDF, "unreadable document", err)
	}
	lines := extractor.Reconstruct(pages, s.opts.ColumnGap)

	bank := s.opts.Bank
	if bank == "" {
		bank = parser.AutoDetect(lines)
	}
	pr, err := parser.New(bank)
	if err != nil {
		return nil, fatal(models.SourcePDF, "no parser", err)
	}
	log.Debug().Int("pages", len(pages)).Int("lines", len(lines)).Str("layout", pr.BankName()).Msg("extracted")

	info, err := pr.Parse(lines)
	if err != nil {
		return nil, fatal(models.SourcePDF, "parse failed", err)
	}
	a := info.Balance
	if a == nil {
		a = balance.FromLines(lines)
	}
	return &parsed{info: info, assertion: a}, nil
}

func (s *Service) parseSheet(data []byte, log zerolog.Logger) (*parsed, error) {
	rows, err := s.sheet.ExtractCells(data)
	if err != nil {
		return nil, fatal(models.SourceSpreadsheet, "unreadable document", err)
	}
	log.Debug().Int("rows", len(rows)).Msg("extracted")

	info, err := (&parser.SpreadsheetParser{}).ParseRows(rows)
	if errors.Is(err, parser.ErrHeaderNotFound) {
		return nil, fatal(models.SourceSpreadsheet, "no header row", err)
	}
	if err != nil {
		return nil, fatal(models.SourceSpreadsheet, "parse failed", err)
	}
	return &parsed{info: info, assertion: balance.FromRows(rows)}, nil
}

// reconcile checks the document's balance against the stored base plus every
// known transaction, including the ones about to be inserted.
func (s *Service) reconcile(ctx context.Context, fresh []models.Transaction, a *models.BalanceAssertion) (*models.BalanceValidation, error) {
	in, err := s.store.GetRunningBalanceInputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading balance inputs: %w", err)
	}
	in.Transactions = append(in.Transactions, fresh...)
	v := balance.Reconcile(in, a, s.opts.Thresholds)
	return &v, nil
}

// ValidateBalance compares a computed balance with an asserted one.
func (s *Service) ValidateBalance(computed, asserted, base decimal.Decimal) models.BalanceValidation {
	return balance.Validate(computed, asserted, base, s.opts.Thresholds)
}

// BalanceStatus is the ledger's current running balance and, when a
// file-derived balance is selected, its reconciliation.
type BalanceStatus struct {
	Current    decimal.Decimal           `json:"current"`
	Base       decimal.Decimal           `json:"base"`
	BaseDate   *time.Time                `json:"baseDate,omitempty"`
	Manual     bool                      `json:"manual"`
	Selected   *models.BalanceAssertion  `json:"selected,omitempty"`
	Validation *models.BalanceValidation `json:"validation,omitempty"`
}

// Balance computes the current BalanceStatus.
func (s *Service) Balance(ctx context.Context) (*BalanceStatus, error) {
	in, err := s.store.GetRunningBalanceInputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading balance inputs: %w", err)
	}
	st := &BalanceStatus{
		Current:  balance.Running(in),
		Base:     in.BaseBalance,
		BaseDate: in.BaseDate,
		Manual:   in.Manual,
	}
	if st.Selected, err = s.store.SelectedBalance(ctx); err != nil {
		return nil, err
	}
	if st.Selected != nil {
		v := balance.Reconcile(in, st.Selected, s.opts.Thresholds)
		st.Validation = &v
	}
	return st, nil
}

// Recategorize reloads the rules and recomputes the category of every stored
// transaction against that one snapshot. It returns how many changed.
func (s *Service) Recategorize(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.InvalidateRules()
	snap, err := s.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading transactions: %w", err)
	}

	changed := make(map[string]string)
	for _, t := range txs {
		if c := snap.Categorize(t); c != t.Category {
			changed[t.Hash] = c
		}
	}
	if len(changed) > 0 {
		if err := s.store.UpdateCategories(ctx, changed); err != nil {
			return 0, err
		}
	}
	s.log.Info().Int("transactions", len(txs)).Int("changed", len(changed)).Msg("recategorized")
	return len(changed), nil
}

// InvalidateRules drops every cached rule snapshot; the next run reloads.
func (s *Service) InvalidateRules() {
	s.rules.Flush()
}

// snapshot returns the rule snapshot for the store's current rules version,
// loading it on a miss. Each run calls it once and uses that one snapshot.
func (s *Service) snapshot(ctx context.Context) (*categorizer.Snapshot, error) {
	version, err := s.store.RulesVersion(ctx)
	if err != nil {
		return nil, err
	}
	key := ruleSnapshotKey(version)
	if cached, found := s.rules.Get(key); found {
		return cached.(*categorizer.Snapshot), nil
	}
	rules, err := s.store.LoadActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	snap := categorizer.NewSnapshot(rules, cats, s.opts.Fallback)
	s.rules.Flush()
	s.rules.Set(key, snap, cache.DefaultExpiration)
	s.log.Debug().Int64("version", version).Int("rules", len(snap.Rules())).Msg("rule snapshot loaded")
	return snap, nil
}
