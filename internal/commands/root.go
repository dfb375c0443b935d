package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/insightdelivered/pfinance/internal/buildinfo"
	"github.com/insightdelivered/pfinance/internal/config"
	"github.com/insightdelivered/pfinance/internal/ingest"
	"github.com/insightdelivered/pfinance/internal/logger"
	"github.com/insightdelivered/pfinance/internal/store"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	dbPath     string
	logLevel   string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:     "pfinance",
		Short:   "Italian bank statement ingestion and categorization",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "pfinance.yaml", "config file")
	pf.StringVar(&g.envFile, "env-file", ".env", "dotenv file with PFINANCE_* overrides")
	pf.StringVar(&g.dbPath, "db", "", "SQLite database path (overrides config)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newInitCommand(g),
		newIngestCommand(g),
		newServeCommand(g),
		newBalanceCommand(g),
		newRulesCommand(g),
		newCategorizeCommand(g),
		newRecategorizeCommand(g),
		newExportCommand(g),
	)

	return rootCmd
}

// env is what a command needs once flags and config are resolved.
type env struct {
	cfg   *config.Config
	log   zerolog.Logger
	store *store.Store
}

// load resolves config (file, then .env and PFINANCE_* variables, then
// flags) and opens the store. Callers close it.
func (g *globalFlags) load() (*env, error) {
	cfg, err := config.LoadOrDefault(g.configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, g.envFile); err != nil {
		return nil, err
	}
	if g.dbPath != "" {
		cfg.Database.Path = g.dbPath
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}

	log := logger.New(cfg.Log.Level)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("db", cfg.Database.Path).Msg("store opened")
	return &env{cfg: cfg, log: log, store: st}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

func (e *env) service(opts ingest.Options) *ingest.Service {
	return ingest.NewService(e.store, nil, nil, e.log, opts)
}
