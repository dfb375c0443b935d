package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/pfinance/internal/api"
	"github.com/insightdelivered/pfinance/internal/buildinfo"
	"github.com/insightdelivered/pfinance/internal/ingest"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(g *globalFlags) *cobra.Command {
	var port, staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.load()
			if err != nil {
				return err
			}
			defer e.Close()

			if port == "" {
				port = e.cfg.Server.Port
			}

			h := api.NewHandler(e.service(ingest.OptionsFromConfig(e.cfg)), e.store, e.log, buildinfo.Version)
			h.StaticDir = staticDir
			app := api.NewApp(h, e.cfg.Server.MaxUploadBytes)

			errCh := make(chan error, 1)
			go func() {
				e.log.Info().Str("port", port).Msg("listening")
				errCh <- app.Listen(":" + port)
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server: %w", err)
			case <-cmd.Context().Done():
				e.log.Info().Msg("shutting down")
				return app.ShutdownWithTimeout(shutdownTimeout)
			}
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides config)")
	cmd.Flags().StringVar(&staticDir, "static", "", "directory of a web frontend to serve at /")

	return cmd
}
