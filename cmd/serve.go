package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fabrica/fabrica/internal/api"
	"github.com/fabrica/fabrica/internal/ws"
)

var (
	servePort    int
	serveDevMode bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serve validation and generation over a local JSON API, with run
progress streamed over a WebSocket at /ws.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := setupLogger(cfg)
		if err != nil {
			return fmt.Errorf("setting up logging: %w", err)
		}

		hub := ws.NewHub(logger)
		go hub.Run()

		gen := buildGenerator(cfg, cfg.Generation.Seed)
		runner := api.NewRunner(gen, hub, logger)
		hub.SetStateProvider(func() ([]byte, error) {
			return json.Marshal(runner.Status())
		})

		srv := api.New(runner, logger, servePort,
			api.WithHub(hub),
			api.WithDevMode(serveDevMode),
		)

		// Graceful shutdown on signals
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		fmt.Fprintf(os.Stderr, "Fabrica API: http://localhost:%d\n", servePort)

		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return err
			}
		case <-ctx.Done():
			logger.Info("shutting down server")
			runner.Abort()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8230, "port for the API server")
	serveCmd.Flags().BoolVar(&serveDevMode, "dev", false, "enable CORS for development mode")
	rootCmd.AddCommand(serveCmd)
}
