package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tranmanhhung/sn111/internal/api"
	"github.com/tranmanhhung/sn111/internal/logging"
	"github.com/tranmanhhung/sn111/internal/miner"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP mining server",
	Long: `Start the sn111 HTTP server. The server exposes the review mining
endpoint, place resolution, operational stats, Prometheus metrics, and
token-guarded admin actions, and optionally runs the background prefetch
loop that keeps predicted places warm.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().StringVar(&vocabularyPath, "vocabulary", "",
		"Vocabulary file for the combination predictor (default: embedded)")
	serveCmd.Flags().StringVar(&selectorsPath, "selectors", "",
		"Selector profile file (default: embedded)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}

	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	pred, err := newPredictor()
	if err != nil {
		return err
	}

	var prefetcher *miner.Prefetcher
	if cfg.Prefetch.Enabled {
		prefetcher = miner.NewPrefetcher(st.service, pred, cfg.Prefetch, logger)
		prefetcher.Start()
	}

	server := api.NewServer(*cfg, api.Backends{
		Service:    st.service,
		Predictor:  pred,
		Prefetcher: prefetcher,
		Pool:       st.pool,
		Store:      st.store,
	}, logger)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		fmt.Printf("sn111 listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server error", map[string]interface{}{
				"error": err.Error(),
			})
			stopPrefetcher(prefetcher, cfg.Server.ShutdownTimeout(), logger)
			return err
		}
	case sig := <-shutdown:
		logger.Info("Received shutdown signal", map[string]interface{}{
			"signal": sig.String(),
		})

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", map[string]interface{}{
				"error": err.Error(),
			})
		}
		stopPrefetcher(prefetcher, cfg.Server.ShutdownTimeout(), logger)
		logger.Info("Server stopped gracefully", nil)
	}

	return nil
}

// stopPrefetcher drains the prefetch loop within the shutdown budget.
func stopPrefetcher(p *miner.Prefetcher, timeout time.Duration, logger *logging.Logger) {
	if p == nil {
		return
	}
	if err := p.Stop(timeout); err != nil {
		logger.Warn("prefetch loop did not stop cleanly", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
