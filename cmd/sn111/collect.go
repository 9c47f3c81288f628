package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tranmanhhung/sn111/internal/miner"
)

var (
	collectPlaceID string
	collectLocale  string
	collectSort    string
	collectTimeout time.Duration
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Mine reviews for one place",
	Long: `Run a single review mining request against a place id and print the
result envelope as JSON. The request walks the same pipeline the server
uses: cache first, live collection under the deadline, stale fallbacks.

Examples:
  sn111 collect --place-id 0x89c258f07appa6ff
  sn111 collect --place-id 0x89c258f07appa6ff --locale de --sort lowest
  sn111 collect --place-id 0x89c258f07appa6ff --timeout 30s`,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().StringVar(&collectPlaceID, "place-id", "", "Place id to mine (required)")
	collectCmd.Flags().StringVar(&collectLocale, "locale", "", "Review language (default: en)")
	collectCmd.Flags().StringVar(&collectSort, "sort", "", "Ordering: newest, relevant, highest, lowest (default: newest)")
	collectCmd.Flags().DurationVar(&collectTimeout, "timeout", 0, "Overall request budget (default: from config)")
	collectCmd.Flags().StringVar(&selectorsPath, "selectors", "", "Selector profile file (default: embedded)")
	_ = collectCmd.MarkFlagRequired("place-id")
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl+C aborts the in-flight collection instead of killing the process
	// mid-scrape, so the browser pool still shuts down cleanly.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	st, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	res := st.service.HandleReviewRequest(ctx, miner.Request{
		PlaceID: collectPlaceID,
		Locale:  collectLocale,
		Sort:    collectSort,
		Timeout: collectTimeout,
	})
	printJSON(res)

	if res.Status == miner.StatusError {
		return fmt.Errorf("mining failed: %s", res.Message)
	}
	return nil
}
