package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/storage"
)

var cachePurgeOlderThan time.Duration

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the review cache",
	Long: `Inspect and maintain the on-disk review cache.

Examples:
  sn111 cache stats
  sn111 cache purge
  sn111 cache purge --older-than 24h`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache table statistics",
	RunE:  runCacheStats,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove entries past the retention horizon",
	Long: `Remove cache entries whose TTL lapsed longer ago than the retention
horizon. Expired entries inside the horizon stay available as stale
fallbacks and are kept.`,
	RunE: runCachePurge,
}

func init() {
	cachePurgeCmd.Flags().DurationVar(&cachePurgeOlderThan, "older-than", 0,
		"Retention horizon override (default: from config)")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openConfiguredStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(context.Background())
	if err != nil {
		return err
	}
	printJSON(stats)
	return nil
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openConfiguredStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	horizon := cfg.Cache.RetentionHorizon()
	if cachePurgeOlderThan > 0 {
		horizon = cachePurgeOlderThan
	}

	removed, err := store.Purge(context.Background(), horizon)
	if err != nil {
		return err
	}
	printJSON(map[string]interface{}{
		"removed": removed,
		"horizon": horizon.String(),
	})
	return nil
}

// openConfiguredStore opens the persistent cache database. The maintenance
// commands refuse to run against an in-memory store.
func openConfiguredStore(cfg *config.Config) (*storage.Store, error) {
	if cfg.Cache.Path == "" {
		return nil, fmt.Errorf("no cache path configured (set cache.path in sn111.yaml)")
	}
	log := newLogger(cfg)
	return storage.Open(cfg.Cache.Path, cfg.Cache, log)
}
