package main

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	resolveQuery  string
	resolveLocale string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a search query to a place id",
	Long: `Resolve a free-text search query ("sushi in Berlin") to the place id of
the top result. The id can then be fed to collect or to the prefetch
admin endpoint.`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVar(&resolveQuery, "query", "", "Search query to resolve (required)")
	resolveCmd.Flags().StringVar(&resolveLocale, "locale", "", "Result language (default: en)")
	resolveCmd.Flags().StringVar(&selectorsPath, "selectors", "", "Selector profile file (default: embedded)")
	_ = resolveCmd.MarkFlagRequired("query")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()

	st, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	placeID, err := st.service.Resolve(ctx, resolveQuery, resolveLocale)
	if err != nil {
		return err
	}

	printJSON(map[string]string{
		"query":   resolveQuery,
		"placeId": placeID,
	})
	return nil
}
