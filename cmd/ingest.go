package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Runs one ingest pass over every configured source",
		Long: `Fetches the current notices from every configured source, extracts
and normalizes their fields, deduplicates them against the store, and
annotates them with categories and interest tags. Sources run
concurrently; a failing source never blocks the others.`,

		RunE: runIngestCommand,
	}
}

func runIngestCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	adapters := appInstance.Adapters()
	if len(adapters) == 0 {
		return fmt.Errorf("no sources configured")
	}

	summaries := appInstance.Dispatcher().Run(cmd.Context(), adapters)

	var created, updated, extended, failed int
	for _, s := range summaries {
		created += s.Created
		updated += s.Updated
		extended += s.Extended
		failed += s.Failed
	}
	logger.Info("ingest pass finished",
		zap.Int("sources", len(summaries)),
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("extended", extended),
		zap.Int("failed", failed))
	return nil
}
