package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Bandi86/2025-sub008/internal/core/config"
	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
	"github.com/Bandi86/2025-sub008/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current queue depth of all lanes",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	q := queue.New(postgres.NewTaskStore(db), cfg.QueueLanes(), nil, slog.Default())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "LANE\tWAITING\tIN PROGRESS\tCOMPLETED\tFAILED\tDELAYED\tTOTAL")

	for _, category := range q.Categories() {
		stats, err := q.GetQueueStats(ctx, category)
		if err != nil {
			slog.Error("Failed to read queue stats", "category", category, "error", err)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			category, stats.Waiting, stats.InProgress, stats.Completed, stats.Failed, stats.Delayed, stats.Total)
	}
	_ = w.Flush()
}
