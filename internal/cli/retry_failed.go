package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Bandi86/2025-sub008/internal/core/config"
	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
	"github.com/Bandi86/2025-sub008/internal/infra/storage/postgres"
)

var retryFailedCmd = &cobra.Command{
	Use:   "retry-failed [category] [limit]",
	Short: "Re-queue failed tasks of a lane, oldest first",
	Args:  cobra.RangeArgs(1, 2),
	Run:   runRetryFailed,
}

func init() {
	rootCmd.AddCommand(retryFailedCmd)
}

func runRetryFailed(cmd *cobra.Command, args []string) {
	category := domain.Category(args[0])
	if !category.Valid() {
		fmt.Printf("Unknown category %q, expected one of %v\n", args[0], domain.Categories())
		os.Exit(1)
	}

	limit := 50
	if len(args) == 2 {
		var err error
		limit, err = strconv.Atoi(args[1])
		if err != nil || limit <= 0 {
			fmt.Printf("Invalid limit: %s\n", args[1])
			os.Exit(1)
		}
	}

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

	n, err := q.RetryFailed(ctx, category, limit)
	if err != nil {
		slog.Error("Failed to re-queue tasks", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Re-queued %d failed tasks for %s\n", n, category)
}
