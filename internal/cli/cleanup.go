package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Bandi86/2025-sub008/internal/core/config"
	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
	"github.com/Bandi86/2025-sub008/internal/infra/storage/postgres"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [category] [grace]",
	Short: "Purge terminal tasks of a lane older than the grace period",
	Args:  cobra.RangeArgs(1, 2),
	Run:   runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) {
	category := domain.Category(args[0])
	if !category.Valid() {
		fmt.Printf("Unknown category %q, expected one of %v\n", args[0], domain.Categories())
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	grace := cfg.Retention.GracePeriod
	if len(args) == 2 {
		grace, err = time.ParseDuration(args[1])
		if err != nil {
			fmt.Printf("Invalid grace period: %s\n", args[1])
			os.Exit(1)
		}
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

	n, err := q.Cleanup(ctx, category, grace)
	if err != nil {
		slog.Error("Failed to clean up tasks", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Removed %d terminal tasks for %s older than %v\n", n, category, grace)
}
