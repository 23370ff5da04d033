package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yvh1223/antivirus-market-intelligence/internal/app"
)

func main() {
	maxBatches := flag.Int("batches", 0, "maximum batches to process (0 = until none remain)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *maxBatches); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, maxBatches int) error {
	application, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	stats, err := application.Processor.Run(ctx, maxBatches)
	fmt.Printf("analyzed %d reviews (%d failed) in %d batches\n", stats.Processed, stats.Failed, stats.Batches)
	return err
}
