package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	orca "github.com/orcalabs/orca-go"
	"github.com/orcalabs/orca-go/processors/tradingsim"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	proc, err := tradingsim.New("TradingSim",
		orca.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to build processor: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := proc.Register(ctx); err != nil {
		log.Fatalf("Failed to register with core: %v", err)
	}

	if err := proc.Serve(ctx); err != nil {
		log.Fatalf("Processor failed: %v", err)
	}
}
