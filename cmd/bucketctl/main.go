// Command bucketctl provisions and inspects the attachments bucket.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fiambond/attachments/internal/config"
	"github.com/fiambond/attachments/internal/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(cfg.Seed, cfg.JWTSecret, storageRunner(cfg, log))

	// Only usage and token errors reach here; failed steps have already been reported.
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
