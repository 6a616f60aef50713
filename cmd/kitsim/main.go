// cmd/kitsim/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"healthkit-link/internal/config"
	"healthkit-link/internal/simulator"
	"healthkit-link/internal/utils"
)

func main() {
	var (
		listen       = pflag.StringP("listen", "l", "127.0.0.1:9750", "Address to accept bridge connections on")
		interval     = pflag.DurationP("interval", "i", time.Second, "Delay between frames")
		corruptEvery = pflag.Int("corrupt-every", 0, "Send a malformed frame every N frames (0 disables)")
		seed         = pflag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed for readings")
		logLevel     = pflag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	pflag.Parse()

	logger, err := utils.NewLogger(&config.LoggingConfig{
		Level:  *logLevel,
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.CloseLogger(logger)

	server := simulator.NewServer(simulator.Config{
		ListenAddr:   *listen,
		Interval:     *interval,
		CorruptEvery: *corruptEvery,
		Seed:         *seed,
	}, logger)

	if err := server.Listen(); err != nil {
		logger.Fatal("Failed to start simulator", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Serve(ctx); err != nil {
		logger.Error("Simulator stopped with error", zap.Error(err))
		return
	}
	logger.Info("Simulator stopped")
}
