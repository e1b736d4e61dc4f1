package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"niftmarket/config"
	"niftmarket/core"
	"niftmarket/ledger"
	"niftmarket/native/admin"
	"niftmarket/native/auction"
	"niftmarket/native/creatorpool"
	"niftmarket/native/listing"
	"niftmarket/native/nft"
	"niftmarket/native/rewards"
	"niftmarket/native/subscription"
	"niftmarket/observability/logging"
	"niftmarket/rpc"
	"niftmarket/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	logFile := flag.String("log-file", "", "Optional rotated log file path")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("NIFT_ENV"))
	logger := logging.Setup("niftd", env, logging.Options{File: *logFile})

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" && cfg.LogEnv != "" {
		logger = logging.Setup("niftd", cfg.LogEnv, logging.Options{File: *logFile})
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node := core.NewNode(db, logger)
	programs := []ledger.Program{
		admin.New(cfg.Programs.Admin),
		auction.NewEngine(cfg.Programs.Auction),
		listing.NewEngine(cfg.Programs.Listing),
		creatorpool.NewEngine(cfg.Programs.CreatorPool, cfg.Programs.Admin),
		rewards.NewEngine(cfg.Programs.Rewards, cfg.Programs.Admin),
		subscription.NewEngine(cfg.Programs.Subscription, cfg.Programs.Admin, cfg.Programs.CreatorPool),
	}
	for _, id := range cfg.Programs.Spaces {
		programs = append(programs, nft.NewSpace(id))
	}
	for _, program := range programs {
		if err := node.Register(program); err != nil {
			logger.Error("Failed to register program", slog.Any("error", err))
			os.Exit(1)
		}
	}

	server := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           rpc.NewServer(node, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc listening", "addr", cfg.RPCAddress, "network", cfg.NetworkName)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
	}
}
