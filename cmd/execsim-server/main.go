package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mExOms/execsim/internal/config"
	"github.com/mExOms/execsim/internal/execution"
	"github.com/mExOms/execsim/internal/marketdata"
	"github.com/mExOms/execsim/internal/service"
	natsclient "github.com/mExOms/execsim/pkg/nats"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configFile = flag.String("config", "configs/execsim.yaml", "Config file path")
		depthFile  = flag.String("depth", "", "Serve books from this JSON file instead of Binance")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if err := config.ConfigureLogging(cfg.Log); err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	logger := logrus.WithField("component", "execsim-server")
	logger.Info("Starting execution cost service...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutdown signal received")
		cancel()
	}()

	planner, err := execution.NewPlanner(cfg)
	if err != nil {
		logger.Fatalf("Failed to create planner: %v", err)
	}
	defer planner.Close()

	var source marketdata.DepthSource
	if *depthFile != "" {
		static, err := marketdata.LoadDepthFile(*depthFile)
		if err != nil {
			logger.Fatalf("Failed to load depth file: %v", err)
		}
		source = static
	} else {
		binanceSource, err := marketdata.NewBinanceDepthSource(cfg.Binance)
		if err != nil {
			logger.Fatalf("Failed to create Binance depth source: %v", err)
		}
		defer binanceSource.Close()
		source = binanceSource
	}

	client, err := natsclient.NewClient(&natsclient.Config{
		URL:        cfg.NATS.URL,
		ClientID:   cfg.NATS.ClientID,
		QueueGroup: cfg.NATS.QueueGroup,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer client.Close()

	svc := service.New(planner, source, cfg.NATS.SubjectPrefix)
	if err := svc.Start(client); err != nil {
		logger.Fatalf("Failed to start service: %v", err)
	}

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("Shutting down...")
	svc.Stop()
	logger.Info("Server stopped successfully")
}
