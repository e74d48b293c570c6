package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storescout/internal/config"
	"storescout/internal/document"
	"storescout/internal/fetch"
	"storescout/internal/geo"
	"storescout/internal/oracle"
	"storescout/internal/output"
	"storescout/internal/pipeline"
	"storescout/internal/sweep"
)

func newRunCmd() *cobra.Command {
	var configPath, outputDir, oracleEndpoint, oracleModel string
	var enhance, debug bool

	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Run the extraction pipeline against one store-locator URL",
		Args:  cobra.ExactArgs(1),
		Example: `  storescout run https://www.example.com/store-locator
  storescout run --config scout.json --enhance https://www.example.com/stores`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output") {
				cfg.OutputDir = outputDir
			}
			if cmd.Flags().Changed("oracle-endpoint") {
				cfg.OracleEndpoint = oracleEndpoint
			}
			if cmd.Flags().Changed("oracle-model") {
				cfg.OracleModel = oracleModel
			}
			if cmd.Flags().Changed("enhance") {
				cfg.Enhance = enhance
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}
			return runPipeline(cfg, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to JSON config file")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "out", "Base output directory")
	cmd.Flags().StringVar(&oracleEndpoint, "oracle-endpoint", "", "OpenAI-compatible endpoint for pattern detection")
	cmd.Flags().StringVar(&oracleModel, "oracle-model", "", "Model name for the oracle endpoint")
	cmd.Flags().BoolVar(&enhance, "enhance", false, "Clean field values after dedup")
	cmd.Flags().BoolVar(&debug, "debug", false, "Mirror the run log to stderr")
	return cmd
}

func runPipeline(cfg config.Config, target string) error {
	startTime := time.Now()

	outDir, err := output.RunDir(cfg.OutputDir, target, startTime)
	if err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	logPath := filepath.Join(outDir, "run.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer logFile.Close()

	var logDst io.Writer = logFile
	if cfg.Debug {
		logDst = io.MultiWriter(logFile, os.Stderr)
	}
	logger := log.New(logDst, "", log.LstdFlags)
	logger.Printf("=== Session start: target=%s oracle=%t enhance=%t ===",
		target, cfg.OracleEndpoint != "", cfg.Enhance)
	fmt.Fprintf(os.Stderr, "Log: %s\n", logPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
		cancel()
	}()

	client := fetch.NewClient(fetch.Options{
		Timeout:    cfg.RequestTimeout,
		RetryCount: cfg.RetryCount,
		RetryDelay: cfg.RetryDelay,
	})
	session := document.NewStaticSession(client)

	oracleClient := oracle.NewClient(oracle.Options{
		Endpoint: cfg.OracleEndpoint,
		Model:    cfg.OracleModel,
		APIKey:   cfg.OracleAPIKey,
	})

	classifier := geo.NewClassifier("", cfg.RequestTimeout)
	sweeper := sweep.New(client, oracleClient, classifier, logger, sweep.Options{
		LatStepDegrees: cfg.LatStepDegrees,
		LngStepDegrees: cfg.LngStepDegrees,
		MaxEmptyCells:  cfg.MaxEmptyCells,
		RateLimitDelay: cfg.RateLimitDelay,
		ProgressWriter: os.Stderr,
	})

	p := pipeline.New(cfg, session, oracleClient, oracleClient, sweeper, logger, outDir)
	result := p.Run(ctx, target)

	duration := time.Since(startTime).Truncate(time.Second)
	stats := p.Stats()
	logger.Printf("Done: success=%t stores=%d candidates=%d sweep_requests=%d oracle_calls=%d errors=%d duration=%s",
		result.Success, result.Summary.Total, stats.CandidatesFound.Load(),
		stats.SweepRequests.Load(), stats.OracleCalls.Load(), stats.Errors.Load(), duration)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  StoreScout Complete\n")
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Target:      %s\n", target)
	fmt.Fprintf(os.Stderr, "  Stores:      %d (unique)\n", result.Summary.Total)
	fmt.Fprintf(os.Stderr, "  With coords: %d\n", result.Summary.WithCoordinates)
	for source, n := range result.Summary.BySource {
		fmt.Fprintf(os.Stderr, "    %-18s %d\n", source+":", n)
	}
	fmt.Fprintf(os.Stderr, "  Errors:      %d\n", stats.Errors.Load())
	fmt.Fprintf(os.Stderr, "  Duration:    %s\n", duration)
	fmt.Fprintf(os.Stderr, "  Output:      %s\n", outDir)
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")

	if !result.Success {
		return fmt.Errorf("%s", result.Message)
	}
	return nil
}
