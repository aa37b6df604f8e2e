package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/urwalabs/urwa/internal/engine"
	"github.com/urwalabs/urwa/internal/logging"
	"github.com/urwalabs/urwa/internal/types"
)

var (
	forceStrategy string
	scrapeTimeout time.Duration
	bypassCache   bool
	outputPath    string
	asJSON        bool
)

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [url]",
		Short: "Scrape a single URL",
		Long:  "Fetch one URL through the adaptive strategy ladder and print the result.",
		Args:  cobra.ExactArgs(1),
		RunE:  runScrape,
	}

	cmd.Flags().StringVarP(&forceStrategy, "strategy", "s", "", "pin a strategy: light, stealth, ultra")
	cmd.Flags().DurationVarP(&scrapeTimeout, "timeout", "t", 0, "overall call timeout (default from config)")
	cmd.Flags().BoolVar(&bypassCache, "no-cache", false, "skip the result cache")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write content to file instead of stdout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, ring := logging.New(cfg.Logging.Level, os.Stderr)

	req, err := types.NewRequest(args[0])
	if err != nil {
		return err
	}
	if forceStrategy != "" {
		strat, err := types.ParseStrategy(forceStrategy)
		if err != nil {
			return err
		}
		req.ForceStrategy = strat
	}
	req.Timeout = scrapeTimeout
	req.BypassCache = bypassCache

	eng, err := engine.New(cfg, logger, ring)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, scrapeErr := eng.Scrape(ctx, req)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		if scrapeErr != nil {
			os.Exit(1)
		}
		return nil
	}

	if scrapeErr != nil {
		return scrapeErr
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, result.Content, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "wrote %d bytes to %s (strategy=%s confidence=%.2f)\n",
			result.ContentLength, outputPath, result.StrategyUsed, result.Confidence.Overall)
		return nil
	}

	os.Stdout.Write(result.Content)
	fmt.Fprintf(os.Stderr, "\n# strategy=%s attempts=%d confidence=%.2f trace=%s\n",
		result.StrategyUsed, result.Attempts, result.Confidence.Overall, result.TraceID)
	return nil
}
