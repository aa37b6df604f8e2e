package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/urwalabs/urwa/internal/config"
	"github.com/urwalabs/urwa/internal/engine"
	"github.com/urwalabs/urwa/internal/logging"
)

var (
	statsDomain string
	logLimit    int
	logLevel    string
)

// statusCmd creates the "status" subcommand, which prints the telemetry
// surface of a fresh engine: learned stats, cost usage, and journal-backed
// state that survives restarts.
func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show learned strategy stats and cost usage",
		RunE:  runStatus,
	}
	cmd.Flags().StringVarP(&statsDomain, "domain", "d", "", "limit stats to one domain")
	cmd.Flags().IntVar(&logLimit, "logs", 0, "also print up to N recent log records")
	cmd.Flags().StringVar(&logLevel, "level", "", "log level filter for --logs")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, ring := logging.New("error", os.Stderr)

	eng, err := engine.New(cfg, logger, ring)
	if err != nil {
		return err
	}
	defer eng.Close()

	out := map[string]any{
		"strategy_stats":  eng.StrategyStats(statsDomain),
		"cost_usage":      eng.CostUsage(),
		"circuit_states":  eng.CircuitStates(),
		"rate_states":     eng.RateStates(),
		"recent_evidence": eng.RecentEvidence(10),
	}
	if logLimit > 0 {
		out["recent_logs"] = eng.RecentLogs(logLimit, logLevel)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("urwa", config.Version)
		},
	}
}
