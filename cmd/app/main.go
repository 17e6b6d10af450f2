package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"RiskLens/internal/di"
	"RiskLens/pkg/config"
)

var (
	configPath   string
	sourceFlag   string
	formatFlag   string
	intervalFlag string
	barsFlag     int

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "risklens",
	Short: "Composite risk scores for price series",
	Long: `RiskLens scores a price series with a regression ensemble and four technical
risk factors, replays the resulting signals and grades how well they would
have worked.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.LoadWithEnv(configPath)
		if err != nil {
			return err
		}
		if sourceFlag != "" {
			c.Data.Source = sourceFlag
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
		switch strings.ToLower(formatFlag) {
		case "text", "json":
		default:
			return fmt.Errorf("unknown format %q (text|json)", formatFlag)
		}
		cfg = c
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file path (defaults only when empty)")
	pf.StringVar(&sourceFlag, "source", "", "series source override: csv|clickhouse")
	pf.StringVar(&formatFlag, "format", "text", "output format: text|json")
	pf.StringVar(&intervalFlag, "interval", "", "bar interval: 1h|1d|1w (config default when empty)")
	pf.IntVar(&barsFlag, "bars", 0, "number of latest bars to load (config default when 0)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withToolkit wires the CLI dependencies, runs fn and releases them.
func withToolkit(fn func(ctx context.Context, tk *di.Toolkit) error) error {
	tk, err := di.InitializeToolkit(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer tk.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, tk)
}

func interval() string {
	if intervalFlag != "" {
		return intervalFlag
	}
	return cfg.Data.Interval
}

func bars() int {
	if barsFlag > 0 {
		return barsFlag
	}
	return cfg.Data.Bars
}
