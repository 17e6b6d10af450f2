package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"RiskLens/internal/di"
	"RiskLens/internal/domain/models"
	"RiskLens/internal/repository"
)

var (
	policyFlag string
	feeFlag    float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL",
	Short: "Score the latest bars of a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToolkit(func(ctx context.Context, tk *di.Toolkit) error {
			rep, err := tk.Risk.Analyze(ctx, models.AnalyzeRequest{Symbol: args[0], Interval: interval(), Bars: bars()})
			if err != nil {
				return err
			}
			return output(cmd, rep, renderReport)
		})
	},
}

var backtestCmd = &cobra.Command{
	Use:   "backtest SYMBOL",
	Short: "Replay the signal stream against buy and hold",
	Long: `Replay the composite signals of a symbol as exposure changes and compare the
result with buy and hold.

Policies:
  default  fully invested on buy signals, 30% on SELL
  tiered   1.0 / 0.8 / keep / 0.5 / 0.2 from STRONG_BUY to SELL
  hold     never trade`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToolkit(func(ctx context.Context, tk *di.Toolkit) error {
			rep, err := tk.Risk.Backtest(ctx, models.BacktestRequest{
				Symbol:   args[0],
				Interval: interval(),
				Bars:     bars(),
				Policy:   policyFlag,
				Fee:      feeFlag,
			})
			if err != nil {
				return err
			}
			return output(cmd, rep, renderReport)
		})
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate SYMBOL",
	Short: "Grade the statistical quality of the risk model on a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToolkit(func(ctx context.Context, tk *di.Toolkit) error {
			rep, err := tk.Risk.Validate(ctx, models.ValidateRequest{Symbol: args[0], Interval: interval(), Bars: bars()})
			if err != nil {
				return err
			}
			return output(cmd, rep, renderReport)
		})
	},
}

var suiteCmd = &cobra.Command{
	Use:   "suite [SYMBOLS...]",
	Short: "Validate several symbols concurrently and summarize the grades",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToolkit(func(ctx context.Context, tk *di.Toolkit) error {
			sum, err := tk.Suite.Run(ctx, models.SuiteRequest{
				Symbols:  strings.Join(args, ","),
				Interval: interval(),
				Bars:     bars(),
			})
			if err != nil {
				return err
			}
			return output(cmd, sum, renderSuite)
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import SYMBOL FILE",
	Short: "Load a CSV bar file into the configured series store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := strings.ToUpper(strings.TrimSpace(args[0]))
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[1], err)
		}
		defer f.Close()

		ps, err := repository.ReadCSV(f, symbol)
		if err != nil {
			return err
		}
		ps.Interval = models.NormalizeInterval(interval())
		if err := ps.Validate(cfg.Risk.MaxGap); err != nil {
			return err
		}

		return withToolkit(func(ctx context.Context, tk *di.Toolkit) error {
			if err := tk.Store.SaveSeries(ctx, ps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d %s bars of %s into %s\n", ps.Len(), ps.Interval, symbol, cfg.Data.Source)
			return nil
		})
	},
}

var rescoreFlag bool

var streamCmd = &cobra.Command{
	Use:   "stream [SYMBOLS...]",
	Short: "Aggregate live trades into bars until interrupted",
	Long: `Connect to the configured trade feed, fold prints into bars of --interval and
merge every closed bar into the series store. The bar in progress is written
on exit and replaced once it closes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Stream.Enabled = true
		if len(args) > 0 {
			cfg.Stream.Symbols = args
		}
		if intervalFlag != "" {
			cfg.Stream.Interval = intervalFlag
		}
		if cmd.Flags().Changed("rescore") {
			cfg.Stream.Rescore = rescoreFlag
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return withToolkit(func(ctx context.Context, tk *di.Toolkit) error {
			fmt.Fprintf(cmd.ErrOrStderr(), "streaming %s bars for %s, ctrl-c to stop\n",
				cfg.Stream.Interval, strings.Join(cfg.Stream.Symbols, ","))
			return tk.Ingest.Run(ctx)
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the enabled consumers and workers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := di.InitializeApp(cfg)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		return app.Run()
	},
}

func init() {
	backtestCmd.Flags().StringVar(&policyFlag, "policy", "default", "exposure policy: default|tiered|hold")
	backtestCmd.Flags().Float64Var(&feeFlag, "fee", 0, "proportional fee per unit of exposure change (config default when 0)")

	streamCmd.Flags().BoolVar(&rescoreFlag, "rescore", false, "run an analysis after every stored bar")

	rootCmd.AddCommand(analyzeCmd, backtestCmd, validateCmd, suiteCmd, importCmd, streamCmd, serveCmd)
}
