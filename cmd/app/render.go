package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/services/interpreter"
)

func output[T any](cmd *cobra.Command, v T, render func(io.Writer, T)) error {
	w := cmd.OutOrStdout()
	if strings.EqualFold(formatFlag, "json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	render(w, v)
	return nil
}

func lightColor(risk float64) *color.Color { return trafficColor(interpreter.Light(risk)) }

func trafficColor(l models.TrafficLight) *color.Color {
	switch l {
	case models.LightGreen:
		return color.New(color.FgGreen, color.Bold)
	case models.LightYellow:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func gradeColor(g models.Grade) *color.Color {
	switch g {
	case models.GradeA, models.GradeB:
		return color.New(color.FgGreen)
	case models.GradeC:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func pct(v float64) string { return fmt.Sprintf("%+.2f%%", 100*v) }

func renderReport(w io.Writer, r *models.RiskReport) {
	fmt.Fprintf(w, "%s  [%s]\n", color.New(color.Bold).Sprint(r.Symbol), r.Mode)

	if l := r.Latest; l != nil {
		c := lightColor(l.Value)
		fmt.Fprintf(w, "risk      %s  %s", c.Sprintf("%.3f", l.Value), c.Sprint(l.Signal))
		if l.Warmup {
			fmt.Fprint(w, "  (warming up)")
		}
		fmt.Fprintf(w, "  %s\n", l.Timestamp.Format("2006-01-02"))

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, f := range l.Factors {
			mark := ""
			if !f.Defined {
				mark = "n/a"
			}
			fmt.Fprintf(tw, "  %s\t%.3f\t%s\n", f.Kind, f.Value, mark)
		}
		_ = tw.Flush()
	}

	if m := r.Metadata; m != nil {
		fmt.Fprintf(w, "price     %.4f  fair value %.4f  rating %s\n", m.LastPrice, m.FairValue, m.Rating)
		fmt.Fprintf(w, "drawdown  current %s  max %s\n", pct(m.CurrentDrawdown), pct(m.MaxDrawdown))
		if len(m.Returns) > 0 {
			keys := make([]string, 0, len(m.Returns))
			for k := range m.Returns {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				parts = append(parts, k+" "+pct(m.Returns[k]))
			}
			fmt.Fprintf(w, "returns   %s\n", strings.Join(parts, "  "))
		}
	}

	if b := r.Backtest; b != nil {
		fmt.Fprintf(w, "\nbacktest  policy=%s periods=%d trades=%d\n", b.Policy, b.Periods, b.TradeCount)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "  strategy\t%s\tmax dd %s\n", pct(b.CumulativeReturn), pct(b.MaxDrawdown))
		fmt.Fprintf(tw, "  buy & hold\t%s\tmax dd %s\n", pct(b.BuyAndHoldReturn), pct(b.BuyAndHoldMaxDrawdown))
		fmt.Fprintf(tw, "  outperformance\t%s\tsharpe %.2f\n", pct(b.Outperformance), b.SharpeRatio)
		fmt.Fprintf(tw, "  win rate\t%.1f%%\tavg exposure %.2f\n", 100*b.WinRate, b.AvgExposure)
		_ = tw.Flush()
		if et := b.EntryTiming; et != nil {
			fmt.Fprintf(w, "  entry timing: lump %sx  dca %sx  value-dca %sx  best=%s\n",
				et.LumpSumMultiple.StringFixed(3), et.DCAMultiple.StringFixed(3), et.ValueDCAMultiple.StringFixed(3), et.Best)
		}
	}

	if v := r.Validation; v != nil {
		fmt.Fprintf(w, "\nvalidation  %s  %.1f/100  (%d observations)\n",
			gradeColor(v.Grade).Sprint(v.Grade), v.OverallScore, v.Observations)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		row := func(name string, o models.TestOutcome, detail string) {
			if !o.Ran() {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", name, o.Status, o.Reason)
				return
			}
			fmt.Fprintf(tw, "  %s\t%.2f\t%s\n", name, o.SubScore, detail)
		}
		row("regression", v.RegressionAccuracy.TestOutcome,
			fmt.Sprintf("r2 %.3f  direction %.1f%%  mape %.1f%%", v.RegressionAccuracy.R2, 100*v.RegressionAccuracy.DirectionalAccuracy, 100*v.RegressionAccuracy.MAPE))
		row("predictive", v.PredictivePower.TestOutcome,
			fmt.Sprintf("corr %.3f  p %.4f  regime %s", v.PredictivePower.Correlation, v.PredictivePower.PValue, v.PredictivePower.RegimeType))
		row("timing", v.TimingQuality.TestOutcome,
			fmt.Sprintf("buys %.1f%%  sells %.1f%%", v.TimingQuality.BuyTimingPct, v.TimingQuality.SellTimingPct))
		row("calibration", v.Calibration.TestOutcome,
			fmt.Sprintf("corr %.3f  mae %.3f", v.Calibration.Correlation, v.Calibration.MeanAbsError))
		row("walk-forward", v.WalkForward.TestOutcome,
			fmt.Sprintf("%d folds  consistency %.1f%%", len(v.WalkForward.Folds), v.WalkForward.ConsistencyPct))
		_ = tw.Flush()
	}

	if in := r.Interpretation; in != nil {
		c := trafficColor(in.Light)
		fmt.Fprintf(w, "\n%s %s  %s\n", c.Sprint("●"), c.Sprint(in.Status), in.Action)
		fmt.Fprintf(w, "%s\n", in.Summary)
	}
}

func renderSuite(w io.Writer, s *models.SuiteSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tGRADE\tSCORE\tRISK\tSIGNAL\tERROR")
	for _, e := range s.Entries {
		if e.Error != "" {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%s\n", e.Symbol, color.RedString(e.Error))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%s\t%s\t\n",
			e.Symbol, gradeColor(e.Grade).Sprint(e.Grade), e.OverallScore,
			lightColor(e.LastRisk).Sprintf("%.3f", e.LastRisk), e.Signal)
	}
	_ = tw.Flush()

	grades := make([]string, 0, len(s.GradeDistribution))
	for g, n := range s.GradeDistribution {
		grades = append(grades, fmt.Sprintf("%s:%d", g, n))
	}
	sort.Strings(grades)
	fmt.Fprintf(w, "\nmean score %.1f  grades %s  failed %d\n", s.MeanOverallScore, strings.Join(grades, " "), s.Failed)
}
