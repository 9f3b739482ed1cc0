package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-ledger/internal/chart"
	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/period"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show income and spending reports",
		Long:  `Summaries, category breakdowns and trends over the ledger of --user.`,
	}

	cmd.AddCommand(reportMonthCmd())
	cmd.AddCommand(reportYearCmd())
	cmd.AddCommand(reportBreakdownCmd())
	cmd.AddCommand(reportTrendCmd())
	cmd.AddCommand(reportCashCmd())
	cmd.AddCommand(reportMonthsCmd())

	return cmd
}

func reportMonthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "month [YYYY-MM]",
		Short: "Summarize one month (default: current month)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ym, err := monthArg(args, time.Now())
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			summary, err := a.reports.MonthSummary(ctx, a.user, ym)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatTitle(period.LongLabel(ym.Time())))
			cli.RenderSummary(out, "Summary", summary)
			return nil
		},
	}
}

func yearArg(args []string) (int, error) {
	if len(args) == 0 {
		return time.Now().Year(), nil
	}
	year, err := strconv.Atoi(args[0])
	if err != nil || len(args[0]) != 4 {
		return 0, common.NewUserError(fmt.Sprintf("Invalid year %q, expected YYYY.", args[0]), common.ErrValidation)
	}
	return year, nil
}

func reportYearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "year [YYYY]",
		Short: "Summarize one calendar year (default: current year)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			year, err := yearArg(args)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			summary, err := a.reports.YearSummary(ctx, a.user, year)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatTitle(strconv.Itoa(year)))
			cli.RenderSummary(out, "Summary", summary)
			return nil
		},
	}
}

func reportBreakdownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breakdown [YYYY-MM]",
		Short: "Break spending down by category",
		Long: `Show each expense category's share of spending for a month, or for a
whole year with --year. Use --chart to also write a bar chart.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			year, _ := cmd.Flags().GetInt("year")
			chartPath, _ := cmd.Flags().GetString("chart")

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var (
				label  string
				shares []model.CategoryShare
			)
			if year > 0 {
				label = strconv.Itoa(year)
				shares, err = a.reports.YearlyCategoryBreakdown(ctx, a.user, year)
			} else {
				var ym period.YearMonth
				if ym, err = monthArg(args, time.Now()); err != nil {
					return err
				}
				label = period.LongLabel(ym.Time())
				shares, err = a.reports.MonthlyCategoryBreakdown(ctx, a.user, ym)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatTitle("Spending by category, "+label))
			if len(shares) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No spending recorded."))
				return nil
			}
			cli.RenderBreakdown(out, shares)

			if chartPath == "" {
				return nil
			}
			return writeChart(cmd, chartPath, func(f *os.File, format chart.Format) error {
				return chart.Breakdown(f, "Spending by category, "+label, shares, format)
			})
		},
	}

	cmd.Flags().Int("year", 0, "break down a whole year instead of a month")
	cmd.Flags().String("chart", "", "also write a bar chart to this .svg or .png file")

	return cmd
}

func reportTrendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show income, expenses and savings per month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			chartPath, _ := cmd.Flags().GetString("chart")

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			points, err := a.reports.MonthlyTrend(ctx, a.user, viper.GetInt("trend.months"))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatTitle("Monthly trend"))
			cli.RenderTrend(out, points)

			if chartPath == "" {
				return nil
			}
			return writeChart(cmd, chartPath, func(f *os.File, format chart.Format) error {
				return chart.Trend(f, points, format)
			})
		},
	}

	cmd.Flags().IntP("months", "n", 6, "number of trailing months (1-36)")
	cmd.Flags().String("chart", "", "also write a line chart to this .svg or .png file")
	_ = viper.BindPFlag("trend.months", cmd.Flags().Lookup("months"))

	return cmd
}

func writeChart(cmd *cobra.Command, path string, draw func(*os.File, chart.Format) error) error {
	format := chart.SVG
	if strings.EqualFold(filepath.Ext(path), ".png") {
		format = chart.PNG
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := draw(f, format); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to draw chart: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(cli.ChartIcon+" Chart written to "+path))
	return nil
}

func reportCashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cash",
		Short: "Show all-time income minus expenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			cash, err := a.reports.TotalCash(ctx, a.user)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Total cash", cli.FormatAmount(cash)))
			return nil
		},
	}
}

func reportMonthsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "months",
		Short: "List months that have transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			months, err := a.reports.AvailableMonths(ctx, a.user)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(months) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No transactions yet."))
				return nil
			}
			for _, m := range months {
				fmt.Fprintf(out, "%s  %s\n", m.Value, cli.SubtleStyle.Render(m.Label))
			}
			return nil
		},
	}
}
