package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/ofx"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import transactions from OFX or QFX (Quicken) files exported from your bank.

Credits are recorded as income in the income category; debits are
recorded as expenses in --expense-category. Lines repeated across files
(same account and FITID) are imported once.

Examples:
  # Preview a statement
  spice import-ofx --dry-run ~/Downloads/chase_jan_2024.qfx

  # Import every statement in a directory
  spice import-ofx --expense-category Groceries ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")
	cmd.Flags().StringP("expense-category", "e", "", "category id or name for debits (debits are skipped when unset)")
	cmd.Flags().StringP("income-category", "i", "", "category id or name for credits (default: the income category)")

	return cmd
}

// expandFiles resolves glob patterns, keeping literal paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	return files, nil
}

// parseStatements reads every file, skipping unreadable ones, and drops
// lines already seen in an earlier file.
func parseStatements(ctx context.Context, files []string) []ofx.Entry {
	parser := ofx.NewParser()
	seen := make(map[string]bool)
	var entries []ofx.Entry

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			slog.Error("Failed to open file", "file", path, "error", err)
			continue
		}
		parsed, err := parser.ParseFile(ctx, f)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse OFX file", "file", path, "error", err)
			continue
		}

		added := 0
		for _, e := range parsed {
			key := e.AccountID + "|" + e.FITID
			if seen[key] {
				continue
			}
			seen[key] = true
			entries = append(entries, e)
			added++
		}
		slog.Info("Processed file",
			"file", filepath.Base(path),
			"transactions_found", len(parsed),
			"added", added,
			"duplicates", len(parsed)-added)
	}
	return entries
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	expenseRef, _ := cmd.Flags().GetString("expense-category")
	incomeRef, _ := cmd.Flags().GetString("income-category")
	out := cmd.OutOrStdout()

	files, err := expandFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return common.NewUserError("No files found to import.", common.ErrValidation)
	}

	entries := parseStatements(cmd.Context(), files)
	if len(entries) == 0 {
		fmt.Fprintln(out, cli.FormatWarning("No transactions found in any file."))
		return nil
	}

	if dryRun {
		preview := make([]model.Transaction, len(entries))
		for i, e := range entries {
			preview[i] = model.Transaction{Date: e.Date, Amount: e.Amount, Description: e.Description, Type: e.Type}
		}
		cli.RenderTransactions(out, preview)
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Dry run: %d transactions would be imported.", len(entries))))
		return nil
	}

	interrupts := cli.NewInterruptHandler(out)
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Import")
	defer interrupts.Stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	targets, err := importTargets(ctx, a, incomeRef, expenseRef)
	if err != nil {
		return err
	}

	var imported, skipped, failed int
	progress := cli.NewProgress(out, len(entries), "Importing transactions...")
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		progress.Step()

		ref, ok := targets[e.Type]
		if !ok {
			skipped++
			continue
		}
		res := a.ledger.Create(ctx, e.Input(ref))
		if !res.Success {
			failed++
			slog.Warn("Skipped statement line", "fitid", e.FITID, "description", e.Description, "reason", res.Message, "errors", res.Errors)
			continue
		}
		imported++
	}
	progress.Done()

	summary := fmt.Sprintf("  • Imported: %d\n  • Skipped (no category): %d\n  • Failed: %d", imported, skipped, failed)
	fmt.Fprintln(out, cli.RenderBox("Import complete", summary))
	return nil
}

// importTargets maps each transaction type to the category id it is
// recorded under.
func importTargets(ctx context.Context, a *app, incomeRef, expenseRef string) (map[model.CategoryType]int64, error) {
	targets := make(map[model.CategoryType]int64)

	if incomeRef == "" {
		cats, err := a.categories.List(ctx, a.user)
		if err != nil {
			return nil, err
		}
		for _, c := range cats {
			if c.Type == model.CategoryTypeIncome {
				incomeRef = strconv.FormatInt(c.ID, 10)
			}
		}
	}

	for typ, ref := range map[model.CategoryType]string{
		model.CategoryTypeIncome:  incomeRef,
		model.CategoryTypeExpense: expenseRef,
	} {
		if ref == "" {
			continue
		}
		_, cat, err := a.resolveCategory(ctx, ref)
		if err != nil {
			return nil, err
		}
		if cat == nil {
			return nil, common.NewUserError(fmt.Sprintf("Category %q not found.", ref), common.ErrCategoryNotFound)
		}
		if cat.Type != typ {
			return nil, common.NewUserError(
				fmt.Sprintf("Category %q is an %s category; %s lines need an %s category.", cat.Name, cat.Type, typ, typ),
				common.ErrTypeMismatch)
		}
		targets[typ] = cat.ID
	}

	if _, ok := targets[model.CategoryTypeExpense]; !ok {
		slog.Warn("No --expense-category given; debits will be skipped")
	}
	return targets, nil
}
