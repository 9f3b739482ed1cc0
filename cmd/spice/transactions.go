package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-ledger/internal/auth"
	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/validation"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List and change transactions",
	}

	cmd.AddCommand(listTransactionsCmd())
	cmd.AddCommand(addTransactionCmd())
	cmd.AddCommand(editTransactionCmd())
	cmd.AddCommand(deleteTransactionCmd())
	cmd.AddCommand(recategorizeCmd())

	return cmd
}

// resolveCategory accepts a category id or name. Names that do not match
// are passed through so the ledger reports them like any bad id.
func (a *app) resolveCategory(ctx context.Context, ref string) (string, *model.Category, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil, nil
	}
	user, err := auth.ResolveUser(ctx, a.store, a.user)
	if err != nil {
		return "", nil, err
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		cat, err := a.store.GetCategoryByID(ctx, user.ID, id)
		if errors.Is(err, common.ErrNotFound) {
			return ref, nil, nil
		}
		return ref, cat, err
	}

	cat, err := a.store.GetCategoryByName(ctx, user.ID, ref)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return ref, nil, nil
	case err != nil:
		return "", nil, err
	}
	return strconv.FormatInt(cat.ID, 10), cat, nil
}

func parseDateFlag(s string) (time.Time, error) {
	d, err := time.Parse(model.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, common.NewUserError(fmt.Sprintf("Invalid date %q, expected YYYY-MM-DD.", s), common.ErrValidation)
	}
	return d, nil
}

func listTransactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [YYYY-MM]",
		Short: "List a month's transactions (default: current month)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ym, err := monthArg(args, time.Now())
			if err != nil {
				return err
			}

			var filter *model.CategoryType
			if typeName, _ := cmd.Flags().GetString("type"); typeName != "" {
				t := model.CategoryType(strings.ToLower(typeName))
				if !t.Valid() {
					return common.NewUserError("Type must be income or expense.", common.ErrValidation)
				}
				filter = &t
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			txns, err := a.reports.History(ctx, a.user, ym, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(txns) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No transactions in "+ym.Key()+"."))
				return nil
			}
			cli.RenderTransactions(out, txns)
			return nil
		},
	}

	cmd.Flags().StringP("type", "t", "", "only show income or expense")

	return cmd
}

func addTransactionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Example: `  spice tx add --amount 12.50 --category Food --description "Lunch"
  spice tx add --amount 3000 --category Income --date 2024-03-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()
			amount, _ := flags.GetString("amount")
			description, _ := flags.GetString("description")
			dateStr, _ := flags.GetString("date")
			typeName, _ := flags.GetString("type")
			categoryRef, _ := flags.GetString("category")

			date := time.Now().UTC()
			if dateStr != "" {
				var err error
				if date, err = parseDateFlag(dateStr); err != nil {
					return err
				}
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ref, cat, err := a.resolveCategory(ctx, categoryRef)
			if err != nil {
				return err
			}

			txType := model.CategoryType(strings.ToLower(typeName))
			if txType == "" && cat != nil {
				txType = cat.Type
			}

			return printResult(cmd.OutOrStdout(), a.ledger.Create(ctx, validation.TransactionInput{
				TransactionDate: &date,
				Description:     description,
				Amount:          validation.NormalizeAmount(amount),
				Type:            txType,
				CategoryID:      ref,
			}))
		},
	}

	cmd.Flags().StringP("amount", "a", "", "amount, e.g. 12.50 or 1,234.56")
	cmd.Flags().StringP("description", "d", "", "description")
	cmd.Flags().String("date", "", "date as YYYY-MM-DD (default: today)")
	cmd.Flags().StringP("type", "t", "", "income or expense (default: the category's type)")
	cmd.Flags().StringP("category", "c", "", "category id or name")

	return cmd
}

func editTransactionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a transaction",
		Long:  `Change only the fields whose flags are given. The result must still be a valid transaction.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := transactionID(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var patch validation.TransactionPatch
			flags := cmd.Flags()
			if flags.Changed("description") {
				v, _ := flags.GetString("description")
				patch.Description = &v
			}
			if flags.Changed("amount") {
				v, _ := flags.GetString("amount")
				v = validation.NormalizeAmount(v)
				patch.Amount = &v
			}
			if flags.Changed("date") {
				v, _ := flags.GetString("date")
				d, err := parseDateFlag(v)
				if err != nil {
					return err
				}
				patch.TransactionDate = &d
			}
			if flags.Changed("type") {
				v, _ := flags.GetString("type")
				t := model.CategoryType(strings.ToLower(v))
				patch.Type = &t
			}
			if flags.Changed("category") {
				v, _ := flags.GetString("category")
				ref, _, err := a.resolveCategory(ctx, v)
				if err != nil {
					return err
				}
				patch.CategoryID = &ref
			}

			if patch.IsEmpty() {
				return common.NewUserError("Nothing to change; pass at least one field flag.", common.ErrValidation)
			}

			return printResult(cmd.OutOrStdout(), a.ledger.Update(ctx, id, patch))
		},
	}

	cmd.Flags().StringP("amount", "a", "", "new amount")
	cmd.Flags().StringP("description", "d", "", "new description")
	cmd.Flags().String("date", "", "new date as YYYY-MM-DD")
	cmd.Flags().StringP("type", "t", "", "new type (income, expense)")
	cmd.Flags().StringP("category", "c", "", "new category id or name")

	return cmd
}

func transactionID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewUserError(fmt.Sprintf("Invalid transaction id %q.", s), common.ErrValidation)
	}
	return id, nil
}

func deleteTransactionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := transactionID(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			return printResult(cmd.OutOrStdout(), a.ledger.Delete(ctx, id))
		},
	}
}

func recategorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recategorize <id>...",
		Short: "Move transactions to another category",
		Long: `Move every listed transaction to one category in a single step. Nothing
changes unless all of them exist and match the category's type.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			categoryRef, _ := cmd.Flags().GetString("category")

			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := transactionID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ref, _, err := a.resolveCategory(ctx, categoryRef)
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), a.ledger.BulkRecategorize(ctx, ids, ref))
		},
	}

	cmd.Flags().StringP("category", "c", "", "target category id or name")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}
