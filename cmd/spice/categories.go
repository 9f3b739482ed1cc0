package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage income and expense categories",
		Long: `List, add and delete categories. Every user has exactly one income
category; it is created automatically.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(ensureIncomeCmd())
	cmd.AddCommand(deleteCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			cats, err := a.categories.List(ctx, a.user)
			if err != nil {
				return err
			}

			cli.RenderCategories(cmd.OutOrStdout(), cats)
			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			typeName, _ := cmd.Flags().GetString("type")

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			cat, err := a.categories.Create(ctx, a.user, args[0], model.CategoryType(strings.ToLower(typeName)))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created %s category %q (ID: %d)", cat.Type, cat.Name, cat.ID)))
			return nil
		},
	}

	cmd.Flags().StringP("type", "t", string(model.CategoryTypeExpense), "category type (expense, income)")

	return cmd
}

func ensureIncomeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-income",
		Short: "Make sure the income category exists",
		Long: `Create the income category if it is missing, or convert a legacy
expense category named "Income". Safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			cats, err := a.categories.EnsureIncome(ctx, a.user)
			if err != nil {
				return err
			}

			for _, c := range cats {
				if c.Type == model.CategoryTypeIncome {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Income category: %q (ID: %d)", c.Name, c.ID)))
				}
			}
			return nil
		},
	}
}

func deleteCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Long:  `Delete a category. Its transactions are kept and show as Uncategorized.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return common.NewUserError(fmt.Sprintf("Invalid category id %q.", args[0]), common.ErrValidation)
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.categories.Delete(ctx, a.user, id); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted category %d", id)))
			return nil
		},
	}
}
