package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// FormatAmount renders d as dollars with thousands separators, e.g.
// -1234.5 becomes "-$1,234.50".
func FormatAmount(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	fixed := d.StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + cents
}

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	return table
}

// RenderSummary writes income, spending and net savings for one period.
func RenderSummary(w io.Writer, label string, s model.MonthSummary) {
	table := newTable(w, label, "Amount")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.Append([]string{"Income", FormatAmount(s.TotalIncome)})
	table.Append([]string{"Spending", FormatAmount(s.TotalSpending)})
	table.Append([]string{"Net savings", FormatAmount(s.NetSavings)})
	table.Render()
}

// RenderBreakdown writes one row per expense category with its share of
// the period's spending.
func RenderBreakdown(w io.Writer, shares []model.CategoryShare) {
	table := newTable(w, "Category", "Amount", "Share")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})
	for _, s := range shares {
		table.Append([]string{s.Name, FormatAmount(s.Amount), s.Percent().StringFixed(1) + "%"})
	}
	table.Render()
}

// RenderTrend writes the monthly income/expense trend.
func RenderTrend(w io.Writer, points []model.TrendPoint) {
	table := newTable(w, "Month", "Income", "Expenses", "Savings")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})
	for _, p := range points {
		table.Append([]string{p.Month, FormatAmount(p.Income), FormatAmount(p.Expenses), FormatAmount(p.Savings)})
	}
	table.Render()
}

// RenderTransactions writes a transaction listing.
func RenderTransactions(w io.Writer, txns []model.Transaction) {
	table := newTable(w, "ID", "Date", "Description", "Category", "Type", "Amount")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT,
	})
	for _, t := range txns {
		table.Append([]string{
			strconv.FormatInt(t.ID, 10),
			t.Date.Format(model.DateLayout),
			t.Description,
			t.CategoryName(),
			string(t.EffectiveType()),
			FormatAmount(t.Amount),
		})
	}
	table.Render()
}

// RenderCategories writes a category listing.
func RenderCategories(w io.Writer, cats []model.Category) {
	table := newTable(w, "ID", "Name", "Type")
	for _, c := range cats {
		table.Append([]string{fmt.Sprint(c.ID), c.Name, string(c.Type)})
	}
	table.Render()
}
