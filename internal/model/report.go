package model

import "github.com/shopspring/decimal"

// MonthSummary totals income and spending over a period.
type MonthSummary struct {
	TotalIncome   decimal.Decimal `json:"totalIncome"`
	TotalSpending decimal.Decimal `json:"totalSpending"`
	NetSavings    decimal.Decimal `json:"netSavings"`
}

// NewSummary builds a summary and derives NetSavings.
func NewSummary(income, spending decimal.Decimal) MonthSummary {
	return MonthSummary{
		TotalIncome:   income,
		TotalSpending: spending,
		NetSavings:    income.Sub(spending),
	}
}

// CategoryShare is one row of an expense breakdown. Total repeats the
// period's grand total on every row so callers can compute percentages.
type CategoryShare struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Total  decimal.Decimal `json:"total"`
}

// Percent returns the share of Total held by this row, 0 when Total is zero.
func (c CategoryShare) Percent() decimal.Decimal {
	if c.Total.IsZero() {
		return decimal.Zero
	}
	return c.Amount.Div(c.Total).Mul(decimal.NewFromInt(100)).Round(1)
}

// TrendPoint is one month of the trailing income/expense trend.
type TrendPoint struct {
	Month    string          `json:"month"`
	Key      string          `json:"key"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Savings  decimal.Decimal `json:"savings"`
}

// MonthOption is a selectable month with data, e.g. {"2024-01", "January 2024"}.
type MonthOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Dashboard bundles the reports shown on the overview page.
type Dashboard struct {
	Month     string          `json:"month"`
	Recent    []Transaction   `json:"recent"`
	Breakdown []CategoryShare `json:"breakdown"`
	Summary   MonthSummary    `json:"summary"`
	TotalCash decimal.Decimal `json:"totalCash"`
}
