// Package report derives summaries, breakdowns and trends from a user's
// live transactions. Amounts are summed with exact decimal arithmetic.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Veraticus/spice-ledger/internal/auth"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/period"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTrendMonths is used when a caller asks for a non-positive range.
	DefaultTrendMonths = 6
	// MaxTrendMonths caps the trailing trend window.
	MaxTrendMonths = 36
	// RecentLimit is how many transactions the dashboard lists.
	RecentLimit = 5
)

// Aggregator computes read-only reports for a single caller at a time.
type Aggregator struct {
	store service.Store
	cache service.SummaryCache
	now   func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithSummaryCache enables read-through caching of month summaries.
func WithSummaryCache(cache service.SummaryCache) Option {
	return func(a *Aggregator) {
		a.cache = cache
	}
}

// WithClock overrides the time source used for trailing trends.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// NewAggregator creates an aggregator over store.
func NewAggregator(store service.Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MonthSummary totals a calendar month.
func (a *Aggregator) MonthSummary(ctx context.Context, externalID string, ym period.YearMonth) (model.MonthSummary, error) {
	user, err := auth.ResolveUser(ctx, a.store, externalID)
	if err != nil {
		return model.MonthSummary{}, err
	}
	return a.monthSummary(ctx, user.ID, ym)
}

func (a *Aggregator) monthSummary(ctx context.Context, userID int64, ym period.YearMonth) (model.MonthSummary, error) {
	if err := validateMonth(ym); err != nil {
		return model.MonthSummary{}, err
	}
	key := ym.Key()

	cacheable := false
	var generation int64
	if a.cache != nil {
		cached, ok, err := a.cache.GetMonthSummary(ctx, userID, key)
		if err != nil {
			slog.WarnContext(ctx, "summary cache read failed", "user_id", userID, "month", key, "error", err)
		} else if ok {
			return cached, nil
		}

		// Read before loading rows: a write that lands after this point
		// advances the generation and the put below is refused.
		generation, err = a.cache.SummaryGeneration(ctx, userID)
		if err != nil {
			slog.WarnContext(ctx, "summary cache read failed", "user_id", userID, "month", key, "error", err)
		} else {
			cacheable = true
		}
	}

	start, end := ym.Range()
	txns, err := a.load(ctx, userID, start, end)
	if err != nil {
		return model.MonthSummary{}, err
	}
	summary := summarize(txns)

	if cacheable {
		if _, err := a.cache.PutMonthSummary(ctx, userID, key, generation, summary); err != nil {
			slog.WarnContext(ctx, "summary cache write failed", "user_id", userID, "month", key, "error", err)
		}
	}
	return summary, nil
}

// YearSummary totals a calendar year.
func (a *Aggregator) YearSummary(ctx context.Context, externalID string, year int) (model.MonthSummary, error) {
	user, err := auth.ResolveUser(ctx, a.store, externalID)
	if err != nil {
		return model.MonthSummary{}, err
	}

	start, end := period.YearRange(year)
	txns, err := a.load(ctx, user.ID, start, end)
	if err != nil {
		return model.MonthSummary{}, err
	}
	return summarize(txns), nil
}

// MonthlyCategoryBreakdown groups a month's expenses by category.
func (a *Aggregator) MonthlyCategoryBreakdown(ctx context.Context, externalID string, ym period.YearMonth) ([]model.CategoryShare, error) {
	user, err := auth.ResolveUser(ctx, a.store, externalID)
	if err != nil {
		return nil, err
	}
	return a.monthlyBreakdown(ctx, user.ID, ym)
}

func (a *Aggregator) monthlyBreakdown(ctx context.Context, userID int64, ym period.YearMonth) ([]model.CategoryShare, error) {
	if err := validateMonth(ym); err != nil {
		return nil, err
	}
	start, end := ym.Range()
	txns, err := a.load(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return breakdown(txns), nil
}

// YearlyCategoryBreakdown groups a year's expenses by category.
func (a *Aggregator) YearlyCategoryBreakdown(ctx context.Context, externalID string, year int) ([]model.CategoryShare, error) {
	user, err := auth.ResolveUser(ctx, a.store, externalID)
	if err != nil {
		return nil, err
	}

	start, end := period.YearRange(year)
	txns, err := a.load(ctx, user.ID, start, end)
	if err != nil {
		return nil, err
	}
	return breakdown(txns), nil
}

// MonthlyTrend returns income, expenses and savings for each of the
// trailing months ending with the current UTC month. Months without
// activity are present with zero values.
func (a *Aggregator) MonthlyTrend(ctx context.Context, externalID string, months int) ([]model.TrendPoint, error) {
	user, err := auth.ResolveUser(ctx, a.store, externalID)
	if err != nil {
		return nil, err
	}

	if months <= 0 {
		months = DefaultTrendMonths
	}
	months = period.Clamp(months, 1, MaxTrendMonths)

	current := period.Of(a.now())
	first := current.AddMonths(-(months - 1))
	_, end := current.Range()

	points := make([]model.TrendPoint, 0, months)
	index := make(map[string]int, months)
	for _, m := range period.EnumerateMonths(first.Time(), current.Time()) {
		key := period.MonthKey(m)
		index[key] = len(points)
		points = append(points, model.TrendPoint{
			Month:    period.ShortLabel(m),
			Key:      key,
			Income:   decimal.Zero,
			Expenses: decimal.Zero,
			Savings:  decimal.Zero,
		})
	}

	txns, err := a.load(ctx, user.ID, first.Time(), end)
	if err != nil {
		return nil, err
	}

	for i := range txns {
		pos, ok := index[period.MonthKey(txns[i].Date)]
		if !ok {
			continue
		}
		p := &points[pos]
		if txns[i].EffectiveType() == model.CategoryTypeIncome {
			p.Income = p.Income.Add(txns[i].Amount)
		} else {
			p.Expenses = p.Expenses.Add(txns[i].Amount)
		}
	}

	for i := range points {
		points[i].Savings = points[i].Income.Sub(points[i].Expenses)
	}
	return points, nil
}

// TotalCash is lifetime income minus lifetime expenses.
func (a *Aggregator) TotalCash(ctx context.Context, externalID string) (decimal.Decimal, error) {
	user, err := auth.ResolveUser(ctx, a.store, externalID)
	if err != nil {
		return decimal.Zero, err
	}
	return a.totalCash(ctx, user.ID)
}

func (a *Aggregator) totalCash(ctx context.Context, userID int64) (decimal.Decimal, error) {
	txns, err := a.store.GetTransactions(ctx, service.TransactionFilter{UserID: userID})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load transactions: %w", err)
	}
	return summarize(txns).NetSavings, nil
}

// AvailableMonths lists the months holding data, newest first.
func (a *Aggregator) AvailableMonths(ctx context.Context, externalID string) ([]model.MonthOption, error) {
	user, err := auth.ResolveUser(ctx, a.store, externalID)
	if err != nil {
		return nil, err
	}

	keys, err := a.store.GetMonthsWithTransactions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load months: %w", err)
	}

	options := make([]model.MonthOption, 0, len(keys))
	for _, key := range keys {
		ym, ok := period.ParseMonthParam(key)
		if !ok {
			slog.WarnContext(ctx, "skipping malformed month key", "user_id", user.ID, "key", key)
			continue
		}
		options = append(options, model.MonthOption{Value: key, Label: period.LongLabel(ym.Time())})
	}
	return options, nil
}

// History lists a month's transactions, newest first. A nil filter
// returns both types.
func (a *Aggregator) History(ctx context.Context, externalID string, ym period.YearMonth, filter *model.CategoryType) ([]model.Transaction, error) {
	user, err := auth.ResolveUser(ctx, a.store, externalID)
	if err != nil {
		return nil, err
	}
	if err := validateMonth(ym); err != nil {
		return nil, err
	}

	start, end := ym.Range()
	txns, err := a.store.GetTransactions(ctx, service.TransactionFilter{
		UserID:    user.ID,
		StartDate: &start,
		EndDate:   &end,
		Type:      filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return txns, nil
}

// Dashboard gathers the overview reports for a month. The fetches are
// independent and run concurrently.
func (a *Aggregator) Dashboard(ctx context.Context, externalID string, ym period.YearMonth) (*model.Dashboard, error) {
	user, err := auth.ResolveUser(ctx, a.store, externalID)
	if err != nil {
		return nil, err
	}

	dash := &model.Dashboard{Month: ym.Key()}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		summary, err := a.monthSummary(gctx, user.ID, ym)
		if err != nil {
			return fmt.Errorf("month summary: %w", err)
		}
		dash.Summary = summary
		return nil
	})
	g.Go(func() error {
		rows, err := a.monthlyBreakdown(gctx, user.ID, ym)
		if err != nil {
			return fmt.Errorf("category breakdown: %w", err)
		}
		dash.Breakdown = rows
		return nil
	})
	g.Go(func() error {
		cash, err := a.totalCash(gctx, user.ID)
		if err != nil {
			return fmt.Errorf("total cash: %w", err)
		}
		dash.TotalCash = cash
		return nil
	})
	g.Go(func() error {
		recent, err := a.store.GetTransactions(gctx, service.TransactionFilter{UserID: user.ID, Limit: RecentLimit})
		if err != nil {
			return fmt.Errorf("recent transactions: %w", err)
		}
		dash.Recent = recent
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dash, nil
}

func (a *Aggregator) load(ctx context.Context, userID int64, start, end time.Time) ([]model.Transaction, error) {
	txns, err := a.store.GetTransactions(ctx, service.TransactionFilter{
		UserID:    userID,
		StartDate: &start,
		EndDate:   &end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return txns, nil
}

func validateMonth(ym period.YearMonth) error {
	if ym.Month < time.January || ym.Month > time.December {
		return fmt.Errorf("invalid month %d", ym.Month)
	}
	return nil
}

// summarize splits rows into income and spending by effective type.
func summarize(txns []model.Transaction) model.MonthSummary {
	income, spending := decimal.Zero, decimal.Zero
	for i := range txns {
		if txns[i].EffectiveType() == model.CategoryTypeIncome {
			income = income.Add(txns[i].Amount)
		} else {
			spending = spending.Add(txns[i].Amount)
		}
	}
	return model.NewSummary(income, spending)
}

// breakdown groups expense rows by category name, largest first.
func breakdown(txns []model.Transaction) []model.CategoryShare {
	totals := make(map[string]decimal.Decimal)
	grand := decimal.Zero

	for i := range txns {
		if txns[i].EffectiveType() != model.CategoryTypeExpense {
			continue
		}
		name := txns[i].CategoryName()
		totals[name] = totals[name].Add(txns[i].Amount)
		grand = grand.Add(txns[i].Amount)
	}

	rows := make([]model.CategoryShare, 0, len(totals))
	for name, amount := range totals {
		rows = append(rows, model.CategoryShare{Name: name, Amount: amount, Total: grand})
	}

	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Amount.Cmp(rows[j].Amount); c != 0 {
			return c > 0
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}
