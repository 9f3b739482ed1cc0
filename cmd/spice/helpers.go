package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-ledger/internal/auth"
	"github.com/Veraticus/spice-ledger/internal/broadcast"
	"github.com/Veraticus/spice-ledger/internal/categories"
	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/ledger"
	"github.com/Veraticus/spice-ledger/internal/period"
	"github.com/Veraticus/spice-ledger/internal/report"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/Veraticus/spice-ledger/internal/views"
)

// app bundles the services a command needs, acting as one user.
type app struct {
	cfg        *config.Config
	store      *storage.SQLiteStorage
	ledger     *ledger.Service
	categories *categories.Service
	reports    *report.Aggregator
	publisher  *broadcast.Publisher
	user       string
}

// loadConfig reads the typed configuration from the global viper.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// initStorage opens the configured database and migrates it.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// openApp prepares the services for the --user identity. The user and
// their income category are created on first use, as the API does on a
// caller's first request. With amqp.url set, writes tell running servers
// to drop their cached views.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.UserID == "" {
		return nil, common.NewUserError("Pass --user or set user.id to choose whose ledger to use.", common.ErrMissingConfig)
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var revalidator service.Revalidator = views.Nop{}
	var publisher *broadcast.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = broadcast.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			slog.Warn("view revalidation broadcasts disabled", "error", err)
		} else {
			revalidator = publisher
		}
	}

	a := &app{
		cfg:        cfg,
		store:      store,
		publisher:  publisher,
		user:       cfg.UserID,
		ledger:     ledger.NewService(store, auth.StaticIdentity(cfg.UserID), revalidator, ledger.WithSummaryCache(store)),
		categories: categories.NewService(store, categories.WithSummaryCache(store), categories.WithRevalidator(revalidator)),
		reports:    report.NewAggregator(store, report.WithSummaryCache(store)),
	}

	if _, _, err := auth.EnsureUser(ctx, store, cfg.UserID); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}
	if _, err := a.categories.EnsureIncome(ctx, cfg.UserID); err != nil {
		_ = a.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) Close() error {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			slog.Warn("failed to close broadcast publisher", "error", err)
		}
	}
	return a.store.Close()
}

// printResult reports a mutation outcome and turns failures into errors.
func printResult(w io.Writer, res ledger.Result) error {
	if res.Success {
		_, err := fmt.Fprintln(w, cli.FormatSuccess(res.Message))
		return err
	}

	fields := make([]string, 0, len(res.Errors))
	for field := range res.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		for _, msg := range res.Errors[field] {
			fmt.Fprintln(w, cli.FormatError(field+": "+msg))
		}
	}
	return common.NewUserError(res.Message, res.Err)
}

// monthArg parses an optional YYYY-MM argument, defaulting to the
// current month.
func monthArg(args []string, now time.Time) (period.YearMonth, error) {
	if len(args) == 0 || args[0] == "" {
		return period.Of(now), nil
	}
	ym, ok := period.ParseMonthParam(args[0])
	if !ok {
		return period.YearMonth{}, common.NewUserError(
			fmt.Sprintf("Invalid month %q, expected YYYY-MM.", args[0]), common.ErrValidation)
	}
	return ym, nil
}
