package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-ledger/internal/api"
	"github.com/Veraticus/spice-ledger/internal/auth"
	"github.com/Veraticus/spice-ledger/internal/broadcast"
	"github.com/Veraticus/spice-ledger/internal/categories"
	"github.com/Veraticus/spice-ledger/internal/ledger"
	"github.com/Veraticus/spice-ledger/internal/report"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/views"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long: `Serve the ledger over HTTP. Requests authenticate with a bearer
token signed with auth.jwt_secret (see "spice token").

With amqp.url set, cached views are revalidated across every
instance sharing the exchange.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default: server.addr)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireServer(); err != nil {
		return err
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cache := views.NewCache(cfg.CacheSize, cfg.CacheTTL)
	var revalidator service.Revalidator = cache

	if cfg.AMQPURL != "" {
		publisher, err := broadcast.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		defer func() { _ = publisher.Close() }()

		revalidator = views.Fanout{cache, publisher}
		go subscribe(ctx, broadcast.NewSubscriber(cache, publisher.Source()), publisher, cfg.AMQPExchange)
	}

	server := api.NewServer(api.Dependencies{
		Store:      store,
		Ledger:     ledger.NewService(store, auth.ContextIdentity{}, revalidator, ledger.WithSummaryCache(store)),
		Categories: categories.NewService(store, categories.WithSummaryCache(store), categories.WithRevalidator(revalidator)),
		Reports:    report.NewAggregator(store, report.WithSummaryCache(store)),
		Verifier:   verifier,
		Cache:      cache,
	})

	return server.ListenAndServe(ctx, cfg.ServerAddr, cfg.ReadTimeout, cfg.WriteTimeout)
}

func subscribe(ctx context.Context, sub *broadcast.Subscriber, publisher *broadcast.Publisher, exchange string) {
	err := sub.Run(ctx, publisher.Connection(), exchange)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("revalidation subscriber stopped; cached views now expire by TTL only", "error", err)
	}
}
