package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/egannguyen/storefront/internal/bundle"
	"github.com/egannguyen/storefront/internal/cart"
	deliveryhttp "github.com/egannguyen/storefront/internal/delivery/http"
	"github.com/egannguyen/storefront/internal/messaging"
	"github.com/egannguyen/storefront/internal/service"
)

const publishTimeout = 5 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rates, err := cfg.Pricing.Rates()
	if err != nil {
		return err
	}
	idle, err := cfg.Storage.IdleTimeout()
	if err != nil {
		return err
	}

	// --- Database ---
	repos, err := openRepositories(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to init repositories: %w", err)
	}
	defer repos.Close()

	if err := repos.products.Seed(ctx, demoCatalog()); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}

	// --- Cart storage ---
	st, closeStorage, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open cart storage: %w", err)
	}
	defer closeStorage()

	// --- Messaging ---
	b := openBroker(cfg.Messaging)
	defer b.Close()

	// --- Services ---
	sessions := cart.NewSessions(st, func(cartID string, s *cart.Store) {
		s.Subscribe(cart.PublishingObserver(b, cartID, publishTimeout))
	}, cart.WithTaxRate(rates.Tax))
	defer sessions.Close()

	deriver := bundle.CloudinaryDeriver{Host: cfg.Images.CloudinaryHost}
	cartSvc := service.NewCartService(sessions, repos.products, deriver, bundle.WithDiscountRate(rates.BundleDiscount))
	orderSvc := service.NewOrderService(repos.orders, repos.products, repos.events, b, sessions)

	go cartSvc.RunEviction(ctx, min(idle, time.Minute), idle)

	// Consumer: orders.placed → confirm order, publish orders.confirmed
	go b.Consume(ctx, messaging.TopicOrdersPlaced, "storefront-placed", orderSvc.ConsumeOrderPlaced)
	// Consumer: orders.confirmed → read model
	go b.Consume(ctx, messaging.TopicOrdersConfirmed, "storefront-confirmed", orderSvc.ConsumeOrderConfirmed)
	slog.Info("Order consumers started")

	// --- HTTP API ---
	handler := deliveryhttp.NewHandler(cartSvc, orderSvc, rates.DefaultShipping)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server starting", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "err", err)
	}
	return nil
}
