/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"escrow-bot-go/internal/common"
	"escrow-bot-go/internal/config"
	"escrow-bot-go/internal/drafts"
	"escrow-bot-go/internal/escrow"
	"escrow-bot-go/internal/reconciler"
	"escrow-bot-go/internal/telegram"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const expiryBatchSize = 100

func main() {
	addr := flag.String("addr", "", "Override HTTP_ADDR for the webhook server")
	noBot := flag.Bool("no-bot", false, "Serve webhooks only, without polling Telegram for commands")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	zap.L().Info("Starting escrow server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("store_backend", cfg.Database.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	templates, err := common.LoadMessageTemplates(cfg.Telegram.MessagesFile)
	if err != nil {
		zap.L().Fatal("Failed to load message templates", zap.Error(err))
	}

	botAPI, notifier, err := telegram.NewNotifierFromConfig(cfg.Telegram, templates)
	if err != nil {
		zap.L().Fatal("Failed to initialize notifier", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg, notifier)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	rec := reconciler.NewReconciler(reconciler.ReconcilerConfig{
		Verifier:      services.Gateway,
		Deals:         services.Escrow,
		Events:        services.Store,
		Notifier:      notifier,
		EventCacheTTL: cfg.Server.EventCacheTTL,
	})

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           reconciler.NewServer(rec, services.Store, cfg.Server.MaxBodyBytes).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("Webhook server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		rec.Start()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("Shutdown signal received, stopping server...")
		rec.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
		}
		return nil
	})

	if botAPI != nil && !*noBot {
		draftStore := drafts.NewStore(cfg.Telegram.DraftTTL, cfg.Escrow.DefaultCurrency)
		bot := telegram.NewBot(botAPI, telegram.BotConfig{
			Deals:  services.Escrow,
			Users:  services.Store,
			Drafts: draftStore,
		})

		g.Go(func() error {
			draftStore.Start()
			return nil
		})
		g.Go(func() error {
			defer draftStore.Stop()
			return bot.Run(gctx)
		})
	}

	if cfg.Escrow.DealExpiry > 0 {
		g.Go(func() error {
			runExpiry(gctx, services.Escrow, cfg.Escrow.DealExpiry, cfg.Escrow.ExpiryInterval)
			return nil
		})
	} else {
		zap.L().Info("Unpaid deal expiry disabled")
	}

	if err := g.Wait(); err != nil {
		zap.L().Error("Server stopped with error", zap.Error(err))
		return
	}
	zap.L().Info("Server stopped gracefully")
}

func runExpiry(ctx context.Context, service *escrow.Service, olderThan, interval time.Duration) {
	zap.L().Info("Expiring unpaid deals",
		zap.Duration("older_than", olderThan),
		zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := service.ExpireStale(ctx, olderThan, expiryBatchSize); err != nil {
				zap.L().Error("Failed to expire unpaid deals", zap.Error(err))
			}
		}
	}
}
