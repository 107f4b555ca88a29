package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"escrow-bot-go/internal/database"
	"escrow-bot-go/internal/escrow"
	"escrow-bot-go/internal/models"
	"escrow-bot-go/internal/pgstore"
	"escrow-bot-go/internal/store"
	"escrow-bot-go/internal/stripe"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	Store   store.DealStore
	Gateway *stripe.Service
	Escrow  *escrow.Service
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the configured store and payment gateway and wires
// the deal state machine on top of them.
func InitializeServices(ctx context.Context, cfg *models.Config, notifier escrow.Notifier) (*Services, error) {
	dealStore, err := InitializeStoreOnly(ctx, cfg)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Initializing Stripe gateway")
	gateway, err := stripe.NewService(cfg.Stripe)
	if err != nil {
		dealStore.Close()
		return nil, err
	}

	escrowService := escrow.NewService(escrow.ServiceConfig{
		Store:             dealStore,
		Gateway:           gateway,
		Onboarder:         gateway,
		Notifier:          notifier,
		MinAmount:         cfg.Escrow.MinAmount,
		DefaultFeePercent: cfg.Escrow.DefaultFeePercent,
		DefaultCurrency:   cfg.Escrow.DefaultCurrency,
	})

	return &Services{
		Store:   dealStore,
		Gateway: gateway,
		Escrow:  escrowService,
	}, nil
}

// InitializeStoreOnly opens just the deal store without the payment gateway.
// Useful for read-only operations like inspecting deals.
func InitializeStoreOnly(ctx context.Context, cfg *models.Config) (store.DealStore, error) {
	switch strings.ToLower(cfg.Database.Backend) {
	case "", "sqlite":
		dbService, err := database.NewService(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return dbService, nil
	case "postgres":
		pgService, err := pgstore.NewService(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return pgService, nil
	}
	return nil, fmt.Errorf("unsupported store backend %q", cfg.Database.Backend)
}

func (cs *Services) Close() {
	if cs.Store != nil {
		cs.Store.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
