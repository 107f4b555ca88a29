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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"escrow-bot-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	dealExpiry, err := getEnvDuration("DEAL_EXPIRY", 0)
	if err != nil {
		return nil, err
	}

	expiryInterval, err := getEnvDuration("EXPIRY_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	eventCacheTTL, err := getEnvDuration("EVENT_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	draftTTL, err := getEnvDuration("DRAFT_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	backend := strings.ToLower(getEnvString("STORE_BACKEND", "sqlite"))
	if backend != "sqlite" && backend != "postgres" {
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: must be sqlite or postgres", backend)
	}

	feePercent := int64(getEnvInt("DEFAULT_FEE_PERCENT", 3))
	if feePercent < 0 || feePercent > 10 {
		return nil, fmt.Errorf("invalid DEFAULT_FEE_PERCENT %d: must be between 0 and 10", feePercent)
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Backend:         backend,
			Path:            getEnvString("DATABASE_PATH", "escrow.db"),
			URL:             getEnvString("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Stripe: models.StripeConfig{
			SecretKey:     getEnvString("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnvString("STRIPE_WEBHOOK_SECRET", ""),
			RefreshURL:    getEnvString("STRIPE_CONNECT_REFRESH_URL", "https://example.com/onboarding/refresh"),
			ReturnURL:     getEnvString("STRIPE_CONNECT_RETURN_URL", "https://example.com/onboarding/done"),
			PaymentPage:   getEnvString("STRIPE_PAYMENT_PAGE_URL", ""),
		},
		Escrow: models.EscrowConfig{
			DefaultCurrency:   strings.ToLower(getEnvString("DEFAULT_CURRENCY", "usd")),
			DefaultFeePercent: feePercent,
			MinAmount:         int64(getEnvInt("MIN_DEAL_AMOUNT", 100)),
			DealExpiry:        dealExpiry,
			ExpiryInterval:    expiryInterval,
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("HTTP_ADDR", ":8080"),
			MaxBodyBytes:    int64(getEnvInt("WEBHOOK_MAX_BODY_BYTES", 64*1024)),
			EventCacheTTL:   eventCacheTTL,
			ShutdownTimeout: shutdownTimeout,
		},
		Telegram: models.TelegramConfig{
			BotToken:     getEnvString("TELEGRAM_BOT_TOKEN", ""),
			DraftTTL:     draftTTL,
			MessagesFile: getEnvString("MESSAGES_FILE", ""),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
