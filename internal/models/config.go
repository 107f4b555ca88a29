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

package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Stripe   StripeConfig
	Escrow   EscrowConfig
	Server   ServerConfig
	Telegram TelegramConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Backend         string // "sqlite" or "postgres"
	Path            string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// StripeConfig holds payment gateway credentials
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	RefreshURL    string
	ReturnURL     string
	PaymentPage   string
}

// EscrowConfig holds deal lifecycle settings
type EscrowConfig struct {
	DefaultCurrency   string
	DefaultFeePercent int64
	MinAmount         int64
	DealExpiry        time.Duration // zero disables expiry of unpaid deals
	ExpiryInterval    time.Duration
}

// ServerConfig holds webhook server settings
type ServerConfig struct {
	Addr            string
	MaxBodyBytes    int64
	EventCacheTTL   time.Duration
	ShutdownTimeout time.Duration
}

// TelegramConfig holds chat transport settings
type TelegramConfig struct {
	BotToken     string
	DraftTTL     time.Duration
	MessagesFile string
}
