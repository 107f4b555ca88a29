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

package telegram

import (
	"context"
	"strconv"

	"escrow-bot-go/internal/common"
	"escrow-bot-go/internal/escrow"
	"escrow-bot-go/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of the Bot API used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier delivers deal notifications as private chat messages.
// A user's chat id is their Telegram user id.
type Notifier struct {
	sender    Sender
	templates *common.MessageTemplates
}

func NewNotifier(sender Sender, templates *common.MessageTemplates) *Notifier {
	return &Notifier{sender: sender, templates: templates}
}

func (n *Notifier) Notify(ctx context.Context, userId string, kind models.MessageKind, payload models.NotificationPayload) {
	chatId, err := strconv.ParseInt(userId, 10, 64)
	if err != nil {
		zap.L().Warn("Cannot notify non-telegram user", zap.String("user_id", userId), zap.String("kind", string(kind)))
		return
	}

	text, err := n.templates.Render(kind, payload)
	if err != nil {
		zap.L().Error("Failed to render notification", zap.String("kind", string(kind)), zap.Error(err))
		return
	}

	if _, err := n.sender.Send(tgbotapi.NewMessage(chatId, text)); err != nil {
		zap.L().Warn("Failed to deliver notification",
			zap.String("user_id", userId),
			zap.String("kind", string(kind)),
			zap.String("deal_id", payload.DealId),
			zap.Error(err))
		return
	}

	zap.L().Debug("Notification delivered",
		zap.String("user_id", userId),
		zap.String("kind", string(kind)),
		zap.String("deal_id", payload.DealId))
}

// LogNotifier writes notifications to the log. It is used when no bot token is configured.
type LogNotifier struct {
	templates *common.MessageTemplates
}

func NewLogNotifier(templates *common.MessageTemplates) *LogNotifier {
	return &LogNotifier{templates: templates}
}

func (n *LogNotifier) Notify(ctx context.Context, userId string, kind models.MessageKind, payload models.NotificationPayload) {
	text, err := n.templates.Render(kind, payload)
	if err != nil {
		zap.L().Error("Failed to render notification", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	zap.L().Info("Notification",
		zap.String("user_id", userId),
		zap.String("kind", string(kind)),
		zap.String("deal_id", payload.DealId),
		zap.String("text", text))
}

// NewNotifierFromConfig returns a Telegram notifier when a bot token is
// configured and a LogNotifier otherwise. The BotAPI is nil in the latter case.
func NewNotifierFromConfig(cfg models.TelegramConfig, templates *common.MessageTemplates) (*tgbotapi.BotAPI, escrow.Notifier, error) {
	if cfg.BotToken == "" {
		zap.L().Warn("TELEGRAM_BOT_TOKEN not set, notifications will only be logged")
		return nil, NewLogNotifier(templates), nil
	}

	api, err := NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, nil, err
	}
	return api, NewNotifier(api, templates), nil
}
