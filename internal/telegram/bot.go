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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"escrow-bot-go/internal/common"
	"escrow-bot-go/internal/drafts"
	"escrow-bot-go/internal/escrow"
	"escrow-bot-go/internal/models"
	"escrow-bot-go/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	updateTimeoutSeconds = 60
	myDealsLimit         = 10
)

// DealService is the part of escrow.Service exposed to chat participants.
type DealService interface {
	CreateDeal(ctx context.Context, params escrow.CreateDealParams) (*models.Deal, error)
	GetDeal(ctx context.Context, dealId, callerId string) (*models.Deal, error)
	ListDeals(ctx context.Context, userId string, limit int) ([]models.Deal, error)
	Release(ctx context.Context, dealId, callerId string) (*models.Deal, error)
	Dispute(ctx context.Context, dealId, callerId, reason string) (*models.Deal, error)
	Cancel(ctx context.Context, dealId, callerId string) (*models.Deal, error)
	StartOnboarding(ctx context.Context, userId string) (string, error)
}

// UserRegistry records participants on first contact.
type UserRegistry interface {
	EnsureUser(ctx context.Context, params store.EnsureUserParams) (*models.User, error)
}

// BotConfig contains configuration for Bot
type BotConfig struct {
	Deals  DealService
	Users  UserRegistry
	Drafts *drafts.Store
}

// Bot routes chat commands to the deal state machine.
type Bot struct {
	api    *tgbotapi.BotAPI
	deals  DealService
	users  UserRegistry
	drafts *drafts.Store

	wg sync.WaitGroup
}

// NewBotAPI connects to Telegram with the given token.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to telegram: %w", err)
	}
	zap.L().Info("Connected to Telegram", zap.String("bot", api.Self.UserName))
	return api, nil
}

func NewBot(api *tgbotapi.BotAPI, cfg BotConfig) *Bot {
	return &Bot{
		api:    api,
		deals:  cfg.Deals,
		users:  cfg.Users,
		drafts: cfg.Drafts,
	}
}

// Run receives updates until ctx is cancelled. Each message is handled in its
// own goroutine; Run waits for in-flight handlers before returning.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeoutSeconds
	updates := b.api.GetUpdatesChan(u)

	zap.L().Info("Bot is receiving updates")
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			zap.L().Info("Bot stopped receiving updates")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.reply(msg.Chat.ID, b.handleMessage(ctx, msg))
			}(update.Message)
		}
	}
}

func (b *Bot) reply(chatId int64, text string) {
	if text == "" {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatId, text)); err != nil {
		zap.L().Warn("Failed to send reply", zap.Int64("chat_id", chatId), zap.Error(err))
	}
}

func userIdOf(msg *tgbotapi.Message) string {
	return strconv.FormatInt(msg.From.ID, 10)
}

func displayNameOf(msg *tgbotapi.Message) string {
	if msg.From.UserName != "" {
		return "@" + msg.From.UserName
	}
	return strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
}

// handleMessage returns the reply text for one incoming message.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) string {
	userId := userIdOf(msg)
	if _, err := b.users.EnsureUser(ctx, store.EnsureUserParams{UserId: userId, DisplayName: displayNameOf(msg)}); err != nil {
		zap.L().Error("Failed to register user", zap.String("user_id", userId), zap.Error(err))
		return replyInternal
	}

	if !msg.IsCommand() {
		return b.continueDraft(ctx, userId, msg.Text)
	}

	args := strings.TrimSpace(msg.CommandArguments())
	zap.L().Debug("Command received", zap.String("user_id", userId), zap.String("command", msg.Command()))

	switch msg.Command() {
	case "start", "help":
		return helpText
	case "newdeal":
		b.drafts.Begin(userId)
		return "Let's open a deal. Who is the seller? Send their numeric Telegram user id."
	case "cancel_draft":
		if b.drafts.Discard(userId) {
			return "Draft discarded."
		}
		return "You have no deal draft in progress."
	case "confirm":
		return b.confirmDraft(ctx, userId)
	case "deal":
		return b.withDealId(args, func(dealId string) (string, error) {
			deal, err := b.deals.GetDeal(ctx, dealId, userId)
			if err != nil {
				return "", err
			}
			return strings.Join(common.DealDetails(deal), "\n"), nil
		})
	case "mydeals":
		return b.listDeals(ctx, userId)
	case "release":
		return b.withDealId(args, func(dealId string) (string, error) {
			deal, err := b.deals.Release(ctx, dealId, userId)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Funds for %s released.", deal.Id), nil
		})
	case "dispute":
		idArg, reason, _ := strings.Cut(args, " ")
		return b.withDealId(idArg, func(dealId string) (string, error) {
			deal, err := b.deals.Dispute(ctx, dealId, userId, reason)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Deal %s is now disputed. Funds stay frozen until it is resolved.", deal.Id), nil
		})
	case "cancel":
		return b.withDealId(args, func(dealId string) (string, error) {
			deal, err := b.deals.Cancel(ctx, dealId, userId)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Deal %s cancelled.", deal.Id), nil
		})
	case "onboard":
		link, err := b.deals.StartOnboarding(ctx, userId)
		if err != nil {
			if errors.Is(err, escrow.ErrPreconditionFailed) {
				return "Your payout account is already active."
			}
			return userMessage(err)
		}
		return "Finish setting up your payout account here:\n" + link
	}
	return "Unknown command. " + helpText
}

func (b *Bot) withDealId(arg string, fn func(dealId string) (string, error)) string {
	if arg == "" {
		return "Please include a deal id, e.g. DL-7K3F9Q."
	}
	dealId := escrow.NormalizeDealId(arg)
	if !escrow.IsValidDealId(dealId) {
		return replyNotFound
	}
	text, err := fn(dealId)
	if err != nil {
		return userMessage(err)
	}
	return text
}

func (b *Bot) listDeals(ctx context.Context, userId string) string {
	deals, err := b.deals.ListDeals(ctx, userId, myDealsLimit)
	if err != nil {
		return userMessage(err)
	}
	if len(deals) == 0 {
		return "You have no deals yet. Start one with /newdeal."
	}

	lines := make([]string, 0, len(deals)+1)
	lines = append(lines, "Your recent deals:")
	for i := range deals {
		role := "buyer"
		if deals[i].SellerId == userId {
			role = "seller"
		}
		lines = append(lines, fmt.Sprintf("%s (%s)", common.DealSummary(&deals[i]), role))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) continueDraft(ctx context.Context, userId, text string) string {
	d, err := b.drafts.Advance(userId, text)
	if err != nil {
		if errors.Is(err, drafts.ErrNoDraft) {
			return helpText
		}
		return userMessage(err)
	}

	switch d.Step {
	case drafts.StepAmount:
		return "How much? Send an amount like 100 or 99.50."
	case drafts.StepDescription:
		return "What is the deal for? Send a short description."
	case drafts.StepConfirm:
		return fmt.Sprintf("Seller: %s\nAmount: %s\nDescription: %s\n\nReply /confirm to open the deal or /cancel_draft to discard it.",
			d.SellerId, escrow.FormatAmount(d.Amount, d.Currency), d.Description)
	}
	return ""
}

func (b *Bot) confirmDraft(ctx context.Context, userId string) string {
	d, ok := b.drafts.Get(userId)
	if !ok {
		return "You have no deal draft in progress. Start one with /newdeal."
	}
	params, err := d.Params()
	if err != nil {
		return "The draft is not complete yet."
	}

	deal, err := b.deals.CreateDeal(ctx, params)
	if err != nil {
		return userMessage(err)
	}
	b.drafts.Discard(userId)

	return fmt.Sprintf("Deal %s opened for %s. Pay to fund the escrow; the seller will be notified.",
		deal.Id, escrow.FormatAmount(deal.Amount, deal.Currency))
}

const (
	replyNotFound        = "Deal not found."
	replyPrecondition    = "Deal is not in the right state."
	replyPaymentReceived = "The payment for this deal was already received and is being confirmed, so it can no longer be cancelled."
	replyGateway         = "Payment provider error, please retry."
	replyInternal        = "Something went wrong, please try again later."

	helpText = `Commands:
/newdeal - open a deal as the buyer
/confirm - confirm the deal draft
/cancel_draft - discard the deal draft
/deal <id> - show a deal
/mydeals - list your recent deals
/release <id> - release funds to the seller (seller only)
/dispute <id> <reason> - freeze a paid deal
/cancel <id> - cancel an unpaid deal
/onboard - set up your payout account`
)

// userMessage maps an error to text safe to show a participant.
func userMessage(err error) string {
	switch {
	case errors.Is(err, drafts.ErrInvalidInput):
		return strings.TrimPrefix(err.Error(), drafts.ErrInvalidInput.Error()+": ")
	case errors.Is(err, escrow.ErrSellerNotOnboarded):
		return "The seller has not set up a payout account yet. Ask them to send /onboard."
	case errors.Is(err, escrow.ErrValidation):
		return "Invalid request: " + strings.TrimPrefix(err.Error(), escrow.ErrValidation.Error()+": ")
	case errors.Is(err, escrow.ErrNotFound):
		return replyNotFound
	case errors.Is(err, escrow.ErrPaymentReceived):
		return replyPaymentReceived
	case errors.Is(err, escrow.ErrPreconditionFailed):
		return replyPrecondition
	case errors.Is(err, escrow.ErrGateway):
		return replyGateway
	}
	zap.L().Error("Unexpected error handling command", zap.Error(err))
	return replyInternal
}
