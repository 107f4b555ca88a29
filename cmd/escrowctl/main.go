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
	"fmt"
	"os"
	"time"

	"escrow-bot-go/internal/common"
	"escrow-bot-go/internal/config"
	"escrow-bot-go/internal/escrow"
	"escrow-bot-go/internal/models"
	"escrow-bot-go/internal/telegram"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultDealLimit = 10

var cfg *models.Config

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	rootCmd := &cobra.Command{
		Use:   "escrowctl",
		Short: "Operator tool for inspecting and managing escrow deals",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = loaded
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(dealCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func dealCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deal",
		Short: "Inspect or cancel a deal",
	}
	cmd.AddCommand(dealShowCmd())
	cmd.AddCommand(dealCancelCmd())
	return cmd
}

func dealShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <deal-id>",
		Short: "Print every field of a deal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dealStore, err := common.InitializeStoreOnly(ctx, cfg)
			if err != nil {
				return err
			}
			defer dealStore.Close()

			deal, err := dealStore.FindDealById(ctx, escrow.NormalizeDealId(args[0]))
			if err != nil {
				return fmt.Errorf("deal %s: %w", args[0], err)
			}

			common.PrintHeader("DEAL "+deal.Id, common.DefaultWidth)
			for _, line := range common.DealDetails(deal) {
				fmt.Println(line)
			}
			return nil
		},
	}
}

func dealCancelCmd() *cobra.Command {
	var as string

	cmd := &cobra.Command{
		Use:   "cancel <deal-id>",
		Short: "Cancel an unpaid deal on behalf of a participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := initializeServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			deal, err := services.Escrow.Cancel(ctx, escrow.NormalizeDealId(args[0]), as)
			if err != nil {
				return err
			}
			fmt.Println(common.DealSummary(deal))
			return nil
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "Participant id performing the cancellation")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect or onboard a participant",
	}
	cmd.AddCommand(userShowCmd())
	cmd.AddCommand(userOnboardCmd())
	return cmd
}

func userShowCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Print a participant's reputation and recent deals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dealStore, err := common.InitializeStoreOnly(ctx, cfg)
			if err != nil {
				return err
			}
			defer dealStore.Close()

			user, deals, err := common.LookupUser(ctx, dealStore, args[0], limit, cfg.Escrow.DefaultCurrency)
			if err != nil {
				return err
			}

			fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Id)
			fmt.Printf("│  Payment account: %s\n", user.AccountStatus)
			fmt.Printf("│  Deals: %d total, %d completed, %s volume\n", user.TotalDeals, user.SuccessfulDeals, user.TotalVolume)
			for i := range deals {
				fmt.Printf("%s %s\n", common.BoxPrefix(i == len(deals)-1), common.DealSummary(&deals[i]))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", defaultDealLimit, "Number of recent deals to list")
	return cmd
}

func userOnboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard <user-id>",
		Short: "Create a payment account onboarding link for a participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := initializeServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			link, err := services.Escrow.StartOnboarding(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(link)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	var olderThan time.Duration
	var limit int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Cancel unpaid deals older than the given age",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				olderThan = cfg.Escrow.DealExpiry
			}
			if olderThan <= 0 {
				return fmt.Errorf("--older-than is required when DEAL_EXPIRY is not set")
			}

			ctx := cmd.Context()
			services, err := initializeServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			expired, err := services.Escrow.ExpireStale(ctx, olderThan, limit)
			if err != nil {
				return err
			}
			common.PrintFooter(fmt.Sprintf("SUMMARY: %d unpaid deals cancelled", expired), common.DefaultWidth)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Minimum age of unpaid deals to cancel (defaults to DEAL_EXPIRY)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of deals to cancel")
	return cmd
}

// initializeServices wires the full stack with notifications routed to the
// bot when a token is configured.
func initializeServices(ctx context.Context) (*common.Services, error) {
	templates, err := common.LoadMessageTemplates(cfg.Telegram.MessagesFile)
	if err != nil {
		return nil, err
	}

	_, notifier, err := telegram.NewNotifierFromConfig(cfg.Telegram, templates)
	if err != nil {
		return nil, err
	}

	services, err := common.InitializeServices(ctx, cfg, notifier)
	if err != nil {
		zap.L().Error("Failed to initialize services", zap.Error(err))
		return nil, err
	}
	return services, nil
}
