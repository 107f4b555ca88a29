package common

import (
	"fmt"
	"strings"
	"time"

	"escrow-bot-go/internal/escrow"
	"escrow-bot-go/internal/models"
)

const (
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// DealSummary is a one-line description of a deal for lists
func DealSummary(deal *models.Deal) string {
	return fmt.Sprintf("%s  %-9s  %10s  %s",
		deal.Id, deal.Status, escrow.FormatAmount(deal.Amount, deal.Currency), truncate(deal.Description, 40))
}

// DealDetails renders every field an operator or participant may need
func DealDetails(deal *models.Deal) []string {
	fee := escrow.PlatformFee(deal.Amount, deal.FeePercent)
	lines := []string{
		fmt.Sprintf("Deal:        %s", deal.Id),
		fmt.Sprintf("Status:      %s", deal.Status),
		fmt.Sprintf("Buyer:       %s", deal.BuyerId),
		fmt.Sprintf("Seller:      %s", deal.SellerId),
		fmt.Sprintf("Amount:      %s (fee %s, seller receives %s)",
			escrow.FormatAmount(deal.Amount, deal.Currency),
			escrow.FormatAmount(fee, deal.Currency),
			escrow.FormatAmount(deal.Amount-fee, deal.Currency)),
		fmt.Sprintf("Description: %s", deal.Description),
		fmt.Sprintf("Created:     %s", formatTime(&deal.CreatedAt)),
	}
	if deal.PaymentIntentId != "" {
		lines = append(lines, fmt.Sprintf("Payment:     %s", deal.PaymentIntentId))
	}
	if deal.TransferId != "" {
		lines = append(lines, fmt.Sprintf("Transfer:    %s", deal.TransferId))
	}
	if deal.CompletedAt != nil {
		lines = append(lines, fmt.Sprintf("Completed:   %s", formatTime(deal.CompletedAt)))
	}
	if deal.CancelledAt != nil {
		lines = append(lines, fmt.Sprintf("Cancelled:   %s", formatTime(deal.CancelledAt)))
	}
	if deal.DisputedAt != nil {
		lines = append(lines,
			fmt.Sprintf("Disputed:    %s by %s", formatTime(deal.DisputedAt), deal.DisputeInitiator),
			fmt.Sprintf("Reason:      %s", deal.DisputeReason))
	}
	for i, m := range deal.Milestones {
		lines = append(lines, fmt.Sprintf("%s%d. %s (%s, %s)",
			BoxPrefix(i == len(deal.Milestones)-1), i+1, m.Description,
			escrow.FormatAmount(m.Amount, deal.Currency), m.Status))
	}
	return lines
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04 MST")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
