package common

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"escrow-bot-go/internal/models"
)

func TestDefaultTemplatesCoverAllKinds(t *testing.T) {
	mt, err := LoadMessageTemplates("")
	if err != nil {
		t.Fatalf("LoadMessageTemplates failed: %v", err)
	}

	payload := models.NotificationPayload{
		DealId:      "DL-7K3F9Q",
		Amount:      "$100.00",
		NetAmount:   "$97.00",
		Fee:         "$3.00",
		Description: "Vintage camera",
		Reason:      "not shipped",
		Status:      "active",
	}
	for _, kind := range AllMessageKinds {
		text, err := mt.Render(kind, payload)
		if err != nil {
			t.Errorf("Render(%s) failed: %v", kind, err)
			continue
		}
		if text == "" {
			t.Errorf("Render(%s) produced empty text", kind)
		}
	}

	text, _ := mt.Render(models.MessageDealCreated, payload)
	if !strings.Contains(text, "DL-7K3F9Q") || !strings.Contains(text, "$97.00") {
		t.Errorf("Unexpected deal_created text: %s", text)
	}
}

func TestLoadMessageTemplates_Override(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.yaml")
	content := "messages:\n  deal_cancelled: \"Deal {{.DealId}} is off\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write messages file: %v", err)
	}

	mt, err := LoadMessageTemplates(path)
	if err != nil {
		t.Fatalf("LoadMessageTemplates failed: %v", err)
	}

	text, err := mt.Render(models.MessageDealCancelled, models.NotificationPayload{DealId: "DL-7K3F9Q"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if text != "Deal DL-7K3F9Q is off" {
		t.Errorf("Expected override, got %q", text)
	}

	if _, err := mt.Render(models.MessageDealPaid, models.NotificationPayload{DealId: "DL-7K3F9Q"}); err != nil {
		t.Errorf("Expected defaults to remain for other kinds: %v", err)
	}
}

func TestLoadMessageTemplates_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown kind", "messages:\n  deal_exploded: \"boom\"\n"},
		{"bad template", "messages:\n  deal_paid: \"{{.DealId\"\n"},
		{"bad yaml", "messages: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "messages.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("Failed to write messages file: %v", err)
			}
			if _, err := LoadMessageTemplates(path); err == nil {
				t.Error("Expected an error")
			}
		})
	}

	if _, err := LoadMessageTemplates("does-not-exist.yaml"); err == nil {
		t.Error("Expected missing file to fail")
	}
}

func TestPaymentRequestedLink(t *testing.T) {
	mt, err := LoadMessageTemplates("")
	if err != nil {
		t.Fatalf("LoadMessageTemplates failed: %v", err)
	}

	withLink, err := mt.Render(models.MessagePaymentRequested, models.NotificationPayload{
		DealId:      "DL-7K3F9Q",
		Amount:      "$100.00",
		PaymentLink: "https://pay.example/checkout?payment_intent=pi_1",
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(withLink, "Pay here: https://pay.example/checkout?payment_intent=pi_1") {
		t.Errorf("Expected payment link in %q", withLink)
	}

	withoutLink, err := mt.Render(models.MessagePaymentRequested, models.NotificationPayload{DealId: "DL-7K3F9Q", Amount: "$100.00"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(withoutLink, "Pay here") {
		t.Errorf("Expected no link line in %q", withoutLink)
	}
}
