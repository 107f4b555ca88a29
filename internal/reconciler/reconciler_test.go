package reconciler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"escrow-bot-go/internal/database"
	"escrow-bot-go/internal/escrow"
	"escrow-bot-go/internal/models"
	"escrow-bot-go/internal/store"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
)

const testSignature = "t=1,v1=valid"

// fakeVerifier accepts payloads that are JSON-encoded GatewayEvents.
type fakeVerifier struct{}

func (fakeVerifier) VerifyEventSignature(payload []byte, signature string) (*models.GatewayEvent, error) {
	if signature != testSignature {
		return nil, errors.New("signature mismatch")
	}
	var event models.GatewayEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

type fakeGateway struct{}

func (fakeGateway) CreateHeldPayment(ctx context.Context, amount int64, currency, correlationId string, metadata models.PaymentMetadata) (*models.HeldPayment, error) {
	return &models.HeldPayment{IntentId: "pi_" + correlationId}, nil
}

func (fakeGateway) CreateTransfer(ctx context.Context, amount int64, currency, destinationAccount, correlationId string, metadata models.PaymentMetadata) (*models.Transfer, error) {
	return &models.Transfer{TransferId: "tr_" + correlationId, Amount: amount}, nil
}

func (fakeGateway) CancelPayment(ctx context.Context, intentId string) error {
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[models.MessageKind][]string
}

func (n *recordingNotifier) Notify(ctx context.Context, userId string, kind models.MessageKind, payload models.NotificationPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = make(map[models.MessageKind][]string)
	}
	n.sent[kind] = append(n.sent[kind], userId)
}

// failingDeals simulates a store outage behind the state machine.
type failingDeals struct{}

func (failingDeals) FindDealByIntent(ctx context.Context, intentId string) (*models.Deal, error) {
	return nil, errors.New("database is locked")
}

func (failingDeals) MarkPaid(ctx context.Context, dealId, intentId string) (*models.Deal, error) {
	return nil, errors.New("database is locked")
}

func (failingDeals) UpdatePaymentAccountStatus(ctx context.Context, accountId string, status models.PaymentAccountStatus) error {
	return errors.New("database is locked")
}

type testEnv struct {
	store      *database.Service
	escrow     *escrow.Service
	reconciler *Reconciler
	notifier   *recordingNotifier
	server     *Server
}

func setupTestEnv(t *testing.T) (*testEnv, func()) {
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	ds := database.NewServiceFromDB(db)
	if err := ds.InitSchema(); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	ctx := context.Background()
	for _, id := range []string{"buyer", "seller"} {
		if _, err := ds.EnsureUser(ctx, store.EnsureUserParams{UserId: id, DisplayName: id}); err != nil {
			t.Fatalf("Failed to insert test user %s: %v", id, err)
		}
	}
	if err := ds.SetPaymentAccount(ctx, "seller", "acct_seller", models.PaymentAccountActive); err != nil {
		t.Fatalf("Failed to activate seller: %v", err)
	}

	notifier := &recordingNotifier{}
	es := escrow.NewService(escrow.ServiceConfig{
		Store:    ds,
		Gateway:  fakeGateway{},
		Notifier: notifier,
	})
	rec := NewReconciler(ReconcilerConfig{
		Verifier: fakeVerifier{},
		Deals:    es,
		Events:   ds,
		Notifier: notifier,
	})

	env := &testEnv{
		store:      ds,
		escrow:     es,
		reconciler: rec,
		notifier:   notifier,
		server:     NewServer(rec, ds, 0),
	}
	return env, func() {
		db.Close()
	}
}

func (env *testEnv) createDeal(t *testing.T) *models.Deal {
	deal, err := env.escrow.CreateDeal(context.Background(), escrow.CreateDealParams{
		BuyerId:     "buyer",
		SellerId:    "seller",
		Amount:      10000,
		Description: "Vintage camera",
	})
	if err != nil {
		t.Fatalf("CreateDeal failed: %v", err)
	}
	return deal
}

func encodeEvent(t *testing.T, event models.GatewayEvent) []byte {
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to encode event: %v", err)
	}
	return payload
}

func (env *testEnv) post(payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(string(payload)))
	req.Header.Set(SignatureHeader, signature)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleWebhook_PaymentSucceeded(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	deal := env.createDeal(t)
	payload := encodeEvent(t, models.GatewayEvent{
		Id:       "evt_1",
		Kind:     models.EventPaymentSucceeded,
		RawType:  "payment_intent.succeeded",
		IntentId: deal.PaymentIntentId,
	})

	if err := env.reconciler.HandleWebhook(ctx, payload, testSignature); err != nil {
		t.Fatalf("HandleWebhook failed: %v", err)
	}

	stored, _ := env.store.FindDealById(ctx, deal.Id)
	if stored.Status != models.DealStatusPaid {
		t.Errorf("Expected paid, got %s", stored.Status)
	}

	processed, err := env.store.HasProcessedEvent(ctx, "evt_1")
	if err != nil || !processed {
		t.Errorf("Expected evt_1 to be recorded, got %v (err %v)", processed, err)
	}

	// Redelivery is acknowledged without a second notification.
	if err := env.reconciler.HandleWebhook(ctx, payload, testSignature); err != nil {
		t.Fatalf("Redelivery failed: %v", err)
	}
	if n := len(env.notifier.sent[models.MessageDealPaid]); n != 2 {
		t.Errorf("Expected 2 paid notifications, got %d", n)
	}
}

func TestHandleWebhook_DistinctEventsSamePayment(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	deal := env.createDeal(t)
	for _, id := range []string{"evt_capturable", "evt_succeeded"} {
		payload := encodeEvent(t, models.GatewayEvent{Id: id, Kind: models.EventPaymentSucceeded, IntentId: deal.PaymentIntentId})
		if err := env.reconciler.HandleWebhook(ctx, payload, testSignature); err != nil {
			t.Fatalf("HandleWebhook(%s) failed: %v", id, err)
		}
	}

	stored, _ := env.store.FindDealById(ctx, deal.Id)
	if stored.Status != models.DealStatusPaid {
		t.Errorf("Expected paid, got %s", stored.Status)
	}
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	deal := env.createDeal(t)
	payload := encodeEvent(t, models.GatewayEvent{Id: "evt_forged", Kind: models.EventPaymentSucceeded, IntentId: deal.PaymentIntentId})

	err := env.reconciler.HandleWebhook(context.Background(), payload, "t=1,v1=forged")
	if !errors.Is(err, escrow.ErrInvalidSignature) {
		t.Fatalf("Expected invalid signature, got %v", err)
	}

	stored, _ := env.store.FindDealById(context.Background(), deal.Id)
	if stored.Status != models.DealStatusCreated {
		t.Errorf("Expected deal untouched, got %s", stored.Status)
	}
}

func TestHandleWebhook_PaymentFailedNotifiesBuyer(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	deal := env.createDeal(t)
	payload := encodeEvent(t, models.GatewayEvent{
		Id:            "evt_failed",
		Kind:          models.EventPaymentFailed,
		IntentId:      deal.PaymentIntentId,
		FailureReason: "card_declined",
	})

	if err := env.reconciler.HandleWebhook(context.Background(), payload, testSignature); err != nil {
		t.Fatalf("HandleWebhook failed: %v", err)
	}

	got := env.notifier.sent[models.MessagePaymentFailed]
	if len(got) != 1 || got[0] != "buyer" {
		t.Errorf("Expected buyer to be notified once, got %v", got)
	}
	stored, _ := env.store.FindDealById(context.Background(), deal.Id)
	if stored.Status != models.DealStatusCreated {
		t.Errorf("Expected deal to stay created, got %s", stored.Status)
	}
}

func TestHandleWebhook_AccountUpdated(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	if err := env.store.SetPaymentAccount(ctx, "buyer", "acct_buyer", models.PaymentAccountPending); err != nil {
		t.Fatalf("SetPaymentAccount failed: %v", err)
	}

	payload := encodeEvent(t, models.GatewayEvent{
		Id:            "evt_account",
		Kind:          models.EventAccountUpdated,
		AccountId:     "acct_buyer",
		AccountStatus: models.PaymentAccountActive,
	})
	if err := env.reconciler.HandleWebhook(ctx, payload, testSignature); err != nil {
		t.Fatalf("HandleWebhook failed: %v", err)
	}

	user, _ := env.store.FindUserById(ctx, "buyer")
	if user.PaymentAccountStatus != models.PaymentAccountActive {
		t.Errorf("Expected active, got %s", user.PaymentAccountStatus)
	}
}

func TestHandleWebhook_CancelledDealAcknowledged(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	deal := env.createDeal(t)
	if _, err := env.escrow.Cancel(ctx, deal.Id, "buyer"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	payload := encodeEvent(t, models.GatewayEvent{Id: "evt_late", Kind: models.EventPaymentSucceeded, IntentId: deal.PaymentIntentId})
	if err := env.reconciler.HandleWebhook(ctx, payload, testSignature); err != nil {
		t.Errorf("Expected late payment to be acknowledged, got %v", err)
	}

	stored, _ := env.store.FindDealById(ctx, deal.Id)
	if stored.Status != models.DealStatusCancelled {
		t.Errorf("Expected deal to stay cancelled, got %s", stored.Status)
	}
}

func TestHandleWebhook_TransientErrorIsRetried(t *testing.T) {
	rec := NewReconciler(ReconcilerConfig{Verifier: fakeVerifier{}, Deals: failingDeals{}})

	payload, _ := json.Marshal(models.GatewayEvent{Id: "evt_retry", Kind: models.EventPaymentSucceeded, IntentId: "pi_x"})
	if err := rec.HandleWebhook(context.Background(), payload, testSignature); err == nil {
		t.Fatal("Expected an error so the gateway retries")
	}

	// A failed event must not be cached as processed.
	if rec.recent.Get("evt_retry") != nil {
		t.Error("Expected failed event to stay unprocessed")
	}
}

func TestWebhookEndpoint_StatusCodes(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	deal := env.createDeal(t)

	tests := []struct {
		name      string
		event     models.GatewayEvent
		signature string
		want      int
	}{
		{"paid", models.GatewayEvent{Id: "evt_a", Kind: models.EventPaymentSucceeded, IntentId: deal.PaymentIntentId}, testSignature, http.StatusOK},
		{"unknown intent", models.GatewayEvent{Id: "evt_b", Kind: models.EventPaymentSucceeded, IntentId: "pi_unknown"}, testSignature, http.StatusOK},
		{"unknown kind", models.GatewayEvent{Id: "evt_c", Kind: models.EventUnknown, RawType: "charge.refunded"}, testSignature, http.StatusOK},
		{"bad signature", models.GatewayEvent{Id: "evt_d", Kind: models.EventPaymentSucceeded}, "bogus", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.post(encodeEvent(t, tt.event), tt.signature)
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	deals, _ := env.store.ListDealsForUser(context.Background(), "buyer", 10)
	if len(deals) != 1 || deals[0].Status != models.DealStatusPaid {
		t.Errorf("Expected only the real deal to be paid, got %+v", deals)
	}
}

func TestWebhookEndpoint_TransientFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := NewReconciler(ReconcilerConfig{Verifier: fakeVerifier{}, Deals: failingDeals{}})
	server := NewServer(rec, nil, 0)

	payload, _ := json.Marshal(models.GatewayEvent{Id: "evt_x", Kind: models.EventPaymentSucceeded, IntentId: "pi_x"})
	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(string(payload)))
	req.Header.Set(SignatureHeader, testSignature)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
}

func TestWebhookEndpoint_BodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := NewReconciler(ReconcilerConfig{Verifier: fakeVerifier{}, Deals: failingDeals{}})
	server := NewServer(rec, nil, 16)

	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(strings.Repeat("x", 64)))
	req.Header.Set(SignatureHeader, testSignature)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, HealthPath, nil)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}
