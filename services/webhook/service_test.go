package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"pointsplane/internal/catalog"
	"pointsplane/pkg/config"
	"pointsplane/pkg/middleware"
	"pointsplane/services/account"
	"pointsplane/services/testutil"
)

type creditCall struct {
	userID   int64
	points   int64
	priority int
}

type failureCall struct {
	userID int64
	reason string
}

type dispatcherStub struct {
	credits  []creditCall
	failures []failureCall
	err      error
}

func (d *dispatcherStub) CreditApplied(ctx context.Context, userID, points int64, priority int) error {
	d.credits = append(d.credits, creditCall{userID: userID, points: points, priority: priority})
	return d.err
}

func (d *dispatcherStub) PaymentFailed(ctx context.Context, userID int64, reason string) error {
	d.failures = append(d.failures, failureCall{userID: userID, reason: reason})
	return d.err
}

type pipeline struct {
	svc        *Service
	accounts   *account.Service
	dispatcher *dispatcherStub
}

func newTestPipeline(t *testing.T, tenantID string) *pipeline {
	t.Helper()

	cfg := &config.Config{TenantID: tenantID}
	cfg.Stripe.WebhookSecret = testSecret
	cfg.Ledger.DefaultPriority = 2

	db := testutil.NewTestDB(t, &account.Account{}, &account.LedgerEntry{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	accounts := account.NewService(account.ServiceParams{DB: db, Node: node, Config: cfg})

	require.NoError(t, db.Create(&account.Account{
		UserID:    42,
		Points:    0,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}).Error)

	dispatcher := &dispatcherStub{}
	svc := NewService(ServiceParams{
		Config:     cfg,
		Verifier:   NewVerifier(cfg),
		Extractor:  NewExtractor(cfg, catalog.Default()),
		Accounts:   accounts,
		Dispatcher: dispatcher,
	})
	return &pipeline{svc: svc, accounts: accounts, dispatcher: dispatcher}
}

func eventPayload(eventID, eventType string, meta map[string]string) []byte {
	rawMeta, _ := json.Marshal(meta)
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": %q,
		"data": {"object": {"id": "cs_test_1", "metadata": %s}}
	}`, eventID, eventType, rawMeta))
}

func p200Meta(tenantID string) map[string]string {
	return map[string]string{
		MetaUserID:        "42",
		MetaPackageID:     "p200",
		MetaPointsAwarded: "500",
		MetaPriorityBoost: "1",
		MetaTenantID:      tenantID,
	}
}

func (p *pipeline) process(t *testing.T, payload []byte) (*Outcome, error) {
	t.Helper()
	return p.svc.Process(context.Background(), payload, signPayload(testSecret, payload, time.Now()))
}

func TestProcessCheckoutCompleted(t *testing.T) {
	p := newTestPipeline(t, "tenant-a")
	payload := eventPayload("evt_1", EventCheckoutCompleted, p200Meta("tenant-a"))

	outcome, err := p.process(t, payload)
	require.NoError(t, err)
	require.Equal(t, "ok", outcome.Status)
	require.Equal(t, StateDone, outcome.State)

	acct, err := p.accounts.GetAccount(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(500), acct.Points)
	require.NotNil(t, acct.Priority)
	require.Equal(t, 1, *acct.Priority)

	require.Len(t, p.dispatcher.credits, 1)
	require.Equal(t, creditCall{userID: 42, points: 500, priority: 1}, p.dispatcher.credits[0])
}

func TestProcessRedeliveredEventCreditsOnce(t *testing.T) {
	p := newTestPipeline(t, "tenant-a")
	payload := eventPayload("evt_1", EventCheckoutCompleted, p200Meta("tenant-a"))

	first, err := p.process(t, payload)
	require.NoError(t, err)
	require.Equal(t, "ok", first.Status)

	second, err := p.process(t, payload)
	require.NoError(t, err)
	require.Equal(t, "ok", second.Status)
	require.Equal(t, "duplicate", second.Reason)

	acct, err := p.accounts.GetAccount(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(500), acct.Points)

	// the confirmation went out exactly once
	require.Len(t, p.dispatcher.credits, 1)
}

func TestProcessForeignTenantLeavesNoTrace(t *testing.T) {
	p := newTestPipeline(t, "tenant-a")
	payload := eventPayload("evt_1", EventCheckoutCompleted, p200Meta("tenant-b"))

	outcome, err := p.process(t, payload)
	require.NoError(t, err)
	require.Equal(t, "ignored", outcome.Status)
	require.Equal(t, "tenant_mismatch", outcome.Reason)

	acct, err := p.accounts.GetAccount(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(0), acct.Points)
	require.Nil(t, acct.Priority)
	require.Empty(t, p.dispatcher.credits)
}

func TestProcessMalformedPointsCreditsZero(t *testing.T) {
	p := newTestPipeline(t, "tenant-a")
	meta := p200Meta("tenant-a")
	meta[MetaPointsAwarded] = "lots"
	payload := eventPayload("evt_1", EventCheckoutCompleted, meta)

	outcome, err := p.process(t, payload)
	require.NoError(t, err)
	require.Equal(t, "ok", outcome.Status)

	acct, err := p.accounts.GetAccount(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(0), acct.Points)
	require.NotNil(t, acct.Priority)
	require.Equal(t, 1, *acct.Priority)
}

func TestProcessInvalidUserIDAcknowledged(t *testing.T) {
	p := newTestPipeline(t, "tenant-a")
	meta := p200Meta("tenant-a")
	meta[MetaUserID] = "not-a-number"
	payload := eventPayload("evt_1", EventCheckoutCompleted, meta)

	outcome, err := p.process(t, payload)
	require.NoError(t, err)
	require.Equal(t, "error", outcome.Status)
	require.Equal(t, "invalid_user_id", outcome.Reason)

	acct, err := p.accounts.GetAccount(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(0), acct.Points)
	require.Empty(t, p.dispatcher.credits)
}

func TestProcessUnknownPackageAcknowledged(t *testing.T) {
	p := newTestPipeline(t, "tenant-a")
	meta := p200Meta("tenant-a")
	meta[MetaPackageID] = "p9999"
	payload := eventPayload("evt_1", EventCheckoutCompleted, meta)

	outcome, err := p.process(t, payload)
	require.NoError(t, err)
	require.Equal(t, "error", outcome.Status)
	require.Equal(t, "unknown_package", outcome.Reason)
}

func TestProcessUnknownAccountAcknowledged(t *testing.T) {
	p := newTestPipeline(t, "tenant-a")
	meta := p200Meta("tenant-a")
	meta[MetaUserID] = "777" // never seeded
	payload := eventPayload("evt_1", EventCheckoutCompleted, meta)

	outcome, err := p.process(t, payload)
	require.NoError(t, err)
	require.Equal(t, "error", outcome.Status)
	require.Equal(t, "unknown_account", outcome.Reason)
	require.Empty(t, p.dispatcher.credits)
}

func TestProcessUnhandledEventType(t *testing.T) {
	p := newTestPipeline(t, "tenant-a")
	payload := eventPayload("evt_1", "customer.created", nil)

	outcome, err := p.process(t, payload)
	require.NoError(t, err)
	require.Equal(t, "ok", outcome.Status)
	require.Equal(t, "unhandled_event_type", outcome.Reason)
}

func TestProcessPaymentFailedNotifies(t *testing.T) {
	p := newTestPipeline(t, "tenant-a")
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": %q,
		"data": {"object": {
			"id": "pi_test_1",
			"metadata": {"user_id": "42", "tenant_id": "tenant-a"},
			"last_payment_error": {"message": "card_declined"}
		}}
	}`, EventPaymentFailed))

	outcome, err := p.process(t, payload)
	require.NoError(t, err)
	require.Equal(t, "ok", outcome.Status)

	require.Len(t, p.dispatcher.failures, 1)
	require.Equal(t, failureCall{userID: 42, reason: "card_declined"}, p.dispatcher.failures[0])
}

func TestProcessDispatchFailureDoesNotFailEvent(t *testing.T) {
	p := newTestPipeline(t, "tenant-a")
	p.dispatcher.err = fmt.Errorf("broker down")
	payload := eventPayload("evt_1", EventCheckoutCompleted, p200Meta("tenant-a"))

	outcome, err := p.process(t, payload)
	require.NoError(t, err)
	require.Equal(t, "ok", outcome.Status)

	// the credit still landed
	acct, err := p.accounts.GetAccount(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(500), acct.Points)
}

// ---- transport ----

func newTestRouter(p *pipeline) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.Error())
	router.POST("/payment-events", p.svc.HandlePaymentEvents)
	return router
}

func TestHandlePaymentEvents(t *testing.T) {
	p := newTestPipeline(t, "tenant-a")
	router := newTestRouter(p)
	payload := eventPayload("evt_1", EventCheckoutCompleted, p200Meta("tenant-a"))

	req := httptest.NewRequest(http.MethodPost, "/payment-events", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signPayload(testSecret, payload, time.Now()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestHandlePaymentEventsBadSignature(t *testing.T) {
	p := newTestPipeline(t, "tenant-a")
	router := newTestRouter(p)
	payload := eventPayload("evt_1", EventCheckoutCompleted, p200Meta("tenant-a"))

	req := httptest.NewRequest(http.MethodPost, "/payment-events", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	// no side effects from the rejected delivery
	acct, err := p.accounts.GetAccount(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(0), acct.Points)
	require.Empty(t, p.dispatcher.credits)
}

func TestHandlePaymentEventsAcknowledgedErrorIs200(t *testing.T) {
	p := newTestPipeline(t, "tenant-a")
	router := newTestRouter(p)
	meta := p200Meta("tenant-a")
	meta[MetaUserID] = "garbage"
	payload := eventPayload("evt_1", EventCheckoutCompleted, meta)

	req := httptest.NewRequest(http.MethodPost, "/payment-events", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signPayload(testSecret, payload, time.Now()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "error", body["status"])
	require.Equal(t, "invalid_user_id", body["reason"])
}
