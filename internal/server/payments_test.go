package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	accountdomain "github.com/amourlabs/amour/internal/account/domain"
	accountservice "github.com/amourlabs/amour/internal/account/service"
	"github.com/amourlabs/amour/internal/clock"
	"github.com/amourlabs/amour/internal/config"
	paymentdomain "github.com/amourlabs/amour/internal/payment/domain"
	paymentservice "github.com/amourlabs/amour/internal/payment/service"
	payoutdomain "github.com/amourlabs/amour/internal/payout/domain"
	payoutservice "github.com/amourlabs/amour/internal/payout/service"
	"github.com/amourlabs/amour/internal/signup"
	usagedomain "github.com/amourlabs/amour/internal/usage/domain"
	usageservice "github.com/amourlabs/amour/internal/usage/service"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type testHarness struct {
	server     *Server
	accountSvc accountdomain.Service
	payoutSvc  payoutdomain.Service
	db         *gorm.DB
	clock      *clock.FakeClock
}

func newTestServer(t *testing.T) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&accountdomain.Account{},
		&accountdomain.CreditedOrder{},
		&paymentdomain.PaymentEvent{},
		&payoutdomain.Influencer{},
		&payoutdomain.PayoutRecord{},
		&usagedomain.UsageEvent{},
		&usagedomain.UsageAggregate{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{
		RazorpayKeySecret:  testSecret,
		SignupBonusCredits: 4,
		UsageEventTTL:      48 * time.Hour,
	}

	accountSvc := accountservice.NewService(accountservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fakeClock,
	})
	paymentSvc := paymentservice.NewService(paymentservice.Params{
		DB: db, Log: zap.NewNop(), Config: cfg, GenID: node, Clock: fakeClock, AccountSvc: accountSvc,
	})
	payoutSvc := payoutservice.NewService(payoutservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fakeClock,
	})
	usageSvc := usageservice.NewService(usageservice.Params{
		DB: db, Log: zap.NewNop(), Config: cfg, GenID: node, Clock: fakeClock,
	})
	signupSvc := signup.NewService(accountSvc, payoutSvc, cfg)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:        engine,
		Cfg:        cfg,
		DB:         db,
		GenID:      node,
		AccountSvc: accountSvc,
		PaymentSvc: paymentSvc,
		PayoutSvc:  payoutSvc,
		UsageSvc:   usageSvc,
		SignupSvc:  signupSvc,
	})

	return &testHarness{server: srv, accountSvc: accountSvc, payoutSvc: payoutSvc, db: db, clock: fakeClock}
}

func (h *testHarness) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	h.server.Engine().ServeHTTP(rec, req)
	return rec
}

func signFor(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyPaymentEndpoint(t *testing.T) {
	h := newTestServer(t)

	account, err := h.accountSvc.Create(context.Background(), "asha", "+919900112233", "", 4)
	assert.NoError(t, err)

	body := map[string]any{
		"razorpay_order_id":   "order_1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  signFor("order_1", "pay_1"),
		"amountRupees":        249,
	}
	rec := h.do(t, http.MethodPost, "/api/payments/verify", body, map[string]string{
		"X-Account-Id": account.ID.String(),
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, true, resp["verified"])
	assert.Equal(t, float64(30), resp["creditsApplied"])
	assert.Equal(t, float64(34), resp["credits"])

	record, ok := resp["record"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "order_1", record["orderId"])
	assert.Equal(t, true, record["verified"])
}

func TestVerifyPaymentEndpointReplay(t *testing.T) {
	h := newTestServer(t)

	account, err := h.accountSvc.Create(context.Background(), "asha", "+919900112233", "", 4)
	assert.NoError(t, err)

	body := map[string]any{
		"razorpay_order_id":   "order_1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  signFor("order_1", "pay_1"),
		"amountRupees":        249,
	}
	headers := map[string]string{"X-Account-Id": account.ID.String()}

	first := h.do(t, http.MethodPost, "/api/payments/verify", body, headers)
	assert.Equal(t, http.StatusOK, first.Code)

	replay := h.do(t, http.MethodPost, "/api/payments/verify", body, headers)
	assert.Equal(t, http.StatusOK, replay.Code)

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(replay.Body.Bytes(), &resp))
	assert.Equal(t, float64(0), resp["creditsApplied"])
	assert.Equal(t, float64(34), resp["credits"])
	assert.Equal(t, "order_already_applied", resp["message"])
}

func TestVerifyPaymentEndpointBadSignature(t *testing.T) {
	h := newTestServer(t)

	account, err := h.accountSvc.Create(context.Background(), "asha", "+919900112233", "", 4)
	assert.NoError(t, err)

	body := map[string]any{
		"razorpay_order_id":   "order_1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  "bogus",
		"amountRupees":        249,
	}
	rec := h.do(t, http.MethodPost, "/api/payments/verify", body, map[string]string{
		"X-Account-Id": account.ID.String(),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, false, resp["verified"])

	record, ok := resp["record"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, false, record["verified"])
}

func TestVerifyPaymentEndpointRequiresAccount(t *testing.T) {
	h := newTestServer(t)

	rec := h.do(t, http.MethodPost, "/api/payments/verify", map[string]any{}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignupEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := h.do(t, http.MethodPost, "/api/signup", map[string]any{
		"username": "asha",
		"phone":    "+919900112233",
	}, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(4), resp["credits"])
}

func TestPayInfluencerEndpointInsufficientPending(t *testing.T) {
	h := newTestServer(t)

	influencer, err := h.payoutSvc.Create(context.Background(), "Maya", "", "maya-2026")
	assert.NoError(t, err)
	assert.NoError(t, h.db.Model(influencer).Update("pending_payment", 100).Error)

	rec := h.do(t, http.MethodPost, fmt.Sprintf("/admin/influencers/%s/pay", influencer.ID.String()), map[string]any{
		"amount": 150,
	}, map[string]string{"X-Admin-Id": "admin-1"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, float64(100), resp["pendingPayment"])
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newTestServer(t)

	rec := h.do(t, http.MethodGet, "/admin/influencers", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQueryLogsEndpoint(t *testing.T) {
	h := newTestServer(t)

	account, err := h.accountSvc.Create(context.Background(), "asha", "+919900112233", "", 4)
	assert.NoError(t, err)

	err = h.server.usageSvc.Record(context.Background(), usagedomain.Record{
		AccountID:        account.ID,
		Category:         usagedomain.CategoryBio,
		PromptTokens:     100,
		CompletionTokens: 50,
		CostINR:          0.25,
	})
	assert.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/admin/query-logs?type=bio", nil, map[string]string{"X-Admin-Id": "admin-1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items  []map[string]any `json:"items"`
		Total  int64            `json:"total"`
		Totals map[string]any   `json:"totals"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, int64(1), resp.Total)
	assert.Equal(t, float64(150), resp.Totals["tokens"])
	assert.Equal(t, 0.25, resp.Totals["costINR"])

	// Totals hold after the detailed log drops out of the window.
	h.clock.Advance(72 * time.Hour)
	rec = h.do(t, http.MethodGet, "/admin/query-logs?type=bio", nil, map[string]string{"X-Admin-Id": "admin-1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Items)
	assert.Equal(t, int64(0), resp.Total)
	assert.Equal(t, float64(150), resp.Totals["tokens"])
	assert.Equal(t, 0.25, resp.Totals["costINR"])
}
