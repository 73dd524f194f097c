package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuzul-stays/service-booking/internal/application"
)

func bindPaymentJSON(t *testing.T, body string, target interface{}) error {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c.ShouldBindJSON(target)
}

func TestPayBalanceRequest_Binding(t *testing.T) {
	bookingID := uuid.New()

	var req payBalanceRequest
	body := fmt.Sprintf(`{"bookingId":%q,"paymentProvider":"paypal"}`, bookingID)
	require.NoError(t, bindPaymentJSON(t, body, &req))
	assert.Equal(t, bookingID, req.BookingID)
	assert.Equal(t, "paypal", req.Provider)

	// The provider field is required under its documented name.
	var missing payBalanceRequest
	assert.Error(t, bindPaymentJSON(t, fmt.Sprintf(`{"bookingId":%q}`, bookingID), &missing))
}

func TestCheckoutRequest_Binding(t *testing.T) {
	bookingID := uuid.New()

	var req checkoutRequest
	body := fmt.Sprintf(`{"bookingId":%q,"paymentProvider":"sadad","depositPercent":25}`, bookingID)
	require.NoError(t, bindPaymentJSON(t, body, &req))
	assert.Equal(t, "sadad", req.Provider)
	assert.Equal(t, 25, req.DepositPercent)
}

func TestPaymentResultBody_Shape(t *testing.T) {
	raw, err := json.Marshal(paymentResultBody(&application.PaymentResult{
		PaymentURL:            "https://pay.example/x",
		PaymentOrderID:        "abc_balance_1",
		RemainingBalanceCents: 400_00,
	}))
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://pay.example/x", body["paymentUrl"])
	assert.Equal(t, "abc_balance_1", body["paymentOrderId"])
	assert.Equal(t, float64(400_00), body["remainingBalance"])
}

func TestRefundBody_Shape(t *testing.T) {
	raw, err := json.Marshal(gin.H{"success": true, "refund": &application.RefundResult{
		RefundID:    "RF-1",
		AmountCents: 150_00,
		Status:      "COMPLETED",
	}})
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, true, body["success"])

	refund, ok := body["refund"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "RF-1", refund["id"])
	assert.Equal(t, float64(150_00), refund["amount"])
	assert.Equal(t, "COMPLETED", refund["status"])
}
