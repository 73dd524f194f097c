package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nuzul-stays/service-booking/internal/application"
	"github.com/nuzul-stays/service-booking/internal/gateway"
	"github.com/nuzul-stays/service-booking/internal/response"
)

// CallbackHandler receives asynchronous gateway notifications. These routes
// are unauthenticated; each gateway adapter authenticates its own payload
// (Sadad by checksum, PayPal by webhook signature).
type CallbackHandler struct {
	service         *application.PaymentService
	sadad           *gateway.SadadGateway
	paypal          *gateway.PayPalGateway
	paymentPageBase string
	logger          *zap.Logger
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(
	service *application.PaymentService,
	sadad *gateway.SadadGateway,
	paypal *gateway.PayPalGateway,
	paymentPageBase string,
	logger *zap.Logger,
) *CallbackHandler {
	return &CallbackHandler{
		service:         service,
		sadad:           sadad,
		paypal:          paypal,
		paymentPageBase: paymentPageBase,
		logger:          logger,
	}
}

// RegisterRoutes registers gateway callback routes on the given router group.
func (h *CallbackHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/sadad/callback", h.SadadCallback)
	r.POST("/webhooks/paypal", h.PayPalWebhook)
}

// SadadCallback handles POST /sadad/callback. Sadad posts a form body and
// expects a redirect back to the merchant site, so outcomes are reported as
// a 302 to the guest-facing result page rather than a JSON body.
func (h *CallbackHandler) SadadCallback(c *gin.Context) {
	var cb gateway.SadadCallback
	if err := c.ShouldBind(&cb); err != nil {
		response.BadRequest(c, "malformed sadad callback")
		return
	}

	result, err := h.sadad.ParseCallback(cb)
	if err != nil {
		h.logger.Warn("rejected sadad callback",
			zap.String("order_id", cb.OrderID),
			zap.Error(err),
		)
		response.Error(c, err)
		return
	}

	outcome, err := h.service.ProcessCallback(c.Request.Context(), *result)
	if err != nil {
		h.logger.Error("failed to process sadad callback",
			zap.String("order_id", result.OrderID),
			zap.Error(err),
		)
		c.Redirect(http.StatusFound, h.resultPage("failed", result.OrderID))
		return
	}

	var page string
	switch outcome.Status {
	case gateway.CallbackSuccess:
		page = "success"
	case gateway.CallbackPending:
		page = "pending"
	default:
		page = "failed"
	}
	c.Redirect(http.StatusFound, h.resultPage(page, result.OrderID))
}

func (h *CallbackHandler) resultPage(page, orderID string) string {
	return fmt.Sprintf("%s/payment/%s?orderId=%s", h.paymentPageBase, page, orderID)
}

// PayPalWebhook handles POST /webhooks/paypal. PayPal retries deliveries
// until it sees a 2xx, so processing failures on valid payloads still
// return one after logging.
func (h *CallbackHandler) PayPalWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "failed to read webhook body")
		return
	}

	if err := h.paypal.VerifyWebhookSignature(c.Request.Context(), c.Request.Header, body); err != nil {
		h.logger.Warn("rejected paypal webhook", zap.Error(err))
		response.Error(c, err)
		return
	}

	var event gateway.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		response.BadRequest(c, "malformed paypal webhook")
		return
	}

	result, err := h.paypal.NormalizeWebhook(event)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result == nil {
		// Event type we don't act on. Acknowledge so PayPal stops retrying.
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if _, err := h.service.ProcessCallback(c.Request.Context(), *result); err != nil {
		h.logger.Error("failed to process paypal webhook",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
