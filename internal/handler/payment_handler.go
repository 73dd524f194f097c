package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nuzul-stays/service-booking/internal/application"
	"github.com/nuzul-stays/service-booking/internal/auth"
	"github.com/nuzul-stays/service-booking/internal/middleware"
	"github.com/nuzul-stays/service-booking/internal/response"
)

// PaymentHandler handles HTTP requests for checkout, balance collection and
// refunds.
type PaymentHandler struct {
	service *application.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *application.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterRoutes registers payment routes on the given router group.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	payments := r.Group("/api/v1/payments")
	payments.Use(authMW)
	{
		payments.POST("/checkout", middleware.RequireRole(auth.RoleGuest), h.Checkout)
		payments.POST("/refund", middleware.RequireRole(auth.RoleHost, auth.RoleAdmin), h.Refund)
	}

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("/pay-balance", middleware.RequireRole(auth.RoleGuest), h.PayBalance)
	}
}

type checkoutRequest struct {
	BookingID      uuid.UUID `json:"bookingId" binding:"required"`
	Provider       string    `json:"paymentProvider" binding:"required"`
	DepositPercent int       `json:"depositPercent"`
}

// paymentResultBody flattens a payment order into the documented response
// shape: the url, order id and balance sit at the top level next to success.
func paymentResultBody(result *application.PaymentResult) gin.H {
	return gin.H{
		"success":          true,
		"paymentUrl":       result.PaymentURL,
		"paymentOrderId":   result.PaymentOrderID,
		"remainingBalance": result.RemainingBalanceCents,
	}
}

// Checkout handles POST /api/v1/payments/checkout.
func (h *PaymentHandler) Checkout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Checkout(c.Request.Context(), userID, req.BookingID, req.Provider, req.DepositPercent)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, paymentResultBody(result))
}

type payBalanceRequest struct {
	BookingID uuid.UUID `json:"bookingId" binding:"required"`
	Provider  string    `json:"paymentProvider" binding:"required"`
}

// PayBalance handles POST /api/v1/bookings/pay-balance.
func (h *PaymentHandler) PayBalance(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req payBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.PayBalance(c.Request.Context(), userID, req.BookingID, req.Provider)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, paymentResultBody(result))
}

type refundRequest struct {
	BookingID   uuid.UUID `json:"bookingId" binding:"required"`
	Reason      string    `json:"reason"`
	AmountCents *int64    `json:"amount"`
}

// Refund handles POST /api/v1/payments/refund. An explicit amount bypasses
// the cancellation-policy calculation.
func (h *PaymentHandler) Refund(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	role, _ := middleware.GetUserRole(c)

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RefundBooking(c.Request.Context(), userID, role, req.BookingID, req.Reason, req.AmountCents)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "refund": result})
}
