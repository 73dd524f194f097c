package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nuzul-stays/service-booking/internal/config"
	"github.com/nuzul-stays/service-booking/internal/domain"
)

// PayPal webhook event types the service acts on.
const (
	PayPalCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	PayPalCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
	PayPalCapturePending   = "PAYMENT.CAPTURE.PENDING"
)

// PayPalGateway speaks the PayPal REST API: client-credentials OAuth, v2
// checkout orders and capture refunds.
type PayPalGateway struct {
	clientID     string
	clientSecret string
	webhookID    string
	baseURL      string
	httpClient   *http.Client
	logger       *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalGateway creates a PayPalGateway from configuration.
func NewPayPalGateway(cfg config.PayPalConfig, logger *zap.Logger) *PayPalGateway {
	return &PayPalGateway{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		webhookID:    cfg.WebhookID,
		baseURL:      cfg.BaseURL,
		httpClient:   &http.Client{Timeout: 20 * time.Second},
		logger:       logger,
	}
}

// Name returns the provider identifier.
func (g *PayPalGateway) Name() string { return ProviderPayPal }

// token returns a cached OAuth access token, refreshing it when expired.
func (g *PayPalGateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.clientID, g.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", domain.NewGatewayError(ProviderPayPal, "token request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", domain.NewGatewayError(ProviderPayPal,
			fmt.Sprintf("token request returned %d: %s", resp.StatusCode, string(body)), nil)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", domain.NewGatewayError(ProviderPayPal, "malformed token response", err)
	}

	g.accessToken = tokenResp.AccessToken
	// Refresh a minute early to avoid using a token at the edge of expiry.
	g.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return g.accessToken, nil
}

func (g *PayPalGateway) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := g.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return domain.NewGatewayError(ProviderPayPal, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return domain.NewGatewayError(ProviderPayPal,
			fmt.Sprintf("%s %s returned %d: %s", method, path, resp.StatusCode, string(raw)), nil)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.NewGatewayError(ProviderPayPal, "malformed response body", err)
		}
	}
	return nil
}

// CreateOrder creates a v2 checkout order and returns its approval link.
func (g *PayPalGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.AmountCents <= 0 {
		return nil, domain.NewValidationError("order amount must be positive")
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": req.OrderID,
				"custom_id":    req.OrderID,
				"description":  req.Description,
				"amount": map[string]string{
					"currency_code": req.Currency,
					"value":         FormatAmount(req.AmountCents),
				},
			},
		},
	}

	var orderResp struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := g.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", payload, &orderResp); err != nil {
		return nil, err
	}

	var approveURL string
	for _, link := range orderResp.Links {
		if link.Rel == "approve" {
			approveURL = link.Href
			break
		}
	}
	if approveURL == "" {
		return nil, domain.NewGatewayError(ProviderPayPal, "order response missing approve link", nil)
	}

	g.logger.Info("paypal order created",
		zap.String("order_id", req.OrderID),
		zap.String("paypal_order_id", orderResp.ID),
	)

	return &Order{
		OrderID:    req.OrderID,
		GatewayRef: orderResp.ID,
		PaymentURL: approveURL,
	}, nil
}

// Refund refunds a capture, fully or partially.
func (g *PayPalGateway) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	if req.GatewayRef == "" {
		return nil, domain.NewValidationError("gateway reference is required for refund")
	}

	payload := map[string]interface{}{
		"amount": map[string]string{
			"currency_code": req.Currency,
			"value":         FormatAmount(req.AmountCents),
		},
		"note_to_payer": req.Reason,
	}

	var refundResp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/v2/payments/captures/%s/refund", req.GatewayRef)
	if err := g.doJSON(ctx, http.MethodPost, path, payload, &refundResp); err != nil {
		return nil, err
	}

	g.logger.Info("paypal refund issued",
		zap.String("capture_id", req.GatewayRef),
		zap.String("refund_id", refundResp.ID),
		zap.String("status", refundResp.Status),
	)

	return &Refund{RefundID: refundResp.ID, Status: refundResp.Status}, nil
}

// WebhookEvent is the PayPal event envelope.
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

// captureResource is the subset of the capture resource the service reads.
type captureResource struct {
	ID     string `json:"id"`
	Amount struct {
		CurrencyCode string `json:"currency_code"`
		Value        string `json:"value"`
	} `json:"amount"`
	CustomID string `json:"custom_id"`
}

// VerifyWebhookSignature asks PayPal to validate the webhook transmission
// headers against the configured webhook id.
func (g *PayPalGateway) VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error {
	payload := map[string]interface{}{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        g.webhookID,
		"webhook_event":     json.RawMessage(body),
	}

	var verifyResp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := g.doJSON(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, &verifyResp); err != nil {
		return err
	}
	if verifyResp.VerificationStatus != "SUCCESS" {
		return domain.NewUnauthorizedError("paypal webhook signature verification failed")
	}
	return nil
}

// NormalizeWebhook reduces a webhook event to a CallbackResult, or (nil, nil)
// for event types the service ignores.
func (g *PayPalGateway) NormalizeWebhook(event WebhookEvent) (*CallbackResult, error) {
	switch event.EventType {
	case PayPalCaptureCompleted, PayPalCaptureDenied, PayPalCapturePending:
	default:
		return nil, nil
	}

	var capture captureResource
	if err := json.Unmarshal(event.Resource, &capture); err != nil {
		return nil, domain.NewValidationError("malformed capture resource")
	}

	amountCents, err := ParseAmount(capture.Amount.Value)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("malformed capture amount: %s", capture.Amount.Value))
	}

	result := &CallbackResult{
		Provider:     ProviderPayPal,
		OrderID:      capture.CustomID,
		GatewayTxnID: capture.ID,
		AmountCents:  amountCents,
		Currency:     capture.Amount.CurrencyCode,
	}

	switch event.EventType {
	case PayPalCaptureCompleted:
		result.Status = CallbackSuccess
	case PayPalCaptureDenied:
		result.Status = CallbackFailure
		result.Denied = true
	case PayPalCapturePending:
		result.Status = CallbackPending
	}
	return result, nil
}
