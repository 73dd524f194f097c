package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nuzul-stays/service-booking/internal/config"
	"github.com/nuzul-stays/service-booking/internal/domain"
)

// Sadad hosted-checkout status codes delivered on the callback form.
const (
	SadadStatusSuccess = "TXN_SUCCESS"
	SadadStatusFailure = "TXN_FAILURE"
	SadadStatusPending = "PENDING"
)

// SadadGateway redirects guests to Sadad's hosted checkout page. There is no
// server-to-server order API: the order is encoded into signed query
// parameters and Sadad reports the outcome on the form-encoded callback.
type SadadGateway struct {
	merchantID  string
	secretKey   string
	domain      string
	callbackURL string
	logger      *zap.Logger
}

// NewSadadGateway creates a SadadGateway from configuration.
func NewSadadGateway(cfg config.SadadConfig, callbackURL string, logger *zap.Logger) *SadadGateway {
	return &SadadGateway{
		merchantID:  cfg.MerchantID,
		secretKey:   cfg.SecretKey,
		domain:      cfg.Domain,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

// Name returns the provider identifier.
func (g *SadadGateway) Name() string { return ProviderSadad }

// CreateOrder builds the signed hosted-checkout URL for the order.
func (g *SadadGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if g.merchantID == "" || g.secretKey == "" {
		return nil, domain.NewGatewayError(ProviderSadad, "gateway is not configured", nil)
	}
	if req.AmountCents <= 0 {
		return nil, domain.NewValidationError("order amount must be positive")
	}

	fields := map[string]string{
		"MERCHANT_ID":  g.merchantID,
		"ORDER_ID":     req.OrderID,
		"TXN_AMOUNT":   FormatAmount(req.AmountCents),
		"CURRENCY":     req.Currency,
		"WEBSITE":      g.domain,
		"CALLBACK_URL": g.callbackURL,
	}
	checksum := ComputeChecksum(fields, g.secretKey)

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("CHECKSUMHASH", checksum)

	paymentURL := fmt.Sprintf("https://%s/webpurchase?%s", g.domain, values.Encode())

	g.logger.Info("sadad order created",
		zap.String("order_id", req.OrderID),
		zap.Int64("amount_cents", req.AmountCents),
	)

	// Sadad has no separate gateway reference until the callback delivers
	// a TXNID; the merchant order id is the only handle.
	return &Order{
		OrderID:    req.OrderID,
		GatewayRef: req.OrderID,
		PaymentURL: paymentURL,
	}, nil
}

// Refund is not supported by the hosted-checkout integration; refunds against
// Sadad captures are settled out of band by merchant support.
func (g *SadadGateway) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	return nil, domain.NewGatewayError(ProviderSadad, "refunds must be settled through the merchant portal", nil)
}

// SadadCallback is the form body Sadad posts to the callback URL.
type SadadCallback struct {
	OrderID      string `form:"ORDER_ID"`
	TxnID        string `form:"TXNID"`
	Status       string `form:"STATUS"`
	BankTxnID    string `form:"BANKTXNID"`
	TxnAmount    string `form:"TXNAMOUNT"`
	ChecksumHash string `form:"CHECKSUMHASH"`
}

// ParseCallback verifies the checksum and normalizes the callback. A bad
// checksum yields an UnauthorizedError so the handler can reject the post.
func (g *SadadGateway) ParseCallback(cb SadadCallback) (*CallbackResult, error) {
	fields := map[string]string{
		"ORDER_ID":  cb.OrderID,
		"TXNID":     cb.TxnID,
		"STATUS":    cb.Status,
		"BANKTXNID": cb.BankTxnID,
		"TXNAMOUNT": cb.TxnAmount,
	}
	if !VerifyChecksum(fields, g.secretKey, cb.ChecksumHash) {
		return nil, domain.NewUnauthorizedError("sadad callback checksum mismatch")
	}

	amountCents, err := ParseAmount(cb.TxnAmount)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("malformed TXNAMOUNT: %s", cb.TxnAmount))
	}

	result := &CallbackResult{
		Provider:     ProviderSadad,
		OrderID:      cb.OrderID,
		GatewayTxnID: cb.TxnID,
		AmountCents:  amountCents,
		Currency:     domain.CurrencyQAR,
	}

	switch cb.Status {
	case SadadStatusSuccess:
		result.Status = CallbackSuccess
	case SadadStatusPending:
		result.Status = CallbackPending
	case SadadStatusFailure:
		result.Status = CallbackFailure
		result.Denied = true
	default:
		result.Status = CallbackFailure
	}
	return result, nil
}

// ComputeChecksum signs the fields with HMAC-SHA256 over "k=v" pairs joined
// by "|" in sorted key order.
func ComputeChecksum(fields map[string]string, secret string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyChecksum reports whether the received checksum matches the fields.
func VerifyChecksum(fields map[string]string, secret, received string) bool {
	expected := ComputeChecksum(fields, secret)
	return hmac.Equal([]byte(expected), []byte(received))
}

// FormatAmount renders cents as a "123.45" decimal string.
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// ParseAmount converts a "123.45" decimal string to cents. Gateway amounts
// are always positive, so negative input is rejected outright.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative amount %q", s)
	}
	whole, frac, found := strings.Cut(s, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	if !found {
		return units * 100, nil
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, err
	}
	return units*100 + cents, nil
}
