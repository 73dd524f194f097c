package consumer

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/nuzul-stays/service-booking/internal/application"
	"github.com/nuzul-stays/service-booking/internal/events"
	"github.com/nuzul-stays/service-booking/internal/gateway"
)

// PaymentEventConsumer listens to relayed PSP notifications on the payment
// topic and drives booking transitions through the payment service.
type PaymentEventConsumer struct {
	consumer *events.Consumer
	service  *application.PaymentService
	logger   *zap.Logger
}

// NewPaymentEventConsumer creates a new PaymentEventConsumer.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	service *application.PaymentService,
	logger *zap.Logger,
) *PaymentEventConsumer {
	c := events.NewConsumer(brokers, groupID, events.TopicPaymentEvents, logger)
	return &PaymentEventConsumer{
		consumer: c,
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming payment events. This blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var cloudEvent events.CloudEvent
	if err := json.Unmarshal(msg.Value, &cloudEvent); err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case events.PaymentCaptured:
		return c.handleCaptured(ctx, cloudEvent)
	case events.PaymentRefundCompleted:
		return c.handleRefundCompleted(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *PaymentEventConsumer) handleCaptured(ctx context.Context, cloudEvent events.CloudEvent) error {
	var evt events.PaymentCapturedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse PaymentCapturedEvent data",
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	c.logger.Info("processing payment captured event",
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("provider", evt.Provider),
		zap.String("gateway_txn_id", evt.GatewayTxnID),
	)

	// Relayed captures carry the booking id directly, so synthesize the
	// order id the callback path parses.
	outcome, err := c.service.ProcessCallback(ctx, gateway.CallbackResult{
		Provider:     evt.Provider,
		OrderID:      evt.BookingID.String() + "_relay",
		GatewayTxnID: evt.GatewayTxnID,
		Status:       gateway.CallbackSuccess,
		AmountCents:  evt.AmountCents,
		Currency:     evt.Currency,
	})
	if err != nil {
		c.logger.Error("failed to apply payment captured event",
			zap.String("booking_id", evt.BookingID.String()),
			zap.Error(err),
		)
		return err
	}
	if outcome.Replay {
		c.logger.Debug("payment captured event already applied",
			zap.String("gateway_txn_id", evt.GatewayTxnID),
		)
	}
	return nil
}

func (c *PaymentEventConsumer) handleRefundCompleted(ctx context.Context, cloudEvent events.CloudEvent) error {
	var evt events.RefundCompletedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse RefundCompletedEvent data",
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	c.logger.Info("refund settled at gateway",
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("provider", evt.Provider),
		zap.String("gateway_txn_id", evt.GatewayTxnID),
		zap.Int64("amount_cents", evt.AmountCents),
	)
	return nil
}
