package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v78"
	"go.uber.org/zap"

	"github.com/example/vitrine/internal/middleware"
	"github.com/example/vitrine/internal/models"
	"github.com/example/vitrine/internal/services"
)

// PaymentMarker applies succeeded payments to orders.
type PaymentMarker interface {
	MarkPaid(ctx context.Context, evt services.PaymentEvent) (*models.Order, error)
}

// PaymentHandler receives gateway webhooks.
type PaymentHandler struct {
	payments PaymentMarker
	log      *zap.Logger
}

func NewPaymentHandler(payments PaymentMarker, log *zap.Logger) *PaymentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentHandler{payments: payments, log: log}
}

// paymentEventFrom extracts the succeeded PIX charge from a Stripe event.
// Other event types report false.
func paymentEventFrom(event stripe.Event) (services.PaymentEvent, bool, error) {
	if event.Type != stripe.EventTypePaymentIntentSucceeded || event.Data == nil {
		return services.PaymentEvent{}, false, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return services.PaymentEvent{}, false, err
	}

	return services.PaymentEvent{
		EventID:   event.ID,
		Type:      string(event.Type),
		PaymentID: intent.ID,
		OrderID:   intent.Metadata["order_id"],
		Amount:    intent.AmountReceived,
		Payload:   event.Data.Raw,
	}, true, nil
}

// StripeWebhook handles events verified by middleware.StripeWebhook.
// Unknown orders are acknowledged so the gateway stops retrying.
func (h *PaymentHandler) StripeWebhook(c *fiber.Ctx) error {
	event, ok := middleware.StripeEvent(c)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "missing event")
	}

	evt, relevant, err := paymentEventFrom(event)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid event payload")
	}
	if !relevant {
		return c.JSON(fiber.Map{"received": true})
	}

	order, err := h.payments.MarkPaid(c.UserContext(), evt)
	if errors.Is(err, services.ErrPaymentOrderNotFound) {
		h.log.Warn("payment for unknown order",
			zap.String("payment_id", evt.PaymentID),
			zap.String("order_id", evt.OrderID),
		)
		return c.JSON(fiber.Map{"received": true})
	}
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"received": true, "order_number": order.OrderNumber, "status": order.Status})
}
