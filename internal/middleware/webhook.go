package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

const stripeEventContextKey = "stripeEvent"

// StripeWebhook verifies the Stripe-Signature header against secret and
// exposes the parsed event to the next handler.
func StripeWebhook(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "payment webhook not configured")
		}
		signature := c.Get("Stripe-Signature")
		if signature == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing signature")
		}

		event, err := webhook.ConstructEventWithOptions(c.Body(), signature, secret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid signature")
		}

		c.Locals(stripeEventContextKey, event)
		return c.Next()
	}
}

// StripeEvent returns the verified event stored by StripeWebhook.
func StripeEvent(c *fiber.Ctx) (stripe.Event, bool) {
	event, ok := c.Locals(stripeEventContextKey).(stripe.Event)
	return event, ok
}
