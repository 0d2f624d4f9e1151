package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler renders every error as {"success":false,"error":...,"retryable":...}.
// Server-side and upstream failures are marked retryable.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}

		if code >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"success":   false,
			"error":     message,
			"retryable": Retryable(code),
		})
	}
}

// Retryable reports whether a client may retry a request that failed with code.
func Retryable(code int) bool {
	return code >= fiber.StatusInternalServerError || code == fiber.StatusTooManyRequests || code == fiber.StatusRequestTimeout
}
