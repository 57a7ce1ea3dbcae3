// middleware/webhook_auth.go
package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/coachdesk/commission_engine/models"
)

// WebhookAuth guards the billing-event endpoint. The subscription service
// authenticates with a shared secret header instead of an operator JWT.
func WebhookAuth() echo.MiddlewareFunc {
	secret := os.Getenv("BILLING_WEBHOOK_SECRET")
	if secret == "" {
		log.Printf("Warning: BILLING_WEBHOOK_SECRET is not set, billing webhooks will be rejected")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			provided := c.Request().Header.Get("X-Webhook-Secret")
			if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Status:  http.StatusUnauthorized,
					Message: "Invalid webhook credentials",
				})
			}
			return next(c)
		}
	}
}
