package router

import (
	"log"

	"github.com/ManuelReschke/PayFox/app/controllers"
	"github.com/ManuelReschke/PayFox/app/repository"
	"github.com/ManuelReschke/PayFox/internal/pkg/constants"
	"github.com/ManuelReschke/PayFox/internal/pkg/database"
	"github.com/ManuelReschke/PayFox/internal/pkg/env"
	"github.com/ManuelReschke/PayFox/internal/pkg/middleware"
	"github.com/ManuelReschke/PayFox/internal/pkg/payment"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	repository.InitializeFactory(database.GetDB())

	// The gateway client is built exactly once and injected; handlers never
	// construct their own.
	gateway := payment.NewStripeClientFromEnv()
	controllers.InitializePaymentController(payment.NewServiceFromDB(database.GetDB(), gateway))

	if env.GetEnv("STRIPE_WEBHOOK_SECRET", "") == "" {
		log.Print("WARNING: STRIPE_WEBHOOK_SECRET is not set, webhook signature verification is DISABLED. Never run production like this.")
	}

	paymentGroup := app.Group(constants.PaymentRoute)

	// The webhook is authenticated by its signature, not by an API key, and
	// must stay outside the limiter so gateway retries are never throttled.
	paymentGroup.Post(constants.WebhookRoute, controllers.HandleStripeWebhook)

	authed := paymentGroup.Group("", limiter.New(), middleware.APIKeyAuthMiddleware())
	authed.Post(constants.CreatePaymentIntentRoute, controllers.HandleCreatePaymentIntent)
	authed.Get(constants.TransactionsRoute, controllers.HandleListTransactions)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
