package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/internal/pkg/env"
	"github.com/ManuelReschke/PayFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/PayFox/internal/pkg/payment"
	"github.com/ManuelReschke/PayFox/internal/pkg/usercontext"
)

var paymentService *payment.Service

// InitializePaymentController wires the payment service used by the handlers.
// Called once during router setup with the injected gateway client.
func InitializePaymentController(svc *payment.Service) {
	paymentService = svc
}

type createPaymentIntentRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// HandleCreatePaymentIntent creates a charge intent at the gateway and
// persists the created transaction. The request amount is already in minor
// currency units (paise/cents) and is never converted.
func HandleCreatePaymentIntent(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "authentication required"})
	}

	var req createPaymentIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": "amount must be a positive integer in minor units"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 20*time.Second)
	defer cancel()

	result, err := paymentService.CreatePaymentIntent(ctx, payment.CreateIntentInput{
		UserID: userCtx.UserID,
		Amount: req.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
		case errors.Is(err, payment.ErrGateway):
			log.Printf("intent creation failed at gateway: %v", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "gateway_error"})
		default:
			log.Printf("intent creation failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"client_secret": result.ClientSecret})
}

// HandleListTransactions returns the caller's transactions, or all of them
// for admins.
func HandleListTransactions(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "authentication required"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	transactions, err := paymentService.ListTransactionsFor(ctx, userCtx.UserID, userCtx.Role)
	if err != nil {
		log.Printf("transaction listing failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"transactions": transactions})
}

// HandleStripeWebhook processes asynchronous gateway notifications. The raw
// body bytes are captured before any decoding because the signature covers
// the exact wire payload. Reconciliation errors return 500 so the gateway
// redelivers; conflicting terminal events are acknowledged with 200 since a
// retry can never resolve them.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	signatureValid := false
	if secret == "" {
		// Dev-only escape hatch; startup already warned about this mode.
		log.Print("accepting unverified webhook delivery: STRIPE_WEBHOOK_SECRET is not configured")
	} else {
		if !payment.VerifyStripeWebhookSignature(rawBody, signature, secret) {
			if err := counter.AddWebhookRejected("bad_signature"); err != nil {
				log.Printf("webhook rejection counter update failed: %v", err)
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		}
		signatureValid = true
	}

	event, err := payment.ParseStripeWebhookEvent(rawBody)
	if err != nil {
		if cntErr := counter.AddWebhookRejected("bad_payload"); cntErr != nil {
			log.Printf("webhook rejection counter update failed: %v", cntErr)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 15*time.Second)
	defer cancel()

	// Audit trail is best-effort and never gates reconciliation; replays
	// converge through the transaction store alone.
	_, stored, auditErr := paymentService.RecordWebhookEvent(ctx, payment.WebhookEventInput{
		Provider:        models.PaymentProviderStripe,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.RawType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if auditErr != nil {
		log.Printf("webhook audit persistence failed for event %s: %v", event.ProviderEventID, auditErr)
	}

	outcome, err := paymentService.ApplyIntentEvent(ctx, event)
	if err != nil {
		if stored != nil {
			_ = paymentService.MarkWebhookProcessed(ctx, stored.ID, err)
		}
		log.Printf("webhook reconciliation failed for event %s: %v", event.ProviderEventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reconciliation_failed"})
	}
	if stored != nil {
		_ = paymentService.MarkWebhookProcessed(ctx, stored.ID, nil)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "outcome": string(outcome)})
}
