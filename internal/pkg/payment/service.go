package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/internal/pkg/env"
	"gorm.io/gorm"
)

// settleAttempts bounds the CAS loop in ApplyIntentEvent. More than one pass
// is only needed when record creation races past the conditional update.
const settleAttempts = 3

// Service implements intent creation and webhook reconciliation on top of the
// repository and an injected gateway client.
type Service struct {
	repo     Repository
	gateway  Gateway
	currency string
	observer Observer
}

// NewService creates a payment service from injected collaborators.
func NewService(repo Repository, gateway Gateway, currency string, observer Observer) *Service {
	return &Service{
		repo:     repo,
		gateway:  gateway,
		currency: strings.ToUpper(strings.TrimSpace(currency)),
		observer: observer,
	}
}

// NewServiceFromDB creates a payment service from a GORM DB handle using the
// configured currency and the default counter-backed observer.
func NewServiceFromDB(db *gorm.DB, gateway Gateway) *Service {
	return NewService(NewRepository(db), gateway, env.GetEnv("PAYMENT_CURRENCY", "INR"), NewCounterObserver())
}

// CreateIntentInput carries a charge request. Amount is already in the minor
// currency unit; this is the single place where that convention is enforced.
type CreateIntentInput struct {
	UserID uint
	Amount int64
}

// CreateIntentResult is returned to the caller. ClientSecret is consumed by
// the client-side confirmation flow.
type CreateIntentResult struct {
	ClientSecret string
	Transaction  *models.Transaction
}

// CreatePaymentIntent validates the request, creates the remote intent with
// the owner id in its metadata and persists a created transaction. A gateway
// failure leaves no local state. A store failure after a successful gateway
// call surfaces as an error; the webhook recovery path closes that gap.
func (s *Service) CreatePaymentIntent(ctx context.Context, in CreateIntentInput) (*CreateIntentResult, error) {
	if in.UserID == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be a positive integer in minor units", ErrValidation)
	}

	intent, err := s.gateway.CreateIntent(ctx, CreateIntentParams{
		Amount:   in.Amount,
		Currency: s.currency,
		Metadata: map[string]string{
			"user_id": strconv.FormatUint(uint64(in.UserID), 10),
		},
	})
	if err != nil {
		return nil, err
	}

	userID := in.UserID
	tx := &models.Transaction{
		UserID:          &userID,
		Amount:          in.Amount,
		Currency:        s.currency,
		Status:          models.TransactionCreated,
		PaymentIntentID: intent.ID,
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.repo.CreateTransaction(tx); err != nil {
		return nil, fmt.Errorf("persist transaction for intent %s: %w", intent.ID, err)
	}

	return &CreateIntentResult{
		ClientSecret: intent.ClientSecret,
		Transaction:  tx,
	}, nil
}

// ApplyIntentEvent reconciles a verified event into the store. The operation
// is an idempotent upsert keyed by payment_intent_id: the conditional status
// update is the only lock, and either arrival order of the created record and
// the terminal event converges to the same final state.
func (s *Service) ApplyIntentEvent(ctx context.Context, ev *IntentEvent) (ReconcileOutcome, error) {
	_ = ctx
	target, ok := terminalStatusFor(ev.Type)
	if !ok {
		s.report(ev.PaymentIntentID, ReconcileIgnored)
		return ReconcileIgnored, nil
	}
	if strings.TrimSpace(ev.PaymentIntentID) == "" {
		return "", fmt.Errorf("%w: payment intent id is required", ErrPayload)
	}

	for attempt := 0; attempt < settleAttempts; attempt++ {
		settled, err := s.repo.SettleTransactionStatus(ev.PaymentIntentID, target)
		if err != nil {
			return "", fmt.Errorf("settle intent %s: %w", ev.PaymentIntentID, err)
		}
		if settled {
			s.report(ev.PaymentIntentID, ReconcileSettled)
			return ReconcileSettled, nil
		}

		tx, err := s.repo.GetTransactionByIntentID(ev.PaymentIntentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				created, createErr := s.repo.CreateSettledIfMissing(&models.Transaction{
					UserID:          ev.UserID,
					Amount:          ev.Amount,
					Currency:        ev.Currency,
					Status:          target,
					PaymentIntentID: ev.PaymentIntentID,
				})
				if createErr != nil {
					return "", fmt.Errorf("recover intent %s: %w", ev.PaymentIntentID, createErr)
				}
				if created {
					s.report(ev.PaymentIntentID, ReconcileRecovered)
					return ReconcileRecovered, nil
				}
				// Lost the insert race; another writer owns the row now.
				continue
			}
			return "", fmt.Errorf("lookup intent %s: %w", ev.PaymentIntentID, err)
		}

		if tx.Status == target {
			// Expected under at-least-once delivery, not an error.
			s.report(ev.PaymentIntentID, ReconcileReplayed)
			return ReconcileReplayed, nil
		}
		if tx.Status.IsTerminal() {
			if s.observer != nil {
				s.observer.ReconcileConflict(ev.PaymentIntentID, tx.Status, target)
			}
			s.report(ev.PaymentIntentID, ReconcileConflict)
			return ReconcileConflict, nil
		}
		// Still created: the row appeared after our conditional update ran.
		// Retry the update against it.
	}

	return "", fmt.Errorf("settle intent %s: contention not resolved after %d attempts", ev.PaymentIntentID, settleAttempts)
}

// ListTransactionsFor applies the access policy: admins see everything, any
// other role only its own rows.
func (s *Service) ListTransactionsFor(ctx context.Context, userID uint, role models.Role) ([]models.Transaction, error) {
	_ = ctx
	if models.ParseRole(string(role)) == models.RoleAdmin {
		return s.repo.ListAllTransactions()
	}
	return s.repo.ListTransactionsByUser(userID)
}

// RecordWebhookEvent persists webhook payloads idempotently for audit.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.RecordWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an audit row as processed with an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

func (s *Service) report(paymentIntentID string, outcome ReconcileOutcome) {
	if s.observer != nil {
		s.observer.ReconcileApplied(paymentIntentID, outcome)
	}
}

func terminalStatusFor(t EventType) (models.TransactionStatus, bool) {
	switch t {
	case EventIntentSucceeded:
		return models.TransactionSucceeded, true
	case EventIntentFailed:
		return models.TransactionFailed, true
	default:
		return "", false
	}
}
