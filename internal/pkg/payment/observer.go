package payment

import (
	"log"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/internal/pkg/metrics/counter"
)

// Observer receives reconciliation outcomes. Reporting is best-effort; a
// failing observer must never affect the store mutation it describes.
type Observer interface {
	ReconcileApplied(paymentIntentID string, outcome ReconcileOutcome)
	ReconcileConflict(paymentIntentID string, stored, reported models.TransactionStatus)
}

// NewCounterObserver returns the default observer: Redis-backed outcome
// counters plus application log lines for anomalies.
func NewCounterObserver() Observer {
	return &counterObserver{}
}

type counterObserver struct{}

func (o *counterObserver) ReconcileApplied(paymentIntentID string, outcome ReconcileOutcome) {
	if err := counter.AddReconcileOutcome(string(outcome)); err != nil {
		log.Printf("reconcile counter update failed for %s: %v", paymentIntentID, err)
	}
}

func (o *counterObserver) ReconcileConflict(paymentIntentID string, stored, reported models.TransactionStatus) {
	// A payment cannot both succeed and fail. The stored outcome wins; the
	// conflicting event is only recorded here.
	log.Printf("reconciliation anomaly: intent %s already %s, gateway reported %s", paymentIntentID, stored, reported)
	if err := counter.AddReconcileConflict(paymentIntentID); err != nil {
		log.Printf("conflict counter update failed for %s: %v", paymentIntentID, err)
	}
}
