package counter

import (
	"context"

	"github.com/ManuelReschke/PayFox/internal/pkg/cache"
)

const (
	reconcileOutcomesKey  = "payment:counters:reconcile"
	reconcileConflictsKey = "payment:counters:conflicts"
	webhookRejectedKey    = "payment:counters:webhook_rejected"
)

// AddReconcileOutcome increments the counter for a reconciliation outcome
// (settled, replayed, recovered, conflict, ignored) in Redis.
func AddReconcileOutcome(outcome string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, reconcileOutcomesKey, outcome, 1).Err()
}

// AddReconcileConflict increments the per-intent conflict counter. Conflicts
// are rare and worth tracking per key: repeated conflicts on one intent point
// at a misbehaving gateway, spread-out ones at data loss on our side.
func AddReconcileConflict(paymentIntentID string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, reconcileConflictsKey, paymentIntentID, 1).Err()
}

// AddWebhookRejected increments the rejected-delivery counter for a reason
// (bad_signature, bad_payload).
func AddWebhookRejected(reason string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookRejectedKey, reason, 1).Err()
}

// ReconcileOutcomes returns the current outcome counters for ops tooling.
func ReconcileOutcomes() (map[string]string, error) {
	ctx := context.Background()
	return cache.GetClient().HGetAll(ctx, reconcileOutcomesKey).Result()
}

// ReconcileConflicts returns the per-intent conflict counters.
func ReconcileConflicts() (map[string]string, error) {
	ctx := context.Background()
	return cache.GetClient().HGetAll(ctx, reconcileConflictsKey).Result()
}
