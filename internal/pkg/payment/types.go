package payment

// EventType classifies verified gateway webhook notifications.
type EventType string

const (
	EventIntentSucceeded EventType = "intent_succeeded"
	EventIntentFailed    EventType = "intent_failed"
	EventOther           EventType = "other"
)

// IntentEvent is the provider-agnostic shape of a verified webhook event as
// consumed by the reconciler. UserID is only present when the gateway echoed
// it back in the intent metadata; the recovery path tolerates its absence.
type IntentEvent struct {
	ProviderEventID string
	Type            EventType
	RawType         string
	PaymentIntentID string
	Amount          int64
	Currency        string
	UserID          *uint
}

// ReconcileOutcome describes what applying an event did to the store.
type ReconcileOutcome string

const (
	// ReconcileSettled: an existing created record moved to its terminal state.
	ReconcileSettled ReconcileOutcome = "settled"
	// ReconcileReplayed: the record already carried the event's terminal state.
	ReconcileReplayed ReconcileOutcome = "replayed"
	// ReconcileRecovered: no local record existed, one was created terminal.
	ReconcileRecovered ReconcileOutcome = "recovered"
	// ReconcileConflict: the record holds the opposite terminal state; the
	// first terminal outcome wins and the event is reported as an anomaly.
	ReconcileConflict ReconcileOutcome = "conflict"
	// ReconcileIgnored: unrecognized event type, acknowledged without effect.
	ReconcileIgnored ReconcileOutcome = "ignored"
)

// WebhookEventInput is the normalized input for webhook audit persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
