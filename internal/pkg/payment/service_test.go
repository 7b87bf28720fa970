package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeRepository mimics the store semantics the reconciler relies on: a
// unique key on payment_intent_id and a conditional created-to-terminal
// status update. A single mutex stands in for the database's row locking.
type fakeRepository struct {
	mu       sync.Mutex
	nextID   uint
	byIntent map[string]*models.Transaction
	webhooks map[string]*models.WebhookEvent

	failSettle error
	failCreate error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		byIntent: make(map[string]*models.Transaction),
		webhooks: make(map[string]*models.WebhookEvent),
	}
}

func (r *fakeRepository) CreateTransaction(tx *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	if _, exists := r.byIntent[tx.PaymentIntentID]; exists {
		return nil
	}
	r.insertLocked(tx)
	return nil
}

func (r *fakeRepository) GetTransactionByIntentID(paymentIntentID string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.byIntent[paymentIntentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *tx
	return &clone, nil
}

func (r *fakeRepository) SettleTransactionStatus(paymentIntentID string, status models.TransactionStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSettle != nil {
		return false, r.failSettle
	}
	tx, ok := r.byIntent[paymentIntentID]
	if !ok || tx.Status != models.TransactionCreated {
		return false, nil
	}
	tx.Status = status
	tx.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeRepository) CreateSettledIfMissing(tx *models.Transaction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byIntent[tx.PaymentIntentID]; exists {
		return false, nil
	}
	r.insertLocked(tx)
	return true, nil
}

func (r *fakeRepository) ListTransactionsByUser(userID uint) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, tx := range r.byIntent {
		if tx.UserID != nil && *tx.UserID == userID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (r *fakeRepository) ListAllTransactions() ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, tx := range r.byIntent {
		out = append(out, *tx)
	}
	return out, nil
}

func (r *fakeRepository) RecordWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := event.Provider + "/" + event.ProviderEventID
	if stored, exists := r.webhooks[key]; exists {
		clone := *stored
		return false, &clone, nil
	}
	r.nextID++
	event.ID = r.nextID
	event.CreatedAt = time.Now()
	r.webhooks[key] = event
	clone := *event
	return true, &clone, nil
}

func (r *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, ev := range r.webhooks {
		if ev.ID == id {
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeRepository) insertLocked(tx *models.Transaction) {
	r.nextID++
	tx.ID = r.nextID
	tx.CreatedAt = time.Now()
	tx.UpdatedAt = tx.CreatedAt
	clone := *tx
	r.byIntent[tx.PaymentIntentID] = &clone
}

func (r *fakeRepository) get(paymentIntentID string) *models.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.byIntent[paymentIntentID]
	if !ok {
		return nil
	}
	clone := *tx
	return &clone
}

func (r *fakeRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byIntent)
}

type fakeGateway struct {
	mu        sync.Mutex
	calls     int
	lastParam CreateIntentParams
	err       error
}

func (g *fakeGateway) CreateIntent(_ context.Context, params CreateIntentParams) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastParam = params
	if g.err != nil {
		return nil, g.err
	}
	id := fmt.Sprintf("pi_test_%d", g.calls)
	return &Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       params.Amount,
		Currency:     params.Currency,
		Status:       "requires_payment_method",
	}, nil
}

type recordingObserver struct {
	mu        sync.Mutex
	applied   map[ReconcileOutcome]int
	conflicts int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{applied: make(map[ReconcileOutcome]int)}
}

func (o *recordingObserver) ReconcileApplied(_ string, outcome ReconcileOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.applied[outcome]++
}

func (o *recordingObserver) ReconcileConflict(_ string, _, _ models.TransactionStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conflicts++
}

func newTestService(repo Repository, gw Gateway) (*Service, *recordingObserver) {
	obs := newRecordingObserver()
	return NewService(repo, gw, "INR", obs), obs
}

func succeededEvent(intentID string, userID *uint) *IntentEvent {
	return &IntentEvent{
		ProviderEventID: "evt_" + intentID,
		Type:            EventIntentSucceeded,
		RawType:         "payment_intent.succeeded",
		PaymentIntentID: intentID,
		Amount:          49900,
		Currency:        "INR",
		UserID:          userID,
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	repo := newFakeRepository()
	gw := &fakeGateway{}
	svc, _ := newTestService(repo, gw)

	res, err := svc.CreatePaymentIntent(context.Background(), CreateIntentInput{UserID: 42, Amount: 49900})
	require.NoError(t, err)
	assert.Equal(t, "pi_test_1_secret", res.ClientSecret)

	assert.Equal(t, "42", gw.lastParam.Metadata["user_id"])
	assert.Equal(t, "INR", gw.lastParam.Currency)

	stored := repo.get("pi_test_1")
	require.NotNil(t, stored)
	assert.Equal(t, models.TransactionCreated, stored.Status)
	assert.Equal(t, int64(49900), stored.Amount)
	require.NotNil(t, stored.UserID)
	assert.Equal(t, uint(42), *stored.UserID)
}

func TestCreatePaymentIntent_Validation(t *testing.T) {
	repo := newFakeRepository()
	gw := &fakeGateway{}
	svc, _ := newTestService(repo, gw)

	_, err := svc.CreatePaymentIntent(context.Background(), CreateIntentInput{UserID: 0, Amount: 100})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.CreatePaymentIntent(context.Background(), CreateIntentInput{UserID: 1, Amount: 0})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.CreatePaymentIntent(context.Background(), CreateIntentInput{UserID: 1, Amount: -5})
	assert.True(t, errors.Is(err, ErrValidation))

	assert.Equal(t, 0, gw.calls, "validation failures must not reach the gateway")
	assert.Equal(t, 0, repo.count())
}

func TestCreatePaymentIntent_GatewayFailure(t *testing.T) {
	repo := newFakeRepository()
	gw := &fakeGateway{err: fmt.Errorf("%w: status=503", ErrGateway)}
	svc, _ := newTestService(repo, gw)

	_, err := svc.CreatePaymentIntent(context.Background(), CreateIntentInput{UserID: 1, Amount: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGateway))
	assert.Equal(t, 0, repo.count(), "gateway failure must leave no local state")
}

func TestApplyIntentEvent_Settles(t *testing.T) {
	repo := newFakeRepository()
	svc, obs := newTestService(repo, &fakeGateway{})

	_, err := svc.CreatePaymentIntent(context.Background(), CreateIntentInput{UserID: 7, Amount: 1000})
	require.NoError(t, err)

	outcome, err := svc.ApplyIntentEvent(context.Background(), succeededEvent("pi_test_1", nil))
	require.NoError(t, err)
	assert.Equal(t, ReconcileSettled, outcome)

	stored := repo.get("pi_test_1")
	assert.Equal(t, models.TransactionSucceeded, stored.Status)
	require.NotNil(t, stored.UserID)
	assert.Equal(t, uint(7), *stored.UserID, "settling must not touch ownership")
	assert.Equal(t, 1, obs.applied[ReconcileSettled])
}

func TestApplyIntentEvent_FailedEvent(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := newTestService(repo, &fakeGateway{})

	_, err := svc.CreatePaymentIntent(context.Background(), CreateIntentInput{UserID: 7, Amount: 1000})
	require.NoError(t, err)

	ev := succeededEvent("pi_test_1", nil)
	ev.Type = EventIntentFailed
	outcome, err := svc.ApplyIntentEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, ReconcileSettled, outcome)
	assert.Equal(t, models.TransactionFailed, repo.get("pi_test_1").Status)
}

func TestApplyIntentEvent_ReplayIsIdempotent(t *testing.T) {
	repo := newFakeRepository()
	svc, obs := newTestService(repo, &fakeGateway{})

	_, err := svc.CreatePaymentIntent(context.Background(), CreateIntentInput{UserID: 7, Amount: 1000})
	require.NoError(t, err)

	first, err := svc.ApplyIntentEvent(context.Background(), succeededEvent("pi_test_1", nil))
	require.NoError(t, err)
	assert.Equal(t, ReconcileSettled, first)

	for i := 0; i < 4; i++ {
		outcome, err := svc.ApplyIntentEvent(context.Background(), succeededEvent("pi_test_1", nil))
		require.NoError(t, err)
		assert.Equal(t, ReconcileReplayed, outcome)
	}

	assert.Equal(t, models.TransactionSucceeded, repo.get("pi_test_1").Status)
	assert.Equal(t, 1, repo.count())
	assert.Equal(t, 4, obs.applied[ReconcileReplayed])
}

func TestApplyIntentEvent_RecoversUnknownIntent(t *testing.T) {
	repo := newFakeRepository()
	svc, obs := newTestService(repo, &fakeGateway{})

	owner := uint(42)
	outcome, err := svc.ApplyIntentEvent(context.Background(), succeededEvent("pi_orphan", &owner))
	require.NoError(t, err)
	assert.Equal(t, ReconcileRecovered, outcome)

	stored := repo.get("pi_orphan")
	require.NotNil(t, stored)
	assert.Equal(t, models.TransactionSucceeded, stored.Status)
	assert.Equal(t, int64(49900), stored.Amount)
	require.NotNil(t, stored.UserID)
	assert.Equal(t, uint(42), *stored.UserID)
	assert.Equal(t, 1, obs.applied[ReconcileRecovered])
}

func TestApplyIntentEvent_RecoversWithoutOwner(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := newTestService(repo, &fakeGateway{})

	outcome, err := svc.ApplyIntentEvent(context.Background(), succeededEvent("pi_orphan", nil))
	require.NoError(t, err)
	assert.Equal(t, ReconcileRecovered, outcome)
	assert.Nil(t, repo.get("pi_orphan").UserID)
}

func TestApplyIntentEvent_ConflictKeepsFirstOutcome(t *testing.T) {
	repo := newFakeRepository()
	svc, obs := newTestService(repo, &fakeGateway{})

	_, err := svc.CreatePaymentIntent(context.Background(), CreateIntentInput{UserID: 7, Amount: 1000})
	require.NoError(t, err)

	outcome, err := svc.ApplyIntentEvent(context.Background(), succeededEvent("pi_test_1", nil))
	require.NoError(t, err)
	assert.Equal(t, ReconcileSettled, outcome)

	ev := succeededEvent("pi_test_1", nil)
	ev.Type = EventIntentFailed
	outcome, err = svc.ApplyIntentEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, ReconcileConflict, outcome)

	assert.Equal(t, models.TransactionSucceeded, repo.get("pi_test_1").Status, "first terminal outcome wins")
	assert.Equal(t, 1, obs.conflicts)
}

func TestApplyIntentEvent_IgnoresOtherTypes(t *testing.T) {
	repo := newFakeRepository()
	svc, obs := newTestService(repo, &fakeGateway{})

	ev := succeededEvent("pi_test_1", nil)
	ev.Type = EventOther
	ev.RawType = "charge.refunded"

	outcome, err := svc.ApplyIntentEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, ReconcileIgnored, outcome)
	assert.Equal(t, 0, repo.count())
	assert.Equal(t, 1, obs.applied[ReconcileIgnored])
}

func TestApplyIntentEvent_MissingIntentID(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := newTestService(repo, &fakeGateway{})

	ev := succeededEvent("", nil)
	_, err := svc.ApplyIntentEvent(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPayload))
}

func TestApplyIntentEvent_StoreFailure(t *testing.T) {
	repo := newFakeRepository()
	repo.failSettle = errors.New("connection reset")
	svc, _ := newTestService(repo, &fakeGateway{})

	_, err := svc.ApplyIntentEvent(context.Background(), succeededEvent("pi_test_1", nil))
	require.Error(t, err)
}

func TestApplyIntentEvent_ConcurrentDuplicates(t *testing.T) {
	repo := newFakeRepository()
	svc, obs := newTestService(repo, &fakeGateway{})

	const deliveries = 16
	var wg sync.WaitGroup
	outcomes := make(chan ReconcileOutcome, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := svc.ApplyIntentEvent(context.Background(), succeededEvent("pi_race", nil))
			assert.NoError(t, err)
			outcomes <- outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	var recovered, replayed int
	for outcome := range outcomes {
		switch outcome {
		case ReconcileRecovered:
			recovered++
		case ReconcileReplayed:
			replayed++
		default:
			t.Fatalf("unexpected outcome %s", outcome)
		}
	}
	assert.Equal(t, 1, recovered, "exactly one delivery creates the row")
	assert.Equal(t, deliveries-1, replayed)
	assert.Equal(t, 1, repo.count())
	assert.Equal(t, models.TransactionSucceeded, repo.get("pi_race").Status)
	assert.Equal(t, 0, obs.conflicts)
}

func TestApplyIntentEvent_EventBeforeCreatedRecord(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := newTestService(repo, &fakeGateway{})

	// Webhook lands first, intent creator's write arrives late.
	outcome, err := svc.ApplyIntentEvent(context.Background(), succeededEvent("pi_test_1", nil))
	require.NoError(t, err)
	assert.Equal(t, ReconcileRecovered, outcome)

	_, err = svc.CreatePaymentIntent(context.Background(), CreateIntentInput{UserID: 7, Amount: 1000})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.count())
	assert.Equal(t, models.TransactionSucceeded, repo.get("pi_test_1").Status, "late created write must not regress the terminal state")
}

func TestListTransactionsFor(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := newTestService(repo, &fakeGateway{})

	alice, bob := uint(1), uint(2)
	require.NoError(t, repo.CreateTransaction(&models.Transaction{UserID: &alice, Amount: 100, Currency: "INR", Status: models.TransactionCreated, PaymentIntentID: "pi_a"}))
	require.NoError(t, repo.CreateTransaction(&models.Transaction{UserID: &bob, Amount: 200, Currency: "INR", Status: models.TransactionSucceeded, PaymentIntentID: "pi_b"}))

	own, err := svc.ListTransactionsFor(context.Background(), alice, models.RoleUser)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "pi_a", own[0].PaymentIntentID)

	all, err := svc.ListTransactionsFor(context.Background(), alice, models.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Unknown roles degrade to least privilege.
	unknown, err := svc.ListTransactionsFor(context.Background(), alice, models.Role("superuser"))
	require.NoError(t, err)
	require.Len(t, unknown, 1)
	assert.Equal(t, "pi_a", unknown[0].PaymentIntentID)
}

func TestRecordWebhookEvent(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := newTestService(repo, &fakeGateway{})

	created, stored, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:        "Stripe",
		ProviderEventID: "evt_1",
		EventType:       "payment_intent.succeeded",
		PayloadJSON:     `{"id":"evt_1"}`,
		SignatureValid:  true,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "stripe", stored.Provider)

	created, again, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		EventType:       "payment_intent.succeeded",
		PayloadJSON:     `{"id":"evt_1"}`,
	})
	require.NoError(t, err)
	assert.False(t, created, "redelivery of the same event id is recorded once")
	assert.Equal(t, stored.ID, again.ID)
}

func TestRecordWebhookEvent_HashFallback(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := newTestService(repo, &fakeGateway{})

	payload := `{"type":"payment_intent.succeeded"}`
	created, stored, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:    "stripe",
		PayloadJSON: payload,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, stored.ProviderEventID, "hash:")

	created, _, err = svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:    "stripe",
		PayloadJSON: payload,
	})
	require.NoError(t, err)
	assert.False(t, created, "identical payloads without ids collapse to one audit row")
}

func TestMarkWebhookProcessed(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := newTestService(repo, &fakeGateway{})

	_, stored, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		PayloadJSON:     `{}`,
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkWebhookProcessed(context.Background(), stored.ID, errors.New("settle failed")))
	require.Error(t, svc.MarkWebhookProcessed(context.Background(), 0, nil))
}
