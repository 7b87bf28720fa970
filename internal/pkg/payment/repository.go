package payment

import (
	"time"

	"github.com/ManuelReschke/PayFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the payment service. The store's
// unique index on payment_intent_id is the only synchronization point between
// the intent-creation flow and the webhook flow.
type Repository interface {
	CreateTransaction(tx *models.Transaction) error
	GetTransactionByIntentID(paymentIntentID string) (*models.Transaction, error)
	// SettleTransactionStatus atomically moves a created transaction to the
	// given terminal status. Returns false when no created row matched.
	SettleTransactionStatus(paymentIntentID string, status models.TransactionStatus) (bool, error)
	// CreateSettledIfMissing inserts a transaction already in a terminal
	// state unless a row for its payment_intent_id exists. Returns whether
	// the insert happened.
	CreateSettledIfMissing(tx *models.Transaction) (bool, error)
	ListTransactionsByUser(userID uint) ([]models.Transaction, error)
	ListAllTransactions() ([]models.Transaction, error)
	RecordWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateTransaction(tx *models.Transaction) error {
	// The webhook can outrun the intent creator's local write. When the
	// recovery path already inserted the row for this intent, the late
	// created-state write must be a no-op, not a constraint violation.
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "payment_intent_id"},
		},
		DoNothing: true,
	}).Create(tx).Error
}

func (r *gormRepository) GetTransactionByIntentID(paymentIntentID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.Where("payment_intent_id = ?", paymentIntentID).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *gormRepository) SettleTransactionStatus(paymentIntentID string, status models.TransactionStatus) (bool, error) {
	res := r.db.Model(&models.Transaction{}).
		Where("payment_intent_id = ? AND status = ?", paymentIntentID, models.TransactionCreated).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) CreateSettledIfMissing(tx *models.Transaction) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "payment_intent_id"},
		},
		DoNothing: true,
	}).Create(tx)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) ListTransactionsByUser(userID uint) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&txs).Error
	return txs, err
}

func (r *gormRepository) ListAllTransactions() ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.Order("created_at DESC").Find(&txs).Error
	return txs, err
}

func (r *gormRepository) RecordWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
