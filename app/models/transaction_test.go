package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionStatusIsTerminal(t *testing.T) {
	assert.False(t, TransactionCreated.IsTerminal())
	assert.True(t, TransactionSucceeded.IsTerminal())
	assert.True(t, TransactionFailed.IsTerminal())
	assert.False(t, TransactionStatus("refunded").IsTerminal())
}

func TestTransactionValidate(t *testing.T) {
	userID := uint(1)
	valid := Transaction{
		UserID:          &userID,
		Amount:          49900,
		Currency:        "INR",
		Status:          TransactionCreated,
		PaymentIntentID: "pi_1",
	}
	require.NoError(t, valid.Validate())

	lowercaseCurrency := valid
	lowercaseCurrency.Currency = "inr"
	assert.Error(t, lowercaseCurrency.Validate())

	badStatus := valid
	badStatus.Status = "refunded"
	assert.Error(t, badStatus.Validate())

	negativeAmount := valid
	negativeAmount.Amount = -1
	assert.Error(t, negativeAmount.Validate())

	noOwner := valid
	noOwner.UserID = nil
	assert.NoError(t, noOwner.Validate(), "recovered transactions may have no owner")
}
