package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "paydesk/pkg/domain-errors"
)

func TestNewRecord(t *testing.T) {
	rec, err := NewRecord("evt_1", "stripe", "checkout.session.completed", RecordSuccess)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "evt_1", rec.EventID)
	assert.NotNil(t, rec.Metadata)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestNewRecordInvariants(t *testing.T) {
	_, err := NewRecord("", "stripe", "checkout.session.completed", RecordSuccess)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvariantViolation))

	_, err = NewRecord("evt_1", "stripe", "checkout.session.completed", RecordStatus("BOGUS"))
	assert.True(t, dErrors.Is(err, dErrors.CodeInvariantViolation))
}

func TestRefundTarget(t *testing.T) {
	assert.Equal(t, PaymentRefunded, RefundTarget(true))
	assert.Equal(t, PaymentPartiallyRefunded, RefundTarget(false))
}

func TestStatusValidity(t *testing.T) {
	for _, s := range []RecordStatus{RecordSuccess, RecordFailed, RecordUnmatched, RecordDispute} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, RecordStatus("PENDING").IsValid())

	for _, s := range []PaymentStatus{PaymentUnpaid, PaymentPaid, PaymentPartiallyRefunded, PaymentRefunded, PaymentDisputed} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, PaymentStatus("VOID").IsValid())
}
