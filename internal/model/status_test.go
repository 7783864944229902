package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusConstants(t *testing.T) {
	assert.Equal(t, SubscriptionStatus("active"), StatusActive)
	assert.Equal(t, SubscriptionStatus("cancelled"), StatusCancelled)
	assert.Equal(t, SubscriptionStatus("expired"), StatusExpired)
	assert.Equal(t, CommissionStatus("pending"), CommissionPending)
	assert.Equal(t, CommissionStatus("paid"), CommissionPaid)
	assert.Equal(t, CommissionStatus("reversed"), CommissionReversed)
}

func TestPlanChangeStatus_Open(t *testing.T) {
	tests := []struct {
		status PlanChangeStatus
		want   bool
	}{
		{PlanChangePendingPayment, true},
		{PlanChangeScheduled, true},
		{PlanChangeApplied, false},
		{PlanChangeFailed, false},
		{PlanChangeExpired, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Open())
		})
	}
}
