package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFollowsLifecyclePath(t *testing.T) {
	steps := []struct {
		from   CycleStatus
		action Action
		want   CycleStatus
	}{
		{CycleStatusPendingApproval, ActionApprove, CycleStatusPendingPayment},
		{CycleStatusPendingPayment, ActionRecordPayment, CycleStatusPaymentRecorded},
		{CycleStatusPaymentRecorded, ActionUploadInvoice, CycleStatusInvoiceUploaded},
		{CycleStatusInvoiceUploaded, ActionComplete, CycleStatusCompleted},
	}
	for _, step := range steps {
		next, err := Next(step.from, step.action)
		require.NoError(t, err, "%s + %s", step.from, step.action)
		assert.Equal(t, step.want, next)
	}
}

func TestNextDeclineAndAutoCancelAreTerminalExits(t *testing.T) {
	next, err := Next(CycleStatusPendingApproval, ActionDecline)
	require.NoError(t, err)
	assert.Equal(t, CycleStatusRejected, next)

	next, err = Next(CycleStatusPaymentRecorded, ActionAutoCancel)
	require.NoError(t, err)
	assert.Equal(t, CycleStatusCancelled, next)
}

func TestNextRejectsEverythingFromTerminalStates(t *testing.T) {
	terminals := []CycleStatus{CycleStatusCompleted, CycleStatusRejected, CycleStatusCancelled}
	actions := []Action{ActionApprove, ActionDecline, ActionRecordPayment, ActionUploadInvoice, ActionComplete, ActionAutoCancel}

	for _, status := range terminals {
		require.True(t, status.IsTerminal())
		for _, action := range actions {
			_, err := Next(status, action)
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s + %s", status, action)
		}
	}
}

func TestNextRejectsOutOfOrderActions(t *testing.T) {
	cases := []struct {
		from   CycleStatus
		action Action
	}{
		{CycleStatusPendingApproval, ActionRecordPayment},
		{CycleStatusPendingApproval, ActionUploadInvoice},
		{CycleStatusPendingPayment, ActionApprove},
		{CycleStatusPendingPayment, ActionDecline},
		{CycleStatusPendingPayment, ActionAutoCancel},
		{CycleStatusPaymentRecorded, ActionApprove},
		{CycleStatusPaymentRecorded, ActionRecordPayment},
		{CycleStatusInvoiceUploaded, ActionUploadInvoice},
		{CycleStatusInvoiceUploaded, ActionAutoCancel},
	}
	for _, c := range cases {
		_, err := Next(c.from, c.action)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s + %s", c.from, c.action)
		assert.False(t, CanTransition(c.from, c.action))
	}
}

func TestAllowedActionsSortedPerState(t *testing.T) {
	assert.Equal(t, []Action{ActionApprove, ActionDecline}, AllowedActions(CycleStatusPendingApproval))
	assert.Equal(t, []Action{ActionRecordPayment}, AllowedActions(CycleStatusPendingPayment))
	assert.Equal(t, []Action{ActionAutoCancel, ActionUploadInvoice}, AllowedActions(CycleStatusPaymentRecorded))
	assert.Equal(t, []Action{ActionComplete}, AllowedActions(CycleStatusInvoiceUploaded))
	assert.Empty(t, AllowedActions(CycleStatusCompleted))
	assert.Empty(t, AllowedActions(CycleStatusRejected))
	assert.Empty(t, AllowedActions(CycleStatusCancelled))
}
