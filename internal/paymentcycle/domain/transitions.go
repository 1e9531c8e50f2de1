package domain

import "sort"

// Action names a lifecycle mutation a caller can request.
type Action string

const (
	ActionApprove       Action = "approve"
	ActionDecline       Action = "decline"
	ActionRecordPayment Action = "record_payment"
	ActionUploadInvoice Action = "upload_invoice"
	ActionComplete      Action = "complete"
	ActionAutoCancel    Action = "auto_cancel"
)

type transitionKey struct {
	current CycleStatus
	action  Action
}

// transitions is the full set of allowed (state, action) pairs. Anything not
// listed here is rejected, including every action against a terminal state.
var transitions = map[transitionKey]CycleStatus{
	{CycleStatusPendingApproval, ActionApprove}:       CycleStatusPendingPayment,
	{CycleStatusPendingApproval, ActionDecline}:       CycleStatusRejected,
	{CycleStatusPendingPayment, ActionRecordPayment}:  CycleStatusPaymentRecorded,
	{CycleStatusPaymentRecorded, ActionUploadInvoice}: CycleStatusInvoiceUploaded,
	{CycleStatusPaymentRecorded, ActionAutoCancel}:    CycleStatusCancelled,
	{CycleStatusInvoiceUploaded, ActionComplete}:      CycleStatusCompleted,
}

// Next resolves the state an action leads to from the current state. A pair
// outside the transition table returns ErrInvalidTransition.
func Next(current CycleStatus, action Action) (CycleStatus, error) {
	if next, ok := transitions[transitionKey{current: current, action: action}]; ok {
		return next, nil
	}
	return "", ErrInvalidTransition
}

// CanTransition reports whether the action is allowed from the current state.
func CanTransition(current CycleStatus, action Action) bool {
	_, ok := transitions[transitionKey{current: current, action: action}]
	return ok
}

// AllowedActions returns the sorted actions available from the current state.
func AllowedActions(current CycleStatus) []Action {
	var actions []Action
	for key := range transitions {
		if key.current == current {
			actions = append(actions, key.action)
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}
