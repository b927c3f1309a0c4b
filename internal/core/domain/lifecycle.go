package domain

import "custody-ledger/pkg/apperror"

// Every tracked entity starts PENDING and leaves it exactly once. A
// successor table lists the legal targets; a status without successors is
// terminal.

var transactionSuccessors = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {TransactionStatusApproved, TransactionStatusRejected},
}

var orderSuccessors = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusCompleted, OrderStatusCancelled},
}

var paymentMethodSuccessors = map[PaymentMethodStatus][]PaymentMethodStatus{
	PaymentMethodStatusPending: {PaymentMethodStatusApproved, PaymentMethodStatusRejected},
}

func checkTransition[S ~string](table map[S][]S, known []S, from, to S) error {
	if !contains(known, to) {
		return apperror.Validation("Unknown target status " + string(to))
	}
	if contains(table[from], to) {
		return nil
	}
	return apperror.ErrIllegalTransition(string(from), string(to))
}

func contains[S ~string](list []S, s S) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ---- Transaction ----

func (s TransactionStatus) Valid() bool {
	return contains([]TransactionStatus{TransactionStatusPending, TransactionStatusApproved, TransactionStatusRejected}, s)
}

func (s TransactionStatus) IsTerminal() bool {
	return len(transactionSuccessors[s]) == 0
}

// CheckTransition returns nil if a transaction may move from s to target.
func (s TransactionStatus) CheckTransition(target TransactionStatus) error {
	return checkTransition(transactionSuccessors,
		[]TransactionStatus{TransactionStatusPending, TransactionStatusApproved, TransactionStatusRejected},
		s, target)
}

// ---- Order ----

func (s OrderStatus) Valid() bool {
	return contains([]OrderStatus{OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled}, s)
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderSuccessors[s]) == 0
}

// CheckTransition returns nil if an order may move from s to target.
func (s OrderStatus) CheckTransition(target OrderStatus) error {
	if s == OrderStatusCompleted && target == OrderStatusPending {
		return apperror.ErrIllegalTransitionMsg("cannot revert a completed order to pending")
	}
	return checkTransition(orderSuccessors,
		[]OrderStatus{OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled},
		s, target)
}

// ---- Payment method ----

func (s PaymentMethodStatus) Valid() bool {
	return contains([]PaymentMethodStatus{PaymentMethodStatusPending, PaymentMethodStatusApproved, PaymentMethodStatusRejected}, s)
}

func (s PaymentMethodStatus) IsTerminal() bool {
	return len(paymentMethodSuccessors[s]) == 0
}

// CheckTransition returns nil if a payment method may move from s to target.
func (s PaymentMethodStatus) CheckTransition(target PaymentMethodStatus) error {
	return checkTransition(paymentMethodSuccessors,
		[]PaymentMethodStatus{PaymentMethodStatusPending, PaymentMethodStatusApproved, PaymentMethodStatusRejected},
		s, target)
}
