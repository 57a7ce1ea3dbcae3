package models

import "errors"

// Configuration errors are fatal for the billing event being processed: a
// commission table that cannot resolve a percentage must never silently
// degrade to zero commission.
var (
	ErrInvalidLevel      = errors.New("commission level out of range")
	ErrInvalidStructure  = errors.New("commission structure cannot resolve a percentage")
	ErrNoActiveStructure = errors.New("no active commission structure")
)

// Payout errors. BelowMinimum and NoEligibleFunds are preconditions reported
// to the caller, not retried; gateway errors leave the batch recoverable.
var (
	ErrBelowMinimum    = errors.New("payable balance below coach minimum payout amount")
	ErrNoEligibleFunds = errors.New("no approved entries eligible for payout")
	ErrGatewayTimeout  = errors.New("payment gateway call timed out")
	ErrGatewayFailure  = errors.New("payment gateway rejected the payout")
)

var (
	ErrEntryNotFound      = errors.New("commission entry not found")
	ErrBatchNotFound      = errors.New("payout batch not found")
	ErrCoachNotFound      = errors.New("coach not found")
	ErrInvalidTransition  = errors.New("status transition not allowed")
	ErrDistributionLocked = errors.New("billing event for this subscription is already being processed")
)
