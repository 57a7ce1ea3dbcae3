package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BatchStatus is the payout batch lifecycle. A batch that times out at the
// gateway stays in processing until a reconciliation check gets a definitive
// answer; it is never blindly retried.
type BatchStatus string

const (
	BatchStatusRequested  BatchStatus = "requested"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// PayoutBatch groups approved ledger entries for one coach and one currency
// into a single settlement request against the payment gateway.
type PayoutBatch struct {
	ID          string               `bson:"_id" json:"id"`
	CoachID     primitive.ObjectID   `bson:"coachId" json:"coachId"`
	EntryIDs    []primitive.ObjectID `bson:"entryIds" json:"entryIds"`
	TotalAmount float64              `bson:"totalAmount" json:"totalAmount"`
	Currency    string               `bson:"currency" json:"currency"`
	Method      string               `bson:"method" json:"method"`
	Destination string               `bson:"destination,omitempty" json:"destination,omitempty"`
	Status      BatchStatus          `bson:"status" json:"status"`
	ReferenceID string               `bson:"referenceId,omitempty" json:"referenceId,omitempty"`
	FailureNote string               `bson:"failureNote,omitempty" json:"failureNote,omitempty"`
	RequestedAt time.Time            `bson:"requestedAt" json:"requestedAt"`
	SettledAt   *time.Time           `bson:"settledAt,omitempty" json:"settledAt,omitempty"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// ProcessAllResult reports the per-coach outcome of the bulk payout action.
// Each coach's batch succeeds or fails independently.
type ProcessAllResult struct {
	CoachID string  `json:"coachId"`
	BatchID string  `json:"batchId,omitempty"`
	Amount  float64 `json:"amount,omitempty"`
	Error   string  `json:"error,omitempty"`
}
