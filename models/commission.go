package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EntryStatus is the lifecycle state of a commission ledger entry.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusApproved  EntryStatus = "approved"
	EntryStatusPaid      EntryStatus = "paid"
	EntryStatusCancelled EntryStatus = "cancelled"
)

// CanTransition reports whether a status change is allowed. Transitions are
// forward-only (pending -> approved -> paid); cancelled is terminal and
// reachable from any state except paid.
func (s EntryStatus) CanTransition(to EntryStatus) bool {
	switch to {
	case EntryStatusApproved:
		return s == EntryStatusPending
	case EntryStatusPaid:
		return s == EntryStatusApproved
	case EntryStatusCancelled:
		return s != EntryStatusPaid && s != EntryStatusCancelled
	default:
		return false
	}
}

// CommissionEntry is one ledger record: a single level of commission owed to
// one coach for one subscription billing event. Percentage and amount are
// snapshotted at computation time and never recomputed, even if the
// commission structure is later edited.
type CommissionEntry struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID              primitive.ObjectID `bson:"coachId" json:"coachId"`
	SubscriptionID       primitive.ObjectID `bson:"subscriptionId" json:"subscriptionId"`
	ReferredBy           primitive.ObjectID `bson:"referredBy" json:"referredBy"`
	SubscriptionAmount   float64            `bson:"subscriptionAmount" json:"subscriptionAmount"`
	Level                int                `bson:"level" json:"level"`
	CommissionPercentage float64            `bson:"commissionPercentage" json:"commissionPercentage"`
	CommissionAmount     float64            `bson:"commissionAmount" json:"commissionAmount"`
	Currency             string             `bson:"currency" json:"currency"`
	Category             string             `bson:"category,omitempty" json:"category,omitempty"`
	PlanID               string             `bson:"planId,omitempty" json:"planId,omitempty"`
	Status               EntryStatus        `bson:"status" json:"status"`
	PaymentDate          *time.Time         `bson:"paymentDate,omitempty" json:"paymentDate,omitempty"`
	PeriodStart          time.Time          `bson:"periodStart" json:"periodStart"`
	Month                int                `bson:"month" json:"month"`
	Year                 int                `bson:"year" json:"year"`
	BatchID              string             `bson:"batchId,omitempty" json:"batchId,omitempty"`
	IsActive             bool               `bson:"isActive" json:"isActive"`
	Notes                string             `bson:"notes,omitempty" json:"notes,omitempty"`
	StructureVersion     int                `bson:"structureVersion" json:"structureVersion"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// EntryFilter narrows ledger list queries from the admin console.
type EntryFilter struct {
	CoachID  string      `query:"coachId"`
	Status   EntryStatus `query:"status"`
	Currency string      `query:"currency"`
	Month    int         `query:"month"`
	Year     int         `query:"year"`
	Page     int         `query:"page"`
	Limit    int         `query:"limit"`
}

// ApproveRequest is the bulk-approve payload from the admin console.
type ApproveRequest struct {
	EntryIDs []string `json:"entryIds" validate:"required,min=1"`
	Notes    string   `json:"notes"`
}

// CancelRequest voids a pending or approved entry with an audit note.
type CancelRequest struct {
	Reason string `json:"reason" validate:"required"`
}
