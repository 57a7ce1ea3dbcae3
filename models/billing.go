package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BillingEvent is what the subscription service delivers (typically via
// webhook) when a coach's subscription is charged or renewed. One event
// drives one distribution run.
type BillingEvent struct {
	SubscriptionID primitive.ObjectID `json:"subscriptionId" validate:"required"`
	CoachID        primitive.ObjectID `json:"coachId" validate:"required"`
	Amount         float64            `json:"amount" validate:"required,gt=0"`
	Currency       string             `json:"currency" validate:"required,len=3"`
	Category       string             `json:"category"`
	PlanID         string             `json:"planId"`
	PeriodStart    time.Time          `json:"periodStart" validate:"required"`
	PeriodEnd      time.Time          `json:"periodEnd"`
}

// BillingEventRequest is the wire form of a billing event; ids arrive as hex
// strings from the subscription service.
type BillingEventRequest struct {
	SubscriptionID string    `json:"subscriptionId" validate:"required"`
	CoachID        string    `json:"coachId" validate:"required"`
	Amount         float64   `json:"amount" validate:"required,gt=0"`
	Currency       string    `json:"currency" validate:"required,len=3"`
	Category       string    `json:"category"`
	PlanID         string    `json:"planId"`
	PeriodStart    time.Time `json:"periodStart" validate:"required"`
	PeriodEnd      time.Time `json:"periodEnd"`
}

// ToEvent converts the wire form, validating the object ids.
func (r *BillingEventRequest) ToEvent() (*BillingEvent, error) {
	subID, err := primitive.ObjectIDFromHex(r.SubscriptionID)
	if err != nil {
		return nil, err
	}
	coachID, err := primitive.ObjectIDFromHex(r.CoachID)
	if err != nil {
		return nil, err
	}
	return &BillingEvent{
		SubscriptionID: subID,
		CoachID:        coachID,
		Amount:         r.Amount,
		Currency:       r.Currency,
		Category:       r.Category,
		PlanID:         r.PlanID,
		PeriodStart:    r.PeriodStart,
		PeriodEnd:      r.PeriodEnd,
	}, nil
}
