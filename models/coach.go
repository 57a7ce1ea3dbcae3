package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PayoutSettings is the per-coach payout configuration. MinimumAmount gates
// batch creation; no partial batch is created below it.
type PayoutSettings struct {
	Method        string  `bson:"method" json:"method" validate:"omitempty,oneof=bank_transfer razorpay stripe paypal"`
	Destination   string  `bson:"destination,omitempty" json:"destination,omitempty"`
	MinimumAmount float64 `bson:"minimumAmount" json:"minimumAmount" validate:"gte=0"`
}

// Coach is the referral-directory record the engine reads. ReferredBy points
// at the direct upline coach; the distribution engine follows these pointers
// to build the chain.
type Coach struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	FullName          string              `bson:"fullName" json:"fullName"`
	Email             string              `bson:"email" json:"email" validate:"required,email"`
	ReferralCode      string              `bson:"referralCode" json:"referralCode"`
	ReferredBy        *primitive.ObjectID `bson:"referredBy,omitempty" json:"referredBy,omitempty"`
	Level             int                 `bson:"level" json:"level"`
	PerformanceRating float64             `bson:"performanceRating" json:"performanceRating"`
	MonthlyRevenue    float64             `bson:"monthlyRevenue" json:"monthlyRevenue"`
	JoinedAt          time.Time           `bson:"joinedAt" json:"joinedAt"`
	IsActive          bool                `bson:"isActive" json:"isActive"`
	PayoutSettings    PayoutSettings      `bson:"payoutSettings" json:"payoutSettings"`
	CreatedAt         time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// CoachStanding is the point-in-time snapshot the eligibility evaluator sees.
type CoachStanding struct {
	CoachID           primitive.ObjectID `json:"coachId"`
	Level             int                `json:"level"`
	PerformanceRating float64            `json:"performanceRating"`
	ActiveDays        int                `json:"activeDays"`
	MonthlyRevenue    float64            `json:"monthlyRevenue"`
}

// Standing derives the evaluator snapshot from the directory record.
func (c *Coach) Standing(now time.Time) CoachStanding {
	days := 0
	if !c.JoinedAt.IsZero() && now.After(c.JoinedAt) {
		days = int(now.Sub(c.JoinedAt).Hours() / 24)
	}
	return CoachStanding{
		CoachID:           c.ID,
		Level:             c.Level,
		PerformanceRating: c.PerformanceRating,
		ActiveDays:        days,
		MonthlyRevenue:    c.MonthlyRevenue,
	}
}

// EligibilityReport is what the admin "eligibility report" screen renders:
// one row per coach with every failing rule listed, not just the first.
type EligibilityReport struct {
	CoachID        primitive.ObjectID `json:"coachId"`
	CoachName      string             `json:"coachName"`
	Eligible       bool               `json:"eligible"`
	FailingReasons []string           `json:"failingReasons"`
	Standing       CoachStanding      `json:"standing"`
	GeneratedAt    time.Time          `json:"generatedAt"`
}
