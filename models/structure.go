package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CategoryOverride replaces the base level percentage for subscriptions in a
// given plan category (e.g. "fitness_training").
type CategoryOverride struct {
	Category   string  `bson:"category" json:"category" validate:"required"`
	Percentage float64 `bson:"percentage" json:"percentage" validate:"gte=0,lte=100"`
}

// PriceRangeOverride replaces the percentage when the subscription amount
// falls inside [MinAmount, MaxAmount). Takes precedence over category
// overrides.
type PriceRangeOverride struct {
	MinAmount  float64 `bson:"minAmount" json:"minAmount" validate:"gte=0"`
	MaxAmount  float64 `bson:"maxAmount" json:"maxAmount" validate:"gtfield=MinAmount"`
	Percentage float64 `bson:"percentage" json:"percentage" validate:"gte=0,lte=100"`
}

// CommissionStructure is the versioned percentage table the resolver reads.
// Every ledger entry snapshots the values it used, so editing a structure
// only affects future billing events.
type CommissionStructure struct {
	ID                  primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Version             int                  `bson:"version" json:"version"`
	CommissionLevels    map[int]float64      `bson:"commissionLevels" json:"commissionLevels" validate:"required"`
	MaxCommissionLevels int                  `bson:"maxCommissionLevels" json:"maxCommissionLevels" validate:"required,gte=1,lte=12"`
	PlatformFeePercent  float64              `bson:"platformFeePercent" json:"platformFeePercent" validate:"gte=0,lte=100"`
	CategoryOverrides   []CategoryOverride   `bson:"categoryOverrides,omitempty" json:"categoryOverrides,omitempty"`
	PriceRangeOverrides []PriceRangeOverride `bson:"priceRangeOverrides,omitempty" json:"priceRangeOverrides,omitempty"`
	IsActive            bool                 `bson:"isActive" json:"isActive"`
	CreatedBy           string               `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt           time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Validate rejects structures that would make the resolver fail at
// distribution time. Missing level entries are a configuration bug and must
// surface here, not as a silent zero commission later.
func (s *CommissionStructure) Validate() error {
	if s.MaxCommissionLevels < 1 {
		return fmt.Errorf("maxCommissionLevels must be at least 1, got %d", s.MaxCommissionLevels)
	}
	if len(s.CommissionLevels) == 0 {
		return fmt.Errorf("commissionLevels table is empty")
	}
	for level := 1; level <= s.MaxCommissionLevels; level++ {
		pct, ok := s.CommissionLevels[level]
		if !ok {
			return fmt.Errorf("commissionLevels missing entry for level %d", level)
		}
		if pct < 0 || pct > 100 {
			return fmt.Errorf("level %d percentage %.2f out of range [0,100]", level, pct)
		}
	}
	for _, o := range s.CategoryOverrides {
		if o.Category == "" {
			return fmt.Errorf("category override with empty category")
		}
		if o.Percentage < 0 || o.Percentage > 100 {
			return fmt.Errorf("category %q percentage %.2f out of range [0,100]", o.Category, o.Percentage)
		}
	}
	for _, o := range s.PriceRangeOverrides {
		if o.MaxAmount <= o.MinAmount {
			return fmt.Errorf("price range [%.2f,%.2f) is empty", o.MinAmount, o.MaxAmount)
		}
		if o.Percentage < 0 || o.Percentage > 100 {
			return fmt.Errorf("price range [%.2f,%.2f) percentage %.2f out of range [0,100]", o.MinAmount, o.MaxAmount, o.Percentage)
		}
	}
	return nil
}

// EligibilityRule holds the platform minimums a coach must meet to receive a
// commission. Evaluated per coach per billing event.
type EligibilityRule struct {
	ID                       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MinimumCoachLevel        int                `bson:"minimumCoachLevel" json:"minimumCoachLevel" validate:"gte=0"`
	MinimumPerformanceRating float64            `bson:"minimumPerformanceRating" json:"minimumPerformanceRating" validate:"gte=0,lte=5"`
	MinimumActiveDays        int                `bson:"minimumActiveDays" json:"minimumActiveDays" validate:"gte=0"`
	MinimumMonthlyRevenue    float64            `bson:"minimumMonthlyRevenue" json:"minimumMonthlyRevenue" validate:"gte=0"`
	UpdatedBy                string             `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	UpdatedAt                time.Time          `bson:"updatedAt" json:"updatedAt"`
}
