package services

import (
	"fmt"

	"github.com/coachdesk/commission_engine/models"
	"github.com/coachdesk/commission_engine/utils"
)

// Resolver computes the commission percentage and amount for one level of a
// referral chain against a point-in-time commission structure snapshot.
//
// Overrides hold the total commission rate for a category or price band; the
// effective per-level percentage scales the base table so level ratios are
// preserved and the levels sum to the override total. Price-range overrides
// take precedence over category overrides, which take precedence over the
// base table total.
//
// A structure that cannot produce a percentage is a configuration error and
// fails loudly; defaulting to zero would mask a broken commission table until
// money reconciliation.
type Resolver struct {
	structure *models.CommissionStructure
	baseTotal float64
}

func NewResolver(structure *models.CommissionStructure) *Resolver {
	total := 0.0
	for level := 1; level <= structure.MaxCommissionLevels; level++ {
		total += structure.CommissionLevels[level]
	}
	return &Resolver{structure: structure, baseTotal: total}
}

// Resolve returns the percentage applied at the given level and the resulting
// commission amount, rounded to the currency's minor-unit precision with
// banker's rounding.
func (r *Resolver) Resolve(level int, subscriptionAmount float64, currency, category string) (float64, float64, error) {
	if level < 1 || level > r.structure.MaxCommissionLevels {
		return 0, 0, fmt.Errorf("%w: level %d, max %d", models.ErrInvalidLevel, level, r.structure.MaxCommissionLevels)
	}

	basePct, ok := r.structure.CommissionLevels[level]
	if !ok {
		return 0, 0, fmt.Errorf("%w: no percentage for level %d", models.ErrInvalidStructure, level)
	}
	if r.baseTotal <= 0 {
		return 0, 0, fmt.Errorf("%w: level table sums to zero", models.ErrInvalidStructure)
	}

	percentage := basePct
	if total, overridden := r.overrideTotal(subscriptionAmount, category); overridden {
		percentage = basePct * total / r.baseTotal
	}

	amount := utils.Percentage(subscriptionAmount, percentage, currency)
	return percentage, amount, nil
}

// overrideTotal finds the total commission rate override applying to this
// subscription, if any. Price-range wins over category.
func (r *Resolver) overrideTotal(amount float64, category string) (float64, bool) {
	for _, o := range r.structure.PriceRangeOverrides {
		if amount >= o.MinAmount && amount < o.MaxAmount {
			return o.Percentage, true
		}
	}

	if category != "" {
		for _, o := range r.structure.CategoryOverrides {
			if o.Category == category {
				return o.Percentage, true
			}
		}
	}

	return 0, false
}
