package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachdesk/commission_engine/models"
)

func threelevelStructure() *models.CommissionStructure {
	return &models.CommissionStructure{
		Version:             1,
		CommissionLevels:    map[int]float64{1: 5, 2: 3, 3: 2},
		MaxCommissionLevels: 3,
	}
}

func TestResolveBaseTable(t *testing.T) {
	r := NewResolver(threelevelStructure())

	pct, amount, err := r.Resolve(1, 1000, "USD", "")
	require.NoError(t, err)
	assert.Equal(t, 5.0, pct)
	assert.Equal(t, 50.0, amount)

	pct, amount, err = r.Resolve(2, 1000, "USD", "")
	require.NoError(t, err)
	assert.Equal(t, 3.0, pct)
	assert.Equal(t, 30.0, amount)

	pct, amount, err = r.Resolve(3, 1000, "USD", "")
	require.NoError(t, err)
	assert.Equal(t, 2.0, pct)
	assert.Equal(t, 20.0, amount)
}

func TestResolveCategoryOverride(t *testing.T) {
	s := threelevelStructure()
	s.CategoryOverrides = []models.CategoryOverride{
		{Category: "fitness_training", Percentage: 10},
	}
	r := NewResolver(s)

	// Override total equals the base table total, so per-level amounts
	// match the base split
	_, amount, err := r.Resolve(1, 1000, "USD", "fitness_training")
	require.NoError(t, err)
	assert.Equal(t, 50.0, amount)

	_, amount, err = r.Resolve(2, 1000, "USD", "fitness_training")
	require.NoError(t, err)
	assert.Equal(t, 30.0, amount)

	_, amount, err = r.Resolve(3, 1000, "USD", "fitness_training")
	require.NoError(t, err)
	assert.Equal(t, 20.0, amount)

	// A different total scales every level proportionally
	s.CategoryOverrides[0].Percentage = 20
	r = NewResolver(s)
	pct, amount, err := r.Resolve(1, 1000, "USD", "fitness_training")
	require.NoError(t, err)
	assert.Equal(t, 10.0, pct)
	assert.Equal(t, 100.0, amount)

	// Other categories keep the base table
	_, amount, err = r.Resolve(1, 1000, "USD", "nutrition")
	require.NoError(t, err)
	assert.Equal(t, 50.0, amount)
}

func TestResolvePriceRangeWinsOverCategory(t *testing.T) {
	s := threelevelStructure()
	s.CategoryOverrides = []models.CategoryOverride{
		{Category: "fitness_training", Percentage: 20},
	}
	s.PriceRangeOverrides = []models.PriceRangeOverride{
		{MinAmount: 500, MaxAmount: 2000, Percentage: 5},
	}
	r := NewResolver(s)

	// Inside the price band, the band total applies even though the
	// category also matches
	pct, amount, err := r.Resolve(1, 1000, "USD", "fitness_training")
	require.NoError(t, err)
	assert.Equal(t, 2.5, pct)
	assert.Equal(t, 25.0, amount)

	// Below the band, the category override applies
	pct, _, err = r.Resolve(1, 400, "USD", "fitness_training")
	require.NoError(t, err)
	assert.Equal(t, 10.0, pct)

	// MaxAmount is exclusive
	pct, _, err = r.Resolve(1, 2000, "USD", "fitness_training")
	require.NoError(t, err)
	assert.Equal(t, 10.0, pct)
}

func TestResolveInvalidLevel(t *testing.T) {
	r := NewResolver(threelevelStructure())

	_, _, err := r.Resolve(0, 1000, "USD", "")
	assert.ErrorIs(t, err, models.ErrInvalidLevel)

	_, _, err = r.Resolve(4, 1000, "USD", "")
	assert.ErrorIs(t, err, models.ErrInvalidLevel)
}

func TestResolveMissingLevelEntry(t *testing.T) {
	s := &models.CommissionStructure{
		CommissionLevels:    map[int]float64{1: 5, 3: 2},
		MaxCommissionLevels: 3,
	}
	r := NewResolver(s)

	_, _, err := r.Resolve(2, 1000, "USD", "")
	assert.ErrorIs(t, err, models.ErrInvalidStructure)
}

func TestResolveZeroTotalTable(t *testing.T) {
	s := &models.CommissionStructure{
		CommissionLevels:    map[int]float64{1: 0, 2: 0},
		MaxCommissionLevels: 2,
	}
	r := NewResolver(s)

	_, _, err := r.Resolve(1, 1000, "USD", "")
	assert.ErrorIs(t, err, models.ErrInvalidStructure)
}

func TestResolveRounding(t *testing.T) {
	s := &models.CommissionStructure{
		CommissionLevels:    map[int]float64{1: 3.33},
		MaxCommissionLevels: 1,
	}
	r := NewResolver(s)

	// 99.99 * 3.33% = 3.329667 -> 3.33 at cent precision
	_, amount, err := r.Resolve(1, 99.99, "USD", "")
	require.NoError(t, err)
	assert.Equal(t, 3.33, amount)

	// Zero-decimal currency rounds to whole units with banker's rounding
	_, amount, err = r.Resolve(1, 10000, "JPY", "")
	require.NoError(t, err)
	assert.Equal(t, 333.0, amount)
}
