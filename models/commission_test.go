package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntryStatusCanTransition(t *testing.T) {
	cases := []struct {
		from    EntryStatus
		to      EntryStatus
		allowed bool
	}{
		{EntryStatusPending, EntryStatusApproved, true},
		{EntryStatusPending, EntryStatusCancelled, true},
		{EntryStatusPending, EntryStatusPaid, false},
		{EntryStatusApproved, EntryStatusPaid, true},
		{EntryStatusApproved, EntryStatusCancelled, true},
		{EntryStatusApproved, EntryStatusApproved, false},
		{EntryStatusPaid, EntryStatusCancelled, false},
		{EntryStatusPaid, EntryStatusApproved, false},
		{EntryStatusPaid, EntryStatusPending, false},
		{EntryStatusCancelled, EntryStatusApproved, false},
		{EntryStatusCancelled, EntryStatusCancelled, false},
		{EntryStatusApproved, EntryStatusPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.allowed, c.from.CanTransition(c.to),
			"%s -> %s", c.from, c.to)
	}
}

func TestStructureValidate(t *testing.T) {
	valid := &CommissionStructure{
		CommissionLevels:    map[int]float64{1: 5, 2: 3, 3: 2},
		MaxCommissionLevels: 3,
	}
	assert.NoError(t, valid.Validate())

	missing := &CommissionStructure{
		CommissionLevels:    map[int]float64{1: 5, 3: 2},
		MaxCommissionLevels: 3,
	}
	err := missing.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "level 2")

	empty := &CommissionStructure{MaxCommissionLevels: 3}
	assert.Error(t, empty.Validate())

	outOfRange := &CommissionStructure{
		CommissionLevels:    map[int]float64{1: 105},
		MaxCommissionLevels: 1,
	}
	assert.Error(t, outOfRange.Validate())

	badRange := &CommissionStructure{
		CommissionLevels:    map[int]float64{1: 5},
		MaxCommissionLevels: 1,
		PriceRangeOverrides: []PriceRangeOverride{{MinAmount: 100, MaxAmount: 100, Percentage: 10}},
	}
	assert.Error(t, badRange.Validate())
}
