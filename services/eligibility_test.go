package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coachdesk/commission_engine/models"
)

func testRules() models.EligibilityRule {
	return models.EligibilityRule{
		MinimumCoachLevel:        2,
		MinimumPerformanceRating: 3.5,
		MinimumActiveDays:        30,
		MinimumMonthlyRevenue:    500,
	}
}

func TestEvaluateEligibilityPasses(t *testing.T) {
	standing := models.CoachStanding{
		Level:             2,
		PerformanceRating: 3.5,
		ActiveDays:        30,
		MonthlyRevenue:    500,
	}
	eligible, reasons := EvaluateEligibility(standing, testRules())
	assert.True(t, eligible)
	assert.Empty(t, reasons)
}

func TestEvaluateEligibilityReturnsAllFailingReasons(t *testing.T) {
	standing := models.CoachStanding{
		Level:             1,
		PerformanceRating: 2.0,
		ActiveDays:        10,
		MonthlyRevenue:    100,
	}
	eligible, reasons := EvaluateEligibility(standing, testRules())
	assert.False(t, eligible)
	assert.Len(t, reasons, 4)
	assert.Contains(t, reasons[0], ReasonMinimumCoachLevel)
	assert.Contains(t, reasons[1], ReasonMinimumPerformanceRating)
	assert.Contains(t, reasons[2], ReasonMinimumActiveDays)
	assert.Contains(t, reasons[3], ReasonMinimumMonthlyRevenue)
}

func TestEvaluateEligibilitySingleFailure(t *testing.T) {
	standing := models.CoachStanding{
		Level:             3,
		PerformanceRating: 4.8,
		ActiveDays:        12,
		MonthlyRevenue:    900,
	}
	eligible, reasons := EvaluateEligibility(standing, testRules())
	assert.False(t, eligible)
	assert.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "active 12 days, requires 30")
}

func TestEvaluateEligibilityZeroRules(t *testing.T) {
	// No rules configured means everyone passes
	eligible, reasons := EvaluateEligibility(models.CoachStanding{}, models.EligibilityRule{})
	assert.True(t, eligible)
	assert.Empty(t, reasons)
}

func TestCoachStandingActiveDays(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	coach := models.Coach{
		Level:    2,
		JoinedAt: now.AddDate(0, 0, -45),
	}
	standing := coach.Standing(now)
	assert.Equal(t, 45, standing.ActiveDays)

	// Zero JoinedAt derives zero active days rather than decades
	standing = (&models.Coach{}).Standing(now)
	assert.Equal(t, 0, standing.ActiveDays)
}
