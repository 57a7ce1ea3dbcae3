package services

import (
	"fmt"

	"github.com/coachdesk/commission_engine/models"
)

// Eligibility rule names. These appear verbatim in cancelled entries' notes
// and in the admin eligibility report.
const (
	ReasonMinimumCoachLevel        = "minimumCoachLevel"
	ReasonMinimumPerformanceRating = "minimumPerformanceRating"
	ReasonMinimumActiveDays        = "minimumActiveDays"
	ReasonMinimumMonthlyRevenue    = "minimumMonthlyRevenue"
)

// EvaluateEligibility checks a coach's standing against the platform rules.
// All four rules are evaluated independently and every failing reason is
// returned, not just the first; the admin eligibility report surfaces them
// all at once.
func EvaluateEligibility(standing models.CoachStanding, rules models.EligibilityRule) (bool, []string) {
	var reasons []string

	if standing.Level < rules.MinimumCoachLevel {
		reasons = append(reasons, fmt.Sprintf("%s: has level %d, requires %d",
			ReasonMinimumCoachLevel, standing.Level, rules.MinimumCoachLevel))
	}
	if standing.PerformanceRating < rules.MinimumPerformanceRating {
		reasons = append(reasons, fmt.Sprintf("%s: has rating %.2f, requires %.2f",
			ReasonMinimumPerformanceRating, standing.PerformanceRating, rules.MinimumPerformanceRating))
	}
	if standing.ActiveDays < rules.MinimumActiveDays {
		reasons = append(reasons, fmt.Sprintf("%s: active %d days, requires %d",
			ReasonMinimumActiveDays, standing.ActiveDays, rules.MinimumActiveDays))
	}
	if standing.MonthlyRevenue < rules.MinimumMonthlyRevenue {
		reasons = append(reasons, fmt.Sprintf("%s: monthly revenue %.2f, requires %.2f",
			ReasonMinimumMonthlyRevenue, standing.MonthlyRevenue, rules.MinimumMonthlyRevenue))
	}

	return len(reasons) == 0, reasons
}
