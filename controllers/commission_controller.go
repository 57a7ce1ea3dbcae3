// controllers/commission_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/coachdesk/commission_engine/models"
	"github.com/coachdesk/commission_engine/repositories"
	"github.com/coachdesk/commission_engine/services"
)

// CommissionController drives the ledger: billing-event ingestion, entry
// listing and the approve/cancel admin actions.
type CommissionController struct {
	engine     *services.DistributionEngine
	ledger     *repositories.CommissionRepository
	coaches    *repositories.CoachRepository
	structures *repositories.StructureRepository
}

func NewCommissionController(engine *services.DistributionEngine, ledger *repositories.CommissionRepository, coaches *repositories.CoachRepository, structures *repositories.StructureRepository) *CommissionController {
	return &CommissionController{
		engine:     engine,
		ledger:     ledger,
		coaches:    coaches,
		structures: structures,
	}
}

// IngestBillingEvent receives a subscription charge/renewal webhook and runs
// the distribution. Redeliveries are safe; the existing entries come back
// with a 200 either way.
func (cc *CommissionController) IngestBillingEvent(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var req models.BillingEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid billing event",
			Data:    err.Error(),
		})
	}

	event, err := req.ToEvent()
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid subscription or coach id",
		})
	}

	entries, err := cc.engine.Distribute(ctx, event)
	if err != nil {
		switch err {
		case models.ErrCoachNotFound:
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Paying coach not found in referral directory",
			})
		case models.ErrDistributionLocked:
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Billing event is already being processed",
			})
		}
		log.Printf("Distribution failed for subscription %s: %v", req.SubscriptionID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to distribute commissions",
			Data:    err.Error(),
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Billing event processed",
		Data:    entries,
	})
}

// ListEntries pages through the ledger with the console's filters
func (cc *CommissionController) ListEntries(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var filter models.EntryFilter
	if err := c.Bind(&filter); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid query parameters",
		})
	}

	entries, total, err := cc.ledger.List(ctx, filter)
	if err != nil {
		log.Printf("Error listing commission entries: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve commission entries",
		})
	}

	if entries == nil {
		entries = []models.CommissionEntry{}
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission entries retrieved",
		Data: models.PaginatedResponse{
			Items:      entries,
			Page:       filter.Page,
			Limit:      filter.Limit,
			TotalCount: total,
		},
	})
}

// ApproveEntries promotes pending entries to approved in bulk. Each entry
// succeeds or fails on its own; the response lists the failures.
func (cc *CommissionController) ApproveEntries(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var req models.ApproveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "At least one entry id is required",
		})
	}

	failures := map[string]string{}
	approved := 0
	for _, idHex := range req.EntryIDs {
		id, err := primitive.ObjectIDFromHex(idHex)
		if err != nil {
			failures[idHex] = "invalid id"
			continue
		}
		if err := cc.ledger.Approve(ctx, id, req.Notes); err != nil {
			failures[idHex] = err.Error()
			continue
		}
		approved++
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Approval processed",
		Data: map[string]interface{}{
			"approved": approved,
			"failures": failures,
		},
	})
}

// CancelEntry voids one entry with an audit reason
func (cc *CommissionController) CancelEntry(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid entry id",
		})
	}

	var req models.CancelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Cancellation reason is required",
		})
	}

	if err := cc.ledger.Cancel(ctx, id, req.Reason); err != nil {
		switch err {
		case models.ErrEntryNotFound:
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Commission entry not found",
			})
		case models.ErrInvalidTransition:
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Entry cannot be cancelled in its current status",
			})
		}
		log.Printf("Error cancelling entry %s: %v", c.Param("id"), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to cancel entry",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission entry cancelled",
	})
}

// EligibilityReport evaluates one coach (or a page of coaches) against the
// current rules, listing every failing rule per coach.
func (cc *CommissionController) EligibilityReport(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rules, err := cc.structures.GetRules(ctx)
	if err != nil {
		log.Printf("Error fetching eligibility rules: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve eligibility rules",
		})
	}

	now := time.Now()

	if coachIDHex := c.QueryParam("coachId"); coachIDHex != "" {
		coachID, err := primitive.ObjectIDFromHex(coachIDHex)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid coach id",
			})
		}
		coach, err := cc.coaches.GetCoach(ctx, coachID)
		if err != nil {
			if err == models.ErrCoachNotFound {
				return c.JSON(http.StatusNotFound, models.Response{
					Status:  http.StatusNotFound,
					Message: "Coach not found",
				})
			}
			log.Printf("Error fetching coach %s: %v", coachIDHex, err)
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to retrieve coach",
			})
		}

		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Eligibility report generated",
			Data:    buildReport(*coach, *rules, now),
		})
	}

	page, _ := parsePositiveInt(c.QueryParam("page"), 1)
	limit, _ := parsePositiveInt(c.QueryParam("limit"), 50)

	coaches, total, err := cc.coaches.ListCoaches(ctx, page, limit)
	if err != nil {
		log.Printf("Error listing coaches: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve coaches",
		})
	}

	reports := make([]models.EligibilityReport, 0, len(coaches))
	for _, coach := range coaches {
		reports = append(reports, buildReport(coach, *rules, now))
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Eligibility report generated",
		Data: models.PaginatedResponse{
			Items:      reports,
			Page:       page,
			Limit:      limit,
			TotalCount: total,
		},
	})
}

func parsePositiveInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback, err
	}
	return v, nil
}

func buildReport(coach models.Coach, rules models.EligibilityRule, now time.Time) models.EligibilityReport {
	standing := coach.Standing(now)
	eligible, reasons := services.EvaluateEligibility(standing, rules)
	if reasons == nil {
		reasons = []string{}
	}
	return models.EligibilityReport{
		CoachID:        coach.ID,
		CoachName:      coach.FullName,
		Eligible:       eligible,
		FailingReasons: reasons,
		Standing:       standing,
		GeneratedAt:    now,
	}
}
