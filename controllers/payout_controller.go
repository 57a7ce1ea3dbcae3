// controllers/payout_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/coachdesk/commission_engine/models"
	"github.com/coachdesk/commission_engine/repositories"
	"github.com/coachdesk/commission_engine/services"
	"github.com/coachdesk/commission_engine/utils"
)

// PayoutController exposes batch creation, processing, reconciliation and
// the pending-payout views the console renders.
type PayoutController struct {
	batcher *services.PayoutBatcher
	batches *repositories.PayoutRepository
	ledger  *repositories.CommissionRepository
}

func NewPayoutController(batcher *services.PayoutBatcher, batches *repositories.PayoutRepository, ledger *repositories.CommissionRepository) *PayoutController {
	return &PayoutController{
		batcher: batcher,
		batches: batches,
		ledger:  ledger,
	}
}

// CreateBatch groups one coach's approved entries into payout batches
func (pc *PayoutController) CreateBatch(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	coachID, err := primitive.ObjectIDFromHex(c.Param("coachId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid coach id",
		})
	}

	batches, err := pc.batcher.CreateBatches(ctx, coachID)
	if err != nil {
		switch err {
		case models.ErrCoachNotFound:
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Coach not found",
			})
		case models.ErrNoEligibleFunds:
			return c.JSON(http.StatusUnprocessableEntity, models.Response{
				Status:  http.StatusUnprocessableEntity,
				Message: "No approved entries eligible for payout",
			})
		case models.ErrBelowMinimum:
			return c.JSON(http.StatusUnprocessableEntity, models.Response{
				Status:  http.StatusUnprocessableEntity,
				Message: "Payable balance is below the coach's minimum payout amount",
			})
		}
		log.Printf("Error creating payout batch for coach %s: %v", c.Param("coachId"), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create payout batch",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Payout batch created",
		Data:    batches,
	})
}

// ProcessBatch submits a requested batch to the payment gateway
func (pc *PayoutController) ProcessBatch(c echo.Context) error {
	// Allow for the gateway call plus a margin
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	batch, err := pc.batcher.ProcessBatch(ctx, c.Param("id"))
	if err != nil {
		switch err {
		case models.ErrBatchNotFound:
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Payout batch not found",
			})
		case models.ErrInvalidTransition:
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Batch is not in a processable state",
			})
		}
		log.Printf("Error processing payout batch %s: %v", c.Param("id"), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process payout batch",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payout batch processed",
		Data:    batch,
	})
}

// ReconcileBatch resolves a processing batch against the gateway's records
func (pc *PayoutController) ReconcileBatch(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	batch, err := pc.batcher.Reconcile(ctx, c.Param("id"))
	if err != nil {
		if err == models.ErrBatchNotFound {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Payout batch not found",
			})
		}
		log.Printf("Error reconciling payout batch %s: %v", c.Param("id"), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to reconcile payout batch",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payout batch reconciled",
		Data:    batch,
	})
}

// ProcessAll runs batch creation and processing across every coach with an
// approved balance; each coach's outcome is reported independently
func (pc *PayoutController) ProcessAll(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	results := pc.batcher.ProcessAll(ctx)
	if results == nil {
		results = []models.ProcessAllResult{}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Bulk payout run completed",
		Data:    results,
	})
}

// ListBatches pages through payout batches, optionally filtered by status
func (pc *PayoutController) ListBatches(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	page, _ := parsePositiveInt(c.QueryParam("page"), 1)
	limit, _ := parsePositiveInt(c.QueryParam("limit"), 50)
	status := models.BatchStatus(c.QueryParam("status"))

	batches, total, err := pc.batches.ListBatches(ctx, status, page, limit)
	if err != nil {
		log.Printf("Error listing payout batches: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve payout batches",
		})
	}

	if batches == nil {
		batches = []models.PayoutBatch{}
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payout batches retrieved",
		Data: models.PaginatedResponse{
			Items:      batches,
			Page:       page,
			Limit:      limit,
			TotalCount: total,
		},
	})
}

// PendingPayouts lists every coach holding an unclaimed approved balance,
// with the per-currency totals the "process all" action would settle
func (pc *PayoutController) PendingPayouts(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	coachIDs, err := pc.ledger.CoachesWithApproved(ctx)
	if err != nil {
		log.Printf("Error listing payable coaches: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve pending payouts",
		})
	}

	type pendingPayout struct {
		CoachID    string             `json:"coachId"`
		Totals     map[string]float64 `json:"totals"`
		EntryCount int                `json:"entryCount"`
	}

	pending := make([]pendingPayout, 0, len(coachIDs))
	for _, coachID := range coachIDs {
		entries, err := pc.ledger.ApprovedByCoach(ctx, coachID)
		if err != nil {
			log.Printf("Error loading approved entries for coach %s: %v", coachID.Hex(), err)
			continue
		}

		byCurrency := map[string][]float64{}
		for _, e := range entries {
			byCurrency[e.Currency] = append(byCurrency[e.Currency], e.CommissionAmount)
		}
		totals := map[string]float64{}
		for currency, amounts := range byCurrency {
			totals[currency] = utils.SumRounded(amounts, currency)
		}

		pending = append(pending, pendingPayout{
			CoachID:    coachID.Hex(),
			Totals:     totals,
			EntryCount: len(entries),
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Pending payouts retrieved",
		Data:    pending,
	})
}
