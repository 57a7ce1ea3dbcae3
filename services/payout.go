package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/coachdesk/commission_engine/models"
	"github.com/coachdesk/commission_engine/utils"
)

// PayoutLedger is the slice of the commission store the batcher needs.
type PayoutLedger interface {
	ApprovedByCoach(ctx context.Context, coachID primitive.ObjectID) ([]models.CommissionEntry, error)
	ClaimForBatch(ctx context.Context, entryIDs []primitive.ObjectID, batchID string) error
	MarkPaid(ctx context.Context, batchID string, paymentDate time.Time) error
	ReleaseBatch(ctx context.Context, batchID string) error
	CoachesWithApproved(ctx context.Context) ([]primitive.ObjectID, error)
}

// BatchStore persists payout batches.
type BatchStore interface {
	InsertBatch(ctx context.Context, batch *models.PayoutBatch) error
	GetBatch(ctx context.Context, id string) (*models.PayoutBatch, error)
	UpdateStatus(ctx context.Context, id string, from []models.BatchStatus, to models.BatchStatus, set bson.M) error
	StaleProcessing(ctx context.Context, olderThan time.Time) ([]models.PayoutBatch, error)
}

// PayoutBatcher groups approved ledger entries into per-coach, per-currency
// settlement batches and drives them through the gateway.
type PayoutBatcher struct {
	ledger    PayoutLedger
	batches   BatchStore
	directory Directory
	gateway   Gateway
}

func NewPayoutBatcher(ledger PayoutLedger, batches BatchStore, directory Directory, gateway Gateway) *PayoutBatcher {
	return &PayoutBatcher{
		ledger:    ledger,
		batches:   batches,
		directory: directory,
		gateway:   gateway,
	}
}

// CreateBatches collects the coach's approved, unclaimed entries into one
// batch per currency. Every currency group must clear the coach's minimum
// payout amount; groups below it are left untouched. Returns
// ErrNoEligibleFunds when nothing is payable at all and ErrBelowMinimum when
// funds exist but no group reaches the minimum.
func (b *PayoutBatcher) CreateBatches(ctx context.Context, coachID primitive.ObjectID) ([]models.PayoutBatch, error) {
	coach, err := b.directory.GetCoach(ctx, coachID)
	if err != nil {
		return nil, err
	}

	entries, err := b.ledger.ApprovedByCoach(ctx, coachID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, models.ErrNoEligibleFunds
	}

	byCurrency := make(map[string][]models.CommissionEntry)
	for _, e := range entries {
		byCurrency[e.Currency] = append(byCurrency[e.Currency], e)
	}

	var created []models.PayoutBatch
	for currency, group := range byCurrency {
		amounts := make([]float64, len(group))
		entryIDs := make([]primitive.ObjectID, len(group))
		for i, e := range group {
			amounts[i] = e.CommissionAmount
			entryIDs[i] = e.ID
		}
		total := utils.SumRounded(amounts, currency)

		if total < coach.PayoutSettings.MinimumAmount {
			continue
		}

		now := time.Now()
		batch := models.PayoutBatch{
			ID:          uuid.NewString(),
			CoachID:     coachID,
			EntryIDs:    entryIDs,
			TotalAmount: total,
			Currency:    currency,
			Method:      coach.PayoutSettings.Method,
			Destination: coach.PayoutSettings.Destination,
			Status:      models.BatchStatusRequested,
			RequestedAt: now,
			UpdatedAt:   now,
		}

		// Claim entries first; if another batch won the race, skip this group
		if err := b.ledger.ClaimForBatch(ctx, entryIDs, batch.ID); err != nil {
			log.Printf("Batch claim conflict for coach %s currency %s: %v", coachID.Hex(), currency, err)
			continue
		}
		if err := b.batches.InsertBatch(ctx, &batch); err != nil {
			b.ledger.ReleaseBatch(ctx, batch.ID)
			return nil, err
		}

		created = append(created, batch)
	}

	if len(created) == 0 {
		return nil, models.ErrBelowMinimum
	}
	return created, nil
}

// ProcessBatch submits a requested batch to the gateway.
//
// Outcomes: succeeded settles the entries as paid; failed releases them back
// to approved for a later retry; timeout or gateway-pending leaves the batch
// in processing, and only a reconciliation status check may settle it — never
// a blind resubmit, which could pay twice.
func (b *PayoutBatcher) ProcessBatch(ctx context.Context, batchID string) (*models.PayoutBatch, error) {
	batch, err := b.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	// Only a requested batch may be submitted. A failed batch's entries were
	// released back to approved; retry by creating a fresh batch.
	if err := b.batches.UpdateStatus(ctx, batchID,
		[]models.BatchStatus{models.BatchStatusRequested},
		models.BatchStatusProcessing, nil); err != nil {
		return nil, err
	}

	result, err := b.gateway.Payout(ctx, models.PayoutRequest{
		BatchID:        batch.ID,
		Amount:         batch.TotalAmount,
		Currency:       batch.Currency,
		Method:         batch.Method,
		Destination:    batch.Destination,
		IdempotencyKey: batch.ID,
	})

	switch {
	case err == nil:
		return b.settle(ctx, batch, result)
	case errors.Is(err, models.ErrGatewayTimeout):
		// Ambiguous outcome: the gateway may still have executed the payout.
		// Leave processing for the reconciler.
		log.Printf("Gateway timeout for batch %s, leaving in processing for reconciliation", batch.ID)
		return b.batches.GetBatch(ctx, batchID)
	default:
		log.Printf("Gateway failure for batch %s: %v", batch.ID, err)
		if ferr := b.fail(ctx, batch.ID, err.Error()); ferr != nil {
			return nil, ferr
		}
		return b.batches.GetBatch(ctx, batchID)
	}
}

// Reconcile resolves a processing batch by asking the gateway for its
// definitive status.
func (b *PayoutBatcher) Reconcile(ctx context.Context, batchID string) (*models.PayoutBatch, error) {
	batch, err := b.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != models.BatchStatusProcessing {
		return batch, nil
	}

	result, err := b.gateway.PayoutStatus(ctx, batch.ID)
	if err != nil {
		if errors.Is(err, models.ErrGatewayFailure) {
			if ferr := b.fail(ctx, batch.ID, err.Error()); ferr != nil {
				return nil, ferr
			}
			return b.batches.GetBatch(ctx, batchID)
		}
		// Timeout or transport error: try again on the next reconciliation run
		return nil, err
	}

	switch result.Status {
	case models.GatewayStatusSucceeded:
		return b.settle(ctx, batch, result)
	case models.GatewayStatusFailed:
		if err := b.fail(ctx, batch.ID, result.Message); err != nil {
			return nil, err
		}
		return b.batches.GetBatch(ctx, batchID)
	default:
		// Still pending at the gateway
		return batch, nil
	}
}

// ReconcileStale sweeps batches stuck in processing, called from the
// background reconciliation loop.
func (b *PayoutBatcher) ReconcileStale(ctx context.Context, olderThan time.Duration) {
	batches, err := b.batches.StaleProcessing(ctx, time.Now().Add(-olderThan))
	if err != nil {
		log.Printf("Reconciliation sweep failed: %v", err)
		return
	}
	for _, batch := range batches {
		if _, err := b.Reconcile(ctx, batch.ID); err != nil {
			log.Printf("Failed to reconcile batch %s: %v", batch.ID, err)
		}
	}
}

// ProcessAll runs batch creation and processing for every coach holding an
// approved balance. Each coach succeeds or fails independently; one coach's
// gateway failure never blocks the rest.
func (b *PayoutBatcher) ProcessAll(ctx context.Context) []models.ProcessAllResult {
	coachIDs, err := b.ledger.CoachesWithApproved(ctx)
	if err != nil {
		log.Printf("Process-all could not list payable coaches: %v", err)
		return nil
	}

	results := make([]models.ProcessAllResult, 0, len(coachIDs))
	for _, coachID := range coachIDs {
		batches, err := b.CreateBatches(ctx, coachID)
		if err != nil {
			results = append(results, models.ProcessAllResult{
				CoachID: coachID.Hex(),
				Error:   err.Error(),
			})
			continue
		}
		for _, batch := range batches {
			processed, err := b.ProcessBatch(ctx, batch.ID)
			result := models.ProcessAllResult{
				CoachID: coachID.Hex(),
				BatchID: batch.ID,
				Amount:  batch.TotalAmount,
			}
			if err != nil {
				result.Error = err.Error()
			} else if processed.Status == models.BatchStatusFailed {
				result.Error = processed.FailureNote
			}
			results = append(results, result)
		}
	}
	return results
}

func (b *PayoutBatcher) settle(ctx context.Context, batch *models.PayoutBatch, result *models.GatewayResult) (*models.PayoutBatch, error) {
	if result.Status == models.GatewayStatusPending {
		// Accepted but not settled; record the reference and wait
		err := b.batches.UpdateStatus(ctx, batch.ID,
			[]models.BatchStatus{models.BatchStatusProcessing},
			models.BatchStatusProcessing,
			bson.M{"referenceId": result.ReferenceID})
		if err != nil && err != models.ErrInvalidTransition {
			return nil, err
		}
		return b.batches.GetBatch(ctx, batch.ID)
	}
	if result.Status == models.GatewayStatusFailed {
		if err := b.fail(ctx, batch.ID, result.Message); err != nil {
			return nil, err
		}
		return b.batches.GetBatch(ctx, batch.ID)
	}

	settledAt := time.Now()
	if err := b.ledger.MarkPaid(ctx, batch.ID, settledAt); err != nil {
		return nil, err
	}
	if err := b.batches.UpdateStatus(ctx, batch.ID,
		[]models.BatchStatus{models.BatchStatusProcessing},
		models.BatchStatusCompleted,
		bson.M{"referenceId": result.ReferenceID, "settledAt": settledAt}); err != nil {
		return nil, err
	}

	log.Printf("Batch %s settled: %.2f %s to coach %s", batch.ID, batch.TotalAmount, batch.Currency, batch.CoachID.Hex())
	return b.batches.GetBatch(ctx, batch.ID)
}

// fail marks the batch failed and releases its entries back to approved so
// the next batch run can retry them without re-deriving eligibility.
func (b *PayoutBatcher) fail(ctx context.Context, batchID, note string) error {
	if err := b.ledger.ReleaseBatch(ctx, batchID); err != nil {
		return err
	}
	return b.batches.UpdateStatus(ctx, batchID,
		[]models.BatchStatus{models.BatchStatusProcessing},
		models.BatchStatusFailed,
		bson.M{"failureNote": note})
}
