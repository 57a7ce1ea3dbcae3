package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/coachdesk/commission_engine/models"
)

type fakePayoutLedger struct {
	mu      sync.Mutex
	entries map[primitive.ObjectID]*models.CommissionEntry
}

func newFakePayoutLedger() *fakePayoutLedger {
	return &fakePayoutLedger{entries: make(map[primitive.ObjectID]*models.CommissionEntry)}
}

func (f *fakePayoutLedger) add(coachID primitive.ObjectID, amount float64, currency string) primitive.ObjectID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := primitive.NewObjectID()
	f.entries[id] = &models.CommissionEntry{
		ID:               id,
		CoachID:          coachID,
		CommissionAmount: amount,
		Currency:         currency,
		Status:           models.EntryStatusApproved,
		IsActive:         true,
	}
	return id
}

func (f *fakePayoutLedger) ApprovedByCoach(ctx context.Context, coachID primitive.ObjectID) ([]models.CommissionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CommissionEntry
	for _, e := range f.entries {
		if e.CoachID == coachID && e.Status == models.EntryStatusApproved && e.IsActive && e.BatchID == "" {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakePayoutLedger) ClaimForBatch(ctx context.Context, entryIDs []primitive.ObjectID, batchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range entryIDs {
		e, ok := f.entries[id]
		if !ok || e.Status != models.EntryStatusApproved || e.BatchID != "" {
			return models.ErrEntryNotFound
		}
	}
	for _, id := range entryIDs {
		f.entries[id].BatchID = batchID
	}
	return nil
}

func (f *fakePayoutLedger) MarkPaid(ctx context.Context, batchID string, paymentDate time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.BatchID == batchID {
			e.Status = models.EntryStatusPaid
			e.PaymentDate = &paymentDate
		}
	}
	return nil
}

func (f *fakePayoutLedger) ReleaseBatch(ctx context.Context, batchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.BatchID == batchID && e.Status != models.EntryStatusPaid {
			e.BatchID = ""
		}
	}
	return nil
}

func (f *fakePayoutLedger) CoachesWithApproved(ctx context.Context) ([]primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[primitive.ObjectID]bool)
	var out []primitive.ObjectID
	for _, e := range f.entries {
		if e.Status == models.EntryStatusApproved && e.IsActive && e.BatchID == "" && !seen[e.CoachID] {
			seen[e.CoachID] = true
			out = append(out, e.CoachID)
		}
	}
	return out, nil
}

type fakeBatchStore struct {
	mu      sync.Mutex
	batches map[string]*models.PayoutBatch
}

func newFakeBatchStore() *fakeBatchStore {
	return &fakeBatchStore{batches: make(map[string]*models.PayoutBatch)}
}

func (f *fakeBatchStore) InsertBatch(ctx context.Context, batch *models.PayoutBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *batch
	f.batches[batch.ID] = &cp
	return nil
}

func (f *fakeBatchStore) GetBatch(ctx context.Context, id string) (*models.PayoutBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return nil, models.ErrBatchNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBatchStore) UpdateStatus(ctx context.Context, id string, from []models.BatchStatus, to models.BatchStatus, set bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return models.ErrBatchNotFound
	}
	allowed := false
	for _, s := range from {
		if b.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return models.ErrInvalidTransition
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	if ref, ok := set["referenceId"].(string); ok {
		b.ReferenceID = ref
	}
	if note, ok := set["failureNote"].(string); ok {
		b.FailureNote = note
	}
	if settled, ok := set["settledAt"].(time.Time); ok {
		b.SettledAt = &settled
	}
	return nil
}

func (f *fakeBatchStore) StaleProcessing(ctx context.Context, olderThan time.Time) ([]models.PayoutBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PayoutBatch
	for _, b := range f.batches {
		if b.Status == models.BatchStatusProcessing && b.UpdatedAt.Before(olderThan) {
			out = append(out, *b)
		}
	}
	return out, nil
}

type fakeGateway struct {
	payoutFn func(req models.PayoutRequest) (*models.GatewayResult, error)
	statusFn func(batchID string) (*models.GatewayResult, error)
	calls    int
}

func (f *fakeGateway) Payout(ctx context.Context, req models.PayoutRequest) (*models.GatewayResult, error) {
	f.calls++
	return f.payoutFn(req)
}

func (f *fakeGateway) PayoutStatus(ctx context.Context, batchID string) (*models.GatewayResult, error) {
	return f.statusFn(batchID)
}

func succeedingGateway() *fakeGateway {
	return &fakeGateway{
		payoutFn: func(req models.PayoutRequest) (*models.GatewayResult, error) {
			return &models.GatewayResult{Status: models.GatewayStatusSucceeded, ReferenceID: "ref-" + req.BatchID}, nil
		},
		statusFn: func(batchID string) (*models.GatewayResult, error) {
			return &models.GatewayResult{Status: models.GatewayStatusSucceeded, ReferenceID: "ref-" + batchID}, nil
		},
	}
}

func payoutCoach(minimum float64) (*fakeDirectory, primitive.ObjectID) {
	id := primitive.NewObjectID()
	dir := &fakeDirectory{coaches: map[primitive.ObjectID]*models.Coach{
		id: {
			ID: id,
			PayoutSettings: models.PayoutSettings{
				Method:        "bank_transfer",
				Destination:   "acct_123",
				MinimumAmount: minimum,
			},
		},
	}}
	return dir, id
}

func TestCreateBatchesNoFunds(t *testing.T) {
	dir, coachID := payoutCoach(0)
	batcher := NewPayoutBatcher(newFakePayoutLedger(), newFakeBatchStore(), dir, succeedingGateway())

	_, err := batcher.CreateBatches(context.Background(), coachID)
	assert.ErrorIs(t, err, models.ErrNoEligibleFunds)
}

func TestCreateBatchesBelowMinimumLeavesEntriesUnclaimed(t *testing.T) {
	dir, coachID := payoutCoach(100)
	ledger := newFakePayoutLedger()
	id := ledger.add(coachID, 40, "USD")
	batcher := NewPayoutBatcher(ledger, newFakeBatchStore(), dir, succeedingGateway())

	_, err := batcher.CreateBatches(context.Background(), coachID)
	assert.ErrorIs(t, err, models.ErrBelowMinimum)

	// Entry stays approved and unclaimed for a future run
	assert.Equal(t, models.EntryStatusApproved, ledger.entries[id].Status)
	assert.Empty(t, ledger.entries[id].BatchID)
}

func TestCreateBatchesGroupsByCurrency(t *testing.T) {
	dir, coachID := payoutCoach(10)
	ledger := newFakePayoutLedger()
	ledger.add(coachID, 50.25, "USD")
	ledger.add(coachID, 24.75, "USD")
	ledger.add(coachID, 3000, "JPY")
	batcher := NewPayoutBatcher(ledger, newFakeBatchStore(), dir, succeedingGateway())

	batches, err := batcher.CreateBatches(context.Background(), coachID)
	require.NoError(t, err)
	require.Len(t, batches, 2)

	byCurrency := map[string]models.PayoutBatch{}
	for _, b := range batches {
		byCurrency[b.Currency] = b
	}
	assert.Equal(t, 75.0, byCurrency["USD"].TotalAmount)
	assert.Len(t, byCurrency["USD"].EntryIDs, 2)
	assert.Equal(t, 3000.0, byCurrency["JPY"].TotalAmount)
	assert.Equal(t, models.BatchStatusRequested, byCurrency["USD"].Status)
	assert.Equal(t, "bank_transfer", byCurrency["USD"].Method)

	// Every entry is claimed by exactly one batch
	claimed := map[string]int{}
	for _, e := range ledger.entries {
		require.NotEmpty(t, e.BatchID)
		claimed[e.BatchID]++
	}
	assert.Len(t, claimed, 2)

	// A second run finds nothing left
	_, err = batcher.CreateBatches(context.Background(), coachID)
	assert.ErrorIs(t, err, models.ErrNoEligibleFunds)
}

func TestCreateBatchesSkipsGroupBelowMinimum(t *testing.T) {
	dir, coachID := payoutCoach(100)
	ledger := newFakePayoutLedger()
	ledger.add(coachID, 150, "USD")
	small := ledger.add(coachID, 20, "EUR")
	batcher := NewPayoutBatcher(ledger, newFakeBatchStore(), dir, succeedingGateway())

	batches, err := batcher.CreateBatches(context.Background(), coachID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "USD", batches[0].Currency)
	assert.Empty(t, ledger.entries[small].BatchID)
}

func TestProcessBatchSuccessSettlesEntries(t *testing.T) {
	dir, coachID := payoutCoach(0)
	ledger := newFakePayoutLedger()
	id := ledger.add(coachID, 75, "USD")
	store := newFakeBatchStore()
	batcher := NewPayoutBatcher(ledger, store, dir, succeedingGateway())

	batches, err := batcher.CreateBatches(context.Background(), coachID)
	require.NoError(t, err)

	processed, err := batcher.ProcessBatch(context.Background(), batches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, processed.Status)
	assert.Equal(t, "ref-"+batches[0].ID, processed.ReferenceID)
	require.NotNil(t, processed.SettledAt)

	entry := ledger.entries[id]
	assert.Equal(t, models.EntryStatusPaid, entry.Status)
	require.NotNil(t, entry.PaymentDate)
	assert.Equal(t, *processed.SettledAt, *entry.PaymentDate)
}

func TestProcessBatchGatewayFailureReleasesEntries(t *testing.T) {
	dir, coachID := payoutCoach(0)
	ledger := newFakePayoutLedger()
	id := ledger.add(coachID, 75, "USD")
	store := newFakeBatchStore()
	gw := &fakeGateway{
		payoutFn: func(req models.PayoutRequest) (*models.GatewayResult, error) {
			return nil, models.ErrGatewayFailure
		},
	}
	batcher := NewPayoutBatcher(ledger, store, dir, gw)

	batches, err := batcher.CreateBatches(context.Background(), coachID)
	require.NoError(t, err)

	processed, err := batcher.ProcessBatch(context.Background(), batches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusFailed, processed.Status)
	assert.NotEmpty(t, processed.FailureNote)

	// Entries revert to approved and unclaimed so a fresh batch can retry
	assert.Equal(t, models.EntryStatusApproved, ledger.entries[id].Status)
	assert.Empty(t, ledger.entries[id].BatchID)
}

func TestProcessBatchTimeoutStaysProcessing(t *testing.T) {
	dir, coachID := payoutCoach(0)
	ledger := newFakePayoutLedger()
	id := ledger.add(coachID, 75, "USD")
	store := newFakeBatchStore()
	gw := &fakeGateway{
		payoutFn: func(req models.PayoutRequest) (*models.GatewayResult, error) {
			return nil, models.ErrGatewayTimeout
		},
	}
	batcher := NewPayoutBatcher(ledger, store, dir, gw)

	batches, err := batcher.CreateBatches(context.Background(), coachID)
	require.NoError(t, err)

	processed, err := batcher.ProcessBatch(context.Background(), batches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusProcessing, processed.Status)

	// Entries stay claimed: the gateway may have executed the payout
	assert.Equal(t, batches[0].ID, ledger.entries[id].BatchID)
	assert.Equal(t, models.EntryStatusApproved, ledger.entries[id].Status)

	// A processing batch cannot be resubmitted
	_, err = batcher.ProcessBatch(context.Background(), batches[0].ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, 1, gw.calls)
}

func TestReconcileSettlesTimedOutBatch(t *testing.T) {
	dir, coachID := payoutCoach(0)
	ledger := newFakePayoutLedger()
	id := ledger.add(coachID, 75, "USD")
	store := newFakeBatchStore()
	gw := &fakeGateway{
		payoutFn: func(req models.PayoutRequest) (*models.GatewayResult, error) {
			return nil, models.ErrGatewayTimeout
		},
		statusFn: func(batchID string) (*models.GatewayResult, error) {
			return &models.GatewayResult{Status: models.GatewayStatusSucceeded, ReferenceID: "ref-later"}, nil
		},
	}
	batcher := NewPayoutBatcher(ledger, store, dir, gw)

	batches, err := batcher.CreateBatches(context.Background(), coachID)
	require.NoError(t, err)
	_, err = batcher.ProcessBatch(context.Background(), batches[0].ID)
	require.NoError(t, err)

	reconciled, err := batcher.Reconcile(context.Background(), batches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, reconciled.Status)
	assert.Equal(t, "ref-later", reconciled.ReferenceID)
	assert.Equal(t, models.EntryStatusPaid, ledger.entries[id].Status)
	assert.NotNil(t, ledger.entries[id].PaymentDate)
}

func TestReconcileFailsTimedOutBatch(t *testing.T) {
	dir, coachID := payoutCoach(0)
	ledger := newFakePayoutLedger()
	id := ledger.add(coachID, 75, "USD")
	store := newFakeBatchStore()
	gw := &fakeGateway{
		payoutFn: func(req models.PayoutRequest) (*models.GatewayResult, error) {
			return nil, models.ErrGatewayTimeout
		},
		statusFn: func(batchID string) (*models.GatewayResult, error) {
			return &models.GatewayResult{Status: models.GatewayStatusFailed, Message: "insufficient balance"}, nil
		},
	}
	batcher := NewPayoutBatcher(ledger, store, dir, gw)

	batches, err := batcher.CreateBatches(context.Background(), coachID)
	require.NoError(t, err)
	_, err = batcher.ProcessBatch(context.Background(), batches[0].ID)
	require.NoError(t, err)

	reconciled, err := batcher.Reconcile(context.Background(), batches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusFailed, reconciled.Status)
	assert.Equal(t, "insufficient balance", reconciled.FailureNote)
	assert.Equal(t, models.EntryStatusApproved, ledger.entries[id].Status)
	assert.Empty(t, ledger.entries[id].BatchID)
}

func TestReconcileSkipsNonProcessingBatch(t *testing.T) {
	dir, coachID := payoutCoach(0)
	ledger := newFakePayoutLedger()
	ledger.add(coachID, 75, "USD")
	store := newFakeBatchStore()
	gw := succeedingGateway()
	gw.statusFn = func(batchID string) (*models.GatewayResult, error) {
		t.Fatal("status check on a settled batch")
		return nil, nil
	}
	batcher := NewPayoutBatcher(ledger, store, dir, gw)

	batches, err := batcher.CreateBatches(context.Background(), coachID)
	require.NoError(t, err)
	_, err = batcher.ProcessBatch(context.Background(), batches[0].ID)
	require.NoError(t, err)

	reconciled, err := batcher.Reconcile(context.Background(), batches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, reconciled.Status)
}

func TestProcessBatchGatewayPendingKeepsProcessing(t *testing.T) {
	dir, coachID := payoutCoach(0)
	ledger := newFakePayoutLedger()
	id := ledger.add(coachID, 75, "USD")
	store := newFakeBatchStore()
	gw := &fakeGateway{
		payoutFn: func(req models.PayoutRequest) (*models.GatewayResult, error) {
			return &models.GatewayResult{Status: models.GatewayStatusPending, ReferenceID: "ref-pending"}, nil
		},
	}
	batcher := NewPayoutBatcher(ledger, store, dir, gw)

	batches, err := batcher.CreateBatches(context.Background(), coachID)
	require.NoError(t, err)

	processed, err := batcher.ProcessBatch(context.Background(), batches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusProcessing, processed.Status)
	assert.Equal(t, "ref-pending", processed.ReferenceID)
	assert.Equal(t, models.EntryStatusApproved, ledger.entries[id].Status)
}

func TestProcessAllIsolatesCoachFailures(t *testing.T) {
	ledger := newFakePayoutLedger()
	store := newFakeBatchStore()

	goodID := primitive.NewObjectID()
	badID := primitive.NewObjectID()
	dir := &fakeDirectory{coaches: map[primitive.ObjectID]*models.Coach{
		goodID: {ID: goodID, PayoutSettings: models.PayoutSettings{Method: "bank_transfer"}},
		badID:  {ID: badID, PayoutSettings: models.PayoutSettings{Method: "bank_transfer"}},
	}}
	goodEntry := ledger.add(goodID, 100, "USD")
	badEntry := ledger.add(badID, 200, "USD")

	gw := &fakeGateway{
		payoutFn: func(req models.PayoutRequest) (*models.GatewayResult, error) {
			if req.Amount == 200 {
				return nil, models.ErrGatewayFailure
			}
			return &models.GatewayResult{Status: models.GatewayStatusSucceeded, ReferenceID: "ref-ok"}, nil
		},
	}
	batcher := NewPayoutBatcher(ledger, store, dir, gw)

	results := batcher.ProcessAll(context.Background())
	require.Len(t, results, 2)

	byCoach := map[string]models.ProcessAllResult{}
	for _, r := range results {
		byCoach[r.CoachID] = r
	}
	assert.Empty(t, byCoach[goodID.Hex()].Error)
	assert.NotEmpty(t, byCoach[badID.Hex()].Error)

	assert.Equal(t, models.EntryStatusPaid, ledger.entries[goodEntry].Status)
	assert.Equal(t, models.EntryStatusApproved, ledger.entries[badEntry].Status)
	assert.Empty(t, ledger.entries[badEntry].BatchID)
}

func TestReconcileStaleSweepsProcessingBatches(t *testing.T) {
	dir, coachID := payoutCoach(0)
	ledger := newFakePayoutLedger()
	id := ledger.add(coachID, 75, "USD")
	store := newFakeBatchStore()
	gw := &fakeGateway{
		payoutFn: func(req models.PayoutRequest) (*models.GatewayResult, error) {
			return nil, models.ErrGatewayTimeout
		},
		statusFn: func(batchID string) (*models.GatewayResult, error) {
			return &models.GatewayResult{Status: models.GatewayStatusSucceeded, ReferenceID: "ref-swept"}, nil
		},
	}
	batcher := NewPayoutBatcher(ledger, store, dir, gw)

	batches, err := batcher.CreateBatches(context.Background(), coachID)
	require.NoError(t, err)
	_, err = batcher.ProcessBatch(context.Background(), batches[0].ID)
	require.NoError(t, err)

	// Make the batch look stale
	store.mu.Lock()
	store.batches[batches[0].ID].UpdatedAt = time.Now().Add(-time.Hour)
	store.mu.Unlock()

	batcher.ReconcileStale(context.Background(), 10*time.Minute)

	swept, err := store.GetBatch(context.Background(), batches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, swept.Status)
	assert.Equal(t, models.EntryStatusPaid, ledger.entries[id].Status)
}
