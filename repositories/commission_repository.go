package repositories

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coachdesk/commission_engine/config"
	"github.com/coachdesk/commission_engine/models"
)

// CommissionRepository is the ledger store. Entries are append-favoring:
// created once by the distribution engine and mutated only through guarded
// status transitions.
type CommissionRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewCommissionRepository(client *mongo.Client) *CommissionRepository {
	return &CommissionRepository{
		client:     client,
		collection: config.GetCollection(client, "commission_entries"),
	}
}

// FindByEvent returns the entries already written for a billing event,
// identified by its idempotency key (subscriptionId, periodStart).
func (r *CommissionRepository) FindByEvent(ctx context.Context, subscriptionID primitive.ObjectID, periodStart time.Time) ([]models.CommissionEntry, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"subscriptionId": subscriptionID,
		"periodStart":    periodStart,
	}, options.Find().SetSort(bson.D{{Key: "level", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []models.CommissionEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// InsertEntries writes all entries for one billing event atomically. Partial
// writes are disallowed; on failure the whole event is retried from scratch,
// which the unique (subscriptionId, level, periodStart) index makes safe.
// Multi-document transactions need a replica set; on a standalone Mongo we
// fall back to an ordered InsertMany and lean on the unique index alone.
func (r *CommissionRepository) InsertEntries(ctx context.Context, entries []models.CommissionEntry) error {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]interface{}, len(entries))
	for i := range entries {
		docs[i] = entries[i]
	}

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return r.collection.InsertMany(sessCtx, docs)
	})
	if err != nil && strings.Contains(err.Error(), "Transaction numbers are only allowed") {
		log.Printf("Mongo transactions unavailable, falling back to ordered insert")
		_, err = r.collection.InsertMany(ctx, docs)
	}
	return err
}

// IsDuplicateKey reports whether an insert failed on the event unique index,
// meaning another worker already wrote this event's entries.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// GetEntry fetches one ledger entry by id.
func (r *CommissionRepository) GetEntry(ctx context.Context, id primitive.ObjectID) (*models.CommissionEntry, error) {
	var entry models.CommissionEntry
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// transition applies one guarded status change. The filter includes the
// allowed source statuses, so a stale admin action can never move an entry
// backwards or resurrect a paid one.
func (r *CommissionRepository) transition(ctx context.Context, id primitive.ObjectID, from []models.EntryStatus, to models.EntryStatus, set bson.M) error {
	set["status"] = to
	set["updatedAt"] = time.Now()

	res, err := r.collection.UpdateOne(ctx, bson.M{
		"_id":    id,
		"status": bson.M{"$in": from},
	}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Distinguish missing entry from disallowed transition
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if count == 0 {
			return models.ErrEntryNotFound
		}
		return models.ErrInvalidTransition
	}
	return nil
}

// Approve promotes a pending entry to approved.
func (r *CommissionRepository) Approve(ctx context.Context, id primitive.ObjectID, note string) error {
	set := bson.M{}
	if note != "" {
		set["notes"] = note
	}
	return r.transition(ctx, id, []models.EntryStatus{models.EntryStatusPending}, models.EntryStatusApproved, set)
}

// Cancel voids a pending or approved entry with an audit reason.
func (r *CommissionRepository) Cancel(ctx context.Context, id primitive.ObjectID, reason string) error {
	return r.transition(ctx, id,
		[]models.EntryStatus{models.EntryStatusPending, models.EntryStatusApproved},
		models.EntryStatusCancelled,
		bson.M{"notes": reason})
}

// ApprovedByCoach returns the active approved entries available for payout,
// excluding entries already claimed by a batch.
func (r *CommissionRepository) ApprovedByCoach(ctx context.Context, coachID primitive.ObjectID) ([]models.CommissionEntry, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"coachId":  coachID,
		"status":   models.EntryStatusApproved,
		"isActive": true,
		"$or": []bson.M{
			{"batchId": ""},
			{"batchId": bson.M{"$exists": false}},
		},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []models.CommissionEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ClaimForBatch stamps the batch id onto the selected entries. The filter
// repeats the approved+unclaimed condition, so an entry can never end up in
// two simultaneously processing batches; a short claim means another batch
// won the race and the caller must abort.
func (r *CommissionRepository) ClaimForBatch(ctx context.Context, entryIDs []primitive.ObjectID, batchID string) error {
	res, err := r.collection.UpdateMany(ctx, bson.M{
		"_id":      bson.M{"$in": entryIDs},
		"status":   models.EntryStatusApproved,
		"isActive": true,
		"$or": []bson.M{
			{"batchId": ""},
			{"batchId": bson.M{"$exists": false}},
		},
	}, bson.M{"$set": bson.M{
		"batchId":   batchID,
		"updatedAt": time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.ModifiedCount != int64(len(entryIDs)) {
		// Roll the partial claim back before reporting the conflict
		r.ReleaseBatch(ctx, batchID)
		return fmt.Errorf("claimed %d of %d entries for batch %s", res.ModifiedCount, len(entryIDs), batchID)
	}
	return nil
}

// MarkPaid settles every entry in a batch and stamps the payment date.
func (r *CommissionRepository) MarkPaid(ctx context.Context, batchID string, paymentDate time.Time) error {
	_, err := r.collection.UpdateMany(ctx, bson.M{
		"batchId": batchID,
		"status":  models.EntryStatusApproved,
	}, bson.M{"$set": bson.M{
		"status":      models.EntryStatusPaid,
		"paymentDate": paymentDate,
		"updatedAt":   time.Now(),
	}})
	return err
}

// ReleaseBatch unclaims a failed batch's entries. They stay approved, not
// pending, so a retry does not re-derive eligibility.
func (r *CommissionRepository) ReleaseBatch(ctx context.Context, batchID string) error {
	_, err := r.collection.UpdateMany(ctx, bson.M{
		"batchId": batchID,
		"status":  models.EntryStatusApproved,
	}, bson.M{"$set": bson.M{
		"batchId":   "",
		"updatedAt": time.Now(),
	}})
	return err
}

// List pages through ledger entries for the admin console.
func (r *CommissionRepository) List(ctx context.Context, filter models.EntryFilter) ([]models.CommissionEntry, int64, error) {
	query := bson.M{}
	if filter.CoachID != "" {
		coachID, err := primitive.ObjectIDFromHex(filter.CoachID)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid coach id: %w", err)
		}
		query["coachId"] = coachID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Currency != "" {
		query["currency"] = filter.Currency
	}
	if filter.Month != 0 {
		query["month"] = filter.Month
	}
	if filter.Year != 0 {
		query["year"] = filter.Year
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 200 {
		limit = 50
	}

	cursor, err := r.collection.Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page-1)*limit)).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var entries []models.CommissionEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// CoachesWithApproved returns the distinct coaches holding unclaimed approved
// entries, for the bulk "process all" payout action.
func (r *CommissionRepository) CoachesWithApproved(ctx context.Context) ([]primitive.ObjectID, error) {
	raw, err := r.collection.Distinct(ctx, "coachId", bson.M{
		"status":   models.EntryStatusApproved,
		"isActive": true,
		"$or": []bson.M{
			{"batchId": ""},
			{"batchId": bson.M{"$exists": false}},
		},
	})
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
