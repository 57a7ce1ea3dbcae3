package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coachdesk/commission_engine/config"
	"github.com/coachdesk/commission_engine/models"
)

// PayoutRepository stores payout batches. Status changes are guarded by the
// current status so a reconciliation job and an operator clicking "process"
// cannot both settle the same batch.
type PayoutRepository struct {
	collection *mongo.Collection
}

func NewPayoutRepository(client *mongo.Client) *PayoutRepository {
	return &PayoutRepository{
		collection: config.GetCollection(client, "payout_batches"),
	}
}

func (r *PayoutRepository) InsertBatch(ctx context.Context, batch *models.PayoutBatch) error {
	_, err := r.collection.InsertOne(ctx, batch)
	return err
}

func (r *PayoutRepository) GetBatch(ctx context.Context, id string) (*models.PayoutBatch, error) {
	var batch models.PayoutBatch
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&batch)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrBatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// UpdateStatus moves a batch between lifecycle states, guarded by the states
// it may currently be in.
func (r *PayoutRepository) UpdateStatus(ctx context.Context, id string, from []models.BatchStatus, to models.BatchStatus, set bson.M) error {
	if set == nil {
		set = bson.M{}
	}
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
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if count == 0 {
			return models.ErrBatchNotFound
		}
		return models.ErrInvalidTransition
	}
	return nil
}

// ListBatches pages through batches, optionally by status.
func (r *PayoutRepository) ListBatches(ctx context.Context, status models.BatchStatus, page, limit int) ([]models.PayoutBatch, int64, error) {
	query := bson.M{}
	if status != "" {
		query["status"] = status
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := r.collection.Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "requestedAt", Value: -1}}).
		SetSkip(int64((page-1)*limit)).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var batches []models.PayoutBatch
	if err := cursor.All(ctx, &batches); err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

// StaleProcessing returns batches stuck in processing longer than the cutoff,
// for the reconciliation loop.
func (r *PayoutRepository) StaleProcessing(ctx context.Context, olderThan time.Time) ([]models.PayoutBatch, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"status":    models.BatchStatusProcessing,
		"updatedAt": bson.M{"$lt": olderThan},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var batches []models.PayoutBatch
	if err := cursor.All(ctx, &batches); err != nil {
		return nil, err
	}
	return batches, nil
}
