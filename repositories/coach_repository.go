package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coachdesk/commission_engine/config"
	"github.com/coachdesk/commission_engine/models"
	"github.com/coachdesk/commission_engine/utils"
)

// CoachRepository is the referral directory: coach records, referral codes
// and the upline chain the distribution engine walks.
type CoachRepository struct {
	collection *mongo.Collection
}

func NewCoachRepository(client *mongo.Client) *CoachRepository {
	return &CoachRepository{
		collection: config.GetCollection(client, "coaches"),
	}
}

// GetCoach fetches one coach by id.
func (r *CoachRepository) GetCoach(ctx context.Context, id primitive.ObjectID) (*models.Coach, error) {
	var coach models.Coach
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&coach)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrCoachNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coach, nil
}

// Chain walks referredBy pointers upward from the paying coach and returns
// the upline coaches in order (index 0 = direct referrer). The walk stops at
// maxLevels, at a missing referrer, or on a cycle.
func (r *CoachRepository) Chain(ctx context.Context, coachID primitive.ObjectID, maxLevels int) ([]models.Coach, error) {
	coach, err := r.GetCoach(ctx, coachID)
	if err != nil {
		return nil, err
	}

	seen := map[primitive.ObjectID]bool{coachID: true}
	chain := make([]models.Coach, 0, maxLevels)
	current := coach

	for len(chain) < maxLevels {
		if current.ReferredBy == nil {
			break
		}
		if seen[*current.ReferredBy] {
			// Cycle in the directory data; stop rather than loop forever
			break
		}

		upline, err := r.GetCoach(ctx, *current.ReferredBy)
		if err == models.ErrCoachNotFound {
			break
		}
		if err != nil {
			return nil, err
		}

		seen[upline.ID] = true
		chain = append(chain, *upline)
		current = upline
	}

	return chain, nil
}

// CreateCoach registers a coach with a fresh referral code. Retries the code
// generation a few times on a unique-index collision.
func (r *CoachRepository) CreateCoach(ctx context.Context, coach *models.Coach) error {
	coach.ID = primitive.NewObjectID()
	now := time.Now()
	coach.CreatedAt = now
	coach.UpdatedAt = now
	if coach.JoinedAt.IsZero() {
		coach.JoinedAt = now
	}
	coach.IsActive = true

	for attempt := 0; attempt < 3; attempt++ {
		code, err := utils.GenerateCoachReferralCode()
		if err != nil {
			return err
		}
		coach.ReferralCode = code

		_, err = r.collection.InsertOne(ctx, coach)
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return err
		}
	}
	return fmt.Errorf("could not generate a unique referral code for %s", coach.Email)
}

// FindByReferralCode resolves a referral code to its owner.
func (r *CoachRepository) FindByReferralCode(ctx context.Context, code string) (*models.Coach, error) {
	var coach models.Coach
	err := r.collection.FindOne(ctx, bson.M{"referralCode": code}).Decode(&coach)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrCoachNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coach, nil
}

// ListCoaches pages through the directory.
func (r *CoachRepository) ListCoaches(ctx context.Context, page, limit int) ([]models.Coach, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page-1)*limit)).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var coaches []models.Coach
	if err := cursor.All(ctx, &coaches); err != nil {
		return nil, 0, err
	}
	return coaches, total, nil
}

// TeamSize counts the direct downline of each coach in one aggregation, for
// the analytics top-performers view.
func (r *CoachRepository) TeamSize(ctx context.Context, coachID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"referredBy": coachID})
}
