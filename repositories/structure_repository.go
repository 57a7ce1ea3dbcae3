package repositories

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coachdesk/commission_engine/config"
	"github.com/coachdesk/commission_engine/models"
)

const (
	activeStructureCacheKey = "commission:structure:active"
	eligibilityCacheKey     = "commission:eligibility:rules"
	configCacheTTL          = 10 * time.Minute
)

// StructureRepository stores the versioned commission structures and the
// eligibility rules. Both are read on every billing event and edited rarely,
// so reads go through Redis with explicit invalidation on admin edits.
type StructureRepository struct {
	structures *mongo.Collection
	rules      *mongo.Collection
	cache      *redis.Client
}

func NewStructureRepository(client *mongo.Client, cache *redis.Client) *StructureRepository {
	return &StructureRepository{
		structures: config.GetCollection(client, "commission_structures"),
		rules:      config.GetCollection(client, "eligibility_rules"),
		cache:      cache,
	}
}

// ActiveStructure returns the structure new billing events resolve against.
func (r *StructureRepository) ActiveStructure(ctx context.Context) (*models.CommissionStructure, error) {
	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, activeStructureCacheKey).Result(); err == nil {
			var s models.CommissionStructure
			if err := json.Unmarshal([]byte(cached), &s); err == nil {
				return &s, nil
			}
		}
	}

	var s models.CommissionStructure
	err := r.structures.FindOne(ctx, bson.M{"isActive": true},
		options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})).Decode(&s)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrNoActiveStructure
	}
	if err != nil {
		return nil, err
	}

	r.cacheSet(ctx, activeStructureCacheKey, s)
	return &s, nil
}

// CreateStructure stores a new structure version (inactive until activated).
func (r *StructureRepository) CreateStructure(ctx context.Context, s *models.CommissionStructure) error {
	if err := s.Validate(); err != nil {
		return err
	}

	// Next version number from the current maximum
	var latest models.CommissionStructure
	err := r.structures.FindOne(ctx, bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})).Decode(&latest)
	switch err {
	case nil:
		s.Version = latest.Version + 1
	case mongo.ErrNoDocuments:
		s.Version = 1
	default:
		return err
	}

	s.ID = primitive.NewObjectID()
	s.IsActive = false
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err = r.structures.InsertOne(ctx, s)
	return err
}

// ActivateVersion makes one structure version active and deactivates the
// rest. Already-written ledger entries keep their snapshotted values.
func (r *StructureRepository) ActivateVersion(ctx context.Context, version int) error {
	res, err := r.structures.UpdateOne(ctx, bson.M{"version": version}, bson.M{
		"$set": bson.M{"isActive": true, "updatedAt": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNoActiveStructure
	}

	_, err = r.structures.UpdateMany(ctx, bson.M{"version": bson.M{"$ne": version}}, bson.M{
		"$set": bson.M{"isActive": false, "updatedAt": time.Now()},
	})
	if err != nil {
		return err
	}

	r.invalidate(ctx, activeStructureCacheKey)
	return nil
}

// ListStructures returns every stored version, newest first.
func (r *StructureRepository) ListStructures(ctx context.Context) ([]models.CommissionStructure, error) {
	cursor, err := r.structures.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "version", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var structures []models.CommissionStructure
	if err := cursor.All(ctx, &structures); err != nil {
		return nil, err
	}
	return structures, nil
}

// GetRules returns the platform eligibility rules; zero-valued rules (no
// minimums) if none were ever configured.
func (r *StructureRepository) GetRules(ctx context.Context) (*models.EligibilityRule, error) {
	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, eligibilityCacheKey).Result(); err == nil {
			var rule models.EligibilityRule
			if err := json.Unmarshal([]byte(cached), &rule); err == nil {
				return &rule, nil
			}
		}
	}

	var rule models.EligibilityRule
	err := r.rules.FindOne(ctx, bson.M{}).Decode(&rule)
	if err == mongo.ErrNoDocuments {
		return &models.EligibilityRule{}, nil
	}
	if err != nil {
		return nil, err
	}

	r.cacheSet(ctx, eligibilityCacheKey, rule)
	return &rule, nil
}

// UpdateRules replaces the platform eligibility rules.
func (r *StructureRepository) UpdateRules(ctx context.Context, rule *models.EligibilityRule) error {
	rule.UpdatedAt = time.Now()

	upsert := true
	_, err := r.rules.UpdateOne(ctx, bson.M{}, bson.M{"$set": bson.M{
		"minimumCoachLevel":        rule.MinimumCoachLevel,
		"minimumPerformanceRating": rule.MinimumPerformanceRating,
		"minimumActiveDays":        rule.MinimumActiveDays,
		"minimumMonthlyRevenue":    rule.MinimumMonthlyRevenue,
		"updatedBy":                rule.UpdatedBy,
		"updatedAt":                rule.UpdatedAt,
	}}, &options.UpdateOptions{Upsert: &upsert})
	if err != nil {
		return err
	}

	r.invalidate(ctx, eligibilityCacheKey)
	return nil
}

func (r *StructureRepository) cacheSet(ctx context.Context, key string, v interface{}) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, data, configCacheTTL).Err(); err != nil {
		log.Printf("Warning: failed to cache %s: %v", key, err)
	}
}

func (r *StructureRepository) invalidate(ctx context.Context, key string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, key).Err(); err != nil {
		log.Printf("Warning: failed to invalidate %s: %v", key, err)
	}
}
