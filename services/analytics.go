package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/coachdesk/commission_engine/config"
	"github.com/coachdesk/commission_engine/models"
)

// StatusTotal is one row of the status rollup.
type StatusTotal struct {
	Status models.EntryStatus `bson:"_id" json:"status"`
	Count  int64              `bson:"count" json:"count"`
	Amount float64            `bson:"amount" json:"amount"`
}

// CommissionSummary is the dashboard headline rollup.
type CommissionSummary struct {
	ByStatus          []StatusTotal `json:"byStatus"`
	TotalDistributed  float64       `json:"totalDistributed"`
	TotalPaid         float64       `json:"totalPaid"`
	AverageCommission float64       `json:"averageCommission"`
	EntryCount        int64         `json:"entryCount"`
}

// TopCoach is one row of the top-performers report.
type TopCoach struct {
	CoachID     primitive.ObjectID `bson:"_id" json:"coachId"`
	TotalEarned float64            `bson:"totalEarned" json:"totalEarned"`
	EntryCount  int64              `bson:"entryCount" json:"entryCount"`
	TeamSize    int64              `bson:"teamSize" json:"teamSize"`
}

// RevenueBucket is one row of the revenue-by-plan/category breakdown.
type RevenueBucket struct {
	Key             string  `bson:"_id" json:"key"`
	SubscriptionSum float64 `bson:"subscriptionSum" json:"subscriptionSum"`
	CommissionSum   float64 `bson:"commissionSum" json:"commissionSum"`
	DistributionCnt int64   `bson:"distributionCnt" json:"distributionCnt"`
}

// MonthlyPoint is one month of the time series.
type MonthlyPoint struct {
	Year   int     `bson:"year" json:"year"`
	Month  int     `bson:"month" json:"month"`
	Amount float64 `bson:"amount" json:"amount"`
	Count  int64   `bson:"count" json:"count"`
}

// AnalyticsService answers read-only rollup queries over the ledger. It
// never mutates entries and reads with secondaryPreferred, keeping dashboard
// traffic off the primary the distribution engine writes to.
type AnalyticsService struct {
	entries *mongo.Collection
}

func NewAnalyticsService(client *mongo.Client) *AnalyticsService {
	readOpts := options.Collection().SetReadPreference(readpref.SecondaryPreferred())
	db := client.Database(config.DBName())
	return &AnalyticsService{
		entries: db.Collection("commission_entries", readOpts),
	}
}

// Summary computes the headline totals, scoped to a year/month bucket when
// given (zero means all time).
func (s *AnalyticsService) Summary(ctx context.Context, year, month int) (*CommissionSummary, error) {
	match := bson.M{"isActive": true}
	if year != 0 {
		match["year"] = year
	}
	if month != 0 {
		match["month"] = month
	}

	pipeline := []bson.M{
		{"$match": match},
		{"$group": bson.M{
			"_id":    "$status",
			"count":  bson.M{"$sum": 1},
			"amount": bson.M{"$sum": "$commissionAmount"},
		}},
		{"$sort": bson.M{"_id": 1}},
	}

	cursor, err := s.entries.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var byStatus []StatusTotal
	if err := cursor.All(ctx, &byStatus); err != nil {
		return nil, err
	}

	summary := &CommissionSummary{ByStatus: byStatus}
	for _, row := range byStatus {
		if row.Status != models.EntryStatusCancelled {
			summary.TotalDistributed += row.Amount
			summary.EntryCount += row.Count
		}
		if row.Status == models.EntryStatusPaid {
			summary.TotalPaid = row.Amount
		}
	}
	if summary.EntryCount > 0 {
		summary.AverageCommission = summary.TotalDistributed / float64(summary.EntryCount)
	}
	return summary, nil
}

// TopCoaches ranks coaches by commission earned (approved + paid), annotated
// with direct-downline team size.
func (s *AnalyticsService) TopCoaches(ctx context.Context, limit int) ([]TopCoach, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}

	pipeline := []bson.M{
		{"$match": bson.M{
			"isActive": true,
			"status":   bson.M{"$in": []models.EntryStatus{models.EntryStatusApproved, models.EntryStatusPaid}},
		}},
		{"$group": bson.M{
			"_id":         "$coachId",
			"totalEarned": bson.M{"$sum": "$commissionAmount"},
			"entryCount":  bson.M{"$sum": 1},
		}},
		{"$sort": bson.M{"totalEarned": -1}},
		{"$limit": limit},
		{"$lookup": bson.M{
			"from":         "coaches",
			"localField":   "_id",
			"foreignField": "referredBy",
			"as":           "team",
		}},
		{"$addFields": bson.M{"teamSize": bson.M{"$size": "$team"}}},
		{"$project": bson.M{"team": 0}},
	}

	cursor, err := s.entries.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var top []TopCoach
	if err := cursor.All(ctx, &top); err != nil {
		return nil, err
	}
	return top, nil
}

// RevenueByPlan breaks subscription revenue and commission spend down per
// plan. Only level-1 entries carry the subscription amount once per event,
// so the subscription sum is taken from them to avoid multiplying revenue by
// chain depth.
func (s *AnalyticsService) RevenueByPlan(ctx context.Context) ([]RevenueBucket, error) {
	return s.revenueBy(ctx, "$planId")
}

// RevenueByCategory is the same breakdown keyed by plan category.
func (s *AnalyticsService) RevenueByCategory(ctx context.Context) ([]RevenueBucket, error) {
	return s.revenueBy(ctx, "$category")
}

func (s *AnalyticsService) revenueBy(ctx context.Context, key string) ([]RevenueBucket, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"isActive": true}},
		{"$group": bson.M{
			"_id": key,
			"subscriptionSum": bson.M{"$sum": bson.M{
				"$cond": []interface{}{bson.M{"$eq": []interface{}{"$level", 1}}, "$subscriptionAmount", 0},
			}},
			"commissionSum": bson.M{"$sum": bson.M{
				"$cond": []interface{}{
					bson.M{"$ne": []interface{}{"$status", models.EntryStatusCancelled}},
					"$commissionAmount", 0,
				},
			}},
			"distributionCnt": bson.M{"$sum": 1},
		}},
		{"$sort": bson.M{"subscriptionSum": -1}},
	}

	cursor, err := s.entries.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var buckets []RevenueBucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// MonthlySeries returns the commission time series for the trailing months.
func (s *AnalyticsService) MonthlySeries(ctx context.Context, year int) ([]MonthlyPoint, error) {
	match := bson.M{"isActive": true, "status": bson.M{"$ne": models.EntryStatusCancelled}}
	if year != 0 {
		match["year"] = year
	}

	pipeline := []bson.M{
		{"$match": match},
		{"$group": bson.M{
			"_id":    bson.M{"year": "$year", "month": "$month"},
			"amount": bson.M{"$sum": "$commissionAmount"},
			"count":  bson.M{"$sum": 1},
		}},
		{"$project": bson.M{
			"year":   "$_id.year",
			"month":  "$_id.month",
			"amount": 1,
			"count":  1,
		}},
		{"$sort": bson.M{"year": 1, "month": 1}},
	}

	cursor, err := s.entries.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var series []MonthlyPoint
	if err := cursor.All(ctx, &series); err != nil {
		return nil, err
	}
	return series, nil
}
