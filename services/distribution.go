package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/coachdesk/commission_engine/models"
)

// Ledger is the slice of the commission store the distribution engine needs.
type Ledger interface {
	FindByEvent(ctx context.Context, subscriptionID primitive.ObjectID, periodStart time.Time) ([]models.CommissionEntry, error)
	InsertEntries(ctx context.Context, entries []models.CommissionEntry) error
}

// Directory is the referral-chain lookup the engine walks.
type Directory interface {
	GetCoach(ctx context.Context, id primitive.ObjectID) (*models.Coach, error)
	Chain(ctx context.Context, coachID primitive.ObjectID, maxLevels int) ([]models.Coach, error)
}

// ConfigSource provides the active commission structure and eligibility
// rules read at computation time.
type ConfigSource interface {
	ActiveStructure(ctx context.Context) (*models.CommissionStructure, error)
	GetRules(ctx context.Context) (*models.EligibilityRule, error)
}

// DistributionEngine turns one subscription billing event into ledger
// entries: walk the referral chain, resolve the percentage at each level,
// gate each receiving coach on eligibility, and write all entries once.
type DistributionEngine struct {
	ledger    Ledger
	directory Directory
	config    ConfigSource
	locker    Locker
}

func NewDistributionEngine(ledger Ledger, directory Directory, config ConfigSource, locker Locker) *DistributionEngine {
	return &DistributionEngine{
		ledger:    ledger,
		directory: directory,
		config:    config,
		locker:    locker,
	}
}

// Distribute processes one billing event. Safe to call any number of times
// for the same event: the idempotency key is (subscriptionId, periodStart)
// and a redelivered event returns the existing entries unchanged.
//
// Ineligible coaches still get an entry, written as cancelled with every
// failing rule in the notes, so the would-have-been commission stays visible
// to the admin console. Configuration errors abort the whole event.
func (e *DistributionEngine) Distribute(ctx context.Context, event *models.BillingEvent) ([]models.CommissionEntry, error) {
	lockKey := fmt.Sprintf("dist:%s:%d", event.SubscriptionID.Hex(), event.PeriodStart.Unix())
	release, err := e.locker.Lock(ctx, lockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	// Idempotency: a webhook redelivery returns the entries already written
	existing, err := e.ledger.FindByEvent(ctx, event.SubscriptionID, event.PeriodStart)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		log.Printf("Duplicate billing event for subscription %s period %s, returning %d existing entries",
			event.SubscriptionID.Hex(), event.PeriodStart.Format("2006-01"), len(existing))
		return existing, nil
	}

	structure, err := e.config.ActiveStructure(ctx)
	if err != nil {
		return nil, err
	}
	if err := structure.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidStructure, err)
	}
	rules, err := e.config.GetRules(ctx)
	if err != nil {
		return nil, err
	}

	chain, err := e.directory.Chain(ctx, event.CoachID, structure.MaxCommissionLevels)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		// Paying coach has no upline; nothing to distribute
		return nil, nil
	}

	resolver := NewResolver(structure)
	now := time.Now()
	entries := make([]models.CommissionEntry, 0, len(chain))

	for i, upline := range chain {
		level := i + 1
		percentage, amount, err := resolver.Resolve(level, event.Amount, event.Currency, event.Category)
		if err != nil {
			// Configuration errors invalidate the whole event; partial
			// ledgers are worse than a retried webhook
			return nil, err
		}

		entry := models.CommissionEntry{
			ID:                   primitive.NewObjectID(),
			CoachID:              upline.ID,
			SubscriptionID:       event.SubscriptionID,
			ReferredBy:           event.CoachID,
			SubscriptionAmount:   event.Amount,
			Level:                level,
			CommissionPercentage: percentage,
			CommissionAmount:     amount,
			Currency:             event.Currency,
			Category:             event.Category,
			PlanID:               event.PlanID,
			Status:               models.EntryStatusPending,
			PeriodStart:          event.PeriodStart,
			Month:                int(event.PeriodStart.Month()),
			Year:                 event.PeriodStart.Year(),
			IsActive:             true,
			StructureVersion:     structure.Version,
			CreatedAt:            now,
			UpdatedAt:            now,
		}

		if eligible, reasons := EvaluateEligibility(upline.Standing(now), *rules); !eligible {
			entry.Status = models.EntryStatusCancelled
			entry.Notes = "ineligible: " + strings.Join(reasons, "; ")
		}

		entries = append(entries, entry)
	}

	if err := e.ledger.InsertEntries(ctx, entries); err != nil {
		if isDuplicateEvent(err) {
			// Lost a race with a concurrent delivery of the same event;
			// return whatever that delivery wrote
			return e.ledger.FindByEvent(ctx, event.SubscriptionID, event.PeriodStart)
		}
		return nil, fmt.Errorf("failed to write commission entries: %w", err)
	}

	log.Printf("Distributed %d commission entries for subscription %s period %s",
		len(entries), event.SubscriptionID.Hex(), event.PeriodStart.Format("2006-01"))
	return entries, nil
}

func isDuplicateEvent(err error) bool {
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var we mongo.WriteException
	return errors.As(err, &we) && we.HasErrorCode(11000)
}
