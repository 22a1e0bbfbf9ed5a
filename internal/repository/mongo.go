package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"smash-rewards/internal/model"
)

const accountsCollection = "accounts"

// MongoRepository is the MongoDB account store. Accounts are documents keyed
// by id; activation runs in a session transaction.
type MongoRepository struct {
	client   *mongo.Client
	accounts *mongo.Collection
}

// NewMongoRepository creates a MongoRepository over db.
func NewMongoRepository(client *mongo.Client, db *mongo.Database) *MongoRepository {
	return &MongoRepository{client: client, accounts: db.Collection(accountsCollection)}
}

// EnsureIndexes creates the unique referral code index and ranking indexes.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "referral_code", Value: 1}},
			Options: options.Index().
				SetName("uniq_referral_code").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"referral_code": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "referred_by", Value: 1}}},
		{Keys: bson.D{{Key: "is_activated", Value: 1}, {Key: "balance", Value: -1}}},
		{Keys: bson.D{{Key: "is_activated", Value: 1}, {Key: "total_referrals", Value: -1}}},
		{Keys: bson.D{{Key: "is_activated", Value: 1}, {Key: "mining_streak", Value: -1}}},
	}
	if _, err := r.accounts.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func returnAfter() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

// Create inserts a fresh, unactivated account.
func (r *MongoRepository) Create(ctx context.Context, id string, email *string) (*model.Account, error) {
	now := time.Now().UTC()
	acc := &model.Account{ID: id, Email: email, CreatedAt: now, UpdatedAt: now}
	if _, err := r.accounts.InsertOne(ctx, acc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return acc, nil
}

// Get retrieves an account by id.
func (r *MongoRepository) Get(ctx context.Context, id string) (*model.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetOrCreate retrieves an account, creating it if it doesn't exist.
func (r *MongoRepository) GetOrCreate(ctx context.Context, id string, email *string) (*model.Account, bool, error) {
	acc, err := r.Get(ctx, id)
	if err == nil {
		return acc, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, false, err
	}

	acc, err = r.Create(ctx, id, email)
	if errors.Is(err, ErrAccountExists) {
		acc, err = r.Get(ctx, id)
		return acc, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return acc, true, nil
}

// GetByReferralCode finds the account that owns code.
func (r *MongoRepository) GetByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	return r.findOne(ctx, bson.M{"referral_code": code})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*model.Account, error) {
	var acc model.Account
	if err := r.accounts.FindOne(ctx, filter).Decode(&acc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &acc, nil
}

func (r *MongoRepository) updateOne(ctx context.Context, filter bson.M, update bson.M) (*model.Account, error) {
	var acc model.Account
	err := r.accounts.FindOneAndUpdate(ctx, filter, update, returnAfter()).Decode(&acc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// Activate marks the account activated and bumps the sponsor's counters in
// one multi-document transaction.
func (r *MongoRepository) Activate(ctx context.Context, a model.Activation) (*model.Account, error) {
	sess, err := r.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		now := time.Now().UTC()
		acc, err := r.updateOne(sc,
			bson.M{"_id": a.AccountID, "is_activated": false},
			bson.M{
				"$set": bson.M{
					"is_activated":  true,
					"username":      a.Username,
					"referral_code": a.ReferralCode,
					"referred_by":   a.SponsorID,
					"activated_at":  a.At,
					"updated_at":    now,
				},
				"$inc": bson.M{"balance": a.Bonus, "total_earned": a.Bonus},
			})
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return nil, r.activationMiss(sc, a.AccountID)
			}
			if mongo.IsDuplicateKeyError(err) {
				return nil, ErrCodeTaken
			}
			return nil, fmt.Errorf("failed to activate account: %w", err)
		}

		if a.SponsorID != model.MasterSponsor {
			_, err := r.updateOne(sc,
				bson.M{"_id": a.SponsorID, "is_activated": true},
				bson.M{
					"$inc": bson.M{"total_referrals": 1, "direct_referrals": 1},
					"$set": bson.M{"updated_at": now},
				})
			if err != nil {
				if errors.Is(err, ErrAccountNotFound) {
					return nil, ErrSponsorNotFound
				}
				return nil, fmt.Errorf("failed to update sponsor: %w", err)
			}
		}
		return acc, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*model.Account), nil
}

func (r *MongoRepository) activationMiss(ctx context.Context, id string) error {
	acc, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if acc.IsActivated {
		return ErrAlreadyActivated
	}
	return fmt.Errorf("activation of %s matched no document", id)
}

// Credit applies one earning event to the acting account.
func (r *MongoRepository) Credit(ctx context.Context, c model.Credit) (*model.Account, error) {
	inc := bson.M{"balance": c.Amount, "total_earned": c.Amount}
	set := bson.M{"updated_at": time.Now().UTC()}
	switch c.Kind {
	case model.ActionMining:
		inc["mining_streak"] = 1
		set["last_mining"] = c.At
	case model.ActionAd:
		inc["daily_ads_watched"] = 1
	case model.ActionQuiz:
		set["knowledge_streak"] = c.QuizStreak
		set["last_quiz"] = c.At
	default:
		return nil, fmt.Errorf("unknown action kind %q", c.Kind)
	}

	acc, err := r.updateOne(ctx,
		bson.M{"_id": c.AccountID, "is_activated": true},
		bson.M{"$inc": inc, "$set": set})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			if _, getErr := r.Get(ctx, c.AccountID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrNotActivated
		}
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}
	return acc, nil
}

// CreditCommission adds a referral commission to the sponsor's lifetime earnings.
func (r *MongoRepository) CreditCommission(ctx context.Context, sponsorID string, level model.CommissionLevel, amount decimal.Decimal) (*model.Account, error) {
	var field string
	switch level {
	case model.CommissionDirect:
		field = "direct_referral_earnings"
	case model.CommissionIndirect:
		field = "indirect_referral_earnings"
	default:
		return nil, fmt.Errorf("unknown commission level %d", level)
	}

	acc, err := r.updateOne(ctx,
		bson.M{"_id": sponsorID},
		bson.M{
			"$inc": bson.M{field: amount, "total_earned": amount},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to credit commission: %w", err)
	}
	return acc, err
}

// ResetDailyAds zeroes the ad counter and opens a new window at at.
func (r *MongoRepository) ResetDailyAds(ctx context.Context, id string, at time.Time) (*model.Account, error) {
	acc, err := r.updateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"daily_ads_watched": 0, "last_ad_reset": at, "updated_at": time.Now().UTC()}})
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to reset daily ads: %w", err)
	}
	return acc, err
}

// UpdateWallet binds (or clears, with nil) the account's wallet address.
func (r *MongoRepository) UpdateWallet(ctx context.Context, id string, address *string) (*model.Account, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$unset": bson.M{"wallet_address": ""},
		"$set":   bson.M{"updated_at": now},
	}
	if address != nil {
		update = bson.M{"$set": bson.M{"wallet_address": *address, "updated_at": now}}
	}

	acc, err := r.updateOne(ctx, bson.M{"_id": id}, update)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}
	return acc, err
}

// Top returns the leading activated accounts ordered by field.
func (r *MongoRepository) Top(ctx context.Context, field model.RankingField, limit int) ([]*model.Account, error) {
	var key string
	switch field {
	case model.RankByBalance:
		key = "balance"
	case model.RankByReferrals:
		key = "total_referrals"
	case model.RankByMining:
		key = "mining_streak"
	default:
		return nil, fmt.Errorf("unknown ranking field %q", field)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: key, Value: -1}, {Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := r.accounts.Find(ctx, bson.M{"is_activated": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query rankings: %w", err)
	}
	defer cur.Close(ctx)

	var accounts []*model.Account
	if err := cur.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode rankings: %w", err)
	}
	return accounts, nil
}

const ledgerCollection = "ledger"

// MongoLedger is the MongoDB earnings ledger.
type MongoLedger struct {
	entries *mongo.Collection
}

// NewMongoLedger creates a MongoLedger over db.
func NewMongoLedger(db *mongo.Database) *MongoLedger {
	return &MongoLedger{entries: db.Collection(ledgerCollection)}
}

// EnsureIndexes creates the history and unique reference indexes.
func (l *MongoLedger) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{
			Keys: bson.D{{Key: "type", Value: 1}, {Key: "reference", Value: 1}},
			Options: options.Index().
				SetName("uniq_type_reference").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"reference": bson.M{"$exists": true}}),
		},
	}
	if _, err := l.entries.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create ledger indexes: %w", err)
	}
	return nil
}

// Record inserts entries in order, stopping at the first duplicate reference.
func (l *MongoLedger) Record(ctx context.Context, entries ...model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]interface{}, len(entries))
	for i, e := range entries {
		docs[i] = e
	}
	if _, err := l.entries.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to record ledger entries: %w", err)
	}
	return nil
}

// History returns an account's entries, newest first.
func (l *MongoLedger) History(ctx context.Context, accountID string, limit int) ([]*model.LedgerEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := l.entries.Find(ctx, bson.M{"account_id": accountID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer cur.Close(ctx)

	entries := make([]*model.LedgerEntry, 0, limit)
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}
	return entries, nil
}

// HasReference reports whether an entry of type t already carries reference.
func (l *MongoLedger) HasReference(ctx context.Context, t model.EntryType, reference string) (bool, error) {
	n, err := l.entries.CountDocuments(ctx, bson.M{"type": t, "reference": reference}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to look up ledger reference: %w", err)
	}
	return n > 0, nil
}
