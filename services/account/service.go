package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pointsplane/pkg/config"
	"pointsplane/pkg/errutil"
	"pointsplane/pkg/rediskey"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// processedEventTTL bounds the redis fast-path set of applied event ids. The
// unique reference_id index on ledger_entries is the durable authority.
const processedEventTTL = 24 * time.Hour

var errAlreadyApplied = errors.New("entitlement already applied")

type Service struct {
	db            *gorm.DB
	node          *snowflake.Node
	redis         *redis.Client
	autoProvision bool
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:            p.DB,
		node:          p.Node,
		redis:         p.Redis,
		autoProvision: p.Config.Ledger.AutoProvision,
	}
}

// Migrate creates the accounts and ledger_entries tables.
func (s *Service) Migrate() error {
	return s.db.AutoMigrate(&Account{}, &LedgerEntry{})
}

// Apply credits the entitlement to the account exactly once. Redelivered
// events return the current snapshot with AlreadyApplied set. Point credit
// and priority merge commit in one transaction or not at all.
func (s *Service) Apply(ctx context.Context, ent Entitlement) (*Result, error) {
	span := trace.SpanFromContext(ctx)
	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("event_id", ent.EventID),
		zap.Int64("user_id", ent.UserID),
	}

	if ent.Points < 0 {
		return nil, errutil.BadRequest("points to credit must be >= 0")
	}

	if s.seenRecently(ctx, ent.EventID) {
		zap.L().With(opts...).Info("event already applied, skipping (redis fast path)")
		return s.snapshot(ctx, ent.UserID, true)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acct, err := s.lockAccount(ctx, tx, ent.UserID)
		if err != nil {
			return err
		}

		entry, err := s.newEntry(ctx, tx, acct.UserID, ent)
		if err != nil {
			return err
		}

		if err := tx.Create(entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errAlreadyApplied
			}
			return err
		}

		if err := tx.Model(&Account{}).
			Where("user_id = ?", acct.UserID).
			UpdateColumns(map[string]any{
				"points":     gorm.Expr("points + ?", ent.Points),
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}

		// best-wins merge: lower value is better, never overwrite upward
		return tx.Model(&Account{}).
			Where("user_id = ? AND (priority IS NULL OR priority > ?)", acct.UserID, ent.PriorityBoost).
			UpdateColumn("priority", ent.PriorityBoost).Error
	})

	switch {
	case err == nil:
		s.markProcessed(ctx, ent.EventID)
		zap.L().With(opts...).Info("entitlement applied",
			zap.Int64("points", ent.Points),
			zap.Int("priority_boost", ent.PriorityBoost),
		)
		return s.snapshot(ctx, ent.UserID, false)
	case errors.Is(err, errAlreadyApplied):
		s.markProcessed(ctx, ent.EventID)
		zap.L().With(opts...).Warn("duplicate delivery, entitlement already applied")
		return s.snapshot(ctx, ent.UserID, true)
	default:
		var be errutil.BaseError
		if errors.As(err, &be) {
			return nil, err
		}
		zap.L().With(opts...).Error("ledger transaction failed", zap.Error(err))
		return nil, errutil.LedgerUnavailable("failed to apply entitlement", errutil.WithErr(err))
	}
}

// GetAccount returns the account or errutil.UnknownAccount.
func (s *Service) GetAccount(ctx context.Context, userID int64) (*Account, error) {
	var acct Account
	if err := s.db.WithContext(ctx).First(&acct, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.UnknownAccount(fmt.Sprintf("account %d not found", userID))
		}
		return nil, errutil.LedgerUnavailable("failed to load account", errutil.WithErr(err))
	}
	return &acct, nil
}

// VerifyChain walks a user's ledger entries and checks the hash chain.
func (s *Service) VerifyChain(ctx context.Context, userID int64) (bool, error) {
	var entries []LedgerEntry
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&entries).Error; err != nil {
		return false, err
	}

	var lastHash string
	for i := range entries {
		entry := &entries[i]
		if entry.Hash != entry.GenerateHash() || entry.PreviousHash != lastHash {
			return false, nil
		}
		lastHash = entry.Hash
	}
	return true, nil
}

func (s *Service) lockAccount(ctx context.Context, tx *gorm.DB, userID int64) (*Account, error) {
	var acct Account
	err := lockingUpdate(tx).First(&acct, "user_id = ?", userID).Error
	if err == nil {
		return &acct, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if !s.autoProvision {
		return nil, errutil.UnknownAccount(fmt.Sprintf("account %d not found", userID))
	}

	acct = Account{UserID: userID, Points: 0, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := tx.Create(&acct).Error; err != nil {
		return nil, err
	}
	zap.L().Info("auto-provisioned account from payment event", zap.Int64("user_id", userID))
	return &acct, nil
}

func (s *Service) newEntry(ctx context.Context, tx *gorm.DB, userID int64, ent Entitlement) (*LedgerEntry, error) {
	var previousHash string
	var last LedgerEntry
	err := lockingUpdate(tx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		First(&last).Error
	if err == nil {
		previousHash = last.Hash
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	metaBytes, _ := json.Marshal(ent.Metadata)
	entry := &LedgerEntry{
		ID:            s.node.Generate().String(),
		CreatedAt:     time.Now(),
		TenantID:      ent.TenantID,
		UserID:        userID,
		PackageID:     ent.PackageID,
		Points:        ent.Points,
		PriorityBoost: ent.PriorityBoost,
		ReferenceID:   ent.EventID,
		Description:   fmt.Sprintf("purchase of %s", ent.PackageID),
		PreviousHash:  previousHash,
		Metadata:      datatypes.JSON(metaBytes),
	}
	entry.Hash = entry.GenerateHash()
	return entry, nil
}

func (s *Service) snapshot(ctx context.Context, userID int64, alreadyApplied bool) (*Result, error) {
	acct, err := s.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Result{
		UserID:         acct.UserID,
		Balance:        acct.Points,
		Priority:       acct.Priority,
		AlreadyApplied: alreadyApplied,
	}, nil
}

func (s *Service) seenRecently(ctx context.Context, eventID string) bool {
	if s.redis == nil {
		return false
	}
	exists, err := s.redis.Exists(ctx, rediskey.BuildPaymentEventKey(eventID)).Result()
	if err != nil {
		zap.L().Warn("redis dedup check failed, falling through to database", zap.Error(err))
		return false
	}
	return exists > 0
}

func (s *Service) markProcessed(ctx context.Context, eventID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, rediskey.BuildPaymentEventKey(eventID), 1, processedEventTTL).Err(); err != nil {
		zap.L().Warn("failed to record processed event in redis", zap.Error(err))
	}
}

// sqlite has no SELECT ... FOR UPDATE; its writer lock serialises anyway.
func lockingUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
