package account

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Account is one user of the bot, keyed by the messaging-platform user id.
// Accounts are provisioned by the bot on first interaction; the reconciler
// only mutates points and priority.
type Account struct {
	UserID     int64     `gorm:"column:user_id;primaryKey"`
	Points     int64     `gorm:"column:points;not null;default:0"`
	Priority   *int      `gorm:"column:priority"`
	ReferredBy *int64    `gorm:"column:referred_by"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (Account) TableName() string { return "accounts" }

// LedgerEntry records one applied credit. ReferenceID carries the provider
// event id; its unique index is what makes redelivered events no-ops.
type LedgerEntry struct {
	ID            string         `gorm:"column:id;primaryKey"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
	TenantID      string         `gorm:"column:tenant_id"`
	UserID        int64          `gorm:"column:user_id;index"`
	PackageID     string         `gorm:"column:package_id"`
	Points        int64          `gorm:"column:points"`
	PriorityBoost int            `gorm:"column:priority_boost"`
	ReferenceID   string         `gorm:"column:reference_id;uniqueIndex"`
	Description   string         `gorm:"column:description"`
	PreviousHash  string         `gorm:"column:previous_hash"`
	Hash          string         `gorm:"column:hash"`
	Metadata      datatypes.JSON `gorm:"column:metadata"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

func (m *LedgerEntry) HashFields() map[string]string {
	return map[string]string{
		"id":             m.ID,
		"tenant_id":      m.TenantID,
		"user_id":        fmt.Sprintf("%d", m.UserID),
		"package_id":     m.PackageID,
		"points":         fmt.Sprintf("%d", m.Points),
		"priority_boost": fmt.Sprintf("%d", m.PriorityBoost),
		"reference_id":   m.ReferenceID,
		"description":    m.Description,
		"created_at":     m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash":  m.PreviousHash,
	}
}

func (l *LedgerEntry) GenerateHash() string {
	fields := l.HashFields()
	var keys []string
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(hash[:])
}

// Entitlement is the typed grant derived from a completed payment, consumed
// once by the reconciler.
type Entitlement struct {
	EventID       string
	TenantID      string
	UserID        int64
	PackageID     string
	Points        int64
	PriorityBoost int
	Metadata      map[string]string
}

// Result is the post-update account snapshot handed to the notification
// dispatcher.
type Result struct {
	UserID         int64
	Balance        int64
	Priority       *int
	AlreadyApplied bool
}
