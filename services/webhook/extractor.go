package webhook

import (
	"fmt"
	"strconv"

	"pointsplane/internal/catalog"
	"pointsplane/pkg/config"
	"pointsplane/pkg/errutil"
	"pointsplane/services/account"

	"go.uber.org/zap"
)

// Extractor coerces checkout metadata into a typed entitlement. The user id
// must parse; the credit-sized fields degrade to safe defaults instead of
// failing the pipeline.
type Extractor struct {
	catalog         *catalog.Catalog
	defaultPriority int
}

func NewExtractor(cfg *config.Config, cat *catalog.Catalog) *Extractor {
	return &Extractor{
		catalog:         cat,
		defaultPriority: cfg.Ledger.DefaultPriority,
	}
}

func (e *Extractor) Extract(eventID, tenantID string, meta map[string]string) (account.Entitlement, error) {
	var ent account.Entitlement

	userID, err := strconv.ParseInt(meta[MetaUserID], 10, 64)
	if err != nil {
		// identity failures abort: crediting the wrong account is worse
		// than crediting none
		return ent, errutil.InvalidUserID(
			fmt.Sprintf("missing or non-numeric %s in metadata", MetaUserID),
			errutil.WithErr(err),
		)
	}

	packageID := meta[MetaPackageID]
	if _, ok := e.catalog.Lookup(packageID); !ok {
		return ent, errutil.UnknownPackage(fmt.Sprintf("package %q not in catalog", packageID))
	}

	points, err := strconv.ParseInt(meta[MetaPointsAwarded], 10, 64)
	if err != nil || points < 0 {
		zap.L().Warn("invalid points_awarded in metadata, crediting 0",
			zap.String("event_id", eventID),
			zap.String("raw", meta[MetaPointsAwarded]),
		)
		points = 0
	}

	boost, err := strconv.Atoi(meta[MetaPriorityBoost])
	if err != nil {
		zap.L().Warn("invalid priority_boost in metadata, using default",
			zap.String("event_id", eventID),
			zap.String("raw", meta[MetaPriorityBoost]),
			zap.Int("default", e.defaultPriority),
		)
		boost = e.defaultPriority
	}

	return account.Entitlement{
		EventID:       eventID,
		TenantID:      tenantID,
		UserID:        userID,
		PackageID:     packageID,
		Points:        points,
		PriorityBoost: boost,
		Metadata:      meta,
	}, nil
}
