package checkout

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"pointsplane/internal/catalog"
	"pointsplane/pkg/config"
	"pointsplane/pkg/errutil"
	"pointsplane/services/webhook"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SessionCreator wraps the provider checkout call.
type SessionCreator interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeSessionCreator struct{}

func NewSessionCreator(cfg *config.Config) SessionCreator {
	stripe.Key = cfg.Stripe.SecretKey
	return &stripeSessionCreator{}
}

func (stripeSessionCreator) Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return session.New(params)
}

type Service struct {
	cfg      *config.Config
	catalog  *catalog.Catalog
	sessions SessionCreator
}

type ServiceParams struct {
	fx.In
	Config   *config.Config
	Catalog  *catalog.Catalog
	Sessions SessionCreator
}

func NewService(p ServiceParams) *Service {
	return &Service{
		cfg:      p.Config,
		catalog:  p.Catalog,
		sessions: p.Sessions,
	}
}

// CreateSession echoes a catalog entry into a provider checkout session. The
// entitlement the webhook will later reconcile travels as session metadata,
// tagged with this instance's tenant id.
func (s *Service) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	pkg, ok := s.catalog.Lookup(req.PackageID)
	if !ok {
		return nil, errutil.BadRequest(fmt.Sprintf("unknown package %q", req.PackageID))
	}

	currency := pkg.Currency
	if req.Currency != "" {
		currency = req.Currency
	}
	amount := pkg.PriceMinor
	if req.AmountMinorUnits != nil {
		amount = *req.AmountMinorUnits
	}
	boost := pkg.PriorityBoost
	if req.PriorityBoost != nil {
		boost = *req.PriorityBoost
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(s.cfg.Stripe.SuccessURL),
		CancelURL:          stripe.String(s.cfg.Stripe.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(pkg.Label),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata(webhook.MetaUserID, strconv.FormatInt(req.UserID, 10))
	params.AddMetadata(webhook.MetaPackageID, pkg.ID)
	params.AddMetadata(webhook.MetaPointsAwarded, strconv.FormatInt(pkg.Points, 10))
	params.AddMetadata(webhook.MetaPriorityBoost, strconv.Itoa(boost))
	params.AddMetadata(webhook.MetaTenantID, s.cfg.TenantID)

	sess, err := s.sessions.Create(ctx, params)
	if err != nil {
		zap.L().Error("failed to create checkout session",
			zap.Int64("user_id", req.UserID),
			zap.String("package_id", req.PackageID),
			zap.Error(err),
		)
		return nil, errutil.Internal("failed to create checkout session", errutil.WithErr(err))
	}

	zap.L().Info("checkout session created",
		zap.Int64("user_id", req.UserID),
		zap.String("package_id", req.PackageID),
		zap.String("session_id", sess.ID),
	)

	return &CreateSessionResponse{RedirectURL: sess.URL}, nil
}

// ---- transport ----

func (s *Service) HandleCreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		c.Abort()
		return
	}

	resp, err := s.CreateSession(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, resp)
}
