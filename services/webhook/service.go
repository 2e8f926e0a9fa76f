package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"pointsplane/pkg/config"
	"pointsplane/pkg/errutil"
	"pointsplane/services/account"
	"pointsplane/services/notification"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20 // provider caps event payloads well below 1MiB

type Service struct {
	verifier   Verifier
	filter     *Filter
	extractor  *Extractor
	accounts   *account.Service
	dispatcher notification.Dispatcher
}

type ServiceParams struct {
	fx.In
	Config     *config.Config
	Verifier   Verifier
	Extractor  *Extractor
	Accounts   *account.Service
	Dispatcher notification.Dispatcher
}

func NewService(p ServiceParams) *Service {
	return &Service{
		verifier:   p.Verifier,
		filter:     NewFilter(p.Config.TenantID),
		extractor:  p.Extractor,
		accounts:   p.Accounts,
		dispatcher: p.Dispatcher,
	}
}

// Process runs one delivery through the pipeline. Acknowledged failures
// (tenant mismatch, bad metadata, ledger trouble) are absorbed into the
// outcome so the provider stops redelivering; only signature and envelope
// failures return an error, which the transport maps to a 400.
func (s *Service) Process(ctx context.Context, payload []byte, sigHeader string) (*Outcome, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	event, err := s.verifier.Verify(payload, sigHeader)
	if err != nil {
		zapLog.Warn("rejected payment event", zap.Error(err))
		return &Outcome{Status: "error", State: StateRejected}, err
	}

	zapLog = zapLog.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
	)

	switch string(event.Type) {
	case EventCheckoutCompleted:
		return s.processCheckoutCompleted(ctx, zapLog, event)
	case EventPaymentFailed:
		return s.processPaymentFailed(ctx, zapLog, event)
	default:
		zapLog.Debug("unhandled event type, acknowledging")
		return &Outcome{Status: "ok", Reason: "unhandled_event_type", State: StateDone}, nil
	}
}

func (s *Service) processCheckoutCompleted(ctx context.Context, zapLog *zap.Logger, event *stripe.Event) (*Outcome, error) {
	obj, err := parseEventObject(event.Data.Raw)
	if err != nil {
		return &Outcome{Status: "error", State: StateRejected},
			errutil.MalformedPayload("failed to parse checkout session object", errutil.WithErr(err))
	}

	if !s.filter.Allow(obj.Metadata) {
		zapLog.Info("event belongs to another tenant, ignoring",
			zap.String("event_tenant", obj.Metadata[MetaTenantID]),
		)
		return &Outcome{Status: "ignored", Reason: "tenant_mismatch", State: StateIgnored}, nil
	}

	ent, err := s.extractor.Extract(event.ID, obj.Metadata[MetaTenantID], obj.Metadata)
	if err != nil {
		return s.acknowledgeError(zapLog, err, StateFiltered), nil
	}

	res, err := s.accounts.Apply(ctx, ent)
	if err != nil {
		return s.acknowledgeError(zapLog, err, StateExtracted), nil
	}

	if res.AlreadyApplied {
		zapLog.Info("duplicate delivery, credit already applied")
		return &Outcome{Status: "ok", Reason: "duplicate", State: StateDone}, nil
	}

	priority := ent.PriorityBoost
	if res.Priority != nil {
		priority = *res.Priority
	}
	if err := s.dispatcher.CreditApplied(ctx, res.UserID, ent.Points, priority); err != nil {
		// notification is subordinate to ledger correctness
		zapLog.Warn("failed to dispatch credit notification", zap.Error(err))
	}

	zapLog.Info("payment event processed",
		zap.Int64("user_id", res.UserID),
		zap.Int64("points", ent.Points),
		zap.Int64("balance", res.Balance),
		zap.Int("priority", priority),
	)
	return &Outcome{Status: "ok", State: StateDone}, nil
}

func (s *Service) processPaymentFailed(ctx context.Context, zapLog *zap.Logger, event *stripe.Event) (*Outcome, error) {
	obj, err := parseEventObject(event.Data.Raw)
	if err != nil {
		return &Outcome{Status: "error", State: StateRejected},
			errutil.MalformedPayload("failed to parse payment intent object", errutil.WithErr(err))
	}

	// filtered uniformly with the completed path; these payloads usually
	// carry no metadata and pass on the permissive default
	if !s.filter.Allow(obj.Metadata) {
		return &Outcome{Status: "ignored", Reason: "tenant_mismatch", State: StateIgnored}, nil
	}

	reason := "payment declined"
	if obj.LastPaymentError != nil && obj.LastPaymentError.Message != "" {
		reason = obj.LastPaymentError.Message
	}
	zapLog.Warn("payment failed", zap.String("reason", reason))

	if raw, ok := obj.Metadata[MetaUserID]; ok {
		if userID, err := strconv.ParseInt(raw, 10, 64); err == nil {
			if err := s.dispatcher.PaymentFailed(ctx, userID, reason); err != nil {
				zapLog.Warn("failed to dispatch failure notification", zap.Error(err))
			}
		}
	}

	return &Outcome{Status: "ok", State: StateDone}, nil
}

func (s *Service) acknowledgeError(zapLog *zap.Logger, err error, state State) *Outcome {
	reason := "internal"
	var be errutil.BaseError
	if errors.As(err, &be) {
		switch be.Status() {
		case errutil.StatusInvalidUserID:
			reason = "invalid_user_id"
		case errutil.StatusUnknownPackage:
			reason = "unknown_package"
		case errutil.StatusUnknownAccount:
			reason = "unknown_account"
		case errutil.StatusLedgerUnavailable:
			reason = "ledger_unavailable"
		}
	}

	zapLog.Error("payment event acknowledged with error", zap.String("reason", reason), zap.Error(err))
	return &Outcome{Status: "error", Reason: reason, State: state}
}

// ---- transport ----

func (s *Service) HandlePaymentEvents(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(errutil.MalformedPayload("failed to read request body", errutil.WithErr(err)))
		c.Abort()
		return
	}

	outcome, err := s.Process(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, outcome)
}
