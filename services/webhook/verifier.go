package webhook

import (
	"errors"

	"pointsplane/pkg/config"
	"pointsplane/pkg/errutil"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Verifier authenticates a raw delivery and returns the typed event.
// Verification failures are terminal: nothing past this point sees the
// payload.
type Verifier interface {
	Verify(payload []byte, sigHeader string) (*stripe.Event, error)
}

type stripeVerifier struct {
	secret string
}

func NewVerifier(cfg *config.Config) Verifier {
	return &stripeVerifier{secret: cfg.Stripe.WebhookSecret}
}

// Verify checks the timestamp-tolerant HMAC signature (provider default
// tolerance, 5 minutes) and parses the envelope.
func (v *stripeVerifier) Verify(payload []byte, sigHeader string) (*stripe.Event, error) {
	if v.secret == "" {
		return nil, errutil.Internal("webhook signing secret not configured")
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNotSigned),
			errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrTooOld):
			return nil, errutil.InvalidSignature("signature verification failed", errutil.WithErr(err))
		default:
			return nil, errutil.MalformedPayload("failed to parse event envelope", errutil.WithErr(err))
		}
	}

	return &event, nil
}
