package webhook

import "encoding/json"

// Metadata keys embedded into the checkout session at creation time. These
// names are shared with the checkout service and must stay in sync with the
// bot that reads them.
const (
	MetaUserID        = "user_id"
	MetaPackageID     = "package_id"
	MetaPointsAwarded = "points_awarded"
	MetaPriorityBoost = "priority_boost"
	MetaTenantID      = "tenant_id"
)

// Event types this service acts on. Everything else is acknowledged and
// dropped.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

// State tracks an event through the pipeline. Terminal states are Done,
// Rejected and Ignored; nothing is retried internally, redelivery is the
// provider's job.
type State string

const (
	StateReceived   State = "received"
	StateVerified   State = "verified"
	StateFiltered   State = "filtered"
	StateExtracted  State = "extracted"
	StateReconciled State = "reconciled"
	StateNotified   State = "notified"
	StateDone       State = "done"
	StateRejected   State = "rejected"
	StateIgnored    State = "ignored"
)

// Outcome is the acknowledgment body returned to the provider.
type Outcome struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`

	State State `json:"-"`
}

// eventObject is the slice of the event payload this service reads. The
// metadata map is only present on checkout-session derived objects.
type eventObject struct {
	ID               string            `json:"id"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func parseEventObject(raw json.RawMessage) (*eventObject, error) {
	var obj eventObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}
