package notification

const (
	TaskCreditApplied = "notify:credit_applied"
	TaskPaymentFailed = "notify:payment_failed"
)

type CreditAppliedPayload struct {
	UserID   int64 `json:"user_id"`
	Points   int64 `json:"points"`
	Priority int   `json:"priority"`
}

type PaymentFailedPayload struct {
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}
