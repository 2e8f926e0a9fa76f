package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"pointsplane/pkg/task"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Dispatcher hands outbound messages to the notifier worker. Delivery is
// best-effort and decoupled from the webhook request: a failed enqueue is the
// caller's to log, never to retry the ledger for.
type Dispatcher interface {
	CreditApplied(ctx context.Context, userID, points int64, priority int) error
	PaymentFailed(ctx context.Context, userID int64, reason string) error
}

type asynqDispatcher struct {
	enqueuer task.Enqueuer
}

func NewDispatcher(enqueuer task.Enqueuer) Dispatcher {
	return &asynqDispatcher{enqueuer: enqueuer}
}

func (d *asynqDispatcher) CreditApplied(ctx context.Context, userID, points int64, priority int) error {
	return d.enqueue(TaskCreditApplied, CreditAppliedPayload{
		UserID:   userID,
		Points:   points,
		Priority: priority,
	})
}

func (d *asynqDispatcher) PaymentFailed(ctx context.Context, userID int64, reason string) error {
	return d.enqueue(TaskPaymentFailed, PaymentFailedPayload{
		UserID: userID,
		Reason: reason,
	})
}

func (d *asynqDispatcher) enqueue(taskType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}

	info, err := d.enqueuer.Enqueue(asynq.NewTask(taskType, raw), asynq.Queue("low"))
	if err != nil {
		return err
	}

	zap.L().Debug("notification enqueued",
		zap.String("task_type", taskType),
		zap.String("task_id", info.ID),
	)
	return nil
}
