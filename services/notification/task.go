package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Task struct {
	notifier Notifier
}

type TaskParams struct {
	fx.In
	Notifier Notifier
}

func NewTask(p TaskParams) *Task {
	return &Task{notifier: p.Notifier}
}

// HandleCreditApplied sends the purchase confirmation. Delivery errors are
// logged and swallowed: the credit is already durable and a retry storm
// toward a user who blocked the bot helps nobody.
func (t *Task) HandleCreditApplied(ctx context.Context, task *asynq.Task) error {
	var payload CreditAppliedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	text := fmt.Sprintf(
		"🎉 <b>Top-up successful!</b> <b>%d</b> points have been added to your account. Your queue priority is now <b>%d</b> (0 = highest).",
		payload.Points, payload.Priority,
	)

	if err := t.notifier.Send(ctx, payload.UserID, text); err != nil {
		zap.L().Warn("failed to deliver credit confirmation",
			zap.Int64("user_id", payload.UserID),
			zap.Error(err),
		)
	}
	return nil
}

func (t *Task) HandlePaymentFailed(ctx context.Context, task *asynq.Task) error {
	var payload PaymentFailedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	text := fmt.Sprintf("⚠️ Your payment could not be completed: %s. No points were charged.", payload.Reason)

	if err := t.notifier.Send(ctx, payload.UserID, text); err != nil {
		zap.L().Warn("failed to deliver payment failure notice",
			zap.Int64("user_id", payload.UserID),
			zap.Error(err),
		)
	}
	return nil
}
