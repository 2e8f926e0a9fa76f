package notification

import (
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

// Module provides the dispatcher side, used by the webhook service.
var Module = fx.Module("notification.dispatcher",
	fx.Provide(NewDispatcher),
)

// TaskModule provides the worker side, consuming notification tasks.
var TaskModule = fx.Module("task.notification",
	fx.Provide(NewNotifier, NewTask),
	fx.Invoke(registerHandlers),
)

func registerHandlers(mux *asynq.ServeMux, t *Task) {
	mux.HandleFunc(TaskCreditApplied, t.HandleCreditApplied)
	mux.HandleFunc(TaskPaymentFailed, t.HandlePaymentFailed)
}
