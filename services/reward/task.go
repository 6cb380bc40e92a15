package reward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"curtailment-controlplane/pkg/taskname"
	"curtailment-controlplane/services/escrow"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type EventPayload struct {
	EventID string `json:"event_id"`
}

func NewAllocateTask(eventID string) (*asynq.Task, error) {
	return newEventTask(taskname.RewardAllocate, eventID)
}

func NewReleaseHoldTask(eventID string) (*asynq.Task, error) {
	return newEventTask(taskname.RewardReleaseHold, eventID)
}

func newEventTask(name, eventID string) (*asynq.Task, error) {
	payload, err := json.Marshal(EventPayload{EventID: eventID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(name, payload), nil
}

type Task struct {
	engine *Engine
}

func NewTask(engine *Engine) *Task {
	return &Task{engine: engine}
}

func (t *Task) HandleSettleEscrow(ctx context.Context, task *asynq.Task) error {
	var req escrow.SettleRequest
	if err := json.Unmarshal(task.Payload(), &req); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	zapLog := zap.L().With(
		zap.String("task_type", task.Type()),
		zap.String("escrow_id", req.EscrowID),
		zap.String("event_id", req.EventID),
	)
	zapLog.Info("start settle escrow task")

	err := t.engine.Settle(ctx, req)

	var violation *InvariantViolation
	if errors.As(err, &violation) {
		// retrying cannot fix an over-cap allocation
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		zapLog.Warn("settle escrow task failed", zap.Error(err))
		return err
	}

	zapLog.Info("escrow settled")
	return nil
}

func (t *Task) HandleAllocateEvent(ctx context.Context, task *asynq.Task) error {
	var payload EventPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	rows, err := t.engine.AllocateEvent(ctx, payload.EventID)
	if err != nil {
		return err
	}

	zap.L().Info("event allocations ready", zap.String("event_id", payload.EventID), zap.Int("allocations", len(rows)))
	return nil
}

func (t *Task) HandleReleaseHold(ctx context.Context, task *asynq.Task) error {
	var payload EventPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	return t.engine.ReleaseHold(ctx, payload.EventID)
}

func registerHandlers(mux *asynq.ServeMux, t *Task) {
	mux.HandleFunc(taskname.RewardSettleEscrow, t.HandleSettleEscrow)
	mux.HandleFunc(taskname.RewardAllocate, t.HandleAllocateEvent)
	mux.HandleFunc(taskname.RewardReleaseHold, t.HandleReleaseHold)
}

// PaymentPass runs payment reconciliation on every reconciler tick.
type PaymentPass struct {
	engine *Engine
}

func NewPaymentPass(engine *Engine) *PaymentPass {
	return &PaymentPass{engine: engine}
}

func (p *PaymentPass) Name() string {
	return "reward:payments"
}

func (p *PaymentPass) Run(ctx context.Context) error {
	return p.engine.ReconcilePayments(ctx)
}
