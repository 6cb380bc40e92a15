package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"curtailment-controlplane/pkg/task"
	"curtailment-controlplane/pkg/taskname"

	"github.com/hibiken/asynq"
)

// TaskSettler hands terminal escrows to the reward worker through the
// task queue. One task id per escrow keeps duplicate hand-offs out of the
// queue while an earlier one is still pending.
type TaskSettler struct {
	enqueuer task.Enqueuer
	queue    string
	maxRetry int
}

func NewTaskSettler(enqueuer task.Enqueuer, queue string, maxRetry int) *TaskSettler {
	if queue == "" {
		queue = "default"
	}
	return &TaskSettler{enqueuer: enqueuer, queue: queue, maxRetry: maxRetry}
}

func SettleTaskID(escrowID string) string {
	return "settle:" + escrowID
}

func (s *TaskSettler) Settle(ctx context.Context, req SettleRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal settle request: %w", err)
	}

	opts := []asynq.Option{
		asynq.Queue(s.queue),
		asynq.TaskID(SettleTaskID(req.EscrowID)),
	}
	if s.maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(s.maxRetry))
	}

	_, err = s.enqueuer.Enqueue(ctx, asynq.NewTask(taskname.RewardSettleEscrow, payload), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}
