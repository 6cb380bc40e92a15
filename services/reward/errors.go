package reward

import (
	"errors"
	"fmt"

	"curtailment-controlplane/pkg/errutil"

	"github.com/shopspring/decimal"
)

var (
	// ErrEventHeld is returned while an unreleased settlement hold exists.
	ErrEventHeld = errors.New("reward: allocation halted by settlement hold")
	// ErrNotRetryable marks a payment that is not the latest failed attempt.
	ErrNotRetryable = errors.New("reward: payment cannot be retried")
)

// InvariantViolation reports an allocation that would pay an event more
// than its cap. It is never resolved by truncating amounts.
type InvariantViolation struct {
	EventID   string
	Cap       decimal.Decimal
	Attempted decimal.Decimal
}

func (v *InvariantViolation) Error() string {
	return fmt.Sprintf("reward: event %s allocations %s exceed cap %s", v.EventID, v.Attempted.String(), v.Cap.String())
}

func (v *InvariantViolation) Status() errutil.CoreStatus {
	return errutil.StatusInvariantViolation
}
