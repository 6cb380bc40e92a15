package escrow

import (
	"errors"
	"fmt"
)

type Signal int

const (
	// SignalSigned: payload signed and the ledger confirmed the transaction.
	SignalSigned Signal = iota + 1
	// SignalRejected: payload resolved without a signature.
	SignalRejected
	// SignalExpired: payload expired, whatever its signed flag says.
	SignalExpired
	// SignalLedgerRejected: the signed transaction was validated with a failure result.
	SignalLedgerRejected
	// SignalStale: the escrow stayed pending past the lookback window.
	SignalStale
	// SignalVerified: deadline passed and the participation earned its reward.
	SignalVerified
	// SignalUnverified: deadline passed without a verified saving.
	SignalUnverified
)

func (s Signal) String() string {
	switch s {
	case SignalSigned:
		return "signed"
	case SignalRejected:
		return "rejected"
	case SignalExpired:
		return "expired"
	case SignalLedgerRejected:
		return "ledger_rejected"
	case SignalStale:
		return "stale"
	case SignalVerified:
		return "verified"
	case SignalUnverified:
		return "unverified"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

var (
	ErrTerminal          = errors.New("escrow: status is terminal")
	ErrInvalidTransition = errors.New("escrow: invalid transition")
)

var transitions = map[Status]map[Signal]Status{
	StatusPending: {
		SignalSigned:         StatusActive,
		SignalRejected:       StatusFailed,
		SignalExpired:        StatusFailed,
		SignalLedgerRejected: StatusFailed,
		SignalStale:          StatusAbandoned,
	},
	StatusActive: {
		SignalVerified:   StatusFinished,
		SignalUnverified: StatusCancelled,
	},
}

// Next returns the status reached from `from` on sig. Terminal statuses
// never move and report ErrTerminal.
func Next(from Status, sig Signal) (Status, error) {
	if from.Terminal() {
		return from, ErrTerminal
	}

	to, ok := transitions[from][sig]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, from, sig)
	}
	return to, nil
}
