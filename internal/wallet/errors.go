package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/congo-pay/wallet_engine/internal/ledger"
)

// ValidationError rejects a request that is well formed but breaks a business
// rule. Reason is safe to show to clients.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

func invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Outcome classifies the result of an engine operation.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeInvalid
	OutcomeConflict
	OutcomeTimeout
	OutcomeInternal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeConflict:
		return "conflict"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// OutcomeOf maps an error returned by Service to its outcome kind. Only
// OutcomeConflict is worth retrying.
func OutcomeOf(err error) Outcome {
	var verr *ValidationError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &verr):
		return OutcomeInvalid
	case errors.Is(err, ledger.ErrWalletNotFound), errors.Is(err, ledger.ErrCustomerNotFound):
		return OutcomeNotFound
	case errors.Is(err, ledger.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return OutcomeTimeout
	default:
		return OutcomeInternal
	}
}
