package fix

import (
	"context"
	"errors"
	"fmt"
)

// ResultKind classifies the outcome of a public installer operation.
type ResultKind int

const (
	Success ResultKind = iota
	ConnectionError
	HashMismatchError
	Cancelled
	PreconditionError
	GenericError
)

func (k ResultKind) String() string {
	switch k {
	case Success:
		return "success"
	case ConnectionError:
		return "connection error"
	case HashMismatchError:
		return "hash mismatch"
	case Cancelled:
		return "cancelled"
	case PreconditionError:
		return "precondition error"
	case GenericError:
		return "error"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Result is the typed outcome carried by every public installer operation.
// No fault escapes a public entry point except programmer errors.
type Result struct {
	Kind    ResultKind
	Message string
}

func Ok() Result {
	return Result{Kind: Success}
}

func Fail(kind ResultKind, format string, args ...any) Result {
	return Result{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// FromError maps err to a Result, honoring context cancellation and any
// Result already wrapped inside the chain.
func FromError(err error) Result {
	if err == nil {
		return Ok()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Result{Kind: Cancelled, Message: err.Error()}
	}
	var re *ResultError
	if errors.As(err, &re) {
		return re.Result
	}
	return Result{Kind: GenericError, Message: err.Error()}
}

func (r Result) IsSuccess() bool {
	return r.Kind == Success
}

// Err returns the result as an error, or nil on success.
func (r Result) Err() error {
	if r.Kind == Success {
		return nil
	}
	return &ResultError{Result: r}
}

func (r Result) String() string {
	if r.Message == "" {
		return r.Kind.String()
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

// ResultError bridges Result into error chains.
type ResultError struct {
	Result Result
}

func (e *ResultError) Error() string {
	return e.Result.String()
}
