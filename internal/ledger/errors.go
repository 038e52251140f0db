package ledger

import "errors"

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindInsufficientQuantity
	KindConflict
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientQuantity:
		return "insufficient_quantity"
	case KindConflict:
		return "conflict"
	case KindDependency:
		return "dependency_failure"
	}
	return "unknown"
}

var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrConflict             = errors.New("concurrent update")
	ErrDependency           = errors.New("dependency failure")
)

// Store implementations return these.
var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrRevisionConflict = errors.New("revision conflict")
)

// Error is the typed outcome of a failed ledger operation. Msg is safe to
// show to callers; Err carries the underlying cause if any.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrInsufficientQuantity:
		return e.Kind == KindInsufficientQuantity
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrDependency:
		return e.Kind == KindDependency
	}
	return false
}

// KindOf reports the Kind of err, or 0 when err is not a ledger error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return 0
}

func validationErr(msg string) error { return &Error{Kind: KindValidation, Msg: msg} }

func notFoundErr(msg string, err error) error { return &Error{Kind: KindNotFound, Msg: msg, Err: err} }

// storeErr classifies an error coming back from the Store.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	if errors.Is(err, ErrRevisionConflict) {
		return &Error{Kind: KindConflict, Msg: op + ": position changed concurrently, retry", Err: err}
	}
	return &Error{Kind: KindDependency, Msg: op, Err: err}
}
