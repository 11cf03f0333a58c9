// Package apistate implements the tri-state value progression used by every
// asynchronous operation the checkout core exposes: an operation is Loading
// until it resolves to exactly one of Success or Error.
package apistate

// Kind discriminates the three variants of a State.
type Kind uint8

const (
	// KindLoading marks an operation that has started but not resolved.
	KindLoading Kind = iota
	// KindSuccess marks an operation that resolved with a value.
	KindSuccess
	// KindError marks an operation that resolved with a failure.
	KindError
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a tagged union of Loading, Success(Value) and Error(Cause).
// The zero value is Loading.
type State[T any] struct {
	kind  Kind
	value T
	cause error
}

// Loading returns the loading variant.
func Loading[T any]() State[T] {
	return State[T]{kind: KindLoading}
}

// Success returns the success variant carrying v.
func Success[T any](v T) State[T] {
	return State[T]{kind: KindSuccess, value: v}
}

// Failure returns the error variant carrying cause.
func Failure[T any](cause error) State[T] {
	return State[T]{kind: KindError, cause: cause}
}

// Kind returns the variant tag.
func (s State[T]) Kind() Kind { return s.kind }

// IsLoading reports whether the state is the loading variant.
func (s State[T]) IsLoading() bool { return s.kind == KindLoading }

// IsTerminal reports whether the state is Success or Error.
func (s State[T]) IsTerminal() bool { return s.kind != KindLoading }

// Value returns the success value and whether the state is the success
// variant.
func (s State[T]) Value() (T, bool) {
	return s.value, s.kind == KindSuccess
}

// MustValue returns the success value, panicking on any other variant.
// Only call it where the state is known to be Success.
func (s State[T]) MustValue() T {
	if s.kind != KindSuccess {
		panic("apistate: MustValue on non-success state " + s.kind.String())
	}
	return s.value
}

// Err returns the failure cause, or nil unless the state is the error
// variant.
func (s State[T]) Err() error {
	if s.kind != KindError {
		return nil
	}
	return s.cause
}
