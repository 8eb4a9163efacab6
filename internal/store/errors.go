package store

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a store failure.
type Kind int

const (
	// Transport covers unreachable backends and non-success responses.
	Transport Kind = iota
	// Decode means the backend answered with data that is not a transaction.
	Decode
	// NotFound is a transport failure for an id the backend does not know.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Decode:
		return "decode"
	case NotFound:
		return "not_found"
	default:
		return "transport"
	}
}

// Sentinels backends wrap so the Client can classify their errors.
var (
	ErrNotFound = errors.New("transaction not found")
	ErrDecode   = errors.New("malformed store data")
)

// Failure is the only error type the Client returns.
type Failure struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s failed (%s): %s: %v", f.Op, f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s failed (%s): %s", f.Op, f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// normalize converts any backend error into a Failure for op.
func normalize(op string, err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		if f.Op == "" {
			f.Op = op
		}
		return f
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, ErrNotFound):
		return &Failure{Kind: NotFound, Op: op, Message: "transaction not found", Err: err}
	case errors.Is(err, ErrDecode), errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return &Failure{Kind: Decode, Op: op, Message: "store returned malformed data", Err: err}
	default:
		return &Failure{Kind: Transport, Op: op, Message: "store unavailable", Err: err}
	}
}

// IsNotFound reports whether err is a NotFound failure.
func IsNotFound(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == NotFound
}
