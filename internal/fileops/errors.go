package fileops

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var (
	ErrDestinationInsideSource = errors.New("destination is inside the source tree")
	ErrInsufficientSpace       = errors.New("not enough free space on destination volume")
	ErrInvalidDecision         = errors.New("decision not allowed for this conflict")
	ErrResolverClosed          = errors.New("conflict resolver closed")
)

// ErrorPolicy decides what a task does after an entry fails.
type ErrorPolicy int

const (
	// AbortOnError stops the task at the first failing entry.
	AbortOnError ErrorPolicy = iota
	// ContinueAndCollectErrors keeps walking siblings and reports every
	// failure when the task ends.
	ContinueAndCollectErrors
)

func (p ErrorPolicy) String() string {
	if p == ContinueAndCollectErrors {
		return "continue"
	}
	return "abort"
}

// ParseErrorPolicy accepts "abort" or "continue". Empty means abort.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch s {
	case "", "abort":
		return AbortOnError, nil
	case "continue":
		return ContinueAndCollectErrors, nil
	default:
		return AbortOnError, fmt.Errorf("unknown error policy %q", s)
	}
}

// OpError records the entry an operation failed on.
type OpError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// errorSink applies an ErrorPolicy to entry failures during one task.
type errorSink struct {
	kind   Kind
	policy ErrorPolicy
	errs   error
}

// record stores err against path. A non-nil return means the walk must stop.
func (s *errorSink) record(path string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if !errors.As(err, &opErr) {
		err = &OpError{Kind: s.kind, Path: path, Err: err}
	}
	if s.policy == AbortOnError {
		return err
	}
	s.errs = multierr.Append(s.errs, err)
	return nil
}

func (s *errorSink) err() error { return s.errs }
