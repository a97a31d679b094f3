// Package vmerrors defines the fatal error taxonomy shared by heap,
// object and the interpreter. The source aborts the process on these
// conditions (a handful of direct std::runtime_error throws scattered
// across the GC, the hash map and the dispatch loop); Go code panics
// with a *Fault and lets the dispatch loop's top-level recover convert
// it back into a returned error, which is the idiomatic analogue of an
// unwind-through-many-frames abort.
package vmerrors

import "github.com/pkg/errors"

// Kind classifies a fatal VM fault per §7 of the design docs.
type Kind uint8

const (
	OutOfMemory Kind = iota
	StackOverflow
	TypeError
	RangeError
	DivideByZero
	IllegalInstruction
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "OutOfMemory"
	case StackOverflow:
		return "StackOverflow"
	case TypeError:
		return "TypeError"
	case RangeError:
		return "RangeError"
	case DivideByZero:
		return "DivideByZero"
	case IllegalInstruction:
		return "IllegalInstruction"
	default:
		return "Unknown"
	}
}

// Fault is a fatal, unrecoverable VM condition. Every execution path
// that would abort the process in the source raises one of these.
type Fault struct {
	Kind Kind
	err  error
}

func (f *Fault) Error() string {
	return f.Kind.String() + ": " + f.err.Error()
}

func (f *Fault) Unwrap() error { return f.err }

// New builds a Fault of the given kind wrapping msg.
func New(kind Kind, msg string) *Fault {
	return &Fault{Kind: kind, err: errors.New(msg)}
}

// Wrap builds a Fault of the given kind around an existing error,
// preserving it behind Unwrap. Fault has no Cause method, so
// errors.Cause on a Fault returns the Fault itself.
func Wrap(kind Kind, err error, msg string) *Fault {
	return &Fault{Kind: kind, err: errors.Wrap(err, msg)}
}

// Raise panics with a Fault of the given kind. Every package in this
// module that needs to abort execution does so through Raise rather
// than a bare panic, so the single recover at the top of Execute can
// assume every panic value it sees is either a *Fault or a genuine
// programming bug it should not swallow.
func Raise(kind Kind, msg string) {
	panic(New(kind, msg))
}

// Raisef is Raise with pkg/errors-style formatting.
func Raisef(kind Kind, format string, args ...any) {
	panic(&Fault{Kind: kind, err: errors.Errorf(format, args...)})
}

// Recover turns a recovered panic value into an error. Faults are
// returned as-is; any other recovered value is re-panicked, since it
// represents a bug in the interpreter rather than a modeled VM fault.
func Recover(r any) error {
	if r == nil {
		return nil
	}
	if f, ok := r.(*Fault); ok {
		return f
	}
	panic(r)
}
