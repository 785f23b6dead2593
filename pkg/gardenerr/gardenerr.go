// Package gardenerr implements the typed error kinds from the core error
// handling design: each error carries a cause chain, an optional source
// location, and a Kind used both to pick a process exit code and to decide
// whether the solver may retry the operation that produced it.
//
// Rendering follows a compiler-diagnostic-style pattern: a source-located
// error that knows how to print itself with file/line/column and an
// optional hint, so that many accumulated ValidationErrors from a single
// graph-build pass can be printed together.
package gardenerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tags an error with its category.
type Kind string

const (
	KindTemplate      Kind = "TemplateError"
	KindValidation    Kind = "ValidationError"
	KindConfiguration Kind = "ConfigurationError"
	KindPlugin        Kind = "PluginError"
	KindTransient     Kind = "TransientError"
	KindTimeout       Kind = "TimeoutError"
	KindCancellation  Kind = "CancellationError"
	KindFilesystem    Kind = "FilesystemError"
)

// ExitCode returns the process exit code associated with a Kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindCancellation:
		return 3
	case KindValidation, KindConfiguration:
		return 2
	case "":
		return 0
	default:
		return 1
	}
}

// Retryable reports whether the solver may retry an operation that failed
// with this Kind. Only TransientError is a retry candidate.
func (k Kind) Retryable() bool {
	return k == KindTransient
}

// Location is a position in a source file, reused across TemplateError and
// ValidationError so that CLI rendering has one code path for "where did
// this come from".
type Location struct {
	File   string
	Line   int
	Column int
	Path   []string // dotted/bracket config path, e.g. ["spec","command","0"]
}

func (l Location) String() string {
	if l.File == "" {
		return ""
	}
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return l.File
}

// Error is the concrete error type returned throughout the core.
type Error struct {
	kind     Kind
	message  string
	location Location
	hint     string
	cause    error
}

// New builds an Error of the given Kind with no location.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Newf builds an Error of the given Kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given Kind wrapping an existing cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

// At attaches a source location and returns the receiver for chaining.
func (e *Error) At(loc Location) *Error {
	e.location = loc
	return e
}

// WithHint attaches a human hint (e.g. "did you mean actions.build.api?").
func (e *Error) WithHint(hint string) *Error {
	e.hint = hint
	return e
}

func (e *Error) Kind() Kind       { return e.kind }
func (e *Error) Location() Location { return e.location }
func (e *Error) Hint() string     { return e.hint }
func (e *Error) Unwrap() error    { return e.cause }

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.kind))
	if loc := e.location.String(); loc != "" {
		fmt.Fprintf(&b, " at %s", loc)
	}
	b.WriteString(": ")
	b.WriteString(e.message)
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	if e.hint != "" {
		fmt.Fprintf(&b, " (hint: %s)", e.hint)
	}
	return b.String()
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error or a *List, defaulting to KindPlugin for an opaque error returned
// by a handler — an uncategorized handler error is treated as non-transient
// "runtime"/"configuration" and surfaces as PluginError.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindPlugin
}

// List aggregates multiple errors raised during one pass (e.g. every
// ValidationError discovered while walking a project), rendering each on
// its own line so every accumulated error is reported together.
type List struct {
	Errors []error
}

func (l *List) Add(err error) {
	if err != nil {
		l.Errors = append(l.Errors, err)
	}
}

func (l *List) HasErrors() bool { return len(l.Errors) > 0 }

func (l *List) ErrOrNil() error {
	if len(l.Errors) == 0 {
		return nil
	}
	return l
}

func (l *List) Error() string {
	lines := make([]string, 0, len(l.Errors))
	for _, e := range l.Errors {
		lines = append(lines, e.Error())
	}
	return fmt.Sprintf("%d error(s):\n  - %s", len(l.Errors), strings.Join(lines, "\n  - "))
}

// Kind of a List is the most severe (highest exit-code precedence) Kind
// among its members, falling back to KindValidation if the list is empty.
func (l *List) Kind() Kind {
	best := Kind("")
	for _, e := range l.Errors {
		k := KindOf(e)
		if best == "" || k.ExitCode() > best.ExitCode() {
			best = k
		}
	}
	if best == "" {
		best = KindValidation
	}
	return best
}
