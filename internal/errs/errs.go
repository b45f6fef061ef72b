// Package errs defines the error kinds the compiler core raises (spec §7)
// and the ordered diagnostic log each stage accumulates into before
// deciding whether to fail.
package errs

import "fmt"

// Location pinpoints a diagnostic in the original grammar source.
type Location struct {
	Line   int // 1-based line number
	Column int // 1-based column, relative to the start of Line
}

// String renders the location as "line:column".
func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Kind identifies which of the seven error categories a diagnostic or
// terminal failure belongs to.
type Kind int

const (
	// InputCharacterError: byte outside the allowed set, a strict-mode
	// line-ending violation, or a missing final line terminator.
	InputCharacterError Kind = iota
	// SyntaxError: reported by the external grammar parser and propagated
	// unchanged.
	SyntaxError
	// SemanticError: undefined rule/UDT reference, duplicate rule without
	// incremental-alt, inverted range/repetition bounds, TAB in a literal,
	// empty case-sensitive literal, numeric literal overflow.
	SemanticError
	// AttributeError: one or more rules are left-recursive, cyclic, or
	// non-finite.
	AttributeError
	// PpptError: the table would exceed the platform's addressable size,
	// or a protected-rules entry names an unknown rule.
	PpptError
	// EmitError: arithmetic overflow while computing widths or offsets.
	EmitError
	// StateError: a stage was invoked before its prerequisite completed.
	StateError
)

func (k Kind) String() string {
	switch k {
	case InputCharacterError:
		return "InputCharacterError"
	case SyntaxError:
		return "SyntaxError"
	case SemanticError:
		return "SemanticError"
	case AttributeError:
		return "AttributeError"
	case PpptError:
		return "PpptError"
	case EmitError:
		return "EmitError"
	case StateError:
		return "StateError"
	default:
		return "UnknownError"
	}
}

// Error is a single diagnostic: a kind, a human message, an optional source
// location, and an optional wrapped cause. It implements the standard error
// interface plus Unwrap so callers can use errors.As/errors.Is.
type Error struct {
	Kind     Kind
	Message  string
	Loc      *Location // nil when the error has no source position
	Rendered string    // the offending source line, when Loc is set
	Cause    error
}

// New returns an Error of the given kind with no source location.
func New(kind Kind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...)}
}

// NewAt returns an Error of the given kind located at loc, with the source
// line it occurred on recorded for display.
func NewAt(kind Kind, loc Location, rendered string, format string, a ...interface{}) *Error {
	l := loc
	return &Error{
		Kind:     kind,
		Message:  fmt.Sprintf(format, a...),
		Loc:      &l,
		Rendered: rendered,
	}
}

// Wrap returns an Error of the given kind that wraps cause.
func Wrap(kind Kind, cause error, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...), Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Loc != nil {
		return fmt.Sprintf("%s at %s: %s", e.Kind, e.Loc, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap gives the error this Error wraps, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// FullMessage renders the error together with its offending source line,
// mirroring the rendered-line diagnostics of the original implementation's
// line-error reporting.
func (e *Error) FullMessage() string {
	if e.Loc == nil {
		return e.Error()
	}
	if e.Rendered == "" {
		return e.Error()
	}
	return fmt.Sprintf("%s\n    %s\n    %s^", e.Error(), e.Rendered, caretPad(e.Loc.Column))
}

func caretPad(column int) string {
	if column < 1 {
		return ""
	}
	b := make([]byte, column-1)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
