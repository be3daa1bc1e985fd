package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the compile pipeline the error occurred
type Phase string

const (
	PhaseCompile   Phase = "compile"   // top-level compile driver
	PhaseClassify  Phase = "classify"  // edge-layer classification
	PhaseWire      Phase = "wire"      // channel resource wiring
	PhaseRewrite   Phase = "rewrite"   // rewrite passes over action lists
	PhaseSerialize Phase = "serialize" // binary emission
	PhaseAssemble  Phase = "assemble"  // program assembly state machine
)

// Kind categorizes the error
type Kind string

const (
	// KindInvalidProgram marks a structural violation in the input graph:
	// duplicate stream indices, unmatched ddr pairs, count overflow.
	KindInvalidProgram Kind = "invalid_program"

	// KindResourceExhausted marks an allocator that could not supply a
	// channel id or buffer.
	KindResourceExhausted Kind = "resource_exhausted"

	// KindUnsupported marks an action discriminant or feature combination
	// the compiler does not implement for the target interface.
	KindUnsupported Kind = "unsupported"

	// KindInternal marks a violated invariant this compiler itself is
	// supposed to guarantee. It indicates a compiler defect, not bad input.
	KindInternal Kind = "internal"
)

// Error is the structured error type used throughout the compiler
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// KindOf returns the Kind of err when it is (or wraps) an *Error,
// and the empty Kind otherwise.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// IsKind reports whether err is (or wraps) an *Error of the given kind,
// regardless of phase.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidProgram creates a structural-violation error
func InvalidProgram(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidProgram,
		Path:   path,
		Detail: detail,
	}
}

// ResourceExhausted creates an allocator-failure error
func ResourceExhausted(phase Phase, what string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindResourceExhausted,
		Detail: what,
		Cause:  cause,
	}
}

// Unsupported creates an unsupported feature error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Internal creates a violated-invariant error
func Internal(phase Phase, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInternal,
		Detail: detail,
	}
}

// InvalidDiscriminant creates an invalid discriminant error for a
// descriptor whose tag is outside the closed action set
func InvalidDiscriminant(phase Phase, path []string, disc uint32, maxValid uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidProgram,
		Path:   path,
		Detail: fmt.Sprintf("discriminant %d out of range (max %d)", disc, maxValid),
		Value:  disc,
	}
}

// Overflow creates a count/width overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidProgram,
		Path:   path,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// Duplicate creates a duplicate-identifier error
func Duplicate(phase Phase, path []string, what string, index any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidProgram,
		Path:   path,
		Detail: fmt.Sprintf("duplicate %s %v", what, index),
		Value:  index,
	}
}

// NotFound creates a missing-resource error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidProgram,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
