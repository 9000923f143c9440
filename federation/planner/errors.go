package planner

import "fmt"

// ErrorKind classifies a PlanError. Values mirror the distilled failure
// taxonomy: a caller can switch on Kind without parsing Reason.
type ErrorKind string

const (
	SchemaInvalid      ErrorKind = "SchemaInvalid"
	OperationSelection ErrorKind = "OperationSelection"
	UnknownField       ErrorKind = "UnknownField"
	UnknownType        ErrorKind = "UnknownType"
	UnresolvableField  ErrorKind = "UnresolvableField"
	KeyUnsatisfiable   ErrorKind = "KeyUnsatisfiable"
	Internal           ErrorKind = "Internal"
)

// PlanError is the sole error type returned across the C1-C8 pipeline.
type PlanError struct {
	Kind   ErrorKind
	Reason string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func newErr(kind ErrorKind, format string, args ...any) *PlanError {
	return &PlanError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}
