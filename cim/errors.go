package cim

import (
	"errors"
	"fmt"
)

// CIM status codes as reported in the CODE attribute of an ERROR element
const (
	FaultFailed           = 1
	FaultAccessDenied     = 2
	FaultInvalidNamespace = 3
	FaultInvalidParameter = 4
	FaultInvalidClass     = 5
	FaultNotFound         = 6
	FaultNotSupported     = 7
	FaultInvalidProperty  = 12
	FaultTypeMismatch     = 13
	FaultInvalidQuery     = 15
	FaultInvalidMethod    = 17
)

// ArgumentError reports a target whose shape does not match the requested
// operation. It is raised before any network activity.
type ArgumentError struct {
	Op     string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("invalid argument: %s", e.Reason)
	}
	return fmt.Sprintf("%s: invalid argument: %s", e.Op, e.Reason)
}

// ParseError reports a reference string that violates the grammar, or a
// response that is not well-formed XML.
type ParseError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
	}
	return fmt.Sprintf("parse: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DecodeError reports well-formed XML that lacks expected envelope structure,
// or an unrecognized CIM value type. Element names the offending element.
type DecodeError struct {
	Element string
	Reason  string
}

func (e *DecodeError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("decode %s: %s", e.Element, e.Reason)
	}
	return fmt.Sprintf("decode: %s", e.Reason)
}

// Fault is a server-reported CIM error, decoded from an ERROR element.
// It is distinct from transport and parse failures and carries the numeric
// status code for inspection.
type Fault struct {
	Code        int
	Description string
}

func (e *Fault) Error() string {
	return fmt.Sprintf("CIM fault %d (%s): %s", e.Code, faultName(e.Code), e.Description)
}

func faultName(code int) string {
	switch code {
	case FaultFailed:
		return "Failed"
	case FaultAccessDenied:
		return "AccessDenied"
	case FaultInvalidNamespace:
		return "InvalidNamespace"
	case FaultInvalidParameter:
		return "InvalidParameter"
	case FaultInvalidClass:
		return "InvalidClass"
	case FaultNotFound:
		return "NotFound"
	case FaultNotSupported:
		return "NotSupported"
	case FaultInvalidProperty:
		return "InvalidProperty"
	case FaultTypeMismatch:
		return "TypeMismatch"
	case FaultInvalidQuery:
		return "InvalidQuery"
	case FaultInvalidMethod:
		return "InvalidMethod"
	}
	return "Unknown"
}

// FaultCode extracts the status code from an error chain, returning 0 when
// the error is not a CIM fault.
func FaultCode(err error) int {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code
	}
	return 0
}

// IsNotFound reports whether err is a CIM NotFound fault
func IsNotFound(err error) bool {
	return FaultCode(err) == FaultNotFound
}

// IsInvalidClass reports whether err is a CIM InvalidClass fault
func IsInvalidClass(err error) bool {
	return FaultCode(err) == FaultInvalidClass
}

// IsInvalidNamespace reports whether err is a CIM InvalidNamespace fault
func IsInvalidNamespace(err error) bool {
	return FaultCode(err) == FaultInvalidNamespace
}
