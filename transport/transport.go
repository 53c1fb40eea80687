// Package transport carries CIM-XML payloads to a WBEM server. The wbem
// client consumes it as a capability: send a request, get raw bytes or an
// error. Errors from this package pass through the client unmodified.
package transport

import "fmt"

// AuthenticationError reports a 401 from the server
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// StatusError reports a non-200 HTTP status with no CIM detail headers
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Reason)
}

// ServerError reports a failure described by the CIMError and PGErrorDetail
// response headers some CIM servers attach to non-200 responses
type ServerError struct {
	CIMError string
	Detail   string
}

func (e *ServerError) Error() string {
	if e.Detail == "" {
		return e.CIMError
	}
	return fmt.Sprintf("%s: %s", e.CIMError, e.Detail)
}
