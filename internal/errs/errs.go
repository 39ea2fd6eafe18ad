// Package errs defines the typed error taxonomy this server distinguishes
// between at startup and per-connection, mirroring the error-kind table
// documented for the server (configuration, infrastructure, protocol,
// operational-limit, unsupported-operation, and transient-SQL errors).
package errs

import "fmt"

// ConfigError is a structural or semantic problem in the TOML
// configuration. Always fatal, always surfaced at startup.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Msg }

func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// InfraError covers bind failures, SQL pool init failures, and sandbox
// install failures. Fatal at startup; at runtime it drops the current
// connection only.
type InfraError struct {
	Msg string
	Err error
}

func (e *InfraError) Error() string {
	if e.Err != nil {
		return "infrastructure error: " + e.Msg + ": " + e.Err.Error()
	}
	return "infrastructure error: " + e.Msg
}

func (e *InfraError) Unwrap() error { return e.Err }

func NewInfraError(msg string, err error) *InfraError {
	return &InfraError{Msg: msg, Err: err}
}

// ProtocolError covers unsupported or unrecognised filter constructs
// (ExtensibleMatch, an unknown filter tag). It fails only the search
// that carried the filter, answered with a ProtocolError result; the
// connection stays open.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Msg }

func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// OperationalLimitError signals a size- or time-limit was hit while a
// search was already streaming partial results. The connection stays
// open.
type OperationalLimitError struct {
	Msg string
}

func (e *OperationalLimitError) Error() string { return e.Msg }

// UnsupportedOperationError covers writes and non-anonymous binds:
// reported with a specific LDAP result code, connection stays open.
type UnsupportedOperationError struct {
	Msg string
}

func (e *UnsupportedOperationError) Error() string { return e.Msg }

func NewUnsupportedOperationError(msg string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Msg: msg}
}

// TransientSQLError wraps a failure talking to the backend database for
// a single search; reported as OperationsError, connection stays open.
type TransientSQLError struct {
	Err error
}

func (e *TransientSQLError) Error() string { return "sql error: " + e.Err.Error() }

func (e *TransientSQLError) Unwrap() error { return e.Err }

func NewTransientSQLError(err error) *TransientSQLError {
	return &TransientSQLError{Err: err}
}
