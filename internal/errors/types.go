package errors

import (
	"fmt"
)

// ErrorSeverity defines the severity level of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Diagnostic codes published on the diagnostic topic
const (
	CodeOK      = 0
	CodeConfig  = 1
	CodeLink    = 2
	CodeField   = 3
	CodeMQTT    = 4
	CodeGeneric = 99
)

// BridgeError is the base error type for all poller errors
type BridgeError struct {
	Op       string        // Operation that failed
	Err      error         // Underlying error
	Severity ErrorSeverity // Error severity
	Code     int           // Diagnostic code for MQTT
}

// Error implements the error interface
func (e *BridgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Severity, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Severity, e.Op)
}

// Unwrap returns the underlying error
func (e *BridgeError) Unwrap() error {
	return e.Err
}

// LinkError means a transport session could not be established.
// It fails the whole operation that needed the session.
type LinkError struct {
	BridgeError
	Protocol string
	Endpoint string // serial port or host:port
}

// NewLinkError creates a new link error
func NewLinkError(op string, err error, protocol, endpoint string) *LinkError {
	return &LinkError{
		BridgeError: BridgeError{
			Op:       op,
			Err:      err,
			Severity: SeverityError,
			Code:     CodeLink,
		},
		Protocol: protocol,
		Endpoint: endpoint,
	}
}

// Error implements the error interface
func (e *LinkError) Error() string {
	return fmt.Sprintf("[%s] %s link %s: %s: %v",
		e.Severity, e.Protocol, e.Endpoint, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *LinkError) Unwrap() error {
	return e.Err
}

// FieldReadError is a failed 2-register read of one field
type FieldReadError struct {
	BridgeError
	Field   string
	Address uint16
	UnitID  uint8
}

// NewFieldReadError creates a new field read error
func NewFieldReadError(field string, address uint16, unitID uint8, err error) *FieldReadError {
	return &FieldReadError{
		BridgeError: BridgeError{
			Op:       "read",
			Err:      err,
			Severity: SeverityError,
			Code:     CodeField,
		},
		Field:   field,
		Address: address,
		UnitID:  unitID,
	}
}

// Error implements the error interface
func (e *FieldReadError) Error() string {
	return fmt.Sprintf("[%s] unit %d: read '%s' @0x%04X: %v",
		e.Severity, e.UnitID, e.Field, e.Address, e.Err)
}

// Unwrap returns the underlying error
func (e *FieldReadError) Unwrap() error {
	return e.Err
}

// FieldWriteError is a failed 2-register write of one field
type FieldWriteError struct {
	BridgeError
	Field   string
	Address uint16
	UnitID  uint8
}

// NewFieldWriteError creates a new field write error
func NewFieldWriteError(field string, address uint16, unitID uint8, err error) *FieldWriteError {
	return &FieldWriteError{
		BridgeError: BridgeError{
			Op:       "write",
			Err:      err,
			Severity: SeverityError,
			Code:     CodeField,
		},
		Field:   field,
		Address: address,
		UnitID:  unitID,
	}
}

// Error implements the error interface
func (e *FieldWriteError) Error() string {
	return fmt.Sprintf("[%s] unit %d: write '%s' @0x%04X: %v",
		e.Severity, e.UnitID, e.Field, e.Address, e.Err)
}

// Unwrap returns the underlying error
func (e *FieldWriteError) Unwrap() error {
	return e.Err
}

// MQTTError represents errors from MQTT operations
type MQTTError struct {
	BridgeError
	Broker string
	Topic  string
}

// NewMQTTError creates a new MQTT error
func NewMQTTError(op string, err error, broker string) *MQTTError {
	return &MQTTError{
		BridgeError: BridgeError{
			Op:       op,
			Err:      err,
			Severity: SeverityError,
			Code:     CodeMQTT,
		},
		Broker: broker,
	}
}

// Error implements the error interface
func (e *MQTTError) Error() string {
	if e.Topic != "" {
		return fmt.Sprintf("[%s] MQTT broker '%s' (topic: %s): %s: %v",
			e.Severity, e.Broker, e.Topic, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] MQTT broker '%s': %s: %v",
		e.Severity, e.Broker, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *MQTTError) Unwrap() error {
	return e.Err
}

// ConfigError represents configuration errors.
// At poll time it only skips the offending device.
type ConfigError struct {
	BridgeError
	Field string
	Value interface{}
}

// NewConfigError creates a new configuration error
func NewConfigError(op string, err error, field string) *ConfigError {
	return &ConfigError{
		BridgeError: BridgeError{
			Op:       op,
			Err:      err,
			Severity: SeverityCritical, // Config errors are critical
			Code:     CodeConfig,
		},
		Field: field,
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] Configuration field '%s': %s: %v",
			e.Severity, e.Field, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] Configuration: %s: %v",
		e.Severity, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Err
}
