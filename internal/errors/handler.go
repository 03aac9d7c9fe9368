package errors

import (
	"context"
	stderrors "errors"
	"fmt"

	"meters-poller/internal/logger"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	diagnosticPublisher DiagnosticPublisher
}

// DiagnosticPublisher interface for publishing diagnostics
type DiagnosticPublisher interface {
	PublishDiagnostic(ctx context.Context, code int, message string) error
}

// NewErrorHandler creates a new error handler. publisher may be nil.
func NewErrorHandler(publisher DiagnosticPublisher) *ErrorHandler {
	return &ErrorHandler{
		diagnosticPublisher: publisher,
	}
}

// Handle processes an error with appropriate logging and diagnostics
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	var (
		linkErr  *LinkError
		readErr  *FieldReadError
		writeErr *FieldWriteError
		mqttErr  *MQTTError
		cfgErr   *ConfigError
	)
	code := GetDiagnosticCode(err)

	switch {
	case stderrors.As(err, &cfgErr):
		logger.LogError("🔴 CRITICAL Configuration Error: %s", err.Error())
		h.publish(ctx, code, fmt.Sprintf("Config field '%s': %s", cfgErr.Field, cfgErr.Op))
	case stderrors.As(err, &linkErr):
		logSeverity(linkErr.Severity, "Link", err)
		h.publish(ctx, code, fmt.Sprintf("%s link %s: %s", linkErr.Protocol, linkErr.Endpoint, linkErr.Op))
	case stderrors.As(err, &readErr):
		logSeverity(readErr.Severity, "Modbus", err)
		h.publish(ctx, code, fmt.Sprintf("Unit %d: read '%s' failed", readErr.UnitID, readErr.Field))
	case stderrors.As(err, &writeErr):
		logSeverity(writeErr.Severity, "Modbus", err)
		h.publish(ctx, code, fmt.Sprintf("Unit %d: write '%s' failed", writeErr.UnitID, writeErr.Field))
	case stderrors.As(err, &mqttErr):
		logSeverity(mqttErr.Severity, "MQTT", err)
		// Publishing a diagnostic about a broken broker goes nowhere useful
	default:
		logger.LogError("❌ Untyped Error: %v", err)
		h.publish(ctx, code, err.Error())
	}
}

func logSeverity(severity ErrorSeverity, kind string, err error) {
	switch severity {
	case SeverityCritical:
		logger.LogError("🔴 CRITICAL %s Error: %s", kind, err.Error())
	case SeverityError:
		logger.LogError("❌ %s Error: %s", kind, err.Error())
	case SeverityWarning:
		logger.LogWarn("⚠️ %s Warning: %s", kind, err.Error())
	default:
		logger.LogInfo("ℹ️ %s Info: %s", kind, err.Error())
	}
}

func (h *ErrorHandler) publish(ctx context.Context, code int, message string) {
	if h.diagnosticPublisher == nil {
		return
	}
	if publishErr := h.diagnosticPublisher.PublishDiagnostic(ctx, code, message); publishErr != nil {
		logger.LogDebug("Failed to publish error diagnostic: %v", publishErr)
	}
}

// IsLinkError reports whether err (or anything it wraps) is a LinkError
func IsLinkError(err error) bool {
	var linkErr *LinkError
	return stderrors.As(err, &linkErr)
}

// GetDiagnosticCode extracts the diagnostic code from an error
func GetDiagnosticCode(err error) int {
	if err == nil {
		return CodeOK
	}

	var (
		linkErr  *LinkError
		readErr  *FieldReadError
		writeErr *FieldWriteError
		mqttErr  *MQTTError
		cfgErr   *ConfigError
		bridge   *BridgeError
	)
	switch {
	case stderrors.As(err, &cfgErr):
		return cfgErr.Code
	case stderrors.As(err, &linkErr):
		return linkErr.Code
	case stderrors.As(err, &readErr):
		return readErr.Code
	case stderrors.As(err, &writeErr):
		return writeErr.Code
	case stderrors.As(err, &mqttErr):
		return mqttErr.Code
	case stderrors.As(err, &bridge):
		return bridge.Code
	default:
		return CodeGeneric
	}
}
