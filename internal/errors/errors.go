// Package errors provides standardized error codes for the Ring client.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (auth, request, socket, asset, alarm, credential, storage)
//   - error: The specific error type within that domain
//
// These codes are stable and can be used by embedding applications for
// programmatic error handling. Human-readable messages are provided
// alongside codes.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
// These are stable identifiers that embedding applications can rely on.
const (
	// Auth domain - OAuth token acquisition and refresh
	CodeAuthFailed         = "auth.failed"           // Token request rejected (bad credentials)
	CodeAuth2FARequired    = "auth.2fa_required"     // Account requires a two-factor code
	CodeAuth2FAInvalidCode = "auth.2fa_invalid_code" // Two-factor code was incorrect

	// Request domain - generic REST call failures
	CodeRequestFailed      = "request.failed"       // Non-recoverable status or unbuildable request
	CodeRequestNoResponse  = "request.no_response"  // Transport failure, no HTTP response
	CodeRequestBadResponse = "request.bad_response" // 2xx response with an undecodable body
	CodeRequestNotFound    = "request.not_found"    // 404 with no recognized error codes

	// Socket domain - realtime connection errors
	CodeSocketDialFailed = "socket.dial_failed" // WebSocket dial failed
	CodeSocketClosed     = "socket.closed"      // Connection closed unexpectedly
	CodeSocketBadPacket  = "socket.bad_packet"  // Malformed engine.io/socket.io frame
	CodeSocketSendFailed = "socket.send_failed" // Failed to transmit a message

	// Asset domain - hub/bridge availability
	CodeAssetNone = "asset.none" // Location has no socket-capable assets

	// Alarm domain - security panel command protocol
	CodeAlarmNoPanel       = "alarm.no_panel"        // No security panel device at the location
	CodeAlarmModeMismatch  = "alarm.mode_mismatch"   // Panel confirmed a different mode than requested
	CodeAlarmNoBaseStation = "alarm.no_base_station" // Panic dispatch requires an alarm base station

	// Credential domain - refresh token blob handling
	CodeCredentialMissing = "credential.missing" // No refresh token and no password credentials

	// Storage domain - local persistence
	CodeStorageOpenFailed  = "storage.open_failed"  // Database open failed
	CodeStorageQueryFailed = "storage.query_failed" // Database query failed
	CodeStorageSaveFailed  = "storage.save_failed"  // Failed to save data
	CodeStorageNotFound    = "storage.not_found"    // Row not found

	// General domain - catch-all errors
	CodeUnknown = "error.unknown" // Unknown error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "auth.expired")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// If the error is a CodedError, returns its code.
// Falls back to CodeUnknown for unrecognized errors.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
// If the error is a CodedError, returns its message.
// Otherwise, returns the error's Error() string.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}

	return err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// Common error constructors for frequently used error types.

// TwoFactorRequired creates an "auth.2fa_required" error.
// The prompt tells the user where their verification code was sent.
func TwoFactorRequired(prompt string) *CodedError {
	return New(CodeAuth2FARequired, prompt)
}

// TwoFactorInvalidCode creates an "auth.2fa_invalid_code" error carrying
// the server's error text.
func TwoFactorInvalidCode(serverError string) *CodedError {
	return New(CodeAuth2FAInvalidCode, serverError)
}

// AuthFailed creates an "auth.failed" error with guidance text.
func AuthFailed(message string) *CodedError {
	return New(CodeAuthFailed, message)
}

// RequestFailed creates a "request.failed" error carrying the HTTP
// status and response body for diagnosis.
func RequestFailed(url string, status int, body string) *CodedError {
	return New(CodeRequestFailed, fmt.Sprintf("request to %s failed with status %d: %s", url, status, body))
}

// NoResponse creates a "request.no_response" error for transport
// failures where no HTTP response was received.
func NoResponse(url string, cause error) *CodedError {
	return Wrap(CodeRequestNoResponse, fmt.Sprintf("failed to reach server at %s", url), cause)
}

// NoAssets creates an "asset.none" error for a location with no
// socket-capable hubs or bridges.
func NoAssets(locationName, locationID string) *CodedError {
	return New(CodeAssetNone, fmt.Sprintf("no assets (alarm hubs or beam bridges) found for location %s - %s", locationName, locationID))
}

// AlarmModeMismatch creates an "alarm.mode_mismatch" error.
// This indicates the panel confirmed a mode other than the one requested,
// typically because open sensors require bypass.
func AlarmModeMismatch(requested string) *CodedError {
	msg := fmt.Sprintf("failed to set alarm mode to %q - sensors may require bypass, which can only be done in the Ring app", requested)
	return New(CodeAlarmModeMismatch, msg)
}

// NoSecurityPanel creates an "alarm.no_panel" error.
func NoSecurityPanel(locationName, locationID string) *CodedError {
	return New(CodeAlarmNoPanel, fmt.Sprintf("could not find a security panel for location %s - %s", locationName, locationID))
}
