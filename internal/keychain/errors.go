package keychain

import (
	"errors"
	"fmt"
	"strings"
)

// ActiveKeyGuidance replaces provider messages about a missing active key.
const ActiveKeyGuidance = "Please add your active key to Hive Keychain to make transfers. Open Hive Keychain extension → Add Account → Enter your active private key."

// ErrProviderUnavailable indicates that no signing provider is installed or reachable.
var ErrProviderUnavailable = errors.New("keychain: signing provider unavailable")

// ValidationError reports malformed input detected before the provider is invoked.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("keychain: invalid %s: %s", e.Field, e.Reason)
}

// UpstreamError reports a request the provider completed unsuccessfully.
type UpstreamError struct {
	Operation string
	Message   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("keychain: %s rejected: %s", e.Operation, e.Message)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func mentionsMissingActiveKey(message string) bool {
	lowered := strings.ToLower(message)
	return strings.Contains(lowered, "active key") || strings.Contains(lowered, "has not been added")
}
