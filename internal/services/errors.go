package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProviderUnreachable marks a whole-provider fetch failure. The
	// provider's merge step is skipped; other providers proceed.
	ErrProviderUnreachable = errors.New("provider unreachable")
	// ErrNeedsManualInput marks a provider that requires operator action
	// before it can be fetched (e.g. refreshed request headers for a bot
	// challenge). Resolved out-of-band, then retried.
	ErrNeedsManualInput = errors.New("needs manual input")
	// ErrValidation marks responses that parsed but failed sanity checks.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing upstream resource.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks failures worth retrying without operator action.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message carrying provider and operation context while
// tagging it with one of the sentinel errors above for classification.
func Wrap(marker error, provider, operation, message string, err error) error {
	detail := buildDetail(provider, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(provider, operation, message string) string {
	parts := make([]string, 0, 3)
	if provider = strings.TrimSpace(provider); provider != "" {
		parts = append(parts, provider)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
