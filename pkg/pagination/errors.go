package pagination

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every *ConfigError.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnexpectedStatus is returned when a page answers with a
	// non-error status other than 200.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrPageLimit is returned when the listing has more pages than
	// Config.MaxPages allows.
	ErrPageLimit = errors.New("page limit reached")

	// ErrCursorCycle is returned when a page hands back a cursor that was
	// already followed.
	ErrCursorCycle = errors.New("pagination cursor repeated")
)

// ConfigError reports a missing or invalid collection input.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}
