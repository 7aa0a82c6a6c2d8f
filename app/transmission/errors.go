package transmission

import (
	"errors"
	"fmt"
	"strings"
)

// Failures are tagged with one of these markers so callers can tell a
// rejected request from an unreachable daemon. Errors carrying neither marker
// are unexpected: authentication failures, malformed responses, cancellation.
var (
	ErrProtocol  = errors.New("transmission protocol error")
	ErrTransport = errors.New("transmission transport error")
)

func wrap(marker error, method, message string, err error) error {
	detail := method
	if message = strings.TrimSpace(message); message != "" {
		detail = method + ": " + message
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func IsProtocol(err error) bool {
	return errors.Is(err, ErrProtocol)
}

func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}
