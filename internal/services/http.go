package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTTPStatusError reports a non-2xx response from a collaborator. It unwraps
// to ErrTransient for 408, 425, 429, and 5xx, and to ErrPermanent otherwise.
type HTTPStatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	body := SummarizeBody(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: http %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Service, e.StatusCode, body)
}

func (e *HTTPStatusError) Unwrap() error {
	return StatusMarker(e.StatusCode)
}

// StatusMarker returns the marker matching an HTTP status code.
func StatusMarker(code int) error {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusTooEarly,
		code == http.StatusTooManyRequests,
		code >= http.StatusInternalServerError:
		return ErrTransient
	default:
		return ErrPermanent
	}
}

// TransportError tags a failure to reach a collaborator at all. Cancellation
// passes through untagged; everything else (timeouts, resets, DNS) is
// transient.
func TransportError(service string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return Wrap(ErrTransient, service, "request", "transport failure", err)
}

// SummarizeBody flattens a response body into one short line for error messages.
func SummarizeBody(body string) string {
	clean := strings.Join(strings.Fields(body), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
