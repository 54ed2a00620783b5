// Package photoerr defines the two failure kinds of the photo browser:
// transport failures and decode failures.
package photoerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// NetworkError reports a failed fetch: a connectivity error or a non-2xx
// HTTP status.
type NetworkError struct {
	URL string
	// Status is the HTTP status code, or 0 if no response was received.
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError reports a malformed payload: feed JSON or image bytes.
type DecodeError struct {
	// Source names what was decoded, e.g. "feed" or the image URL.
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Network wraps err as a NetworkError for url.
func Network(url string, status int, err error) error {
	if err == nil && status == 0 {
		return nil
	}
	return &NetworkError{URL: url, Status: status, Err: err}
}

// Decode wraps err as a DecodeError for source.
func Decode(source string, err error) error {
	if err == nil {
		return nil
	}
	return &DecodeError{Source: source, Err: err}
}

// IsNetwork reports whether err is, or wraps, a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsDecode reports whether err is, or wraps, a DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Kind returns a stable label for err: "network", "decode" or "other".
func Kind(err error) string {
	switch {
	case IsNetwork(err):
		return "network"
	case IsDecode(err):
		return "decode"
	default:
		return "other"
	}
}
