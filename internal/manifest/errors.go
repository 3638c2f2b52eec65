package manifest

import (
	"errors"
)

// ErrFetch is matched by every error returned while retrieving a manifest.
var ErrFetch = errors.New("manifest fetch failed")

// ErrInvalid is returned when a manifest body can't be parsed or misses a field.
var ErrInvalid = errors.New("invalid manifest")

// FetchError carries the transport status or error of a failed manifest request.
type FetchError struct {
	Status string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return "manifest fetch failed: " + e.Err.Error()
	}

	return "manifest fetch failed: unexpected HTTP status: " + e.Status
}

// Is makes FetchError match ErrFetch.
func (*FetchError) Is(target error) bool {
	return target == ErrFetch
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
