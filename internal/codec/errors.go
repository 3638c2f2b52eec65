package codec

import (
	"strconv"
)

// LengthError is returned by DecodeHexExact when the input decodes to the wrong size.
type LengthError struct {
	Expected int
	Actual   int
}

func (e *LengthError) Error() string {
	return "expected " + strconv.Itoa(e.Expected) + " bytes, got " + strconv.Itoa(e.Actual)
}
