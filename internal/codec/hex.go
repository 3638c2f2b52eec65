package codec

import (
	"encoding/hex"
	"errors"
)

// ErrOddLength is returned when a hex string has an odd number of characters.
var ErrOddLength = errors.New("odd length hex string")

// ErrBufferTooSmall is returned when the decoded value would exceed the allowed size.
var ErrBufferTooSmall = errors.New("decoded value exceeds buffer size")

// ErrInvalidCharacter is returned when a hex string contains a non-hex character.
var ErrInvalidCharacter = errors.New("invalid hex character")

// DecodeHex decodes a hex string into at most maxBytes bytes.
//
// Decoding is case-insensitive and doesn't accept any separator. On failure, no
// partial output is returned.
func DecodeHex(s string, maxBytes int) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, ErrOddLength
	}

	if maxBytes < 0 || len(s)/2 > maxBytes {
		return nil, ErrBufferTooSmall
	}

	// Validate the whole input before allocating the output.
	for i := range len(s) {
		if !isHexDigit(s[i]) {
			return nil, ErrInvalidCharacter
		}
	}

	out := make([]byte, len(s)/2)

	_, err := hex.Decode(out, []byte(s))
	if err != nil {
		return nil, ErrInvalidCharacter
	}

	return out, nil
}

// DecodeHexExact decodes a hex string that must hold exactly size bytes.
func DecodeHexExact(s string, size int) ([]byte, error) {
	out, err := DecodeHex(s, size)
	if err != nil {
		return nil, err
	}

	if len(out) != size {
		return nil, &LengthError{Expected: size, Actual: len(out)}
	}

	return out, nil
}

// EncodeHex returns the lowercase hex form of b.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

func isHexDigit(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'f':
		return true
	case c >= 'A' && c <= 'F':
		return true
	default:
		return false
	}
}
