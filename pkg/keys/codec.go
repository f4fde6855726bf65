package keys

import (
	"fmt"
	"strings"
)

// Alphabet is the character set used for short keys: digits then lowercase
// letters, so keys are case-insensitive-friendly and URL-safe.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

const base = int64(len(Alphabet))

// Encode converts a non-negative integer to its key representation,
// most-significant digit first. Zero encodes to the empty string.
func Encode(n int64) string {
	if n == 0 {
		return ""
	}
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = Alphabet[n%base]
		n /= base
	}
	return string(buf[i:])
}

// Decode is the inverse of Encode. It fails on characters outside the
// alphabet; the empty string decodes to 0.
func Decode(s string) (int64, error) {
	var n int64
	for i := 0; i < len(s); i++ {
		d := strings.IndexByte(Alphabet, s[i])
		if d < 0 {
			return 0, fmt.Errorf("invalid key character %q", s[i])
		}
		n = n*base + int64(d)
	}
	return n, nil
}
