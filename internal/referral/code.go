// Package referral generates and validates 5-character referral codes.
package referral

import (
	"crypto/rand"
	"math/big"
)

// CodeLength is the length of every referral code.
const CodeLength = 5

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generate returns a code drawn uniformly from [A-Z0-9]{5}.
// Uniqueness is not checked here; the store rejects duplicates.
func Generate() (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, CodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

// IsWellFormed reports whether code is exactly five characters of [A-Z0-9].
func IsWellFormed(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// IsValidUsername reports whether name has at least three characters, all
// letters, digits or underscores.
func IsValidUsername(name string) bool {
	if len(name) < 3 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}
