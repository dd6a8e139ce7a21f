package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// DefaultPasswordLength is the length used when the caller does not ask for one.
const DefaultPasswordLength = 12

const (
	lowercase   = "abcdefghijklmnopqrstuvwxyz"
	uppercase   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits      = "0123456789"
	punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// PasswordCharset is every character a generated password may contain.
const PasswordCharset = lowercase + uppercase + digits + punctuation

// GeneratePassword returns length characters drawn uniformly and
// independently from PasswordCharset using crypto/rand. A zero length yields
// the empty string.
func GeneratePassword(length int) (string, error) {
	if length < 0 {
		return "", errors.New("password length must not be negative")
	}

	charsetSize := big.NewInt(int64(len(PasswordCharset)))
	password := make([]byte, length)
	for i := range password {
		idx, err := rand.Int(rand.Reader, charsetSize)
		if err != nil {
			return "", fmt.Errorf("rand index: %w", err)
		}
		password[i] = PasswordCharset[idx.Int64()]
	}

	return string(password), nil
}
