package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ericfisherdev/lockbox/internal/domain/model"
)

// Suite identifies an authenticated encryption algorithm. Its value is the
// first byte of every ciphertext, so it must never be renumbered.
type Suite uint8

const (
	// SuiteAESGCM is AES-256-GCM with a 12-byte random nonce.
	SuiteAESGCM Suite = iota + 1
	// SuiteXChaCha20Poly1305 is XChaCha20-Poly1305 with a 24-byte random nonce.
	SuiteXChaCha20Poly1305
)

// DefaultSuite is used for new records unless configured otherwise.
const DefaultSuite = SuiteAESGCM

var suiteNames = map[Suite]string{
	SuiteAESGCM:            "aes-gcm",
	SuiteXChaCha20Poly1305: "xchacha20-poly1305",
}

var suiteRegistry = map[Suite]func(key []byte) (cipher.AEAD, error){
	SuiteAESGCM: func(key []byte) (cipher.AEAD, error) {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("aes.NewCipher: %w", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("cipher.NewGCM: %w", err)
		}
		return gcm, nil
	},
	SuiteXChaCha20Poly1305: func(key []byte) (cipher.AEAD, error) {
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("chacha20poly1305.NewX: %w", err)
		}
		return aead, nil
	},
}

// String returns the configuration name of the suite.
func (s Suite) String() string {
	if name, ok := suiteNames[s]; ok {
		return name
	}
	return fmt.Sprintf("suite(%d)", uint8(s))
}

// ParseSuite maps a configuration name to a Suite. Matching is case-insensitive.
func ParseSuite(name string) (Suite, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range suiteNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown cipher suite %q", name)
}

func (s Suite) aead(key *MasterKey) (cipher.AEAD, error) {
	newAEAD, ok := suiteRegistry[s]
	if !ok {
		return nil, fmt.Errorf("unknown cipher suite %d", uint8(s))
	}
	raw, err := key.bytes()
	if err != nil {
		return nil, err
	}
	return newAEAD(raw)
}

// Encrypt seals plaintext under key with a fresh random nonce. The result is
// laid out as suite || nonce || ciphertext || tag, with the suite byte bound
// as associated data. Encrypting the same plaintext twice yields different
// ciphertexts.
func Encrypt(key *MasterKey, suite Suite, plaintext string) ([]byte, error) {
	aead, err := suite.aead(key)
	if err != nil {
		return nil, err
	}

	header := []byte{byte(suite)}
	out := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(plaintext)+aead.Overhead())
	out[0] = byte(suite)
	nonce := out[1:]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("rand nonce: %w", err)
	}

	return aead.Seal(out, nonce, []byte(plaintext), header), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any failure to
// authenticate, including a wrong key, truncation, tampering or an unknown
// suite byte, is reported as model.ErrAuthentication.
func Decrypt(key *MasterKey, ciphertext []byte) (string, error) {
	if len(ciphertext) == 0 {
		return "", fmt.Errorf("%w: empty ciphertext", model.ErrAuthentication)
	}

	suite := Suite(ciphertext[0])
	if _, ok := suiteRegistry[suite]; !ok {
		return "", fmt.Errorf("%w: unknown cipher suite %d", model.ErrAuthentication, ciphertext[0])
	}

	aead, err := suite.aead(key)
	if err != nil {
		return "", err
	}

	body := ciphertext[1:]
	if len(body) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", model.ErrAuthentication)
	}

	nonce, sealed := body[:aead.NonceSize()], body[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, ciphertext[:1])
	if err != nil {
		return "", fmt.Errorf("%w: %s", model.ErrAuthentication, suite)
	}
	return string(plaintext), nil
}
