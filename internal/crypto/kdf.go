package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/argon2"

	"github.com/ericfisherdev/lockbox/internal/domain/model"
)

// KeySize is the length in bytes of a derived master key. Every cipher suite
// takes a key of exactly this size.
const KeySize = 32

const (
	saltSize = 16

	// Argon2id cost for new vaults. Stored per vault, so changing these only
	// affects vaults created afterwards.
	defaultKDFTime      = 3
	defaultKDFMemoryKiB = 64 * 1024
	defaultKDFThreads   = 4
)

var errKeyDestroyed = errors.New("master key destroyed")

// MasterKey is a derived symmetric key held in locked memory.
type MasterKey struct {
	buf *memguard.LockedBuffer
}

// Destroy wipes the key. Safe to call more than once.
func (k *MasterKey) Destroy() {
	if k == nil || k.buf == nil {
		return
	}
	k.buf.Destroy()
}

// Alive reports whether the key is still usable.
func (k *MasterKey) Alive() bool {
	return k != nil && k.buf != nil && k.buf.IsAlive()
}

// Equal compares two keys in constant time.
func (k *MasterKey) Equal(other *MasterKey) bool {
	if !k.Alive() || !other.Alive() {
		return false
	}
	return subtle.ConstantTimeCompare(k.buf.Bytes(), other.buf.Bytes()) == 1
}

func (k *MasterKey) bytes() ([]byte, error) {
	if !k.Alive() {
		return nil, errKeyDestroyed
	}
	return k.buf.Bytes(), nil
}

// NewKeyParams returns parameters for a new vault with a fresh random salt and
// the default Argon2id cost.
func NewKeyParams() (model.KeyParams, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return model.KeyParams{}, fmt.Errorf("generate salt: %w", err)
	}
	return model.KeyParams{
		Salt:      salt,
		Time:      defaultKDFTime,
		MemoryKiB: defaultKDFMemoryKiB,
		Threads:   defaultKDFThreads,
	}, nil
}

// ValidateKeyParams rejects parameter sets Argon2id cannot run with.
func ValidateKeyParams(p model.KeyParams) error {
	switch {
	case len(p.Salt) == 0:
		return errors.New("key params: salt is empty")
	case p.Time == 0:
		return errors.New("key params: time must be positive")
	case p.MemoryKiB == 0:
		return errors.New("key params: memory must be positive")
	case p.Threads == 0:
		return errors.New("key params: threads must be positive")
	}
	return nil
}

// Derive turns a passphrase into a master key using Argon2id. The same
// passphrase and params always produce the same key. An empty passphrase is
// accepted; rejecting it is a front-end decision.
func Derive(passphrase string, params model.KeyParams) (*MasterKey, error) {
	if err := ValidateKeyParams(params); err != nil {
		return nil, err
	}

	secret := []byte(passphrase)
	defer memguard.WipeBytes(secret)

	key := argon2.IDKey(secret, params.Salt, params.Time, params.MemoryKiB, params.Threads, KeySize)

	// NewBufferFromBytes moves key into locked memory and wipes the source.
	return &MasterKey{buf: memguard.NewBufferFromBytes(key)}, nil
}
