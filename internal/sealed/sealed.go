// Package sealed encrypts stored documents with an age scrypt recipient whose
// passphrase is derived per operator from a server secret.
package sealed

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"filippo.io/age"
	"golang.org/x/crypto/argon2"
)

const (
	MinSecretLength   = 32
	DefaultWorkFactor = 15

	// age refuses scrypt stanzas above this unless told otherwise.
	maxDefaultWorkFactor = 22

	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32

	saltPrefix = "acc-folder-permissions:"
)

var (
	ErrSecretTooShort = fmt.Errorf("encryption secret must be at least %d characters", MinSecretLength)
	errNoOperator     = errors.New("operator id is required")
)

// Sealer encrypts and decrypts documents. Ciphertext sealed for one operator
// cannot be opened with another operator's id.
type Sealer struct {
	secret      []byte
	workFactor  int
	passphrases sync.Map // operator id -> passphrase
}

// New returns a Sealer. workFactor is the scrypt log2(N), 1..30; 0 means
// DefaultWorkFactor.
func New(secret string, workFactor int) (*Sealer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if workFactor == 0 {
		workFactor = DefaultWorkFactor
	}
	if workFactor < 1 || workFactor > 30 {
		return nil, fmt.Errorf("scrypt work factor %d out of range 1..30", workFactor)
	}
	return &Sealer{secret: []byte(secret), workFactor: workFactor}, nil
}

func (s *Sealer) passphrase(operatorID string) string {
	if v, ok := s.passphrases.Load(operatorID); ok {
		return v.(string)
	}
	key := argon2.IDKey(s.secret, []byte(saltPrefix+operatorID), argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	p := hex.EncodeToString(key)
	s.passphrases.Store(operatorID, p)
	return p
}

// Seal encrypts plaintext for operatorID.
func (s *Sealer) Seal(operatorID string, plaintext []byte) ([]byte, error) {
	if operatorID == "" {
		return nil, errNoOperator
	}
	recipient, err := age.NewScryptRecipient(s.passphrase(operatorID))
	if err != nil {
		return nil, fmt.Errorf("create recipient: %w", err)
	}
	recipient.SetWorkFactor(s.workFactor)

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return buf.Bytes(), nil
}

// Open decrypts ciphertext sealed for operatorID.
func (s *Sealer) Open(operatorID string, ciphertext []byte) ([]byte, error) {
	if operatorID == "" {
		return nil, errNoOperator
	}
	identity, err := age.NewScryptIdentity(s.passphrase(operatorID))
	if err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}
	identity.SetMaxWorkFactor(max(s.workFactor, maxDefaultWorkFactor))

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
