package storage

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealVersion = byte(1)
	saltLength  = 16
)

var ErrSealedDataCorrupt = errors.New("sealed data corrupt or wrong passphrase")

// sealer encrypts the session document with XChaCha20-Poly1305 under a key derived from a
// passphrase with argon2id. Layout: version | salt | nonce | ciphertext.
type sealer struct {
	passphrase []byte
	salt       []byte
	key        []byte
}

func newSealer(passphrase string) *sealer {
	return &sealer{passphrase: []byte(passphrase)}
}

func (s *sealer) keyFor(salt []byte) []byte {
	if s.key != nil && string(s.salt) == string(salt) {
		return s.key
	}
	s.salt = append([]byte(nil), salt...)
	s.key = argon2.IDKey(s.passphrase, salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
	return s.key
}

func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	salt := s.salt
	if salt == nil {
		salt = make([]byte, saltLength)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
	}
	aead, err := chacha20poly1305.NewX(s.keyFor(salt))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, 1+saltLength+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, sealVersion)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, []byte{sealVersion}), nil
}

func (s *sealer) open(data []byte) ([]byte, error) {
	if len(data) < 1+saltLength+chacha20poly1305.NonceSizeX || data[0] != sealVersion {
		return nil, ErrSealedDataCorrupt
	}
	salt := data[1 : 1+saltLength]
	rest := data[1+saltLength:]

	aead, err := chacha20poly1305.NewX(s.keyFor(salt))
	if err != nil {
		return nil, err
	}
	nonce, ciphertext := rest[:aead.NonceSize()], rest[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte{sealVersion})
	if err != nil {
		return nil, ErrSealedDataCorrupt
	}
	return plaintext, nil
}
