// Package cryptox implements the cryptographic primitives of the
// credential core: password hashing, symmetric encryption of short text,
// and OTP generation. Key material is always passed in by the caller.
package cryptox

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/confideapp/confide/internal/errs"
)

// DefaultOTPLength is the number of digits in a generated passcode.
const DefaultOTPLength = 6

// Hasher hashes and verifies passwords with bcrypt. Hashing is CPU-bound,
// so concurrent work is bounded by a weighted semaphore to keep it from
// starving request serving under load.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewHasher returns a Hasher with the given bcrypt cost and worker bound.
// Non-positive arguments fall back to bcrypt.DefaultCost and GOMAXPROCS.
func NewHasher(cost, workers int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(workers))}
}

// Hash returns the bcrypt hash of plaintext. Empty input is a crypto
// error rather than a silent empty hash.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", errs.New(errs.Crypto, "password must not be empty")
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", errs.Wrap(errs.Crypto, "password hashing failed", err)
	}
	return string(out), nil
}

// Compare reports whether plaintext matches hash. A mismatch is (false,
// nil); only a malformed hash produces an error.
func (h *Hasher) Compare(ctx context.Context, plaintext, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, errs.Wrap(errs.Crypto, "malformed password hash", err)
}

const envelopeDelimiter = ":"

// EncryptText encrypts plaintext with AES-GCM under key and returns an
// "iv:ciphertext" envelope, both parts hex-encoded. A fresh random nonce
// is generated per call, so encrypting the same plaintext twice yields
// different envelopes.
func EncryptText(plaintext string, key []byte) (string, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errs.Wrap(errs.Crypto, "nonce generation failed", err)
	}

	ciphertext := aesgcm.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + envelopeDelimiter + hex.EncodeToString(ciphertext), nil
}

// DecryptText reverses EncryptText. A wrong delimiter count, bad hex, or
// a failed authentication tag all surface as crypto errors.
func DecryptText(envelope string, key []byte) (string, error) {
	parts := strings.Split(envelope, envelopeDelimiter)
	if len(parts) != 2 {
		return "", errs.New(errs.Crypto, "invalid ciphertext envelope")
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", errs.Wrap(errs.Crypto, "invalid ciphertext envelope", err)
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", errs.Wrap(errs.Crypto, "invalid ciphertext envelope", err)
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	if len(nonce) != aesgcm.NonceSize() {
		return "", errs.New(errs.Crypto, "invalid ciphertext envelope")
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errs.Wrap(errs.Crypto, "decryption failed", err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.Wrap(errs.Crypto, "invalid encryption key", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.Wrap(errs.Crypto, "cipher init failed", err)
	}
	return aesgcm, nil
}

// GenerateOTP returns a numeric passcode of the given length from a
// cryptographically secure source. The modulo bias over ten digits is
// negligible for codes guarded by short expiry windows.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		length = DefaultOTPLength
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", errs.Wrap(errs.Crypto, "otp generation failed", err)
	}

	digits := make([]byte, length)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	return string(digits), nil
}

// Wipe overwrites b with zeros. Call it on password or key buffers as
// soon as they are no longer needed.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// RandomHex returns a random hex string of 2*n characters.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random read failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
