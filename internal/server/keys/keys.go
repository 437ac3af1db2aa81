// Package keys loads the process's cryptographic key material once at
// startup. The material is passed by reference into the token service and
// message encryption call sites; nothing in this package is a global, so
// tests can construct alternate material freely.
package keys

import (
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/confideapp/confide/internal/server/config"
)

// Material bundles the asymmetric signing pair and the derived symmetric
// key for message content encryption.
type Material struct {
	Private   *rsa.PrivateKey
	Public    *rsa.PublicKey
	Symmetric []byte
}

// Load reads the PEM files named by the config and derives the symmetric
// key from the passphrase.
func Load(cfg *config.Config) (*Material, error) {
	privPEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	pubPEM, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	return FromPEM(privPEM, pubPEM, cfg.SymmetricPassphrase)
}

// FromPEM parses the RSA pair from PEM bytes and derives the symmetric
// key. Split out from Load so tests can supply in-memory keys.
func FromPEM(privPEM, pubPEM []byte, passphrase string) (*Material, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("symmetric passphrase must not be empty")
	}

	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}

	return &Material{
		Private:   priv,
		Public:    pub,
		Symmetric: DeriveSymmetric(passphrase),
	}, nil
}

// DeriveSymmetric stretches a passphrase into a 32-byte AES-256 key.
func DeriveSymmetric(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:]
}
