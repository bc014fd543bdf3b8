package ledger

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
)

// Signer signs checkpoints.
type Signer interface {
	Name() string
	Sign(data []byte) ([]byte, error)
	KeyHash() uint32
	PublicKey() ed25519.PublicKey
}

// Ed25519Signer signs checkpoints with an Ed25519 key.
type Ed25519Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	name       string
}

// NewEd25519Signer creates a signer. An empty name defaults to
// "fraledger-<first 4 bytes of the public key in hex>".
func NewEd25519Signer(privateKey ed25519.PrivateKey, name string) (*Ed25519Signer, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: got %d, want %d", len(privateKey), ed25519.PrivateKeySize)
	}

	publicKey := privateKey.Public().(ed25519.PublicKey)
	if name == "" {
		name = fmt.Sprintf("fraledger-%x", publicKey[:4])
	}

	return &Ed25519Signer{
		privateKey: privateKey,
		publicKey:  publicKey,
		name:       name,
	}, nil
}

func (s *Ed25519Signer) Name() string {
	return s.name
}

func (s *Ed25519Signer) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(s.privateKey, data), nil
}

// KeyHash returns the signed-note key ID: the first four bytes of
// SHA256(name + "\n" + 0x01 + publicKey).
func (s *Ed25519Signer) KeyHash() uint32 {
	encoded := append([]byte{0x01}, s.publicKey...)
	h := sha256.Sum256([]byte(s.name + "\n" + string(encoded)))
	return uint32(h[0])<<24 | uint32(h[1])<<16 | uint32(h[2])<<8 | uint32(h[3])
}

func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return s.publicKey
}
