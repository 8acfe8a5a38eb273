package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// PrivateKey represents a secp256k1 private key
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKeypair generates a fresh random keypair
func GenerateKeypair() (*PrivateKey, *PublicKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	priv := &PrivateKey{key: key}
	return priv, priv.PublicKey(), nil
}

// NewPrivateKeyFromBytes creates a private key from its 32-byte scalar
func NewPrivateKeyFromBytes(data []byte) (*PrivateKey, error) {
	if len(data) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(data))
	}

	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(data)}, nil
}

// Bytes returns the private key as 32 bytes
func (pk *PrivateKey) Bytes() []byte {
	return pk.key.Serialize()
}

// PublicKey derives the public key from the private key
func (pk *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: pk.key.PubKey()}
}

// Sign signs a message with the private key.
// The message is hashed with SHA-256 before ECDSA signing, so callers
// pass the raw message bytes, not a digest.
func (pk *PrivateKey) Sign(message []byte) *Signature {
	digest := sha256.Sum256(message)
	return &Signature{sig: ecdsa.Sign(pk.key, digest[:])}
}

// Equal reports whether two private keys hold the same scalar
func (pk *PrivateKey) Equal(other *PrivateKey) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	return pk.key.Key.Equals(&other.key.Key)
}

// MarshalJSON encodes the key as its hex scalar
func (pk *PrivateKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(pk.Bytes()))
}

// UnmarshalJSON decodes a hex scalar
func (pk *PrivateKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid private key hex: %w", err)
	}

	decoded, err := NewPrivateKeyFromBytes(b)
	if err != nil {
		return err
	}

	pk.key = decoded.key
	return nil
}
