package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/ripemd160"
)

// PublicKey represents a secp256k1 public key
type PublicKey struct {
	key *secp256k1.PublicKey
}

// NewPublicKeyFromBytes parses a serialized (compressed or uncompressed) public key
func NewPublicKeyFromBytes(data []byte) (*PublicKey, error) {
	key, err := secp256k1.ParsePubKey(data)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}

	return &PublicKey{key: key}, nil
}

// Bytes returns the 33-byte compressed serialization
func (pub *PublicKey) Bytes() []byte {
	return pub.key.SerializeCompressed()
}

// Hash160 returns RIPEMD160(SHA256(pubkey)) as lowercase hex.
// This is the public key hash stored in a PubKeyScript.
func (pub *PublicKey) Hash160() string {
	sha := sha256.Sum256(pub.Bytes())

	ripe := ripemd160.New()
	ripe.Write(sha[:])

	return hex.EncodeToString(ripe.Sum(nil))
}

// Verify verifies a signature over a message.
// The message is hashed with SHA-256 to match PrivateKey.Sign.
func (pub *PublicKey) Verify(message []byte, sig *Signature) bool {
	if sig == nil || sig.sig == nil {
		return false
	}

	digest := sha256.Sum256(message)
	return sig.sig.Verify(digest[:], pub.key)
}

// Equal reports whether two public keys are the same point
func (pub *PublicKey) Equal(other *PublicKey) bool {
	if pub == nil || other == nil {
		return pub == other
	}
	return pub.key.IsEqual(other.key)
}

// String returns hex of the compressed serialization
func (pub *PublicKey) String() string {
	return hex.EncodeToString(pub.Bytes())
}

// MarshalJSON encodes the compressed point as hex
func (pub *PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(pub.String())
}

// UnmarshalJSON decodes a hex compressed point
func (pub *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid public key hex: %w", err)
	}

	decoded, err := NewPublicKeyFromBytes(b)
	if err != nil {
		return err
	}

	pub.key = decoded.key
	return nil
}
