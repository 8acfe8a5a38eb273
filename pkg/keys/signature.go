package keys

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Signature represents an ECDSA signature
type Signature struct {
	sig *ecdsa.Signature
}

// ParseSignature parses a DER-encoded signature
func ParseSignature(data []byte) (*Signature, error) {
	sig, err := ecdsa.ParseDERSignature(data)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}

	return &Signature{sig: sig}, nil
}

// Serialize returns the DER encoding
func (s *Signature) Serialize() []byte {
	return s.sig.Serialize()
}

// String returns hex of the DER encoding
func (s *Signature) String() string {
	return hex.EncodeToString(s.Serialize())
}

// MarshalJSON encodes the DER signature as hex
func (s *Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a hex DER signature
func (s *Signature) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	b, err := hex.DecodeString(str)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}

	decoded, err := ParseSignature(b)
	if err != nil {
		return err
	}

	s.sig = decoded.sig
	return nil
}
