package keys

// Verifier is the capability object carried inside every PubKeyScript.
// It is a trivial value so that an output can name how its spend is
// checked without the TxOut shape depending on a particular scheme.
type Verifier struct{}

// Verify accepts the tuple (message, signature, public key) when the
// signature is a valid ECDSA signature over SHA-256(message) by the key.
func (Verifier) Verify(message string, sig *Signature, pub *PublicKey) bool {
	if pub == nil {
		return false
	}
	return pub.Verify([]byte(message), sig)
}

// MarshalJSON keeps the verifier as an empty object in snapshots
func (Verifier) MarshalJSON() ([]byte, error) {
	return []byte("{}"), nil
}

// UnmarshalJSON accepts any object
func (*Verifier) UnmarshalJSON([]byte) error {
	return nil
}
