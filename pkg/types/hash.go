// Hashes travel through the system as lowercase hex strings: they key
// maps, concatenate into signing messages, and pair up inside the merkle
// tree, all of which want the canonical text form rather than raw bytes.

package types

import "strings"

// HashLen is the length of a hex-encoded SHA-256 digest
const HashLen = 64

// ZeroHash is the all-zero hash used by the genesis block header
var ZeroHash = strings.Repeat("0", HashLen)

// IsHash reports whether s looks like a canonical hash: 64 characters of
// lowercase hex
func IsHash(s string) bool {
	if len(s) != HashLen {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}
