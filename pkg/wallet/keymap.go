// Package wallet holds the key custody side of the generator: which
// keypair may spend which outpoint. The validator never needs this:
// signatures and public keys travel inside the transactions themselves.
package wallet

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/minichain/minichain/pkg/keys"
	"github.com/minichain/minichain/pkg/types"
)

// Keypair bundles the private key authorizing a spend with its public
// counterpart. It serializes as a two-element array so snapshots keep
// both halves under one key.
type Keypair struct {
	Private *keys.PrivateKey
	Public  *keys.PublicKey
}

// MarshalJSON encodes the pair as [private, public]
func (kp Keypair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{kp.Private, kp.Public})
}

// UnmarshalJSON decodes a [private, public] array
func (kp *Keypair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	kp.Private = new(keys.PrivateKey)
	if err := json.Unmarshal(raw[0], kp.Private); err != nil {
		return fmt.Errorf("keypair private half: %w", err)
	}

	kp.Public = new(keys.PublicKey)
	if err := json.Unmarshal(raw[1], kp.Public); err != nil {
		return fmt.Errorf("keypair public half: %w", err)
	}

	return nil
}

// KeyMap maps each outpoint the generator can spend to the keypair that
// authorizes it. Entries are removed on spend and inserted for every
// output a new transaction creates.
type KeyMap map[types.Outpoint]Keypair

// NewKeyMap creates an empty key map
func NewKeyMap() KeyMap {
	return make(KeyMap)
}

// Clone returns a copy; keypairs are immutable so the values are shared
func (km KeyMap) Clone() KeyMap {
	clone := make(KeyMap, len(km))
	for op, kp := range km {
		clone[op] = kp
	}
	return clone
}

// entry is the JSON form: outpoints cannot key a JSON object, so the
// map serializes as a list of {"outpoint", "keypair"} objects, the
// keypair itself being a [private, public] array; entries are not
// written as bare two-element arrays
type entry struct {
	Outpoint types.Outpoint `json:"outpoint"`
	Keypair  Keypair        `json:"keypair"`
}

// MarshalJSON encodes the map as a sorted pair list
func (km KeyMap) MarshalJSON() ([]byte, error) {
	ops := make([]types.Outpoint, 0, len(km))
	for op := range km {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].TxID != ops[j].TxID {
			return ops[i].TxID < ops[j].TxID
		}
		return ops[i].Index < ops[j].Index
	})

	entries := make([]entry, 0, len(ops))
	for _, op := range ops {
		entries = append(entries, entry{Outpoint: op, Keypair: km[op]})
	}
	return json.Marshal(entries)
}

// UnmarshalJSON decodes a pair list
func (km *KeyMap) UnmarshalJSON(data []byte) error {
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	m := make(KeyMap, len(entries))
	for _, e := range entries {
		m[e.Outpoint] = e.Keypair
	}
	*km = m
	return nil
}
