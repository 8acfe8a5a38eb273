// Package utxo holds the authoritative unspent-output state and the
// transaction verification paths. A Set is not synchronized: each
// pipeline component owns its own copy and hands snapshots to its
// neighbors over channels, so Clone is the only sharing mechanism.
package utxo

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/minichain/minichain/pkg/monitoring"
	"github.com/minichain/minichain/pkg/serialization"
	"github.com/minichain/minichain/pkg/types"
)

// Validation failures, reported by CheckTransaction
var (
	ErrUnknownOutpoint     = errors.New("utxo: referenced outpoint not in set")
	ErrDoubleSpend         = errors.New("utxo: outpoint spent twice in one transaction")
	ErrInsufficientBalance = errors.New("utxo: output sum exceeds input sum")
	ErrBadSignature        = errors.New("utxo: signature verification failed")
)

// Set maps outpoints to the unspent outputs they identify
type Set struct {
	entries map[types.Outpoint]types.TxOut
}

// NewSet creates an empty set
func NewSet() *Set {
	return &Set{entries: make(map[types.Outpoint]types.TxOut)}
}

// Clone returns a deep copy of the set
func (s *Set) Clone() *Set {
	clone := &Set{entries: make(map[types.Outpoint]types.TxOut, len(s.entries))}
	for op, out := range s.entries {
		clone.entries[op] = out
	}
	return clone
}

// Insert adds or replaces the output at op
func (s *Set) Insert(op types.Outpoint, out types.TxOut) {
	s.entries[op] = out
}

// Remove deletes the output at op
func (s *Set) Remove(op types.Outpoint) {
	delete(s.entries, op)
}

// Get returns the output at op
func (s *Set) Get(op types.Outpoint) (types.TxOut, bool) {
	out, ok := s.entries[op]
	return out, ok
}

// Contains reports whether op is unspent
func (s *Set) Contains(op types.Outpoint) bool {
	_, ok := s.entries[op]
	return ok
}

// Len returns the number of unspent outputs
func (s *Set) Len() int {
	return len(s.entries)
}

// Outpoints returns every key, sorted, so callers iterate in a stable
// order regardless of map layout
func (s *Set) Outpoints() []types.Outpoint {
	ops := make([]types.Outpoint, 0, len(s.entries))
	for op := range s.entries {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].TxID != ops[j].TxID {
			return ops[i].TxID < ops[j].TxID
		}
		return ops[i].Index < ops[j].Index
	})
	return ops
}

// TotalValue sums every unspent output
func (s *Set) TotalValue() uint64 {
	var total uint64
	for _, out := range s.entries {
		total += uint64(out.Value)
	}
	return total
}

// Equal reports whether two sets hold the same outputs
func (s *Set) Equal(other *Set) bool {
	if len(s.entries) != len(other.entries) {
		return false
	}
	for op, out := range s.entries {
		o, ok := other.entries[op]
		if !ok || o.Value != out.Value || o.PkScript.PubKeyHash != out.PkScript.PubKeyHash {
			return false
		}
	}
	return true
}

// CheckTransaction verifies tx against the set without mutating it and
// reports the first failure:
//
//  1. every referenced outpoint must currently be unspent, and no
//     outpoint may be consumed twice by the same transaction;
//  2. the output sum must not exceed the sum of the referenced outputs;
//  3. every input's verifier must accept (message, signature, public
//     key), where the message is the referenced txid, output index and
//     public key hash concatenated.
func (s *Set) CheckTransaction(tx *types.Transaction) error {
	spent := make(map[types.Outpoint]struct{}, len(tx.Inputs))
	referenced := make([]types.TxOut, len(tx.Inputs))

	var incoming uint64
	for i := range tx.Inputs {
		op := tx.Inputs[i].Outpoint
		out, ok := s.entries[op]
		if !ok {
			return errors.Wrapf(ErrUnknownOutpoint, "input %d (%s)", i, op)
		}
		if _, dup := spent[op]; dup {
			return errors.Wrapf(ErrDoubleSpend, "input %d (%s)", i, op)
		}

		spent[op] = struct{}{}
		referenced[i] = out
		incoming += uint64(out.Value)
	}

	if outgoing := tx.OutputSum(); outgoing > incoming {
		return errors.Wrapf(ErrInsufficientBalance, "in %d out %d", incoming, outgoing)
	}

	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		out := &referenced[i]

		message := types.SpendMessage(in.Outpoint, out.PkScript.PubKeyHash)
		if !out.PkScript.Verifier.Verify(message, in.SigScript.Signature, in.SigScript.FullPubKey) {
			return errors.Wrapf(ErrBadSignature, "input %d (%s)", i, in.Outpoint)
		}
	}

	return nil
}

// VerifyTransaction is the boolean verification path: failures are
// logged at warning level and the transaction is simply not applied.
func (s *Set) VerifyTransaction(tx *types.Transaction) bool {
	if err := s.CheckTransaction(tx); err != nil {
		monitoring.Warnf("invalid transaction: %v", err)
		return false
	}
	return true
}

// Update applies tx: spent outpoints leave the set, and each output i
// enters under (txid, i). The txid is computed once. Callers verify
// before updating; Update itself does not re-check.
func (s *Set) Update(tx *types.Transaction) error {
	txid, err := serialization.HashTransaction(tx)
	if err != nil {
		return errors.Wrap(err, "utxo: hashing transaction")
	}

	for i := range tx.Inputs {
		delete(s.entries, tx.Inputs[i].Outpoint)
	}
	for i := range tx.Outputs {
		s.entries[types.Outpoint{TxID: txid, Index: uint32(i)}] = tx.Outputs[i]
	}

	return nil
}

// pair is the JSON form of one entry. Outpoints cannot be JSON object
// keys, so the set serializes as a list of {"outpoint", "output"}
// objects; entries are not written as bare two-element arrays.
type pair struct {
	Outpoint types.Outpoint `json:"outpoint"`
	Output   types.TxOut    `json:"output"`
}

// MarshalJSON encodes the set as a sorted pair list
func (s *Set) MarshalJSON() ([]byte, error) {
	pairs := make([]pair, 0, len(s.entries))
	for _, op := range s.Outpoints() {
		pairs = append(pairs, pair{Outpoint: op, Output: s.entries[op]})
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON decodes a pair list
func (s *Set) UnmarshalJSON(data []byte) error {
	var pairs []pair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}

	s.entries = make(map[types.Outpoint]types.TxOut, len(pairs))
	for _, p := range pairs {
		s.entries[p.Outpoint] = p.Output
	}
	return nil
}
