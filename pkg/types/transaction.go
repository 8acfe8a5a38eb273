package types

import (
	"fmt"

	"github.com/minichain/minichain/pkg/keys"
)

// Outpoint uniquely references one spendable output: the hash of the
// transaction that produced it and the position in that transaction's
// output list. Outpoints key the UTXO set and the key map, so the type
// must stay comparable.
type Outpoint struct {
	TxID  string `json:"txid"`
	Index uint32 `json:"index"`
}

// String returns the txid:index form used in log lines
func (op Outpoint) String() string {
	return fmt.Sprintf("%s:%d", op.TxID, op.Index)
}

// PubKeyScript states who may spend an output: the hash of the owning
// public key plus the verifier capability used to check a claimed spend.
type PubKeyScript struct {
	PubKeyHash string        `json:"public_key_hash"`
	Verifier   keys.Verifier `json:"verifier"`
}

// TxOut is a spendable output
type TxOut struct {
	Value    uint32       `json:"value"`
	PkScript PubKeyScript `json:"pk_script"`
}

// SigScript proves the right to spend a referenced output: a signature
// over the spend message and the full public key claimed to produce it.
type SigScript struct {
	Signature  *keys.Signature `json:"signature"`
	FullPubKey *keys.PublicKey `json:"full_public_key"`
}

// TxIn consumes one outpoint
type TxIn struct {
	Outpoint  Outpoint  `json:"outpoint"`
	SigScript SigScript `json:"sig_script"`
}

// Transaction is an ordered list of inputs and outputs. Its identity
// (txid) is the canonical hash of the whole transaction, computed by the
// serialization package.
type Transaction struct {
	Inputs  []TxIn  `json:"tx_inputs"`
	Outputs []TxOut `json:"tx_outputs"`
}

// SpendMessage is the canonical string a spender signs for one input:
// the referenced txid, the decimal output index, and the public key hash
// of the referenced output, concatenated.
func SpendMessage(op Outpoint, pubKeyHash string) string {
	return fmt.Sprintf("%s%d%s", op.TxID, op.Index, pubKeyHash)
}

// InputSum is not derivable from the transaction alone (values live in
// the UTXO set), but OutputSum is.
func (tx *Transaction) OutputSum() uint64 {
	var sum uint64
	for _, out := range tx.Outputs {
		sum += uint64(out.Value)
	}
	return sum
}

// Clone returns a deep copy of the transaction
func (tx *Transaction) Clone() *Transaction {
	clone := &Transaction{
		Inputs:  make([]TxIn, len(tx.Inputs)),
		Outputs: make([]TxOut, len(tx.Outputs)),
	}
	copy(clone.Inputs, tx.Inputs)
	copy(clone.Outputs, tx.Outputs)
	return clone
}
