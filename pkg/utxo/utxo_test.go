package utxo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minichain/minichain/pkg/crypto"
	"github.com/minichain/minichain/pkg/keys"
	"github.com/minichain/minichain/pkg/serialization"
	"github.com/minichain/minichain/pkg/types"
)

// keyring remembers which keypair guards which outpoint, the same role
// the generator's key map plays
type keyring map[types.Outpoint]*keys.PrivateKey

// fundedSet seeds a set with one output per value, all at the zero txid
func fundedSet(t *testing.T, values ...uint32) (*Set, []types.Outpoint, keyring) {
	t.Helper()

	set := NewSet()
	ring := make(keyring)
	ops := make([]types.Outpoint, len(values))

	for i, value := range values {
		priv, pub, err := keys.GenerateKeypair()
		require.NoError(t, err)

		op := types.Outpoint{TxID: types.ZeroHash, Index: uint32(i)}
		set.Insert(op, types.TxOut{
			Value:    value,
			PkScript: types.PubKeyScript{PubKeyHash: pub.Hash160(), Verifier: keys.Verifier{}},
		})

		ring[op] = priv
		ops[i] = op
	}
	return set, ops, ring
}

// spend builds a correctly signed transaction consuming the given
// outpoints and creating fresh outputs with the given values
func spend(t *testing.T, set *Set, ring keyring, inputs []types.Outpoint, outValues []uint32) *types.Transaction {
	t.Helper()

	tx := &types.Transaction{}
	for _, op := range inputs {
		out, ok := set.Get(op)
		require.True(t, ok, "input %s must be funded", op)

		priv := ring[op]
		require.NotNil(t, priv)

		message := types.SpendMessage(op, out.PkScript.PubKeyHash)
		tx.Inputs = append(tx.Inputs, types.TxIn{
			Outpoint: op,
			SigScript: types.SigScript{
				Signature:  priv.Sign([]byte(message)),
				FullPubKey: priv.PublicKey(),
			},
		})
	}

	for _, value := range outValues {
		_, pub, err := keys.GenerateKeypair()
		require.NoError(t, err)
		tx.Outputs = append(tx.Outputs, types.TxOut{
			Value:    value,
			PkScript: types.PubKeyScript{PubKeyHash: pub.Hash160(), Verifier: keys.Verifier{}},
		})
	}
	return tx
}

func TestVerifyValidTransaction(t *testing.T) {
	set, ops, ring := fundedSet(t, 500)
	tx := spend(t, set, ring, ops, []uint32{300, 200})

	assert.NoError(t, set.CheckTransaction(tx))
	assert.True(t, set.VerifyTransaction(tx))
	// Verification is side-effect-free
	assert.Equal(t, 1, set.Len())
}

func TestVerifyUnknownOutpoint(t *testing.T) {
	set, ops, ring := fundedSet(t, 500)
	tx := spend(t, set, ring, ops, []uint32{500})

	tx.Inputs[0].Outpoint.TxID = crypto.SumString(tx.Inputs[0].Outpoint.TxID)
	assert.ErrorIs(t, set.CheckTransaction(tx), ErrUnknownOutpoint)
}

func TestVerifyInsufficientBalance(t *testing.T) {
	set, ops, ring := fundedSet(t, 500)
	tx := spend(t, set, ring, ops, []uint32{501})

	assert.ErrorIs(t, set.CheckTransaction(tx), ErrInsufficientBalance)
}

func TestVerifyBadSignature(t *testing.T) {
	set, ops, ring := fundedSet(t, 500)
	tx := spend(t, set, ring, ops, []uint32{500})

	// Substitute a public key that did not make the signature
	_, wrongPub, err := keys.GenerateKeypair()
	require.NoError(t, err)
	tx.Inputs[0].SigScript.FullPubKey = wrongPub

	assert.ErrorIs(t, set.CheckTransaction(tx), ErrBadSignature)
}

func TestVerifyDoubleSpendWithinTransaction(t *testing.T) {
	set, ops, ring := fundedSet(t, 500)
	tx := spend(t, set, ring, []types.Outpoint{ops[0], ops[0]}, []uint32{500})

	assert.ErrorIs(t, set.CheckTransaction(tx), ErrDoubleSpend)
}

func TestUpdateMovesOutputs(t *testing.T) {
	set, ops, ring := fundedSet(t, 500)
	tx := spend(t, set, ring, ops, []uint32{300, 200})

	require.NoError(t, set.Update(tx))

	txid, err := serialization.HashTransaction(tx)
	require.NoError(t, err)

	assert.False(t, set.Contains(ops[0]))
	assert.True(t, set.Contains(types.Outpoint{TxID: txid, Index: 0}))
	assert.True(t, set.Contains(types.Outpoint{TxID: txid, Index: 1}))
	assert.Equal(t, uint64(500), set.TotalValue())
}

func TestBatchIsAllOrNothing(t *testing.T) {
	set, ops, ring := fundedSet(t, 500)

	// Two transactions racing for the same 500-value outpoint
	tx1 := spend(t, set, ring, ops, []uint32{500})
	tx2 := spend(t, set, ring, ops, []uint32{250, 250})
	batch := []types.Transaction{*tx1, *tx2}

	// As a block, the double spend fails the whole batch
	ok, updated := set.BatchVerifyAndUpdate(batch)
	assert.False(t, ok)
	assert.Nil(t, updated)
	assert.Equal(t, 1, set.Len())

	// The drop-invalid path accepts exactly one of them
	valid, after := set.FilterValid(batch)
	require.Len(t, valid, 1)
	assert.Equal(t, uint64(500), after.TotalValue())
	assert.False(t, after.Contains(ops[0]))
}

func TestBatchAppliesInOrder(t *testing.T) {
	set, ops, ring := fundedSet(t, 500, 850)

	tx1 := spend(t, set, ring, []types.Outpoint{ops[0]}, []uint32{500})
	tx2 := spend(t, set, ring, []types.Outpoint{ops[1]}, []uint32{400, 450})

	ok, updated := set.BatchVerifyAndUpdate([]types.Transaction{*tx1, *tx2})
	require.True(t, ok)
	assert.Equal(t, 3, updated.Len())
	assert.Equal(t, uint64(1350), updated.TotalValue())
	// The input set is untouched
	assert.Equal(t, 2, set.Len())
}

func TestParallelMatchesSequential(t *testing.T) {
	values := []uint32{100, 200, 300, 400, 500, 600, 700, 800}
	set, ops, ring := fundedSet(t, values...)

	// Independent transactions: each spends its own outpoint
	txs := make([]types.Transaction, len(ops))
	for i, op := range ops {
		txs[i] = *spend(t, set, ring, []types.Outpoint{op}, []uint32{values[i]})
	}

	okSeq, seq := set.BatchVerifyAndUpdate(txs)
	require.True(t, okSeq)

	for _, batchSize := range []int{1, 2, 3, len(txs), len(txs) + 7, -1} {
		okPar, par := set.ParallelBatchVerifyAndUpdate(txs, batchSize)
		require.True(t, okPar, "batch size %d", batchSize)
		assert.True(t, seq.Equal(par), "batch size %d", batchSize)
	}
}

func TestParallelRejectsCrossBatchDoubleSpend(t *testing.T) {
	set, ops, ring := fundedSet(t, 500)

	tx1 := spend(t, set, ring, ops, []uint32{500})
	tx2 := spend(t, set, ring, ops, []uint32{250, 250})

	// batchSize 1 puts the conflicting spends in different workers; the
	// merge has to catch the overlap
	ok, updated := set.ParallelBatchVerifyAndUpdate([]types.Transaction{*tx1, *tx2}, 1)
	assert.False(t, ok)
	assert.Nil(t, updated)
}

func TestParallelRejectsIntraBlockDependency(t *testing.T) {
	set, ops, ring := fundedSet(t, 500)

	tx1 := spend(t, set, ring, ops, []uint32{500})
	txid, err := serialization.HashTransaction(tx1)
	require.NoError(t, err)

	// tx2 spends tx1's output, which only exists mid-block
	applied := set.Clone()
	require.NoError(t, applied.Update(tx1))

	// Sign tx2 against the mid-block view; the keyring needs the fresh key
	priv, pub, err := keys.GenerateKeypair()
	require.NoError(t, err)
	childOp := types.Outpoint{TxID: txid, Index: 0}
	applied.Insert(childOp, types.TxOut{
		Value:    500,
		PkScript: types.PubKeyScript{PubKeyHash: pub.Hash160(), Verifier: keys.Verifier{}},
	})
	tx2 := spend(t, applied, keyring{childOp: priv}, []types.Outpoint{childOp}, []uint32{500})

	ok, updated := set.ParallelBatchVerifyAndUpdate([]types.Transaction{*tx1, *tx2}, 2)
	assert.False(t, ok)
	assert.Nil(t, updated)
}

func TestSetJSONRoundTrip(t *testing.T) {
	set, _, _ := fundedSet(t, 500, 850)

	data, err := set.MarshalJSON()
	require.NoError(t, err)

	back := NewSet()
	require.NoError(t, back.UnmarshalJSON(data))
	assert.True(t, set.Equal(back))
}
