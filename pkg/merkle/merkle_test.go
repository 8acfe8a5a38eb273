package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minichain/minichain/pkg/crypto"
	"github.com/minichain/minichain/pkg/keys"
	"github.com/minichain/minichain/pkg/serialization"
	"github.com/minichain/minichain/pkg/types"
)

// makeTransactions builds n distinct well-formed transactions; merkle
// construction only needs their hashes to differ
func makeTransactions(t *testing.T, n int) []types.Transaction {
	t.Helper()

	txs := make([]types.Transaction, n)
	for i := range txs {
		priv, pub, err := keys.GenerateKeypair()
		require.NoError(t, err)

		op := types.Outpoint{TxID: types.ZeroHash, Index: uint32(i)}
		txs[i] = types.Transaction{
			Inputs: []types.TxIn{{
				Outpoint: op,
				SigScript: types.SigScript{
					Signature:  priv.Sign([]byte(types.SpendMessage(op, pub.Hash160()))),
					FullPubKey: pub,
				},
			}},
			Outputs: []types.TxOut{{
				Value:    500,
				PkScript: types.PubKeyScript{PubKeyHash: pub.Hash160()},
			}},
		}
	}
	return txs
}

func hashAll(t *testing.T, txs []types.Transaction) []string {
	t.Helper()

	hs := make([]string, len(txs))
	for i := range txs {
		h, err := serialization.HashTransaction(&txs[i])
		require.NoError(t, err)
		hs[i] = h
	}
	return hs
}

func TestBuildSingleTransaction(t *testing.T) {
	txs := makeTransactions(t, 1)
	h := hashAll(t, txs)

	m, err := Build(txs)
	require.NoError(t, err)

	assert.Equal(t, []string{h[0]}, m.Tree)
	assert.Equal(t, h[0], m.Root())
}

func TestBuildEvenNumberOfTransactions(t *testing.T) {
	txs := makeTransactions(t, 2)
	h := hashAll(t, txs)

	m, err := Build(txs)
	require.NoError(t, err)

	root := crypto.SumPair(h[0], h[1])
	require.Len(t, m.Tree, 3)
	assert.Equal(t, root, m.Tree[0])
	assert.Equal(t, h[0], m.Tree[1])
	assert.Equal(t, h[1], m.Tree[2])
}

func TestBuildOddNumberOfTransactions(t *testing.T) {
	txs := makeTransactions(t, 3)
	h := hashAll(t, txs)

	m, err := Build(txs)
	require.NoError(t, err)

	// The odd leaf is duplicated: h2 pairs with itself
	h01 := crypto.SumPair(h[0], h[1])
	h22 := crypto.SumPair(h[2], h[2])
	root := crypto.SumPair(h01, h22)

	require.Len(t, m.Tree, 7)
	assert.Equal(t, []string{root, h01, h22, h[0], h[1], h[2], h[2]}, m.Tree)
}

func TestBuildFiveLeavesLayout(t *testing.T) {
	leaves := make([]string, 5)
	for i := range leaves {
		leaves[i] = crypto.SumString(string(rune('a' + i)))
	}

	m := BuildFromLeaves(leaves)

	// Bottom layer pads to six leaves, then three parents pad to four
	h01 := crypto.SumPair(leaves[0], leaves[1])
	h23 := crypto.SumPair(leaves[2], leaves[3])
	h44 := crypto.SumPair(leaves[4], leaves[4])
	h0123 := crypto.SumPair(h01, h23)
	h4444 := crypto.SumPair(h44, h44)
	root := crypto.SumPair(h0123, h4444)

	expected := []string{
		root,
		h0123, h4444,
		h01, h23, h44, h44,
		leaves[0], leaves[1], leaves[2], leaves[3], leaves[4], leaves[4],
	}
	assert.Equal(t, expected, m.Tree)

	// Children of the node at position i sit at 2i+1 and 2i+2
	assert.Equal(t, crypto.SumPair(m.Tree[1], m.Tree[2]), m.Tree[0])
	assert.Equal(t, crypto.SumPair(m.Tree[3], m.Tree[4]), m.Tree[1])
}

func TestBuildEmptyFails(t *testing.T) {
	_, err := Build(nil)
	assert.ErrorIs(t, err, ErrNoTransactions)
}

func TestVerifyRoot(t *testing.T) {
	txs := makeTransactions(t, 4)
	m, err := Build(txs)
	require.NoError(t, err)

	block := &types.Block{
		Header:       types.BlockHeader{PreviousHash: types.ZeroHash, MerkleRoot: m.Root()},
		Merkle:       *m,
		Transactions: txs,
	}

	ok, err := VerifyRoot(block)
	require.NoError(t, err)
	assert.True(t, ok)

	block.Header.MerkleRoot = crypto.SumString(block.Header.MerkleRoot)
	ok, err = VerifyRoot(block)
	require.NoError(t, err)
	assert.False(t, ok)
}
