// Package merkle builds the array-represented merkle tree committed to
// by block headers. Leaves are transaction hashes; internal nodes hash
// the concatenation of their children's hex strings; an odd layer
// duplicates its last hash before pairing.
package merkle

import (
	"github.com/pkg/errors"

	"github.com/minichain/minichain/pkg/crypto"
	"github.com/minichain/minichain/pkg/serialization"
	"github.com/minichain/minichain/pkg/types"
)

// ErrNoTransactions is returned when a tree is requested over an empty
// transaction list. Blocks are never cut empty, so hitting this means a
// caller bug rather than bad input.
var ErrNoTransactions = errors.New("merkle: no transactions")

// Build constructs the tree over an ordered transaction list
func Build(txs []types.Transaction) (*types.Merkle, error) {
	if len(txs) == 0 {
		return nil, ErrNoTransactions
	}

	leaves := make([]string, len(txs))
	for i := range txs {
		h, err := serialization.HashTransaction(&txs[i])
		if err != nil {
			return nil, errors.Wrap(err, "merkle: hashing transaction")
		}
		leaves[i] = h
	}

	return BuildFromLeaves(leaves), nil
}

// BuildFromLeaves constructs the tree over precomputed leaf hashes.
//
// The tree is assembled bottom-up with a queue holding the current
// layer and a stack collecting consumed pairs. Nodes are appended in
// reverse so the final whole-slice reversal yields level order without
// repeated inserts at the front:
//
//   - while more than one hash remains, duplicate the last hash of an
//     odd layer, then pop pairs off the front, push their parent hash on
//     the back, and stash the pair on the stack;
//   - after each layer, drain the stack (LIFO) into the output, which
//     reverses the pair order within the layer;
//   - finally append the root and reverse the whole slice.
func BuildFromLeaves(leaves []string) *types.Merkle {
	queue := make([]string, len(leaves))
	copy(queue, leaves)

	var tree []string
	var stack []string

	for len(queue) > 1 {
		if len(queue)%2 == 1 {
			queue = append(queue, queue[len(queue)-1])
		}

		pairs := len(queue) / 2
		for i := 0; i < pairs; i++ {
			first, second := queue[0], queue[1]
			queue = queue[2:]

			queue = append(queue, crypto.SumPair(first, second))
			stack = append(stack, first, second)
		}

		for len(stack) > 0 {
			tree = append(tree, stack[len(stack)-1])
			stack = stack[:len(stack)-1]
		}
	}

	tree = append(tree, queue[0])
	for i, j := 0, len(tree)-1; i < j; i, j = i+1, j-1 {
		tree[i], tree[j] = tree[j], tree[i]
	}

	return &types.Merkle{Tree: tree}
}

// VerifyRoot recomputes the tree over a block's transactions and checks
// the result against the committed root
func VerifyRoot(block *types.Block) (bool, error) {
	m, err := Build(block.Transactions)
	if err != nil {
		return false, err
	}
	return m.Root() == block.Header.MerkleRoot, nil
}
