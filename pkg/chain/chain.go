// Package chain keeps the canonical block sequence and decides how an
// inbound block relates to it. Forks are detected, never followed: the
// chain is a plain vector with first-seen-wins semantics, which is
// enough because no reorganization is ever performed.
package chain

import (
	"github.com/pkg/errors"

	"github.com/minichain/minichain/pkg/serialization"
	"github.com/minichain/minichain/pkg/types"
)

// ErrBrokenLinkage reports an append whose previous hash does not match
// the tip. The validator classifies before appending, so there it
// signals a bug; NewFromBlocks returns it for a stored sequence whose
// blocks do not link up.
var ErrBrokenLinkage = errors.New("chain: block does not extend the tip")

// Classification is the relation of an inbound block to the chain
type Classification int

const (
	// Extend: the block's previous hash is the current tip's hash
	Extend Classification = iota
	// Duplicate: the block's header hash is already in the chain
	Duplicate
	// Fork: the previous hash matches a block earlier than the tip
	Fork
	// Orphan: the previous hash matches no known header
	Orphan
)

func (c Classification) String() string {
	switch c {
	case Extend:
		return "extend"
	case Duplicate:
		return "duplicate"
	case Fork:
		return "fork"
	case Orphan:
		return "orphan"
	default:
		return "unknown"
	}
}

// Blockchain is an ordered block sequence rooted at the genesis block,
// with a header-hash index for duplicate and fork lookups.
type Blockchain struct {
	blocks []*types.Block
	index  map[string]int // header hash -> height
}

// NewWithGenesis creates a chain holding only the genesis block
func NewWithGenesis() (*Blockchain, error) {
	bc := &Blockchain{index: make(map[string]int)}
	if err := bc.append(types.GenesisBlock()); err != nil {
		return nil, err
	}
	return bc, nil
}

// NewFromBlocks rebuilds a chain from a stored block sequence,
// verifying the linkage as it goes
func NewFromBlocks(blocks []*types.Block) (*Blockchain, error) {
	if len(blocks) == 0 {
		return nil, errors.New("chain: no blocks")
	}

	bc := &Blockchain{index: make(map[string]int, len(blocks))}
	if err := bc.append(blocks[0]); err != nil {
		return nil, err
	}
	for _, b := range blocks[1:] {
		if err := bc.Append(b); err != nil {
			return nil, err
		}
	}
	return bc, nil
}

func (bc *Blockchain) append(b *types.Block) error {
	hash, err := serialization.HashBlockHeader(&b.Header)
	if err != nil {
		return errors.Wrap(err, "chain: hashing header")
	}

	bc.index[hash] = len(bc.blocks)
	bc.blocks = append(bc.blocks, b)
	return nil
}

// Append adds a block that must extend the current tip
func (bc *Blockchain) Append(b *types.Block) error {
	tipHash, err := bc.TipHash()
	if err != nil {
		return err
	}
	if b.Header.PreviousHash != tipHash {
		return errors.Wrapf(ErrBrokenLinkage, "previous %s tip %s", b.Header.PreviousHash, tipHash)
	}

	return bc.append(b)
}

// Tip returns the most recent block
func (bc *Blockchain) Tip() *types.Block {
	return bc.blocks[len(bc.blocks)-1]
}

// TipHash returns the header hash of the tip
func (bc *Blockchain) TipHash() (string, error) {
	return serialization.HashBlockHeader(&bc.Tip().Header)
}

// Height returns the index of the tip (genesis is height 0)
func (bc *Blockchain) Height() int {
	return len(bc.blocks) - 1
}

// Len returns the number of blocks including genesis
func (bc *Blockchain) Len() int {
	return len(bc.blocks)
}

// Block returns the block at the given height
func (bc *Blockchain) Block(height int) *types.Block {
	return bc.blocks[height]
}

// Blocks returns the backing sequence (callers must not mutate it)
func (bc *Blockchain) Blocks() []*types.Block {
	return bc.blocks
}

// HasHeader reports whether a header hash is already in the chain
func (bc *Blockchain) HasHeader(hash string) bool {
	_, ok := bc.index[hash]
	return ok
}

// Classify decides how an inbound block relates to the chain. The
// result is deterministic in (block, chain): calling it twice without
// appending yields the same answer. For Fork, forkRoot is the header
// hash of the block the fork branches from.
func (bc *Blockchain) Classify(b *types.Block) (c Classification, forkRoot string, err error) {
	hash, err := serialization.HashBlockHeader(&b.Header)
	if err != nil {
		return Orphan, "", errors.Wrap(err, "chain: hashing header")
	}
	if bc.HasHeader(hash) {
		return Duplicate, "", nil
	}

	tipHash, err := bc.TipHash()
	if err != nil {
		return Orphan, "", err
	}
	if b.Header.PreviousHash == tipHash {
		return Extend, "", nil
	}

	// Walk backwards below the tip looking for the branch point
	for height := bc.Height() - 1; height >= 0; height-- {
		h, err := serialization.HashBlockHeader(&bc.blocks[height].Header)
		if err != nil {
			return Orphan, "", errors.Wrap(err, "chain: hashing header")
		}
		if h == b.Header.PreviousHash {
			return Fork, h, nil
		}
	}

	return Orphan, "", nil
}
