package types

// BlockHeader carries the chain linkage and the transaction commitment.
// Nonce is reserved: there is no proof-of-work search, so it stays 0.
type BlockHeader struct {
	PreviousHash string `json:"previous_hash"`
	MerkleRoot   string `json:"merkle_root"`
	Nonce        uint32 `json:"nonce"`
}

// Merkle is a binary hash tree in array representation: level-order,
// breadth-first, root at index 0. The children of node i sit at 2i+1
// and 2i+2 as long as node i's layer and every layer above it are full
// (layer d holds 2^d nodes). A duplicated node stores no children of
// its own, so below a padded layer the next layer starts earlier than
// that rule gives.
type Merkle struct {
	Tree []string `json:"tree"`
}

// Root returns the merkle root, the commitment stored in block headers
func (m *Merkle) Root() string {
	return m.Tree[0]
}

// Block bundles a header, the full merkle tree over the transaction
// list, and the transactions themselves.
type Block struct {
	Header       BlockHeader   `json:"header"`
	Merkle       Merkle        `json:"merkle"`
	Transactions []Transaction `json:"transactions"`
}

// GenesisBlock synthesizes the fixed first block: all-zero previous
// hash and merkle root, no transactions.
func GenesisBlock() *Block {
	return &Block{
		Header: BlockHeader{
			PreviousHash: ZeroHash,
			MerkleRoot:   ZeroHash,
			Nonce:        0,
		},
		Merkle:       Merkle{Tree: []string{ZeroHash}},
		Transactions: nil,
	}
}

// Clone returns a deep copy of the block
func (b *Block) Clone() *Block {
	clone := &Block{
		Header:       b.Header,
		Merkle:       Merkle{Tree: make([]string, len(b.Merkle.Tree))},
		Transactions: make([]Transaction, len(b.Transactions)),
	}
	copy(clone.Merkle.Tree, b.Merkle.Tree)
	for i := range b.Transactions {
		clone.Transactions[i] = *b.Transactions[i].Clone()
	}
	return clone
}
