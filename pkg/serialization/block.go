package serialization

import (
	"bytes"
	"io"

	"github.com/minichain/minichain/pkg/crypto"
	"github.com/minichain/minichain/pkg/types"
)

// SerializeBlockHeader converts a header to canonical bytes
func SerializeBlockHeader(header *types.BlockHeader) ([]byte, error) {
	var buf bytes.Buffer

	if err := WriteString(&buf, header.PreviousHash); err != nil {
		return nil, err
	}
	if err := WriteString(&buf, header.MerkleRoot); err != nil {
		return nil, err
	}
	if err := WriteUint32(&buf, header.Nonce); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DeserializeBlockHeader reads a header back from canonical bytes
func DeserializeBlockHeader(r io.Reader) (*types.BlockHeader, error) {
	var header types.BlockHeader
	var err error

	if header.PreviousHash, err = ReadString(r); err != nil {
		return nil, err
	}
	if header.MerkleRoot, err = ReadString(r); err != nil {
		return nil, err
	}
	if header.Nonce, err = ReadUint32(r); err != nil {
		return nil, err
	}

	return &header, nil
}

// HashBlockHeader computes the block hash: SHA-256 over the canonical
// header serialization, as lowercase hex
func HashBlockHeader(header *types.BlockHeader) (string, error) {
	b, err := SerializeBlockHeader(header)
	if err != nil {
		return "", err
	}
	return crypto.Sum(b), nil
}

// SerializeBlock converts a whole block (header, merkle tree,
// transactions) to bytes for archive storage
func SerializeBlock(block *types.Block) ([]byte, error) {
	var buf bytes.Buffer

	headerBytes, err := SerializeBlockHeader(&block.Header)
	if err != nil {
		return nil, err
	}
	buf.Write(headerBytes)

	if err := WriteVarInt(&buf, uint64(len(block.Merkle.Tree))); err != nil {
		return nil, err
	}
	for _, node := range block.Merkle.Tree {
		if err := WriteString(&buf, node); err != nil {
			return nil, err
		}
	}

	if err := WriteVarInt(&buf, uint64(len(block.Transactions))); err != nil {
		return nil, err
	}
	for i := range block.Transactions {
		txBytes, err := SerializeTransaction(&block.Transactions[i])
		if err != nil {
			return nil, err
		}
		buf.Write(txBytes)
	}

	return buf.Bytes(), nil
}

// DeserializeBlock reads a block back from archive bytes
func DeserializeBlock(r io.Reader) (*types.Block, error) {
	header, err := DeserializeBlockHeader(r)
	if err != nil {
		return nil, err
	}

	block := &types.Block{Header: *header}

	numNodes, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < numNodes; i++ {
		node, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		block.Merkle.Tree = append(block.Merkle.Tree, node)
	}

	numTxs, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < numTxs; i++ {
		tx, err := DeserializeTransaction(r)
		if err != nil {
			return nil, err
		}
		block.Transactions = append(block.Transactions, *tx)
	}

	return block, nil
}
