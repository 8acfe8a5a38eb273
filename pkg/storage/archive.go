// The archive persists the validator's accepted blocks so a restarted
// node can replay the canonical chain without re-running a simulation.

package storage

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/minichain/minichain/pkg/serialization"
	"github.com/minichain/minichain/pkg/types"
)

// Key layout: one byte of prefix keeps the spaces disjoint.
const (
	prefixBlock  = 'b' // prefixBlock + header hash -> serialized block
	prefixHeight = 'h' // prefixHeight + big-endian height -> header hash
)

var keyTip = []byte("tip") // height of the best block

// Archive stores the accepted chain in LevelDB: blocks by header hash,
// a height index, and the best-tip record, written atomically per block.
type Archive struct {
	db *Database
}

// OpenArchive opens or creates the archive at path
func OpenArchive(path string) (*Archive, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, err
	}
	return &Archive{db: db}, nil
}

// Close closes the underlying database
func (a *Archive) Close() error {
	return a.db.Close()
}

func blockKey(hash string) []byte {
	return append([]byte{prefixBlock}, hash...)
}

func heightKey(height uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefixHeight
	binary.BigEndian.PutUint64(key[1:], height)
	return key
}

// AppendBlock stores one accepted block at the given height and moves
// the tip record, all in one atomic batch
func (a *Archive) AppendBlock(block *types.Block, height uint64) error {
	hash, err := serialization.HashBlockHeader(&block.Header)
	if err != nil {
		return errors.Wrap(err, "storage: hashing header")
	}

	blockBytes, err := serialization.SerializeBlock(block)
	if err != nil {
		return errors.Wrap(err, "storage: serializing block")
	}

	tip := make([]byte, 8)
	binary.BigEndian.PutUint64(tip, height)

	batch := a.db.NewBatch()
	batch.Put(blockKey(hash), blockBytes)
	batch.Put(heightKey(height), []byte(hash))
	batch.Put(keyTip, tip)
	return errors.Wrap(batch.Write(), "storage: writing block")
}

// BlockByHash loads one block; a missing hash returns (nil, nil)
func (a *Archive) BlockByHash(hash string) (*types.Block, error) {
	data, err := a.db.Get(blockKey(hash))
	if err != nil || data == nil {
		return nil, err
	}
	return serialization.DeserializeBlock(bytes.NewReader(data))
}

// HashByHeight resolves the height index; missing returns ""
func (a *Archive) HashByHeight(height uint64) (string, error) {
	data, err := a.db.Get(heightKey(height))
	if err != nil || data == nil {
		return "", err
	}
	return string(data), nil
}

// TipHeight returns the best height and whether the archive has one
func (a *Archive) TipHeight() (uint64, bool, error) {
	data, err := a.db.Get(keyTip)
	if err != nil || data == nil {
		return 0, false, err
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// LoadChain replays the height index from genesis to tip
func (a *Archive) LoadChain() ([]*types.Block, error) {
	tip, ok, err := a.TipHeight()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	blocks := make([]*types.Block, 0, tip+1)
	for h := uint64(0); h <= tip; h++ {
		hash, err := a.HashByHeight(h)
		if err != nil {
			return nil, err
		}
		if hash == "" {
			return nil, errors.Errorf("storage: height index missing height %d", h)
		}

		block, err := a.BlockByHash(hash)
		if err != nil {
			return nil, err
		}
		if block == nil {
			return nil, errors.Errorf("storage: block %s indexed but absent", hash)
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}
