package sim

import (
	"context"
	"math/rand"
	"time"

	"github.com/minichain/minichain/pkg/chain"
	"github.com/minichain/minichain/pkg/config"
	"github.com/minichain/minichain/pkg/crypto"
	"github.com/minichain/minichain/pkg/merkle"
	"github.com/minichain/minichain/pkg/monitoring"
	"github.com/minichain/minichain/pkg/serialization"
	"github.com/minichain/minichain/pkg/types"
	"github.com/minichain/minichain/pkg/utxo"
	"github.com/minichain/minichain/pkg/wallet"
)

// blockGenOutputs are the four channels the block generator publishes
// on: the new block, the updated UTXO and surviving key map for the
// owner, and a copy for the validator.
type blockGenOutputs struct {
	blocks    chan<- *types.Block
	utxos     chan<- *utxo.Set
	keyMaps   chan<- wallet.KeyMap
	validator chan<- *types.Block
}

// blockGenerator buffers transactions until a block's worth arrive,
// simulates mining latency, and cuts blocks against its own UTXO copy.
// It also plays the adversary: with small probability it sends the
// validator corrupted or duplicate blocks that never touch its own
// local chain.
type blockGenerator struct {
	cfg     config.Sim
	utxo    *utxo.Set
	chain   *chain.Blockchain
	in      <-chan TxBundle
	out     blockGenOutputs
	rng     *rand.Rand
	metrics *monitoring.Metrics
	log     *monitoring.Logger
}

func newBlockGenerator(cfg config.Sim, set *utxo.Set, bc *chain.Blockchain,
	in <-chan TxBundle, out blockGenOutputs,
	metrics *monitoring.Metrics, log *monitoring.Logger) *blockGenerator {
	return &blockGenerator{
		cfg:     cfg,
		utxo:    set,
		chain:   bc,
		in:      in,
		out:     out,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		metrics: metrics,
		log:     log.WithField("component", "blockgen"),
	}
}

// run cuts blocks until the inbound channel closes or the context is
// cancelled, then closes all four outbound channels.
func (bg *blockGenerator) run(ctx context.Context) {
	defer func() {
		close(bg.out.blocks)
		close(bg.out.utxos)
		close(bg.out.keyMaps)
		close(bg.out.validator)
		bg.log.Info("block generator stopping")
	}()

	for {
		buffer, keyMaps, ok := bg.fill(ctx)
		if !ok {
			return
		}

		if !sleep(ctx, expDelay(bg.rng, bg.cfg.BlockMean, bg.cfg.BlockDuration)) {
			return
		}

		valid, updated := bg.utxo.FilterValid(buffer)
		if len(valid) == 0 {
			bg.log.Warn("every buffered transaction was invalid, no block cut")
			continue
		}
		bg.utxo = updated

		keyMap, ok := bg.survivingKeyMap(valid, keyMaps)
		if !ok {
			// Every bundle recorded its snapshot before buffering, so a
			// surviving transaction without one is a pipeline bug.
			bg.log.Error("no key-map snapshot for any surviving transaction")
			return
		}

		block, err := bg.buildBlock(valid)
		if err != nil {
			bg.log.Errorf("block construction failed: %v", err)
			return
		}

		if oneIn(bg.rng, invalidBlockRatio) {
			if !bg.injectInvalid(ctx, valid) {
				return
			}
		}
		if oneIn(bg.rng, duplicateBlockRatio) {
			bg.log.Warn("sending a duplicate block, expecting the validator to flag it")
			if !bg.send(ctx, bg.out.validator, block.Clone()) {
				return
			}
		}

		bg.log.Infof("created block with %d transactions", len(valid))
		bg.metrics.RecordBlockBuilt()

		if !bg.publish(ctx, block, keyMap) {
			return
		}

		if err := bg.chain.Append(block); err != nil {
			bg.log.Errorf("local chain append failed: %v", err)
			return
		}
	}
}

// fill collects one block's worth of bundles, remembering which key-map
// snapshot arrived with which transaction
func (bg *blockGenerator) fill(ctx context.Context) ([]types.Transaction, map[string]wallet.KeyMap, bool) {
	buffer := make([]types.Transaction, 0, bg.cfg.BlockSize)
	keyMaps := make(map[string]wallet.KeyMap, bg.cfg.BlockSize)

	for uint32(len(buffer)) < bg.cfg.BlockSize {
		select {
		case <-ctx.Done():
			return nil, nil, false
		case bundle, ok := <-bg.in:
			if !ok {
				return nil, nil, false
			}

			txid, err := serialization.HashTransaction(bundle.Tx)
			if err != nil {
				bg.log.Errorf("hashing buffered transaction failed: %v", err)
				return nil, nil, false
			}

			keyMaps[txid] = bundle.KeyMap
			buffer = append(buffer, *bundle.Tx)
		}
	}
	return buffer, keyMaps, true
}

// survivingKeyMap picks the snapshot belonging to the last surviving
// transaction, the freshest key state the block carries forward
func (bg *blockGenerator) survivingKeyMap(valid []types.Transaction, keyMaps map[string]wallet.KeyMap) (wallet.KeyMap, bool) {
	for i := len(valid) - 1; i >= 0; i-- {
		txid, err := serialization.HashTransaction(&valid[i])
		if err != nil {
			continue
		}
		if km, ok := keyMaps[txid]; ok {
			return km, true
		}
	}
	return nil, false
}

// buildBlock assembles a block extending the local tip
func (bg *blockGenerator) buildBlock(txs []types.Transaction) (*types.Block, error) {
	tree, err := merkle.Build(txs)
	if err != nil {
		return nil, err
	}

	tipHash, err := bg.chain.TipHash()
	if err != nil {
		return nil, err
	}

	return &types.Block{
		Header: types.BlockHeader{
			PreviousHash: tipHash,
			MerkleRoot:   tree.Root(),
			Nonce:        0,
		},
		Merkle:       *tree,
		Transactions: txs,
	}, nil
}

// injectInvalid sends the validator one corrupted block: a mutated
// input txid, a mutated previous hash, or a mutated merkle root. The
// corruption never reaches the local chain.
func (bg *blockGenerator) injectInvalid(ctx context.Context, txs []types.Transaction) bool {
	block, err := bg.buildBlock(txs)
	if err != nil {
		bg.log.Errorf("adversarial block construction failed: %v", err)
		return true
	}
	block = block.Clone()

	switch bg.rng.Intn(3) {
	case 0:
		bg.log.Warn("sending invalid block: a transaction references a corrupted txid")
		victim := bg.rng.Intn(len(block.Transactions))
		txid := &block.Transactions[victim].Inputs[0].Outpoint.TxID
		*txid = crypto.SumString(*txid)
	case 1:
		bg.log.Warn("sending invalid block: the previous hash is corrupted")
		block.Header.PreviousHash = crypto.SumString(block.Header.PreviousHash)
	default:
		bg.log.Warn("sending invalid block: the merkle root is corrupted")
		block.Header.MerkleRoot = crypto.SumString(block.Header.MerkleRoot)
	}

	return bg.send(ctx, bg.out.validator, block)
}

func (bg *blockGenerator) send(ctx context.Context, ch chan<- *types.Block, block *types.Block) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- block:
		return true
	}
}

// publish pushes the block and the updated state to every subscriber
func (bg *blockGenerator) publish(ctx context.Context, block *types.Block, keyMap wallet.KeyMap) bool {
	if !bg.send(ctx, bg.out.blocks, block.Clone()) {
		return false
	}

	select {
	case <-ctx.Done():
		return false
	case bg.out.utxos <- bg.utxo.Clone():
	}

	select {
	case <-ctx.Done():
		return false
	case bg.out.keyMaps <- keyMap.Clone():
	}

	return bg.send(ctx, bg.out.validator, block.Clone())
}
