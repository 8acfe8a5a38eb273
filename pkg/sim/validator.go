package sim

import (
	"context"

	"github.com/minichain/minichain/pkg/chain"
	"github.com/minichain/minichain/pkg/merkle"
	"github.com/minichain/minichain/pkg/monitoring"
	"github.com/minichain/minichain/pkg/serialization"
	"github.com/minichain/minichain/pkg/storage"
	"github.com/minichain/minichain/pkg/types"
	"github.com/minichain/minichain/pkg/utxo"
)

// Validator re-checks every inbound block against its own chain and
// UTXO, the authoritative copies, and classifies each one as
// extended, duplicate, fork, or invalid. Forks are reported, never
// spliced: the canonical chain is first-seen-wins.
type Validator struct {
	utxo    *utxo.Set
	chain   *chain.Blockchain
	archive *storage.Archive
	in      <-chan *types.Block
	results chan<- Result
	metrics *monitoring.Metrics
	log     *monitoring.Logger
}

func newValidator(set *utxo.Set, bc *chain.Blockchain, archive *storage.Archive,
	in <-chan *types.Block, results chan<- Result,
	metrics *monitoring.Metrics, log *monitoring.Logger) *Validator {
	return &Validator{
		utxo:    set,
		chain:   bc,
		archive: archive,
		in:      in,
		results: results,
		metrics: metrics,
		log:     log.WithField("component", "validator"),
	}
}

// Chain exposes the canonical chain
func (v *Validator) Chain() *chain.Blockchain {
	return v.chain
}

// UTXO exposes the authoritative unspent set
func (v *Validator) UTXO() *utxo.Set {
	return v.utxo
}

// run consumes blocks until the channel closes or the context is
// cancelled. Rejections never stop the loop; only structural errors do.
func (v *Validator) run(ctx context.Context) {
	defer close(v.results)

	for {
		select {
		case <-ctx.Done():
			v.log.Info("chain validator stopping")
			return
		case block, ok := <-v.in:
			if !ok {
				v.log.Info("chain validator stopping")
				return
			}

			result, err := v.process(block)
			if err != nil {
				v.log.Errorf("validator cannot continue: %v", err)
				return
			}

			select {
			case <-ctx.Done():
				v.log.Info("chain validator stopping")
				return
			case v.results <- result:
			}
		}
	}
}

// process classifies and, for an extension, commits one block. The
// returned error is reserved for structural failures (hashing or
// archive I/O); every rejection comes back as a Result.
func (v *Validator) process(block *types.Block) (Result, error) {
	hash, err := serialization.HashBlockHeader(&block.Header)
	if err != nil {
		return Result{}, err
	}

	classification, forkRoot, err := v.chain.Classify(block)
	if err != nil {
		return Result{}, err
	}

	switch classification {
	case chain.Duplicate:
		v.log.Warnf("duplicate block %s, already at height %d", hash, v.chain.Height())
		v.metrics.RecordDuplicate()
		return Result{Outcome: Duplicate, Hash: hash, Height: v.chain.Height()}, nil

	case chain.Fork:
		v.log.Warnf("fork detected: block %s roots at header %s", hash, forkRoot)
		v.metrics.RecordFork()
		return Result{Outcome: ForkDetected, Hash: hash, ForkRoot: forkRoot, Height: v.chain.Height()}, nil

	case chain.Orphan:
		v.log.Warnf("invalid block %s: previous hash %s matches no known header",
			hash, block.Header.PreviousHash)
		v.metrics.RecordInvalid()
		return Result{Outcome: Invalid, Hash: hash, Height: v.chain.Height()}, nil
	}

	// The block extends the tip; now the content has to hold up.
	rootOK, err := merkle.VerifyRoot(block)
	if err != nil || !rootOK {
		if err != nil {
			v.log.Warnf("invalid block %s: merkle recomputation failed: %v", hash, err)
		} else {
			v.log.Warnf("invalid block %s: merkle root mismatch", hash)
		}
		v.metrics.RecordInvalid()
		return Result{Outcome: Invalid, Hash: hash, Height: v.chain.Height()}, nil
	}

	ok, updated := v.utxo.BatchVerifyAndUpdate(block.Transactions)
	if !ok {
		v.log.Warnf("invalid block %s: transaction batch rejected", hash)
		v.metrics.RecordInvalid()
		return Result{Outcome: Invalid, Hash: hash, Height: v.chain.Height()}, nil
	}

	if err := v.chain.Append(block); err != nil {
		return Result{}, err
	}
	v.utxo = updated

	if v.archive != nil {
		// Genesis never passes through process, so the first extension
		// also records it at height 0 for LoadChain to start from
		if v.chain.Height() == 1 {
			if err := v.archive.AppendBlock(v.chain.Block(0), 0); err != nil {
				return Result{}, err
			}
		}
		if err := v.archive.AppendBlock(block, uint64(v.chain.Height())); err != nil {
			return Result{}, err
		}
	}

	v.log.Infof("chain extended to height %d by block %s", v.chain.Height(), hash)
	v.metrics.RecordExtended()
	return Result{Outcome: Extended, Hash: hash, Height: v.chain.Height()}, nil
}
