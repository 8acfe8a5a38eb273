package utxo

import (
	"sync"

	"github.com/minichain/minichain/pkg/monitoring"
	"github.com/minichain/minichain/pkg/serialization"
	"github.com/minichain/minichain/pkg/types"
)

// BatchVerifyAndUpdate verifies and applies txs in order against a
// working clone. The batch is all-or-nothing: one bad transaction fails
// the whole batch and the clone is discarded, leaving the receiver
// untouched. This is the block-acceptance path.
func (s *Set) BatchVerifyAndUpdate(txs []types.Transaction) (bool, *Set) {
	work := s.Clone()
	for i := range txs {
		if !work.VerifyTransaction(&txs[i]) {
			return false, nil
		}
		if err := work.Update(&txs[i]); err != nil {
			monitoring.Warnf("batch update failed: %v", err)
			return false, nil
		}
	}
	return true, work
}

// FilterValid verifies and applies txs in order, dropping the invalid
// ones instead of failing the batch. The block generator uses this to
// cut a block from a buffer that may contain intentionally broken
// transactions.
func (s *Set) FilterValid(txs []types.Transaction) ([]types.Transaction, *Set) {
	work := s.Clone()
	valid := make([]types.Transaction, 0, len(txs))
	for i := range txs {
		if !work.VerifyTransaction(&txs[i]) {
			continue
		}
		if err := work.Update(&txs[i]); err != nil {
			monitoring.Warnf("dropping transaction, update failed: %v", err)
			continue
		}
		valid = append(valid, txs[i])
	}
	return valid, work
}

// batchDelta is one worker's outcome: the outpoints its slice spent and
// the outputs it created, all verified against the shared snapshot.
type batchDelta struct {
	ok      bool
	spent   []types.Outpoint
	created []pair
}

// ParallelBatchVerifyAndUpdate partitions txs into contiguous batches of
// batchSize, verifies each batch in its own goroutine against the
// receiver as a shared immutable snapshot, then merges the per-batch
// deltas serially.
//
// Within a single block no transaction may spend an output created by a
// sibling transaction of the same block: workers only see the input
// snapshot, so such a chain fails verification. The merge keeps a
// global spent set and rejects overlapping spends across batches, so a
// double spend split between batches fails the whole block instead of
// slipping through.
func (s *Set) ParallelBatchVerifyAndUpdate(txs []types.Transaction, batchSize int) (bool, *Set) {
	if len(txs) == 0 {
		return true, s.Clone()
	}

	if batchSize < 1 {
		batchSize = 1
	}
	if batchSize > len(txs) {
		batchSize = len(txs)
	}

	numBatches := (len(txs) + batchSize - 1) / batchSize
	deltas := make([]batchDelta, numBatches)

	var wg sync.WaitGroup
	for b := 0; b < numBatches; b++ {
		start := b * batchSize
		end := start + batchSize
		if end > len(txs) {
			end = len(txs)
		}

		wg.Add(1)
		go func(b int, slice []types.Transaction) {
			defer wg.Done()
			deltas[b] = s.verifyBatch(slice)
		}(b, txs[start:end])
	}
	wg.Wait()

	work := s.Clone()
	spent := make(map[types.Outpoint]struct{})
	for b := range deltas {
		if !deltas[b].ok {
			return false, nil
		}

		for _, op := range deltas[b].spent {
			if _, dup := spent[op]; dup {
				monitoring.Warnf("conflicting batches: outpoint %s spent twice", op)
				return false, nil
			}
			spent[op] = struct{}{}
			work.Remove(op)
		}
		for _, p := range deltas[b].created {
			work.Insert(p.Outpoint, p.Output)
		}
	}

	return true, work
}

// verifyBatch runs one worker's slice against the snapshot. The batch
// tracks its own spends so a double spend inside one batch fails there
// rather than at the merge.
func (s *Set) verifyBatch(txs []types.Transaction) batchDelta {
	work := s.Clone()

	delta := batchDelta{ok: true}
	for i := range txs {
		// Inputs must come from the snapshot itself. A transaction
		// spending an output created by a sibling in the same block
		// would verify against the evolving clone but break the merge,
		// so it is rejected here.
		for j := range txs[i].Inputs {
			if !s.Contains(txs[i].Inputs[j].Outpoint) {
				monitoring.Warnf("invalid transaction: input %s not in block input snapshot",
					txs[i].Inputs[j].Outpoint)
				return batchDelta{}
			}
		}

		if !work.VerifyTransaction(&txs[i]) {
			return batchDelta{}
		}
		if err := work.Update(&txs[i]); err != nil {
			monitoring.Warnf("batch update failed: %v", err)
			return batchDelta{}
		}

		txid, err := serialization.HashTransaction(&txs[i])
		if err != nil {
			return batchDelta{}
		}
		for j := range txs[i].Inputs {
			delta.spent = append(delta.spent, txs[i].Inputs[j].Outpoint)
		}
		for j := range txs[i].Outputs {
			delta.created = append(delta.created, pair{
				Outpoint: types.Outpoint{TxID: txid, Index: uint32(j)},
				Output:   txs[i].Outputs[j],
			})
		}
	}
	return delta
}
