package sim

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minichain/minichain/pkg/chain"
	"github.com/minichain/minichain/pkg/config"
	"github.com/minichain/minichain/pkg/crypto"
	"github.com/minichain/minichain/pkg/monitoring"
	"github.com/minichain/minichain/pkg/types"
	"github.com/minichain/minichain/pkg/utxo"
)

// testGenerator builds a generator over freshly seeded state with a
// fixed RNG so the tests are reproducible
func testGenerator(t *testing.T, cfg config.Sim) (*generator, *utxo.Set) {
	t.Helper()

	s, err := New(cfg)
	require.NoError(t, err)

	seed := s.genUTXO.Clone()
	g := &generator{
		cfg:     cfg,
		utxo:    s.genUTXO,
		keyMap:  s.genKeyMap,
		out:     nil, // createTransaction never touches the channel
		rng:     rand.New(rand.NewSource(42)),
		metrics: monitoring.NewMetrics(),
		log:     monitoring.NewLogger(monitoring.ERROR),
	}
	return g, seed
}

func TestGeneratedTransactionsVerify(t *testing.T) {
	g, _ := testGenerator(t, config.Default())

	// Every valid transaction must verify against the UTXO snapshot the
	// generator used to build it, and value is conserved.
	for i := 0; i < 25; i++ {
		snapshot := g.utxo.Clone()
		before := snapshot.TotalValue()

		tx, err := g.createTransaction(validTx)
		require.NoError(t, err)
		assert.True(t, snapshot.VerifyTransaction(tx), "iteration %d", i)

		require.NoError(t, g.utxo.Update(tx))
		assert.Equal(t, before, g.utxo.TotalValue(), "iteration %d", i)
	}
}

func TestGeneratedInvalidTransactionsFail(t *testing.T) {
	for _, mode := range []invalidMode{badInput, badSum, badPubKey} {
		g, _ := testGenerator(t, config.Default())

		keyMapBefore := g.keyMap.Clone()
		utxoBefore := g.utxo.Clone()

		tx, err := g.createTransaction(mode)
		require.NoError(t, err)

		assert.False(t, g.utxo.VerifyTransaction(tx), "mode %d", mode)

		// Intentionally broken transactions must not perturb the
		// generator's key map or local UTXO
		assert.Len(t, g.keyMap, len(keyMapBefore), "mode %d", mode)
		assert.True(t, g.utxo.Equal(utxoBefore), "mode %d", mode)
	}
}

func TestGeneratorKeyMapTracksOutputs(t *testing.T) {
	g, _ := testGenerator(t, config.Default())

	tx, err := g.createTransaction(validTx)
	require.NoError(t, err)
	require.NoError(t, g.utxo.Update(tx))

	// Every unspent output the generator owns has a keypair, so the
	// next iteration can spend any of them
	for _, op := range g.utxo.Outpoints() {
		_, ok := g.keyMap[op]
		assert.True(t, ok, "missing keypair for %s", op)
	}
}

func testBlockGenerator(t *testing.T, set *utxo.Set) *blockGenerator {
	t.Helper()

	bc, err := chain.NewWithGenesis()
	require.NoError(t, err)

	return &blockGenerator{
		cfg:     config.Default(),
		utxo:    set,
		chain:   bc,
		rng:     rand.New(rand.NewSource(7)),
		metrics: monitoring.NewMetrics(),
		log:     monitoring.NewLogger(monitoring.ERROR),
	}
}

func TestBuildBlockCommitsToTransactions(t *testing.T) {
	g, seed := testGenerator(t, config.Default())

	var txs []types.Transaction
	for i := 0; i < 3; i++ {
		tx, err := g.createTransaction(validTx)
		require.NoError(t, err)
		require.NoError(t, g.utxo.Update(tx))
		txs = append(txs, *tx)
	}

	bg := testBlockGenerator(t, seed.Clone())
	block, err := bg.buildBlock(txs)
	require.NoError(t, err)

	tipHash, err := bg.chain.TipHash()
	require.NoError(t, err)
	assert.Equal(t, tipHash, block.Header.PreviousHash)
	assert.Equal(t, block.Merkle.Root(), block.Header.MerkleRoot)
	assert.Equal(t, uint32(0), block.Header.Nonce)
}

// testValidator builds a validator around the seed UTXO with no archive
func testValidator(t *testing.T, set *utxo.Set) *Validator {
	t.Helper()

	bc, err := chain.NewWithGenesis()
	require.NoError(t, err)

	return newValidator(set, bc, nil, nil, nil,
		monitoring.NewMetrics(), monitoring.NewLogger(monitoring.ERROR))
}

func TestValidatorExtendsWithValidBlock(t *testing.T) {
	cfg := config.Default()
	cfg.BlockSize = 8

	g, seed := testGenerator(t, cfg)

	var txs []types.Transaction
	for i := 0; i < int(cfg.BlockSize); i++ {
		tx, err := g.createTransaction(validTx)
		require.NoError(t, err)
		require.NoError(t, g.utxo.Update(tx))
		txs = append(txs, *tx)
	}

	bg := testBlockGenerator(t, seed.Clone())
	valid, _ := bg.utxo.FilterValid(txs)
	require.Len(t, valid, int(cfg.BlockSize))

	block, err := bg.buildBlock(valid)
	require.NoError(t, err)

	v := testValidator(t, seed.Clone())
	result, err := v.process(block)
	require.NoError(t, err)

	assert.Equal(t, Extended, result.Outcome)
	assert.Equal(t, 1, v.chain.Height())
	// The authoritative UTXO reflects the eight transactions' net effect
	assert.True(t, v.utxo.Equal(g.utxo))
}

func TestValidatorClassifications(t *testing.T) {
	g, seed := testGenerator(t, config.Default())

	tx, err := g.createTransaction(validTx)
	require.NoError(t, err)
	require.NoError(t, g.utxo.Update(tx))

	bg := testBlockGenerator(t, seed.Clone())
	block, err := bg.buildBlock([]types.Transaction{*tx})
	require.NoError(t, err)

	v := testValidator(t, seed.Clone())

	result, err := v.process(block)
	require.NoError(t, err)
	require.Equal(t, Extended, result.Outcome)

	// The same block again: its header is already in the chain
	result, err = v.process(block)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, result.Outcome)

	// A block branching off genesis while the tip is past it: fork
	rivalTx, err := g.createTransaction(validTx)
	require.NoError(t, err)
	rival, err := bg.buildBlock([]types.Transaction{*rivalTx})
	require.NoError(t, err)
	result, err = v.process(rival)
	require.NoError(t, err)
	assert.Equal(t, ForkDetected, result.Outcome)
	assert.Equal(t, 1, v.chain.Height())

	// An unknown ancestor: invalid, chain unchanged
	orphan := rival.Clone()
	orphan.Header.PreviousHash = crypto.SumString("unknown ancestor")
	result, err = v.process(orphan)
	require.NoError(t, err)
	assert.Equal(t, Invalid, result.Outcome)
	assert.Equal(t, 1, v.chain.Height())
}

func TestValidatorRejectsCorruptedBlocks(t *testing.T) {
	g, seed := testGenerator(t, config.Default())

	tx, err := g.createTransaction(validTx)
	require.NoError(t, err)
	require.NoError(t, g.utxo.Update(tx))

	bg := testBlockGenerator(t, seed.Clone())
	block, err := bg.buildBlock([]types.Transaction{*tx})
	require.NoError(t, err)

	// Merkle root mutation
	v := testValidator(t, seed.Clone())
	bad := block.Clone()
	bad.Header.MerkleRoot = crypto.SumString(bad.Header.MerkleRoot)
	result, err := v.process(bad)
	require.NoError(t, err)
	assert.Equal(t, Invalid, result.Outcome)

	// Transaction txid mutation: merkle no longer matches the bodies
	bad = block.Clone()
	bad.Transactions[0].Inputs[0].Outpoint.TxID = crypto.SumString(types.ZeroHash)
	result, err = v.process(bad)
	require.NoError(t, err)
	assert.Equal(t, Invalid, result.Outcome)

	// The untouched original still extends
	result, err = v.process(block)
	require.NoError(t, err)
	assert.Equal(t, Extended, result.Outcome)
}

func TestSimulationLifecycle(t *testing.T) {
	cfg := config.Sim{
		BlockMean:          0.001,
		BlockDuration:      1,
		BlockSize:          2,
		TxMean:             0.001,
		TxDuration:         1,
		MaxTxOutputs:       2,
		InvalidTxMeanRatio: 0,
	}

	s, err := New(cfg, WithLogger(monitoring.NewLogger(monitoring.ERROR)))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	// The lifecycle is single-shot
	assert.ErrorIs(t, s.Start(ctx), ErrAlreadyRunning)
	assert.True(t, s.Running())

	// Wait for the pipeline to extend the chain at least once
	deadline := time.After(30 * time.Second)
	sawExtension := false
	for !sawExtension {
		select {
		case result, ok := <-s.Results():
			require.True(t, ok, "result stream closed before any extension")
			if result.Outcome == Extended {
				sawExtension = true
			}
		case <-deadline:
			t.Fatal("no chain extension within the deadline")
		}
	}

	s.Stop()

	metrics := s.Metrics()
	assert.GreaterOrEqual(t, metrics.BlocksExtended, uint64(1))
	assert.GreaterOrEqual(t, metrics.TxGenerated, uint64(cfg.BlockSize))
	assert.GreaterOrEqual(t, s.Validator().Chain().Height(), 1)

	// A snapshot of the stopped simulation is self-consistent
	state := s.Snapshot()
	assert.NotEmpty(t, state.Blockchain)
	assert.Equal(t, cfg, state.Config)
}
