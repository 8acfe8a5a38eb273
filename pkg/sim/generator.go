package sim

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/minichain/minichain/pkg/config"
	"github.com/minichain/minichain/pkg/crypto"
	"github.com/minichain/minichain/pkg/keys"
	"github.com/minichain/minichain/pkg/monitoring"
	"github.com/minichain/minichain/pkg/serialization"
	"github.com/minichain/minichain/pkg/types"
	"github.com/minichain/minichain/pkg/utxo"
	"github.com/minichain/minichain/pkg/wallet"
)

// invalidMode picks which of the three failure modes an intentionally
// invalid transaction exhibits
type invalidMode int

const (
	validTx invalidMode = iota
	// badInput rewrites one input's txid so the outpoint is unknown
	badInput
	// badSum inflates output 0 past the input sum
	badSum
	// badPubKey substitutes a wrong public key in one sig script
	badPubKey
)

// generator is the transaction-producing end of the pipeline. It owns
// a local UTXO it updates optimistically for valid transactions, and
// the canonical key map it snapshots into every emitted bundle.
type generator struct {
	cfg     config.Sim
	utxo    *utxo.Set
	keyMap  wallet.KeyMap
	out     chan<- TxBundle
	rng     *rand.Rand
	metrics *monitoring.Metrics
	log     *monitoring.Logger
}

func newGenerator(cfg config.Sim, set *utxo.Set, km wallet.KeyMap,
	out chan<- TxBundle, metrics *monitoring.Metrics, log *monitoring.Logger) *generator {
	return &generator{
		cfg:     cfg,
		utxo:    set,
		keyMap:  km,
		out:     out,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		metrics: metrics,
		log:     log.WithField("component", "txgen"),
	}
}

// run produces transactions until the context is cancelled, then closes
// the outbound channel so the block generator unwinds in turn.
func (g *generator) run(ctx context.Context) {
	defer close(g.out)

	var produced uint64
	for {
		if !sleep(ctx, expDelay(g.rng, g.cfg.TxMean, g.cfg.TxDuration)) {
			g.log.Info("transaction generator stopping")
			return
		}

		mode := validTx
		if oneIn(g.rng, g.cfg.InvalidTxMeanRatio) {
			mode = invalidMode(1 + g.rng.Intn(3))
		}

		tx, err := g.createTransaction(mode)
		if err != nil {
			g.log.Errorf("transaction creation failed: %v", err)
			return
		}

		produced++
		g.metrics.RecordTransaction(mode != validTx)
		g.log.Debugf("%d transactions created", produced)

		// Valid transactions are applied optimistically so the next
		// iteration can spend this one's outputs; invalid ones must
		// leave the local view untouched.
		if mode == validTx {
			if err := g.utxo.Update(tx); err != nil {
				g.log.Errorf("local UTXO update failed: %v", err)
				return
			}
		}

		select {
		case <-ctx.Done():
			g.log.Info("transaction generator stopping")
			return
		case g.out <- TxBundle{Tx: tx, KeyMap: g.keyMap.Clone()}:
		}
	}
}

// createTransaction builds one transaction against the local UTXO:
// uniformly many inputs sampled without replacement, uniformly many
// outputs splitting the available balance by random weights, each input
// signed with the key bound to its outpoint. The chosen invalid mode
// corrupts exactly one aspect; invalid transactions must not perturb
// the key map or the local UTXO.
func (g *generator) createTransaction(mode invalidMode) (*types.Transaction, error) {
	if g.utxo.Len() == 0 {
		return nil, errors.New("sim: generator UTXO is empty")
	}

	switch mode {
	case badInput:
		g.log.Warn("expecting an invalid transaction: an input will not be in the UTXO")
	case badSum:
		g.log.Warn("expecting an invalid transaction: output sum will exceed input sum")
	case badPubKey:
		g.log.Warn("expecting an invalid transaction: a signature script will not verify")
	}

	ops := g.utxo.Outpoints()
	g.rng.Shuffle(len(ops), func(i, j int) { ops[i], ops[j] = ops[j], ops[i] })

	numInputs := 1 + g.rng.Intn(len(ops))
	chosen := ops[:numInputs]

	var available uint64
	for _, op := range chosen {
		out, _ := g.utxo.Get(op)
		available += uint64(out.Value)
	}

	numOutputs := 1 + g.rng.Intn(g.cfg.MaxTxOutputs)
	weights := make([]uint64, numOutputs)
	var weightSum uint64
	for i := range weights {
		weights[i] = uint64(1 + g.rng.Intn(100))
		weightSum += weights[i]
	}

	// Scale the weights down to the available balance; the integer
	// remainder lands on output 0 so the sum is conserved.
	fraction := available / weightSum
	values := make([]uint64, numOutputs)
	var scaledSum uint64
	for i := range values {
		values[i] = weights[i] * fraction
		scaledSum += values[i]
	}
	values[0] += available - scaledSum

	if mode == badSum {
		values[0]++
	}

	invalidIndex := g.rng.Intn(numInputs)

	inputs := make([]types.TxIn, 0, numInputs)
	for i, op := range chosen {
		out, _ := g.utxo.Get(op)
		kp, ok := g.keyMap[op]
		if !ok {
			return nil, errors.Errorf("sim: no keypair for outpoint %s", op)
		}

		message := types.SpendMessage(op, out.PkScript.PubKeyHash)

		pub := kp.Public
		if mode == badPubKey && i == invalidIndex {
			_, wrongPub, err := keys.GenerateKeypair()
			if err != nil {
				return nil, errors.Wrap(err, "sim: generating decoy keypair")
			}
			pub = wrongPub
		}

		sig := kp.Private.Sign([]byte(message))

		if mode == validTx {
			delete(g.keyMap, op)
		}

		// The signature is made first, then the outpoint is broken, so
		// only the UTXO lookup fails on this input
		if mode == badInput && i == invalidIndex {
			op.TxID = crypto.SumString(op.TxID)
		}

		inputs = append(inputs, types.TxIn{
			Outpoint:  op,
			SigScript: types.SigScript{Signature: sig, FullPubKey: pub},
		})
	}

	outputs := make([]types.TxOut, 0, numOutputs)
	newKeys := make([]wallet.Keypair, 0, numOutputs)
	for _, value := range values {
		if value == 0 {
			continue
		}

		priv, pub, err := keys.GenerateKeypair()
		if err != nil {
			return nil, errors.Wrap(err, "sim: generating output keypair")
		}

		newKeys = append(newKeys, wallet.Keypair{Private: priv, Public: pub})
		outputs = append(outputs, types.TxOut{
			Value: uint32(value),
			PkScript: types.PubKeyScript{
				PubKeyHash: pub.Hash160(),
				Verifier:   keys.Verifier{},
			},
		})
	}

	tx := &types.Transaction{Inputs: inputs, Outputs: outputs}
	g.log.Debugf("transaction created with %d inputs and %d outputs", len(inputs), len(outputs))

	if mode == validTx {
		txid, err := serialization.HashTransaction(tx)
		if err != nil {
			return nil, errors.Wrap(err, "sim: hashing transaction")
		}
		for i, kp := range newKeys {
			g.keyMap[types.Outpoint{TxID: txid, Index: uint32(i)}] = kp
		}
	}

	return tx, nil
}
