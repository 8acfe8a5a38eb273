// Package sim wires the three pipeline components together: the
// transaction generator, the block generator, and the chain validator,
// each a long-lived goroutine owning its own UTXO copy and talking to
// its neighbors over typed bounded channels.
package sim

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/minichain/minichain/pkg/chain"
	"github.com/minichain/minichain/pkg/config"
	"github.com/minichain/minichain/pkg/keys"
	"github.com/minichain/minichain/pkg/monitoring"
	"github.com/minichain/minichain/pkg/persist"
	"github.com/minichain/minichain/pkg/storage"
	"github.com/minichain/minichain/pkg/types"
	"github.com/minichain/minichain/pkg/utxo"
	"github.com/minichain/minichain/pkg/wallet"
)

const (
	// channelCap bounds every inter-component channel; a stalled
	// consumer backpressures its producer instead of growing a queue
	channelCap = 32

	// invalidBlockRatio is 1/p for adversarial block injection by the
	// block generator (mutated txid / previous hash / merkle root)
	invalidBlockRatio = 10

	// duplicateBlockRatio is 1/p for re-sending a freshly built block
	// to the validator
	duplicateBlockRatio = 10

	// The two synthesized outputs everything descends from
	initialValue0 uint32 = 500
	initialValue1 uint32 = 850
)

// ErrAlreadyRunning is returned by Start after the first call. The
// lifecycle is single-shot: one simulation per Simulation value.
var ErrAlreadyRunning = errors.New("sim: simulation already running")

// TxBundle pairs a generated transaction with the key-map snapshot
// taken right after it was built
type TxBundle struct {
	Tx     *types.Transaction
	KeyMap wallet.KeyMap
}

// Outcome is the validator's verdict on one inbound block. Orphans,
// merkle mismatches, and rejected transaction batches all collapse to
// Invalid; the distinction lives in the log lines.
type Outcome int

const (
	// Extended: the block was appended to the canonical chain
	Extended Outcome = iota
	// Duplicate: the block's header was already in the chain
	Duplicate
	// ForkDetected: a valid-shaped block branched off a prior point
	ForkDetected
	// Invalid: unknown ancestor, merkle mismatch, or bad transactions
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Extended:
		return "extended"
	case Duplicate:
		return "duplicate"
	case ForkDetected:
		return "fork"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Result is the validator's verdict on one inbound block
type Result struct {
	Outcome  Outcome
	Hash     string
	ForkRoot string
	Height   int
}

// Simulation owns the pipeline lifecycle and the owner-side copies of
// the evolving state (fed back from the block generator), which is what
// a snapshot captures.
type Simulation struct {
	cfg     config.Sim
	runID   uuid.UUID
	metrics *monitoring.Metrics
	log     *monitoring.Logger

	archive *storage.Archive

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Owner-side state, updated by the collector goroutine
	blocks []*types.Block
	utxo   *utxo.Set
	keyMap wallet.KeyMap

	// Seed material, kept for snapshots
	initialTxOuts []types.TxOut
	prKeys        []*keys.PrivateKey
	puKeys        []*keys.PublicKey

	// Seed state handed to the components at Start
	genUTXO   *utxo.Set
	genKeyMap wallet.KeyMap

	validator *Validator

	results chan Result
}

// Option tweaks a Simulation at construction
type Option func(*Simulation)

// WithArchive persists validator-accepted blocks to the given archive
func WithArchive(a *storage.Archive) Option {
	return func(s *Simulation) { s.archive = a }
}

// WithLogger overrides the default logger
func WithLogger(l *monitoring.Logger) Option {
	return func(s *Simulation) { s.log = l }
}

// New seeds a simulation: two keypairs guarding two synthesized outputs
// at the all-zero txid, a genesis-only chain, and zeroed metrics.
func New(cfg config.Sim, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulation{
		cfg:     cfg,
		runID:   uuid.New(),
		metrics: monitoring.NewMetrics(),
		log:     monitoring.NewLogger(monitoring.INFO),
		utxo:    utxo.NewSet(),
		keyMap:  wallet.NewKeyMap(),
		results: make(chan Result, channelCap),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("run", s.runID.String())

	seedUTXO := utxo.NewSet()
	seedKeyMap := wallet.NewKeyMap()
	for i, value := range []uint32{initialValue0, initialValue1} {
		priv, pub, err := keys.GenerateKeypair()
		if err != nil {
			return nil, errors.Wrap(err, "sim: seeding keypair")
		}

		op := types.Outpoint{TxID: types.ZeroHash, Index: uint32(i)}
		out := types.TxOut{
			Value: value,
			PkScript: types.PubKeyScript{
				PubKeyHash: pub.Hash160(),
				Verifier:   keys.Verifier{},
			},
		}

		seedUTXO.Insert(op, out)
		seedKeyMap[op] = wallet.Keypair{Private: priv, Public: pub}

		s.initialTxOuts = append(s.initialTxOuts, out)
		s.prKeys = append(s.prKeys, priv)
		s.puKeys = append(s.puKeys, pub)
	}

	s.genUTXO = seedUTXO
	s.genKeyMap = seedKeyMap
	s.blocks = []*types.Block{types.GenesisBlock()}

	return s, nil
}

// Start launches the pipeline. Only the first call succeeds; later
// calls return ErrAlreadyRunning and change nothing.
func (s *Simulation) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyRunning
	}
	s.started = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	txCh := make(chan TxBundle, channelCap)
	blockCh := make(chan *types.Block, channelCap)
	utxoCh := make(chan *utxo.Set, channelCap)
	keyMapCh := make(chan wallet.KeyMap, channelCap)
	validatorCh := make(chan *types.Block, channelCap)

	txGen := newGenerator(s.cfg, s.genUTXO.Clone(), s.genKeyMap.Clone(), txCh, s.metrics, s.log)

	chainCopy, err := chain.NewWithGenesis()
	if err != nil {
		return err
	}
	blockGen := newBlockGenerator(s.cfg, s.genUTXO.Clone(), chainCopy, txCh,
		blockGenOutputs{blocks: blockCh, utxos: utxoCh, keyMaps: keyMapCh, validator: validatorCh},
		s.metrics, s.log)

	validatorChain, err := chain.NewWithGenesis()
	if err != nil {
		return err
	}
	s.validator = newValidator(s.genUTXO.Clone(), validatorChain, s.archive,
		validatorCh, s.results, s.metrics, s.log)

	s.wg.Add(4)
	go func() {
		defer s.wg.Done()
		txGen.run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		blockGen.run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.validator.run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.collect(blockCh, utxoCh, keyMapCh)
	}()

	s.log.Info("simulation started")
	return nil
}

// collect drains the block generator's owner-facing channels, keeping
// the latest chain/UTXO/key-map copies for snapshots. It exits when the
// block generator closes its outputs.
func (s *Simulation) collect(blocks <-chan *types.Block, utxos <-chan *utxo.Set, keyMaps <-chan wallet.KeyMap) {
	for blocks != nil || utxos != nil || keyMaps != nil {
		select {
		case b, ok := <-blocks:
			if !ok {
				blocks = nil
				continue
			}
			s.mu.Lock()
			s.blocks = append(s.blocks, b)
			s.mu.Unlock()
		case u, ok := <-utxos:
			if !ok {
				utxos = nil
				continue
			}
			s.mu.Lock()
			s.utxo = u
			s.mu.Unlock()
		case km, ok := <-keyMaps:
			if !ok {
				keyMaps = nil
				continue
			}
			s.mu.Lock()
			s.keyMap = km
			s.mu.Unlock()
		}
	}
}

// Stop cancels the pipeline and waits for every goroutine to unwind.
// Safe to call before Start (a no-op) and more than once.
func (s *Simulation) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()

	s.log.Infof("simulation stopped: %s", s.metrics.Snapshot())
}

// Running reports whether Start has been called
func (s *Simulation) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Validator exposes the authoritative validator state; nil before Start
func (s *Simulation) Validator() *Validator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validator
}

// Results exposes the validator verdict stream
func (s *Simulation) Results() <-chan Result {
	return s.results
}

// Metrics returns the pipeline counters
func (s *Simulation) Metrics() monitoring.Snapshot {
	return s.metrics.Snapshot()
}

// Snapshot captures the owner-side state for persistence
func (s *Simulation) Snapshot() *persist.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	blocks := make([]*types.Block, len(s.blocks))
	copy(blocks, s.blocks)

	return &persist.State{
		Blockchain:    blocks,
		UTXO:          s.utxo.Clone(),
		KeyMap:        s.keyMap.Clone(),
		Config:        s.cfg,
		InitialTxOuts: s.initialTxOuts,
		PrKeys:        s.prKeys,
		PuKeys:        s.puKeys,
	}
}

// Save writes a snapshot and returns the file path
func (s *Simulation) Save(prefix string) (string, error) {
	return persist.Save(s.Snapshot(), prefix)
}
