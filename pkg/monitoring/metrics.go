package monitoring

import (
	"fmt"
	"sync/atomic"
)

// Metrics counts pipeline activity across the three simulation
// goroutines. All counters are atomic; a snapshot is taken on read.
type Metrics struct {
	txGenerated      uint64
	txInvalidInjects uint64
	blocksBuilt      uint64
	blocksExtended   uint64
	blocksDuplicate  uint64
	blocksFork       uint64
	blocksInvalid    uint64
}

// NewMetrics creates a zeroed metrics collector
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordTransaction counts one generated transaction; invalid marks the
// intentionally-broken ones
func (m *Metrics) RecordTransaction(invalid bool) {
	atomic.AddUint64(&m.txGenerated, 1)
	if invalid {
		atomic.AddUint64(&m.txInvalidInjects, 1)
	}
}

// RecordBlockBuilt counts one block cut by the generator
func (m *Metrics) RecordBlockBuilt() {
	atomic.AddUint64(&m.blocksBuilt, 1)
}

// RecordExtended counts one block accepted onto the canonical chain
func (m *Metrics) RecordExtended() {
	atomic.AddUint64(&m.blocksExtended, 1)
}

// RecordDuplicate counts one duplicate classification
func (m *Metrics) RecordDuplicate() {
	atomic.AddUint64(&m.blocksDuplicate, 1)
}

// RecordFork counts one fork classification
func (m *Metrics) RecordFork() {
	atomic.AddUint64(&m.blocksFork, 1)
}

// RecordInvalid counts one invalid-block classification
func (m *Metrics) RecordInvalid() {
	atomic.AddUint64(&m.blocksInvalid, 1)
}

// Snapshot is a consistent-enough copy of the counters for reporting
type Snapshot struct {
	TxGenerated      uint64
	TxInvalidInjects uint64
	BlocksBuilt      uint64
	BlocksExtended   uint64
	BlocksDuplicate  uint64
	BlocksFork       uint64
	BlocksInvalid    uint64
}

// Snapshot reads all counters
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TxGenerated:      atomic.LoadUint64(&m.txGenerated),
		TxInvalidInjects: atomic.LoadUint64(&m.txInvalidInjects),
		BlocksBuilt:      atomic.LoadUint64(&m.blocksBuilt),
		BlocksExtended:   atomic.LoadUint64(&m.blocksExtended),
		BlocksDuplicate:  atomic.LoadUint64(&m.blocksDuplicate),
		BlocksFork:       atomic.LoadUint64(&m.blocksFork),
		BlocksInvalid:    atomic.LoadUint64(&m.blocksInvalid),
	}
}

// String renders the snapshot for the shutdown log line
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"txs=%d (invalid %d) blocks built=%d extended=%d duplicate=%d fork=%d invalid=%d",
		s.TxGenerated, s.TxInvalidInjects, s.BlocksBuilt,
		s.BlocksExtended, s.BlocksDuplicate, s.BlocksFork, s.BlocksInvalid,
	)
}
