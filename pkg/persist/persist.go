// Package persist writes and reads whole-node state snapshots as
// timestamped JSON files. Maps keyed by outpoints serialize as lists of
// {outpoint, value} objects (see utxo and wallet), which is what lets
// the snapshot survive JSON's string-only object keys.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/minichain/minichain/pkg/config"
	"github.com/minichain/minichain/pkg/keys"
	"github.com/minichain/minichain/pkg/types"
	"github.com/minichain/minichain/pkg/utxo"
	"github.com/minichain/minichain/pkg/wallet"
)

// SnapshotDir is where snapshots land, relative to the working directory
const SnapshotDir = "config"

// State is everything needed to restart a node where it left off: the
// chain, the UTXO set, the generator's keys, the simulation
// config, and the synthesized initial outputs with their keypairs.
type State struct {
	Blockchain    []*types.Block     `json:"blockchain"`
	UTXO          *utxo.Set          `json:"utxo"`
	KeyMap        wallet.KeyMap      `json:"keymap"`
	Config        config.Sim         `json:"config"`
	InitialTxOuts []types.TxOut      `json:"initial tx outs"`
	PrKeys        []*keys.PrivateKey `json:"pr_keys"`
	PuKeys        []*keys.PublicKey  `json:"pu_keys"`
}

// Save writes the state under SnapshotDir as
// <prefix>_YYYY-MM-DD-HH-MM-SS.json and returns the path written
func Save(state *State, prefix string) (string, error) {
	if err := os.MkdirAll(SnapshotDir, 0o755); err != nil {
		return "", errors.Wrap(err, "persist: creating snapshot directory")
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "persist: serializing state")
	}

	stamp := time.Now().Format("2006-01-02-15-04-05")
	path := filepath.Join(SnapshotDir, prefix+"_"+stamp+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "persist: writing %s", path)
	}

	return path, nil
}

// Load reads a snapshot back
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "persist: reading %s", path)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrapf(err, "persist: parsing %s", path)
	}
	return &state, nil
}
