package wallet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minichain/minichain/pkg/keys"
	"github.com/minichain/minichain/pkg/types"
)

func sampleKeyMap(t *testing.T, n int) KeyMap {
	t.Helper()

	km := NewKeyMap()
	for i := 0; i < n; i++ {
		priv, pub, err := keys.GenerateKeypair()
		require.NoError(t, err)
		km[types.Outpoint{TxID: types.ZeroHash, Index: uint32(i)}] = Keypair{Private: priv, Public: pub}
	}
	return km
}

func TestCloneIsIndependent(t *testing.T) {
	km := sampleKeyMap(t, 2)
	clone := km.Clone()

	delete(clone, types.Outpoint{TxID: types.ZeroHash, Index: 0})
	assert.Len(t, km, 2)
	assert.Len(t, clone, 1)
}

func TestKeyMapJSONRoundTrip(t *testing.T) {
	km := sampleKeyMap(t, 3)

	data, err := json.Marshal(km)
	require.NoError(t, err)

	var back KeyMap
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 3)

	for op, kp := range km {
		restored, ok := back[op]
		require.True(t, ok, "missing %s", op)
		assert.True(t, kp.Private.Equal(restored.Private))
		assert.True(t, kp.Public.Equal(restored.Public))
	}

	// Restored private keys still authorize spends their public halves accept
	op := types.Outpoint{TxID: types.ZeroHash, Index: 0}
	message := types.SpendMessage(op, back[op].Public.Hash160())
	sig := back[op].Private.Sign([]byte(message))
	assert.True(t, keys.Verifier{}.Verify(message, sig, back[op].Public))
}
