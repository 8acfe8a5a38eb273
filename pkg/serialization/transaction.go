package serialization

import (
	"bytes"
	"io"

	"github.com/minichain/minichain/pkg/crypto"
	"github.com/minichain/minichain/pkg/keys"
	"github.com/minichain/minichain/pkg/types"
)

// SerializeTransaction converts a transaction to canonical bytes.
// Field order is fixed; the signature scripts are included, so the txid
// commits to the signatures as well as the transfer itself.
func SerializeTransaction(tx *types.Transaction) ([]byte, error) {
	var buf bytes.Buffer

	if err := WriteVarInt(&buf, uint64(len(tx.Inputs))); err != nil {
		return nil, err
	}
	for i := range tx.Inputs {
		if err := writeTxIn(&buf, &tx.Inputs[i]); err != nil {
			return nil, err
		}
	}

	if err := WriteVarInt(&buf, uint64(len(tx.Outputs))); err != nil {
		return nil, err
	}
	for i := range tx.Outputs {
		if err := writeTxOut(&buf, &tx.Outputs[i]); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func writeTxIn(w io.Writer, in *types.TxIn) error {
	if err := WriteString(w, in.Outpoint.TxID); err != nil {
		return err
	}
	if err := WriteUint32(w, in.Outpoint.Index); err != nil {
		return err
	}

	var sig []byte
	if in.SigScript.Signature != nil {
		sig = in.SigScript.Signature.Serialize()
	}
	if err := WriteBytes(w, sig); err != nil {
		return err
	}

	var pub []byte
	if in.SigScript.FullPubKey != nil {
		pub = in.SigScript.FullPubKey.Bytes()
	}
	return WriteBytes(w, pub)
}

func writeTxOut(w io.Writer, out *types.TxOut) error {
	if err := WriteUint32(w, out.Value); err != nil {
		return err
	}
	return WriteString(w, out.PkScript.PubKeyHash)
}

// DeserializeTransaction reads a transaction back from canonical bytes
func DeserializeTransaction(r io.Reader) (*types.Transaction, error) {
	var tx types.Transaction

	numInputs, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < numInputs; i++ {
		in, err := readTxIn(r)
		if err != nil {
			return nil, err
		}
		tx.Inputs = append(tx.Inputs, *in)
	}

	numOutputs, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < numOutputs; i++ {
		out, err := readTxOut(r)
		if err != nil {
			return nil, err
		}
		tx.Outputs = append(tx.Outputs, *out)
	}

	return &tx, nil
}

func readTxIn(r io.Reader) (*types.TxIn, error) {
	var in types.TxIn
	var err error

	if in.Outpoint.TxID, err = ReadString(r); err != nil {
		return nil, err
	}
	if in.Outpoint.Index, err = ReadUint32(r); err != nil {
		return nil, err
	}

	sigBytes, err := ReadBytes(r)
	if err != nil {
		return nil, err
	}
	if len(sigBytes) > 0 {
		if in.SigScript.Signature, err = keys.ParseSignature(sigBytes); err != nil {
			return nil, err
		}
	}

	pubBytes, err := ReadBytes(r)
	if err != nil {
		return nil, err
	}
	if len(pubBytes) > 0 {
		if in.SigScript.FullPubKey, err = keys.NewPublicKeyFromBytes(pubBytes); err != nil {
			return nil, err
		}
	}

	return &in, nil
}

func readTxOut(r io.Reader) (*types.TxOut, error) {
	var out types.TxOut
	var err error

	if out.Value, err = ReadUint32(r); err != nil {
		return nil, err
	}
	if out.PkScript.PubKeyHash, err = ReadString(r); err != nil {
		return nil, err
	}

	return &out, nil
}

// HashTransaction computes the transaction id: SHA-256 over the
// canonical serialization, as lowercase hex
func HashTransaction(tx *types.Transaction) (string, error) {
	b, err := SerializeTransaction(tx)
	if err != nil {
		return "", err
	}
	return crypto.Sum(b), nil
}
