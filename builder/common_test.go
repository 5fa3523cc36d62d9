package builder

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/btcsuite/ccbuilder/ccpayload"
	"github.com/btcsuite/ccbuilder/pkg/btcunit"
	"github.com/stretchr/testify/require"
)

const (
	testFee  btcutil.Amount = 5000
	testDust btcutil.Amount = 600
)

var testParams = &chaincfg.RegressionNetParams

// testPubKey returns a deterministic public key for seed.
func testPubKey(seed byte) *btcec.PublicKey {
	_, pubKey := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return pubKey
}

// testAddress returns a deterministic P2PKH address for seed and its script.
func testAddress(t *testing.T, seed byte) (string, []byte) {
	t.Helper()

	pubKey := testPubKey(seed).SerializeCompressed()
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(pubKey), testParams,
	)
	require.NoError(t, err)

	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	return addr.EncodeAddress(), pkScript
}

// testWitnessAddress returns a deterministic P2WPKH address for seed and its
// script.
func testWitnessAddress(t *testing.T, seed byte) (string, []byte) {
	t.Helper()

	pubKey := testPubKey(seed).SerializeCompressed()
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pubKey), testParams,
	)
	require.NoError(t, err)

	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	return addr.EncodeAddress(), pkScript
}

// testOutPoint returns a deterministic outpoint.
func testOutPoint(seed byte, index uint32) wire.OutPoint {
	return wire.OutPoint{Hash: chainhash.Hash{seed}, Index: index}
}

// testUTXO returns a UTXO with a deterministic outpoint.
func testUTXO(seed byte, value btcutil.Amount, pkScript []byte,
	assets ...AssetHolding) UTXO {

	return UTXO{
		OutPoint: testOutPoint(seed, 0),
		Value:    value,
		PkScript: pkScript,
		Assets:   assets,
	}
}

// testBuilder returns a regtest builder with a flat default fee unless cfg
// says otherwise.
func testBuilder(t *testing.T, cfg Config) *Builder {
	t.Helper()

	if cfg.Network == "" {
		cfg.Network = "regtest"
	}

	b, err := New(cfg)
	require.NoError(t, err)

	return b
}

// decodeTx deserializes the transaction of a result.
func decodeTx(t *testing.T, res *Result) *wire.MsgTx {
	t.Helper()

	raw, err := hex.DecodeString(res.TxHex)
	require.NoError(t, err)

	tx := &wire.MsgTx{}
	require.NoError(t, tx.Deserialize(bytes.NewReader(raw)))

	return tx
}

// decodePayload finds and decodes the metadata output of tx.
func decodePayload(t *testing.T, tx *wire.MsgTx) *ccpayload.Transaction {
	t.Helper()

	for _, out := range tx.TxOut {
		class := txscript.GetScriptClass(out.PkScript)
		if class != txscript.NullDataTy {
			continue
		}

		pushes, err := txscript.PushedData(out.PkScript)
		require.NoError(t, err)
		require.Len(t, pushes, 1)

		payload, err := ccpayload.Decode(pushes[0])
		require.NoError(t, err)

		return payload
	}

	require.Fail(t, "no metadata output")

	return nil
}

// requireExactFee checks that the inputs pay exactly the reported fee and
// that only the metadata and carrier outputs are below the dust floor.
func requireExactFee(t *testing.T, res *Result, tx *wire.MsgTx,
	inputValues map[wire.OutPoint]btcutil.Amount) {

	t.Helper()

	var in, out btcutil.Amount
	for _, txIn := range tx.TxIn {
		value, ok := inputValues[txIn.PreviousOutPoint]
		require.True(t, ok, "unknown input %v", txIn.PreviousOutPoint)
		in += value
	}

	for _, txOut := range tx.TxOut {
		out += btcutil.Amount(txOut.Value)

		class := txscript.GetScriptClass(txOut.PkScript)
		if class == txscript.NullDataTy {
			require.Zero(t, txOut.Value)
			continue
		}

		require.GreaterOrEqual(
			t, btcutil.Amount(txOut.Value), testDust,
		)
	}

	require.Equal(t, res.Fee, in-out)
}

// valuesOf indexes the values of the given UTXOs by outpoint.
func valuesOf(utxos ...UTXO) map[wire.OutPoint]btcutil.Amount {
	values := make(map[wire.OutPoint]btcutil.Amount, len(utxos))
	for _, u := range utxos {
		values[u.OutPoint] = u.Value
	}

	return values
}

// testFeeRate returns a fee rate in sat/kvB.
func testFeeRate(t *testing.T, satPerKVB btcutil.Amount) btcunit.SatPerKVByte {
	t.Helper()

	rate := btcunit.NewSatPerKVByte(satPerKVB)
	require.False(t, rate.IsZero())

	return rate
}

// expectedRateFee returns the fee the rate asks for the estimated size of tx.
func expectedRateFee(rate btcunit.SatPerKVByte, tx *wire.MsgTx) btcutil.Amount {
	size := txsizes.EstimateSerializeSize(len(tx.TxIn), tx.TxOut, false)
	return rate.FeeForSizeRoundUp(size)
}
