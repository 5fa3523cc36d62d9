package builder

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/ccbuilder/ccpayload"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const (
	assetA = "La3HuvNjxJZ9yPgBEpHW1GmXNaxGDrU7TL5vTw"
	assetB = "Ua4YobfeqkYqLM3VohHSLGWmsvzXUtUFXdMjWp"
)

// outputValues returns the values of the outputs of a transfer result.
func outputValues(t *testing.T, res *Result) []int64 {
	t.Helper()

	tx := decodeTx(t, res)
	values := make([]int64, 0, len(tx.TxOut))
	for _, out := range tx.TxOut {
		values = append(values, out.Value)
	}

	return values
}

// TestBuildTransferChange checks where the change of a transfer goes.
func TestBuildTransferChange(t *testing.T) {
	t.Parallel()

	_, ownerScript := testAddress(t, 1)
	holder, holderScript := testAddress(t, 2)

	assetUTXO := testUTXO(1, 100000, ownerScript, AssetHolding{
		AssetID: assetA, Amount: 50,
	})

	tests := []struct {
		name    string
		amount  uint64
		flags   Flags
		outputs []int64
		colored []uint32
		change  uint64
	}{
		{
			name:    "single change",
			amount:  20,
			flags:   Flags{NoSplit: true},
			outputs: []int64{600, 0, 94400},
			colored: []uint32{0, 2},
			change:  30,
		},
		{
			name:    "split change",
			amount:  20,
			outputs: []int64{600, 0, 93800, 600},
			colored: []uint32{0, 3},
			change:  30,
		},
		{
			// Every unit is sent, so the dust output carries no
			// colored units but the split is still honored.
			name:    "requested split without colored change",
			amount:  50,
			flags:   Flags{SplitChange: true},
			outputs: []int64{600, 0, 93800, 600},
			colored: []uint32{0},
		},
		{
			name:    "no split wins over a requested split",
			amount:  20,
			flags:   Flags{SplitChange: true, NoSplit: true},
			outputs: []int64{600, 0, 94400},
			colored: []uint32{0, 2},
			change:  30,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			b := testBuilder(t, Config{})
			res, err := b.BuildTransfer(&TransferRequest{
				UTXOs: []UTXO{assetUTXO},
				Fee:   testFee,
				To: []Transfer{{
					AssetID: assetA,
					Amount:  test.amount,
					Destination: PlainAddress{
						Address: holder,
					},
				}},
				Flags: test.flags,
			})
			require.NoError(t, err)

			tx := decodeTx(t, res)
			require.Equal(t, test.outputs, outputValues(t, res))
			require.Equal(t, test.colored, res.ColoredOutputIndexes)
			requireExactFee(t, res, tx, valuesOf(assetUTXO))

			require.Equal(t, holderScript, tx.TxOut[0].PkScript)
			last := tx.TxOut[len(tx.TxOut)-1]
			require.Equal(t, ownerScript, last.PkScript)

			payload := decodePayload(t, tx)
			require.Equal(t, ccpayload.TypeTransfer, payload.Type)
			require.Equal(t, []ccpayload.Payment{
				{Input: 0, Amount: test.amount, Output: 0},
			}, payload.Payments)

			require.Len(t, res.Demands, 1)
			demand := res.Demands[0]
			require.Equal(t, assetA, demand.AssetID)
			require.True(t, demand.Satisfied)
			require.Equal(t, test.amount, demand.Requested)
			require.Zero(t, demand.Remaining)
			require.Equal(t, test.change, demand.ChangeAmount)
			require.Equal(t, []FundingInput{
				{InputIndex: 0, Amount: test.amount},
			}, demand.FundingInputs)
		})
	}
}

// TestBuildTransferTopUp checks that plain outputs pay the fee when the asset
// inputs cannot.
func TestBuildTransferTopUp(t *testing.T) {
	t.Parallel()

	_, ownerScript := testAddress(t, 1)
	holder, _ := testAddress(t, 2)
	financeChange, financeChangeScript := testAddress(t, 3)

	assetUTXO := testUTXO(1, 1000, ownerScript, AssetHolding{
		AssetID: assetA, Amount: 50,
	})
	plain1 := testUTXO(2, 3000, ownerScript)
	plain2 := testUTXO(3, 5000, ownerScript)
	unused := testUTXO(4, 7000, ownerScript)

	transfer := []Transfer{{
		AssetID:     assetA,
		Amount:      20,
		Destination: PlainAddress{Address: holder},
	}}

	t.Run("plain utxos", func(t *testing.T) {
		t.Parallel()

		b := testBuilder(t, Config{})
		res, err := b.BuildTransfer(&TransferRequest{
			UTXOs: []UTXO{assetUTXO, plain1, plain2, unused},
			Fee:   testFee,
			To:    transfer,
		})
		require.NoError(t, err)

		tx := decodeTx(t, res)
		require.Len(t, tx.TxIn, 3)
		require.Equal(t, assetUTXO.OutPoint, tx.TxIn[0].PreviousOutPoint)
		require.Equal(t, plain1.OutPoint, tx.TxIn[1].PreviousOutPoint)
		require.Equal(t, plain2.OutPoint, tx.TxIn[2].PreviousOutPoint)

		require.Equal(t, []int64{600, 0, 2800, 600}, outputValues(t, res))
		require.Equal(t, []uint32{0, 3}, res.ColoredOutputIndexes)
		requireExactFee(
			t, res, tx, valuesOf(assetUTXO, plain1, plain2),
		)
	})

	t.Run("finance output first", func(t *testing.T) {
		t.Parallel()

		finance := testUTXO(9, 8000, ownerScript)

		b := testBuilder(t, Config{})
		res, err := b.BuildTransfer(&TransferRequest{
			UTXOs:                []UTXO{assetUTXO, plain1},
			Fee:                  testFee,
			To:                   transfer,
			FinanceOutput:        fn.Some(finance),
			FinanceChangeAddress: financeChange,
		})
		require.NoError(t, err)

		tx := decodeTx(t, res)
		require.Len(t, tx.TxIn, 2)
		require.Equal(t, finance.OutPoint, tx.TxIn[1].PreviousOutPoint)

		require.Equal(t, []int64{600, 0, 2800, 600}, outputValues(t, res))
		require.Equal(t, financeChangeScript, tx.TxOut[2].PkScript)
		require.Equal(t, ownerScript, tx.TxOut[3].PkScript)
		requireExactFee(t, res, tx, valuesOf(assetUTXO, finance))
	})

	t.Run("not enough", func(t *testing.T) {
		t.Parallel()

		b := testBuilder(t, Config{})
		_, err := b.BuildTransfer(&TransferRequest{
			UTXOs: []UTXO{assetUTXO},
			Fee:   testFee,
			To:    transfer,
		})
		require.True(t, IsError(err, ErrInsufficientFunds), err)

		var e Error
		require.ErrorAs(t, err, &e)
		require.Equal(t, ccpayload.TypeTransfer, e.TxType)
		require.Equal(t, testFee, e.Fee)
		require.EqualValues(t, 6200, e.TotalCost)
		require.EqualValues(t, 5200, e.Missing)
	})
}

// TestBuildBurn checks transactions destroying units.
func TestBuildBurn(t *testing.T) {
	t.Parallel()

	_, ownerScript := testAddress(t, 1)
	holder, _ := testAddress(t, 2)

	assetUTXO := testUTXO(1, 100000, ownerScript, AssetHolding{
		AssetID: assetA, Amount: 50,
	})

	t.Run("burn only", func(t *testing.T) {
		t.Parallel()

		b := testBuilder(t, Config{})
		res, err := b.BuildBurn(&TransferRequest{
			UTXOs: []UTXO{assetUTXO},
			Fee:   testFee,
			Burn: []Transfer{{
				AssetID: assetA,
				Amount:  20,
			}},
			Flags: Flags{NoSplit: true},
		})
		require.NoError(t, err)

		tx := decodeTx(t, res)
		require.Equal(t, []int64{0, 95000}, outputValues(t, res))
		require.Equal(t, []uint32{1}, res.ColoredOutputIndexes)
		requireExactFee(t, res, tx, valuesOf(assetUTXO))

		payload := decodePayload(t, tx)
		require.Equal(t, ccpayload.TypeBurn, payload.Type)
		require.Equal(t, []ccpayload.Payment{
			{Input: 0, Amount: 20, Burn: true},
		}, payload.Payments)
	})

	t.Run("burn with default flags", func(t *testing.T) {
		t.Parallel()

		b := testBuilder(t, Config{})
		res, err := b.BuildBurn(&TransferRequest{
			UTXOs: []UTXO{assetUTXO},
			Fee:   testFee,
			Burn: []Transfer{{
				AssetID: assetA,
				Amount:  20,
			}},
		})
		require.NoError(t, err)

		// The 30 remaining units get their own dust output, so the
		// burn has a third output unless NoSplit is set.
		tx := decodeTx(t, res)
		require.Equal(t, []int64{0, 94400, 600}, outputValues(t, res))
		require.Equal(t, []uint32{2}, res.ColoredOutputIndexes)
		requireExactFee(t, res, tx, valuesOf(assetUTXO))
		require.Equal(t, ownerScript, tx.TxOut[1].PkScript)
		require.Equal(t, ownerScript, tx.TxOut[2].PkScript)

		payload := decodePayload(t, tx)
		require.Equal(t, ccpayload.TypeBurn, payload.Type)
		require.Equal(t, []ccpayload.Payment{
			{Input: 0, Amount: 20, Burn: true},
		}, payload.Payments)
		require.EqualValues(t, 30, res.Demands[0].ChangeAmount)
	})

	t.Run("burn and transfer", func(t *testing.T) {
		t.Parallel()

		b := testBuilder(t, Config{})
		res, err := b.BuildTransfer(&TransferRequest{
			UTXOs: []UTXO{assetUTXO},
			Fee:   testFee,
			To: []Transfer{{
				AssetID: assetA,
				Amount:  10,
				Destination: PlainAddress{
					Address: holder,
				},
			}},
			Burn: []Transfer{{
				AssetID: assetA,
				Amount:  5,
			}},
			Flags: Flags{NoSplit: true},
		})
		require.NoError(t, err)

		payload := decodePayload(t, decodeTx(t, res))
		require.Equal(t, ccpayload.TypeBurn, payload.Type)
		require.Equal(t, []ccpayload.Payment{
			{Input: 0, Amount: 10, Output: 0},
			{Input: 0, Amount: 5, Burn: true},
		}, payload.Payments)

		require.Len(t, res.Demands, 1)
		require.EqualValues(t, 35, res.Demands[0].ChangeAmount)
		require.Len(t, res.Demands[0].Destinations, 2)
	})

	t.Run("burn sink destination", func(t *testing.T) {
		t.Parallel()

		b := testBuilder(t, Config{})
		res, err := b.BuildTransfer(&TransferRequest{
			UTXOs: []UTXO{assetUTXO},
			Fee:   testFee,
			To: []Transfer{{
				AssetID:     assetA,
				Amount:      50,
				Destination: BurnSink{},
			}},
		})
		require.NoError(t, err)

		// Every unit is destroyed so the change is plain.
		require.Equal(t, []int64{0, 95000}, outputValues(t, res))
		require.Empty(t, res.ColoredOutputIndexes)

		payload := decodePayload(t, decodeTx(t, res))
		require.Equal(t, ccpayload.TypeBurn, payload.Type)
	})
}

// TestBuildTransferSelection checks which asset UTXOs fund a transfer.
func TestBuildTransferSelection(t *testing.T) {
	t.Parallel()

	_, ownerScript := testAddress(t, 1)
	holder, _ := testAddress(t, 2)
	other, _ := testAddress(t, 3)

	holding := func(assetID string, amount uint64) AssetHolding {
		return AssetHolding{AssetID: assetID, Amount: amount}
	}

	t.Run("best single cover", func(t *testing.T) {
		t.Parallel()

		utxos := []UTXO{
			testUTXO(1, 10000, ownerScript, holding(assetA, 30)),
			testUTXO(2, 10000, ownerScript,
				holding(assetA, 40), holding(assetB, 20)),
			testUTXO(3, 10000, ownerScript,
				holding(assetA, 30), holding(assetB, 20)),
		}

		b := testBuilder(t, Config{})
		res, err := b.BuildTransfer(&TransferRequest{
			UTXOs: utxos,
			Fee:   testFee,
			To: []Transfer{{
				AssetID:     assetA,
				Amount:      30,
				Destination: PlainAddress{Address: holder},
			}, {
				AssetID:     assetB,
				Amount:      20,
				Destination: PlainAddress{Address: other},
			}},
		})
		require.NoError(t, err)

		tx := decodeTx(t, res)
		require.Len(t, tx.TxIn, 1)
		require.Equal(t, utxos[2].OutPoint, tx.TxIn[0].PreviousOutPoint)

		// Nothing is left over so the change is plain and unsplit.
		require.Equal(
			t, []int64{600, 600, 0, 3800}, outputValues(t, res),
		)
		require.Equal(t, []uint32{0, 1}, res.ColoredOutputIndexes)

		payload := decodePayload(t, tx)
		require.Equal(t, []ccpayload.Payment{
			{Input: 0, Amount: 30, Output: 0},
			{Input: 0, Amount: 20, Output: 1},
		}, payload.Payments)
	})

	t.Run("accumulated", func(t *testing.T) {
		t.Parallel()

		utxos := []UTXO{
			testUTXO(1, 10000, ownerScript, holding(assetA, 30)),
			testUTXO(2, 10000, ownerScript, holding(assetA, 50)),
			testUTXO(3, 10000, ownerScript, holding(assetA, 10)),
		}

		b := testBuilder(t, Config{})
		res, err := b.BuildTransfer(&TransferRequest{
			UTXOs: utxos,
			Fee:   testFee,
			To: []Transfer{{
				AssetID:     assetA,
				Amount:      70,
				Destination: PlainAddress{Address: holder},
			}},
			Flags: Flags{NoSplit: true},
		})
		require.NoError(t, err)

		tx := decodeTx(t, res)
		require.Len(t, tx.TxIn, 2)
		require.Equal(t, utxos[1].OutPoint, tx.TxIn[0].PreviousOutPoint)
		require.Equal(t, utxos[0].OutPoint, tx.TxIn[1].PreviousOutPoint)
		require.Equal(t, []int64{600, 0, 14400}, outputValues(t, res))
		require.Equal(t, []uint32{0, 2}, res.ColoredOutputIndexes)

		demand := res.Demands[0]
		require.Equal(t, []FundingInput{
			{InputIndex: 0, Amount: 50},
			{InputIndex: 1, Amount: 20},
		}, demand.FundingInputs)
		require.EqualValues(t, 10, demand.ChangeAmount)

		payload := decodePayload(t, tx)
		require.Equal(t, []ccpayload.Payment{
			{Input: 0, Amount: 50, Output: 0},
			{Input: 1, Amount: 20, Output: 0},
		}, payload.Payments)
	})

	t.Run("aggregation", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			policy   ccpayload.AggregationPolicy
			payments []ccpayload.Payment
		}{
			{
				policy: ccpayload.Aggregatable,
				payments: []ccpayload.Payment{
					{Input: 0, Amount: 20, Output: 0},
				},
			},
			{
				policy: ccpayload.Dispersed,
				payments: []ccpayload.Payment{
					{Input: 0, Amount: 10, Output: 0},
					{Input: 0, Amount: 10, Output: 0},
				},
			},
		}

		for _, test := range tests {
			utxo := testUTXO(1, 10000, ownerScript, AssetHolding{
				AssetID:           assetA,
				Amount:            10,
				AggregationPolicy: test.policy,
			}, AssetHolding{
				AssetID:           assetA,
				Amount:            15,
				AggregationPolicy: test.policy,
			})

			b := testBuilder(t, Config{})
			res, err := b.BuildTransfer(&TransferRequest{
				UTXOs: []UTXO{utxo},
				Fee:   testFee,
				To: []Transfer{{
					AssetID: assetA,
					Amount:  20,
					Destination: PlainAddress{
						Address: holder,
					},
				}},
			})
			require.NoError(t, err, test.policy)

			payload := decodePayload(t, decodeTx(t, res))
			require.Equal(t, test.payments, payload.Payments,
				test.policy)
			require.EqualValues(
				t, 5, res.Demands[0].ChangeAmount, test.policy,
			)
		}
	})

	t.Run("merged destinations", func(t *testing.T) {
		t.Parallel()

		utxo := testUTXO(1, 10000, ownerScript,
			holding(assetA, 20), holding(assetB, 3))

		b := testBuilder(t, Config{})
		res, err := b.BuildTransfer(&TransferRequest{
			UTXOs: []UTXO{utxo},
			Fee:   testFee,
			To: []Transfer{{
				AssetID:     assetA,
				Amount:      5,
				Destination: PlainAddress{Address: holder},
			}, {
				AssetID:     assetA,
				Amount:      7,
				Destination: PlainAddress{Address: holder},
			}, {
				AssetID:     assetB,
				Amount:      3,
				Destination: PlainAddress{Address: holder},
			}},
			Flags: Flags{NoSplit: true},
		})
		require.NoError(t, err)

		// One output per address, whatever the asset.
		require.Equal(t, []int64{600, 0, 4400}, outputValues(t, res))

		require.Len(t, res.Demands, 2)
		require.Equal(t, []DemandDestination{{
			Address: holder,
			Amount:  12,
		}}, stripDestinations(res.Demands[0].Destinations))

		payload := decodePayload(t, decodeTx(t, res))
		require.Equal(t, []ccpayload.Payment{
			{Input: 0, Amount: 12, Output: 0},
			{Input: 0, Amount: 3, Output: 0},
		}, payload.Payments)
	})
}

// stripDestinations drops the unexported fields of destinations.
func stripDestinations(dests []DemandDestination) []DemandDestination {
	stripped := make([]DemandDestination, 0, len(dests))
	for _, dest := range dests {
		dest.dest = nil
		stripped = append(stripped, dest)
	}

	return stripped
}

// TestBuildTransferMetadata checks transfers with hashes and multisig
// destinations.
func TestBuildTransferMetadata(t *testing.T) {
	t.Parallel()

	_, ownerScript := testAddress(t, 1)
	assetUTXO := testUTXO(1, 100000, ownerScript, AssetHolding{
		AssetID: assetA, Amount: 50,
	})
	torrent := bytes.Repeat([]byte{0x33}, ccpayload.TorrentHashSize)
	returnKey := testPubKey(7).SerializeCompressed()

	b := testBuilder(t, Config{MaxPayloadSize: 20})
	res, err := b.BuildTransfer(&TransferRequest{
		UTXOs: []UTXO{assetUTXO},
		Fee:   testFee,
		To: []Transfer{{
			AssetID: assetA,
			Amount:  20,
			Destination: MultisigSpec{
				PubKeys: [][]byte{
					testPubKey(3).SerializeCompressed(),
					testPubKey(4).SerializeCompressed(),
				},
				Threshold: 1,
			},
		}},
		TorrentHash:  torrent,
		ReturnPubKey: returnKey,
		Flags:        Flags{NoSplit: true},
	})
	require.NoError(t, err)

	tx := decodeTx(t, res)
	require.Equal(t, []int64{684, 600, 0, 93716}, outputValues(t, res))
	require.Equal(t, []uint32{1, 3}, res.ColoredOutputIndexes)
	requireExactFee(t, res, tx, valuesOf(assetUTXO))

	require.Len(t, res.MultisigOutputs, 1)
	require.EqualValues(t, 1, res.MultisigOutputs[0].Index)
	require.Equal(t, txscript.ScriptHashTy,
		txscript.GetScriptClass(tx.TxOut[1].PkScript))

	gotKey, _, err := ccpayload.ParseCarrierScript(tx.TxOut[0].PkScript)
	require.NoError(t, err)
	require.Equal(t, returnKey, gotKey)

	payload := decodePayload(t, tx)
	require.Equal(t, ccpayload.TorrentInCarrier, payload.Placement)
	require.Equal(t, []ccpayload.Payment{
		{Input: 0, Amount: 20, Output: 1},
	}, payload.Payments)
	require.NoError(t, payload.ApplyCarrier(tx.TxOut[0].PkScript))
	require.Equal(t, torrent, payload.TorrentHash)
}

// TestBuildTransferFeeRate checks that a fee rate pays for the exact size of
// the assembled transfer.
func TestBuildTransferFeeRate(t *testing.T) {
	t.Parallel()

	_, ownerScript := testAddress(t, 1)
	holder, _ := testWitnessAddress(t, 2)
	assetUTXO := testUTXO(1, 1500, ownerScript, AssetHolding{
		AssetID: assetA, Amount: 50,
	})
	plain := testUTXO(2, 100000, ownerScript)

	rate := testFeeRate(t, 20000)
	b := testBuilder(t, Config{DefaultFeeRate: rate})

	res, err := b.BuildTransfer(&TransferRequest{
		UTXOs: []UTXO{assetUTXO, plain},
		To: []Transfer{{
			AssetID:     assetA,
			Amount:      20,
			Destination: PlainAddress{Address: holder},
		}},
	})
	require.NoError(t, err)

	tx := decodeTx(t, res)
	require.Len(t, tx.TxIn, 2)
	require.Len(t, tx.TxOut, 4)
	requireExactFee(t, res, tx, valuesOf(assetUTXO, plain))
	require.Equal(t, expectedRateFee(rate, tx), res.Fee)
}

// TestBuildTransferErrors checks the failures of a transfer.
func TestBuildTransferErrors(t *testing.T) {
	t.Parallel()

	_, ownerScript := testAddress(t, 1)
	holder, _ := testAddress(t, 2)
	assetUTXO := testUTXO(1, 100000, ownerScript, AssetHolding{
		AssetID: assetA, Amount: 50,
	})
	to := func(assetID string, amount uint64) []Transfer {
		return []Transfer{{
			AssetID:     assetID,
			Amount:      amount,
			Destination: PlainAddress{Address: holder},
		}}
	}

	tests := []struct {
		name    string
		burn    bool
		req     *TransferRequest
		code    ErrorCode
		field   string
		assetID string
	}{
		{
			name:  "nil request",
			code:  ErrMissingRequiredField,
			field: "request",
		},
		{
			name: "no destinations",
			req: &TransferRequest{
				UTXOs: []UTXO{assetUTXO},
				Fee:   testFee,
			},
			code:  ErrMissingRequiredField,
			field: "to",
		},
		{
			name: "burn without burns",
			burn: true,
			req: &TransferRequest{
				UTXOs: []UTXO{assetUTXO},
				Fee:   testFee,
				To:    to(assetA, 10),
			},
			code:  ErrMissingRequiredField,
			field: "burn",
		},
		{
			name: "no utxos",
			req: &TransferRequest{
				Fee: testFee,
				To:  to(assetA, 10),
			},
			code:  ErrMissingRequiredField,
			field: "utxos",
		},
		{
			name: "no asset id",
			req: &TransferRequest{
				UTXOs: []UTXO{assetUTXO},
				Fee:   testFee,
				To:    to("", 10),
			},
			code:  ErrMissingRequiredField,
			field: "to[0].assetId",
		},
		{
			name: "zero amount",
			req: &TransferRequest{
				UTXOs: []UTXO{assetUTXO},
				Fee:   testFee,
				To:    to(assetA, 0),
			},
			code:  ErrInvalidRequest,
			field: "to[0]",
		},
		{
			name: "no destination",
			req: &TransferRequest{
				UTXOs: []UTXO{assetUTXO},
				Fee:   testFee,
				To: []Transfer{{
					AssetID: assetA,
					Amount:  10,
				}},
			},
			code:  ErrMissingRequiredField,
			field: "to[0]",
		},
		{
			name: "bad from",
			req: &TransferRequest{
				UTXOs: []UTXO{assetUTXO},
				Fee:   testFee,
				To:    to(assetA, 10),
				From:  "not an address",
			},
			code:  ErrInvalidRequest,
			field: "from",
		},
		{
			name: "no from",
			req: &TransferRequest{
				UTXOs: []UTXO{testUTXO(1, 100000, nil,
					AssetHolding{AssetID: assetA, Amount: 50},
				)},
				Fee: testFee,
				To:  to(assetA, 10),
			},
			code:  ErrMissingRequiredField,
			field: "from",
		},
		{
			name: "unknown asset",
			req: &TransferRequest{
				UTXOs: []UTXO{assetUTXO},
				Fee:   testFee,
				To:    to(assetB, 10),
			},
			code:    ErrUnknownAssetReference,
			assetID: assetB,
		},
		{
			name: "not enough units",
			req: &TransferRequest{
				UTXOs: []UTXO{assetUTXO},
				Fee:   testFee,
				To:    to(assetA, 51),
			},
			code:    ErrInsufficientAssetUnits,
			assetID: assetA,
		},
		{
			name: "used utxo",
			req: &TransferRequest{
				UTXOs: []UTXO{{
					OutPoint: assetUTXO.OutPoint,
					Value:    assetUTXO.Value,
					Assets:   assetUTXO.Assets,
					Used:     true,
				}},
				Fee: testFee,
				To:  to(assetA, 10),
			},
			code: ErrAlreadySpentInput,
		},
		{
			name: "bad torrent hash",
			req: &TransferRequest{
				UTXOs:       []UTXO{assetUTXO},
				Fee:         testFee,
				To:          to(assetA, 10),
				TorrentHash: []byte{1, 2, 3},
			},
			code:  ErrInvalidRequest,
			field: "torrentHash",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			b := testBuilder(t, Config{})

			var err error
			if test.burn {
				_, err = b.BuildBurn(test.req)
			} else {
				_, err = b.BuildTransfer(test.req)
			}
			require.True(t, IsError(err, test.code), err)

			var e Error
			require.ErrorAs(t, err, &e)
			require.Equal(t, test.field, e.Field)
			require.Equal(t, test.assetID, e.AssetID)
		})
	}
}

// TestBuildTransferConcurrent checks that concurrent builds of one request
// agree and leave the request untouched.
func TestBuildTransferConcurrent(t *testing.T) {
	t.Parallel()

	_, ownerScript := testAddress(t, 1)
	holder, _ := testAddress(t, 2)

	req := &TransferRequest{
		UTXOs: []UTXO{
			testUTXO(1, 1000, ownerScript, AssetHolding{
				AssetID: assetA, Amount: 30,
			}),
			testUTXO(2, 1000, ownerScript, AssetHolding{
				AssetID: assetA, Amount: 30,
			}),
			testUTXO(3, 20000, ownerScript),
		},
		Fee: testFee,
		To: []Transfer{{
			AssetID:     assetA,
			Amount:      45,
			Destination: PlainAddress{Address: holder},
		}},
	}

	before := make([]UTXO, 0, len(req.UTXOs))
	for i := range req.UTXOs {
		before = append(before, req.UTXOs[i].clone())
	}

	b := testBuilder(t, Config{})

	const numBuilds = 8
	results := make([]*Result, numBuilds)

	var eg errgroup.Group
	for i := 0; i < numBuilds; i++ {
		eg.Go(func() error {
			res, err := b.BuildTransfer(req)
			results[i] = res

			return err
		})
	}
	require.NoError(t, eg.Wait())

	for _, res := range results[1:] {
		require.Equal(t, results[0].TxHex, res.TxHex)
		require.Equal(t, results[0].Demands, res.Demands)
	}
	require.Equal(t, before, req.UTXOs)
}
