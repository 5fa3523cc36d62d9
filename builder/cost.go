// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/btcsuite/ccbuilder/pkg/btcunit"
)

// feePolicy is the fee source of one request: either a flat fee or a rate
// applied to the estimated size of the transaction.
type feePolicy struct {
	flat btcutil.Amount
	rate btcunit.SatPerKVByte
}

// resolveFee picks the fee source of a request. The request fee wins over the
// configured defaults.
func (b *Builder) resolveFee(requestFee btcutil.Amount) (feePolicy, error) {
	switch {
	case requestFee < 0:
		return feePolicy{}, invalidField("fee", nil)

	case requestFee > 0:
		return feePolicy{flat: requestFee}, nil

	case b.cfg.DefaultFee > 0:
		return feePolicy{flat: b.cfg.DefaultFee}, nil

	case !b.cfg.DefaultFeeRate.IsZero():
		return feePolicy{rate: b.cfg.DefaultFeeRate}, nil

	default:
		return feePolicy{}, missingField("fee")
	}
}

// isFlat returns whether the fee does not depend on the transaction size.
func (f feePolicy) isFlat() bool {
	return f.rate.IsZero()
}

// feeFor returns the fee of a transaction with numInputs inputs and the given
// outputs.
func (f feePolicy) feeFor(numInputs int, outputs []*wire.TxOut) btcutil.Amount {
	if f.isFlat() {
		return f.flat
	}

	size := txsizes.EstimateSerializeSize(numInputs, outputs, false)

	return f.rate.FeeForSizeRoundUp(size)
}

// requiredCost returns the value the inputs of a transaction must at least
// provide: the fee, one dust output per transfer, the multisig carrier when
// metadata is written to one, and the change output.
func (b *Builder) requiredCost(fee btcutil.Amount, transferCount int,
	hasMetadata bool) btcutil.Amount {

	cost := fee + btcutil.Amount(transferCount)*b.cfg.MinDustValue
	if hasMetadata && b.cfg.WriteMultisig {
		cost += b.cfg.MinDustValueMultisig
	}

	return cost + b.cfg.MinDustValue
}

// plannedOutputs returns stand-ins for the outputs of a transaction that is
// still being funded: one per destination script, the metadata output at its
// largest size and a change output.
func (b *Builder) plannedOutputs(destScripts [][]byte,
	changeScript []byte) []*wire.TxOut {

	outputs := make([]*wire.TxOut, 0, len(destScripts)+2)
	for _, script := range destScripts {
		outputs = append(outputs, wire.NewTxOut(0, script))
	}

	// OP_RETURN, a push opcode and the largest payload.
	nullData := make([]byte, b.cfg.MaxPayloadSize+2)
	outputs = append(outputs, wire.NewTxOut(0, nullData))

	return append(outputs, wire.NewTxOut(0, changeScript))
}
