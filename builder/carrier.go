// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
)

const (
	// redeemInputSize is the average size of an input redeeming a
	// compressed P2PKH output, the spend assumed by the relay dust rule.
	redeemInputSize = 148

	// outputOverhead is the serialized size of an output value and a one
	// byte script length.
	outputOverhead = 8 + 1

	// carrierSafetyFactor multiplies the minimum relayable value of a
	// carrier so the output stays relayable with some margin.
	carrierSafetyFactor = 3
)

// carrierValue returns the value that lets an output with the given script
// clear the dust rule at the builder's relay rate.
func (b *Builder) carrierValue(script []byte) (btcutil.Amount, error) {
	rate := b.relayFeePerKb()

	size := len(script) + redeemInputSize + outputOverhead
	value := rate.FeeForSizeRoundUp(size) * carrierSafetyFactor

	carrier := wire.NewTxOut(int64(value), script)
	if txrules.IsDustOutput(carrier, rate.Val()) {
		return 0, newError(ErrPayloadConstruction, fmt.Sprintf(
			"carrier value %v is dust at %v", value, rate), nil)
	}

	return value, nil
}
