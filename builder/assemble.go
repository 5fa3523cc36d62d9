// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/ccbuilder/ccpayload"
)

// assembly is the state shared by the output stages of one build call.
type assembly struct {
	d       *draft
	payload *ccpayload.Transaction

	// multisig lists the outputs paying to multisig destinations.
	multisig []MultisigOutput

	// colored lists the outputs carrying colored units.
	colored []uint32

	// changeIndex is the index of the plain change output, or -1.
	changeIndex int
}

func newAssembly(d *draft, payload *ccpayload.Transaction) *assembly {
	return &assembly{
		d:           d,
		payload:     payload,
		changeIndex: -1,
	}
}

// addDestination adds a dust output for dest and returns its index.
func (a *assembly) addDestination(dest *resolvedDestination,
	value btcutil.Amount) uint32 {

	index := a.d.addOutput(dest.pkScript, value)
	if dest.redeemScript != nil {
		a.multisig = append(a.multisig, MultisigOutput{
			Index:        index,
			RedeemScript: dest.redeemScript,
			Address:      dest.address,
		})
	}

	return index
}

// finishPayload encodes the payload into the metadata output. When the hashes
// do not fit, every output reference moves one to the right and a carrier
// output holding the leftover is inserted in front of all outputs.
func (b *Builder) finishPayload(a *assembly, returnKey []byte) error {
	encoded, err := a.payload.Encode(b.cfg.MaxPayloadSize)
	if err != nil {
		return newError(ErrPayloadConstruction, "unable to encode "+
			"payload", err)
	}

	var carrier []byte
	if len(encoded.Leftover) > 0 {
		log.Debugf("Payload leftover of %d chunks, adding carrier",
			len(encoded.Leftover))

		a.payload.ShiftOutputs()
		encoded, err = a.payload.Encode(b.cfg.MaxPayloadSize)
		if err != nil {
			return newError(ErrPayloadConstruction, "unable to "+
				"encode shifted payload", err)
		}

		carrier, err = ccpayload.CarrierScript(
			returnKey, encoded.Leftover,
		)
		if err != nil {
			return newError(ErrPayloadConstruction, "unable to "+
				"build hash carrier", err)
		}

		for i := range a.multisig {
			a.multisig[i].Index++
		}
	}

	nullData, err := txscript.NullDataScript(encoded.CodeBuffer)
	if err != nil {
		return newError(ErrPayloadConstruction, "unable to build "+
			"metadata output", err)
	}
	a.d.addOutput(nullData, 0)

	if carrier != nil {
		value, err := b.carrierValue(carrier)
		if err != nil {
			return err
		}

		a.d.prependOutput(carrier, value)
	}

	for _, p := range a.payload.Payments {
		if !p.Burn {
			a.colored = append(a.colored, p.Output)
		}
	}

	return nil
}

// changePlan says where the change of a transaction goes.
type changePlan struct {
	// coloredScript receives the colored change.
	coloredScript []byte

	// plainScript receives the plain change.
	plainScript []byte

	// colored is set when the change carries colored units.
	colored bool

	// split asks for the plain change in its own output.
	split bool
}

// singleScript returns the script of the change output when the change is
// not split.
func (p *changePlan) singleScript() []byte {
	if p.colored {
		return p.coloredScript
	}

	return p.plainScript
}

// singleChange returns the fee and the change of the draft with a single
// change output.
func (b *Builder) singleChange(d *draft, fee feePolicy,
	plan *changePlan) (btcutil.Amount, btcutil.Amount) {

	outputs := append(
		d.tx.TxOut[:len(d.tx.TxOut):len(d.tx.TxOut)],
		wire.NewTxOut(0, plan.singleScript()),
	)
	txFee := fee.feeFor(len(d.tx.TxIn), outputs)

	return txFee, d.totalInput - d.totalOutput() - txFee
}

// shortfall returns the insufficient funds error of a draft whose change is
// below the dust floor.
func (b *Builder) shortfall(txType ccpayload.Type, d *draft,
	fee, change btcutil.Amount) error {

	dust := b.cfg.MinDustValue
	totalCost := d.totalOutput() + fee + dust

	return insufficientFunds(txType, fee, totalCost, dust-change)
}

// addChange adds the change outputs and returns the fee. The change is split
// into a plain output and a dust output carrying the colored change when the
// plan asks for it and the change is at least twice the dust floor.
func (b *Builder) addChange(a *assembly, txType ccpayload.Type,
	fee feePolicy, plan *changePlan) (btcutil.Amount, error) {

	d := a.d
	dust := b.cfg.MinDustValue

	if plan.split {
		outputs := append(
			d.tx.TxOut[:len(d.tx.TxOut):len(d.tx.TxOut)],
			wire.NewTxOut(0, plan.plainScript),
			wire.NewTxOut(0, plan.coloredScript),
		)
		txFee := fee.feeFor(len(d.tx.TxIn), outputs)
		change := d.totalInput - d.totalOutput() - txFee

		if change >= 2*dust {
			log.Debugf("Splitting change %v into %v plain and "+
				"%v colored", change, change-dust, dust)

			a.changeIndex = int(d.addOutput(
				plan.plainScript, change-dust,
			))
			index := d.addOutput(plan.coloredScript, dust)
			if plan.colored {
				a.colored = append(a.colored, index)
			}

			return txFee, nil
		}
	}

	txFee, change := b.singleChange(d, fee, plan)
	if change < dust {
		return 0, b.shortfall(txType, d, txFee, change)
	}

	index := d.addOutput(plan.singleScript(), change)
	a.changeIndex = int(index)
	if plan.colored {
		a.colored = append(a.colored, index)
	}

	return txFee, nil
}

// result serializes the draft and collects the indexes of the assembly.
func (b *Builder) result(a *assembly, fee btcutil.Amount) (*Result, error) {
	d := a.d

	// The fee is what the inputs leave after every output.
	if paid := d.totalInput - d.totalOutput(); paid != fee {
		return nil, newError(ErrPayloadConstruction, fmt.Sprintf(
			"inputs %v and outputs %v pay %v instead of fee %v",
			d.totalInput, d.totalOutput(), paid, fee), nil)
	}

	txHex, err := d.serialize()
	if err != nil {
		return nil, newError(ErrPayloadConstruction, "unable to "+
			"serialize transaction", err)
	}

	res := &Result{
		TxHex:                txHex,
		Fee:                  fee,
		MultisigOutputs:      a.multisig,
		ColoredOutputIndexes: uniqueSorted(a.colored),
		tx:                   d.tx,
		prevScripts:          d.prevScripts,
		inputValues:          d.inputValues,
	}

	if b.cfg.ReturnDraft {
		res.Draft = d.authored(a.changeIndex)
	}

	return res, nil
}

// uniqueSorted returns the indexes in ascending order without duplicates.
func uniqueSorted(indexes []uint32) []uint32 {
	sorted := append([]uint32(nil), indexes...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	unique := sorted[:0]
	for _, index := range sorted {
		if len(unique) > 0 && unique[len(unique)-1] == index {
			continue
		}

		unique = append(unique, index)
	}

	return unique
}
