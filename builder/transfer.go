// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/ccbuilder/ccpayload"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// BuildTransfer builds the unsigned transaction moving existing units to the
// destinations of req. Entries of req.Burn are destroyed.
//
// The outputs are, in order: the optional hash carrier, one output per
// unique destination address, the metadata output, the optional plain change
// output and the change output, which receives every unit no payment takes.
func (b *Builder) BuildTransfer(req *TransferRequest) (*Result, error) {
	if req == nil {
		return nil, missingField("request")
	}

	if len(req.To) == 0 && len(req.Burn) == 0 {
		return nil, missingField("to")
	}

	return b.buildTransfer(req)
}

// BuildBurn builds the unsigned transaction destroying the units listed in
// req.Burn. Units listed in req.To are transferred as with BuildTransfer.
func (b *Builder) BuildBurn(req *TransferRequest) (*Result, error) {
	if req == nil {
		return nil, missingField("request")
	}

	if len(req.Burn) == 0 {
		return nil, missingField("burn")
	}

	return b.buildTransfer(req)
}

func (b *Builder) buildTransfer(req *TransferRequest) (*Result, error) {
	if len(req.UTXOs) == 0 {
		return nil, missingField("utxos")
	}

	fee, err := b.resolveFee(req.Fee)
	if err != nil {
		return nil, err
	}

	utxos, finance, err := snapshotUTXOs(req.UTXOs, req.FinanceOutput)
	if err != nil {
		return nil, err
	}

	err = checkCommon(utxos, finance, req.Flags, req.ReturnPubKey)
	if err != nil {
		return nil, err
	}

	var fromScript []byte
	if req.From != "" {
		_, fromScript, err = b.decodeAddress("from", req.From)
		if err != nil {
			return nil, err
		}
	}

	var financeScript []byte
	if req.FinanceChangeAddress != "" {
		_, financeScript, err = b.decodeAddress(
			"financeChangeAddress", req.FinanceChangeAddress,
		)
		if err != nil {
			return nil, err
		}
	}

	demands, err := b.parseDemands(req)
	if err != nil {
		return nil, err
	}

	txType := ccpayload.TypeTransfer
	if demands.hasBurn() {
		txType = ccpayload.TypeBurn
	}

	payload := ccpayload.New(txType)
	if err := setHashes(payload, req.TorrentHash, req.SHA2); err != nil {
		return nil, err
	}

	if err := checkKnownAssets(utxos, demands); err != nil {
		return nil, err
	}

	d := newDraft(req.Flags.InjectPreviousOutput)
	if err := selectAssetInputs(d, utxos, demands); err != nil {
		return nil, err
	}

	a := newAssembly(d, payload)
	if err := b.assignPayments(a, demands); err != nil {
		return nil, err
	}

	if err := b.finishPayload(a, req.ReturnPubKey); err != nil {
		return nil, err
	}

	// The colored change goes back to the sender, which defaults to the
	// owner of the first input.
	if fromScript == nil {
		fromScript, err = b.firstInputScript(d)
		if err != nil {
			return nil, err
		}
	}

	plan := &changePlan{
		coloredScript: fromScript,
		plainScript:   fromScript,
		colored:       hasColoredChange(d, utxos, finance, payload),
	}
	if financeScript != nil {
		plan.plainScript = financeScript
	}

	// Cover a fee shortfall with a single extra selection pass.
	txFee, change := b.singleChange(d, fee, plan)
	if change < b.cfg.MinDustValue {
		log.Debugf("Transfer inputs short by %v, selecting more",
			b.cfg.MinDustValue-change)

		covered := topUp(d, utxos, finance, func() bool {
			_, change := b.singleChange(d, fee, plan)
			return change >= b.cfg.MinDustValue
		})
		if !covered {
			txFee, change = b.singleChange(d, fee, plan)
			return nil, b.shortfall(txType, d, txFee, change)
		}

		plan.colored = hasColoredChange(d, utxos, finance, payload)
	}
	plan.split = (plan.colored || req.Flags.SplitChange) &&
		!req.Flags.NoSplit

	txFee, err = b.addChange(a, txType, fee, plan)
	if err != nil {
		return nil, err
	}

	res, err := b.result(a, txFee)
	if err != nil {
		return nil, err
	}
	res.Demands = demands.export()

	return res, nil
}

// parseDemands groups the destinations of a transfer by asset.
func (b *Builder) parseDemands(req *TransferRequest) (*demandSet, error) {
	demands := newDemandSet()

	add := func(field string, transfer Transfer, burn bool) error {
		if transfer.AssetID == "" {
			return missingField(field + ".assetId")
		}

		if transfer.Amount == 0 {
			return invalidField(field, errors.New("amount must be "+
				"positive"))
		}

		dest := &resolvedDestination{burn: true}
		if !burn {
			var err error
			dest, err = b.resolveDestination(
				field, transfer.Destination, true,
			)
			if err != nil {
				return err
			}
		}

		demands.add(transfer.AssetID, transfer.Amount, dest)

		return nil
	}

	for i, transfer := range req.To {
		err := add(fmt.Sprintf("to[%d]", i), transfer, false)
		if err != nil {
			return nil, err
		}
	}

	for i, transfer := range req.Burn {
		err := add(fmt.Sprintf("burn[%d]", i), transfer, true)
		if err != nil {
			return nil, err
		}
	}

	return demands, nil
}

// checkKnownAssets fails when no UTXO holds a requested asset at all.
func checkKnownAssets(utxos []UTXO, demands *demandSet) error {
	for _, demand := range demands.order {
		known := false
		for i := range utxos {
			if utxos[i].holding(demand.AssetID) > 0 {
				known = true
				break
			}
		}

		if !known {
			e := newError(ErrUnknownAssetReference, fmt.Sprintf(
				"no utxo holds asset %v", demand.AssetID), nil)
			e.AssetID = demand.AssetID

			return e
		}
	}

	return nil
}

// assignPayments adds one output per unique destination address and pays
// every destination from the funding inputs of its asset, in order.
func (b *Builder) assignPayments(a *assembly, demands *demandSet) error {
	outputs := make(map[string]uint32)

	for _, demand := range demands.order {
		// The funding entries are consumed on a copy so the demand
		// keeps its allocation.
		funding := append([]FundingInput(nil), demand.FundingInputs...)
		cursor := 0

		for _, dest := range demand.Destinations {
			var output uint32
			if !dest.Burn {
				index, ok := outputs[dest.Address]
				if !ok {
					index = a.addDestination(
						dest.dest, b.cfg.MinDustValue,
					)
					outputs[dest.Address] = index
				}
				output = index
			}

			left := dest.Amount
			for left > 0 && cursor < len(funding) {
				entry := &funding[cursor]
				amount := min(left, entry.Amount)

				if dest.Burn {
					a.payload.AddBurn(entry.InputIndex, amount)
				} else {
					a.payload.AddPayment(
						entry.InputIndex, amount, output,
					)
				}

				left -= amount
				entry.Amount -= amount
				if entry.Amount == 0 {
					cursor++
				}
			}

			if left > 0 {
				e := newError(ErrInsufficientAssetUnits,
					fmt.Sprintf("%d units of %v left "+
						"unfunded", left,
						demand.AssetID), nil)
				e.AssetID = demand.AssetID

				return e
			}
		}
	}

	return nil
}

// firstInputScript returns the payment script of the address owning the first
// input.
func (b *Builder) firstInputScript(d *draft) ([]byte, error) {
	e := missingField("from")
	if len(d.prevScripts) == 0 || len(d.prevScripts[0]) == 0 {
		return nil, e
	}

	_, addrs, _, err := txscript.ExtractPkScriptAddrs(
		d.prevScripts[0], b.params,
	)
	if err != nil || len(addrs) != 1 {
		e.Err = err
		return nil, e
	}

	pkScript, err := txscript.PayToAddrScript(addrs[0])
	if err != nil {
		e.Err = err
		return nil, e
	}

	return pkScript, nil
}

// hasColoredChange returns whether the inputs hold more units than the
// payload pays or burns. Those units go to the last output.
func hasColoredChange(d *draft, utxos []UTXO, finance fn.Option[UTXO],
	payload *ccpayload.Transaction) bool {

	var held, spent uint64
	count := func(u *UTXO) {
		if !d.hasInput(u.OutPoint) {
			return
		}

		for _, asset := range u.Assets {
			held += asset.Amount
		}
	}

	for i := range utxos {
		count(&utxos[i])
	}

	finance.WhenSome(func(u UTXO) {
		// The financing output may also be listed in utxos.
		for i := range utxos {
			if utxos[i].OutPoint == u.OutPoint {
				return
			}
		}

		count(&u)
	})

	for _, p := range payload.Payments {
		spent += p.Amount
	}

	return held > spent
}
