// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/ccbuilder/assetid"
	"github.com/btcsuite/ccbuilder/ccpayload"
)

// BuildIssuance builds the unsigned transaction issuing a new asset.
//
// The outputs are, in order: the optional hash carrier, one output per
// initial transfer, the metadata output, the optional plain change output and
// the change output, which receives the units that are not transferred.
func (b *Builder) BuildIssuance(req *IssuanceRequest) (*Result, error) {
	if req == nil {
		return nil, missingField("request")
	}

	if len(req.UTXOs) == 0 && req.FinanceOutput.IsNone() {
		return nil, missingField("utxos")
	}

	fee, err := b.resolveFee(req.Fee)
	if err != nil {
		return nil, err
	}

	_, issueScript, err := b.decodeAddress("issueAddress", req.IssueAddress)
	if err != nil {
		return nil, err
	}

	if req.Amount == 0 {
		return nil, missingField("amount")
	}

	utxos, finance, err := snapshotUTXOs(req.UTXOs, req.FinanceOutput)
	if err != nil {
		return nil, err
	}

	plainScript, err := b.financeChangeScript(
		req.FinanceChangeAddress, issueScript,
	)
	if err != nil {
		return nil, err
	}

	err = checkCommon(
		utxos, finance, req.Flags, req.ReturnPubKey,
	)
	if err != nil {
		return nil, err
	}

	payload, err := issuancePayload(req)
	if err != nil {
		return nil, err
	}

	// Resolve the initial distribution and make sure it stays within the
	// issued amount.
	dests := make([]*resolvedDestination, 0, len(req.Transfers))
	destScripts := make([][]byte, 0, len(req.Transfers))
	coloredAmount := req.Amount
	for i, transfer := range req.Transfers {
		field := fmt.Sprintf("transfer[%d]", i)
		if transfer.Amount == 0 {
			return nil, invalidField(field, errors.New("amount "+
				"must be positive"))
		}

		dest, err := b.resolveDestination(
			field, transfer.Destination, false,
		)
		if err != nil {
			return nil, err
		}

		if transfer.Amount > coloredAmount {
			return nil, newError(ErrOverIssuance, fmt.Sprintf(
				"transferring more than issued: %d units "+
					"issued", req.Amount), nil)
		}
		coloredAmount -= transfer.Amount

		dests = append(dests, dest)
		destScripts = append(destScripts, dest.pkScript)
	}

	hasMetadata := req.TorrentHash != nil || req.Rules
	cost := func(numInputs int) (btcutil.Amount, btcutil.Amount) {
		outputs := b.plannedOutputs(destScripts, issueScript)
		txFee := fee.feeFor(numInputs, outputs)

		return txFee, b.requiredCost(txFee, len(dests), hasMetadata)
	}

	d := newDraft(req.Flags.InjectPreviousOutput)
	first, err := selectIssuanceInputs(d, utxos, finance, cost)
	if err != nil {
		return nil, err
	}

	assetID, err := assetid.Derive(assetid.Params{
		Locked:            !req.Reissuable,
		OutPoint:          first.OutPoint,
		PkScript:          first.PkScript,
		Divisibility:      req.Divisibility,
		AggregationPolicy: req.AggregationPolicy,
	})
	switch {
	case errors.Is(err, assetid.ErrMissingScript):
		e := missingField("pkScript")
		e.OutPoint = first.OutPoint
		e.Err = err

		return nil, e

	case err != nil:
		return nil, invalidField("utxos", err)
	}

	log.Debugf("Issuing %d units of %v from %v", req.Amount, assetID,
		first.OutPoint)

	a := newAssembly(d, payload)
	for i, dest := range dests {
		index := a.addDestination(dest, b.cfg.MinDustValue)
		payload.AddPayment(0, req.Transfers[i].Amount, index)
	}

	if err := b.finishPayload(a, req.ReturnPubKey); err != nil {
		return nil, err
	}

	plan := &changePlan{
		coloredScript: issueScript,
		plainScript:   plainScript,
		colored:       coloredAmount > 0,
		split:         req.Flags.SplitChange && coloredAmount > 0,
	}
	txFee, err := b.addChange(a, ccpayload.TypeIssuance, fee, plan)
	if err != nil {
		return nil, err
	}

	res, err := b.result(a, txFee)
	if err != nil {
		return nil, err
	}
	res.AssetID = assetID

	return res, nil
}

// issuancePayload returns the payload fields of an issuance.
func issuancePayload(req *IssuanceRequest) (*ccpayload.Transaction, error) {
	payload := ccpayload.New(ccpayload.TypeIssuance)
	payload.SetLockStatus(!req.Reissuable)

	if err := payload.SetAmount(req.Amount, req.Divisibility); err != nil {
		return nil, invalidField("divisibility", err)
	}

	if req.AggregationPolicy > ccpayload.Dispersed {
		return nil, invalidField("aggregationPolicy", fmt.Errorf(
			"%w: %d", ccpayload.ErrUnknownPolicy,
			uint8(req.AggregationPolicy)))
	}
	payload.SetAggregationPolicy(req.AggregationPolicy)

	if err := setHashes(payload, req.TorrentHash, req.SHA2); err != nil {
		return nil, err
	}

	return payload, nil
}
