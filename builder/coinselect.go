// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/ccbuilder/ccpayload"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Scores of the single-cover search. A candidate covering the target asset
// always outscores one that does not, an exact cover outscores any
// over-cover, and the other outstanding demands only break ties between
// covers of the same kind.
const (
	scoreExactCover = 10000
	scoreOverCover  = 1000
	scoreOtherExact = 100
	scoreOtherOver  = 10
)

// costFunc returns the fee and the total cost of a transaction funded by
// numInputs inputs.
type costFunc func(numInputs int) (fee, total btcutil.Amount)

// selectIssuanceInputs funds an issuance and returns its first input, which
// the asset id is derived from.
//
// With a designated financing output, that output is the only input and it is
// not checked against the cost. Otherwise the plain UTXOs are added in the
// given order until their value reaches the cost.
func selectIssuanceInputs(d *draft, utxos []UTXO, finance fn.Option[UTXO],
	cost costFunc) (*UTXO, error) {

	if finance.IsSome() {
		u := finance.UnwrapOr(UTXO{})
		d.addInput(&u)

		log.Debugf("Funding issuance from designated output %v (%v)",
			u.OutPoint, u.Value)

		return &u, nil
	}

	var first *UTXO
	for i := range utxos {
		u := &utxos[i]
		if d.hasInput(u.OutPoint) || !u.isPlain() {
			log.Tracef("Skipping utxo %v for issuance", u.OutPoint)
			continue
		}

		d.addInput(u)
		if first == nil {
			first = u
		}

		_, target := cost(len(d.tx.TxIn))
		if d.totalInput >= target {
			log.Debugf("Funded issuance with %d inputs: have %v, "+
				"need %v", len(d.tx.TxIn), d.totalInput, target)

			return first, nil
		}
	}

	fee, target := cost(max(len(d.tx.TxIn), 1))

	return nil, insufficientFunds(
		ccpayload.TypeIssuance, fee, target, target-d.totalInput,
	)
}

// selectAssetInputs funds every demand of a transfer from the UTXOs holding
// its asset, in the order the assets were requested.
func selectAssetInputs(d *draft, utxos []UTXO, demands *demandSet) error {
	for _, demand := range demands.order {
		if demand.Satisfied {
			log.Tracef("Demand for %v already funded", demand.AssetID)
			continue
		}

		var available uint64
		candidates := make([]*UTXO, 0, len(utxos))
		for i := range utxos {
			u := &utxos[i]
			if d.hasInput(u.OutPoint) || u.holding(demand.AssetID) == 0 {
				continue
			}

			available += u.holding(demand.AssetID)
			candidates = append(candidates, u)
		}

		selected := singleCover(candidates, demands, demand)
		if selected == nil {
			selected = accumulate(candidates, demand)
		}

		if selected == nil {
			e := newError(ErrInsufficientAssetUnits, fmt.Sprintf(
				"not enough units of %v: need %d more, "+
					"unspent holdings have %d",
				demand.AssetID, demand.Remaining, available),
				nil)
			e.AssetID = demand.AssetID

			return e
		}

		allocateInputs(d, selected, demands, demand)

		if !demand.Satisfied {
			e := newError(ErrInsufficientAssetUnits, fmt.Sprintf(
				"selected inputs left %d units of %v unfunded",
				demand.Remaining, demand.AssetID), nil)
			e.AssetID = demand.AssetID

			return e
		}
	}

	return nil
}

// singleCover returns the best candidate holding at least the remaining
// demand of target on its own, or nil when there is none. Ties go to the
// first candidate.
func singleCover(candidates []*UTXO, demands *demandSet,
	target *AssetDemand) []*UTXO {

	// The scores only live for this search.
	scores := make([]float64, len(candidates))

	best := -1
	for i, u := range candidates {
		held := u.holding(target.AssetID)
		if held < target.Remaining {
			continue
		}

		score := float64(scoreOverCover)
		if held == target.Remaining {
			score = scoreExactCover
		}

		for _, other := range demands.order {
			if other == target || other.Satisfied {
				continue
			}

			otherHeld := u.holding(other.AssetID)
			switch {
			case otherHeld == other.Remaining:
				score += scoreOtherExact

			case otherHeld > other.Remaining:
				score += scoreOtherOver

			default:
				score += float64(otherHeld) /
					float64(other.Remaining)
			}
		}

		scores[i] = score
		if best < 0 || score > scores[best] {
			best = i
		}
	}

	if best < 0 {
		return nil
	}

	log.Debugf("Single cover for %v: utxo %v with score %.2f",
		target.AssetID, candidates[best].OutPoint, scores[best])

	return []*UTXO{candidates[best]}
}

// accumulate returns the candidates with the largest holdings of target until
// they cover its remaining demand, or nil when all of them do not.
func accumulate(candidates []*UTXO, target *AssetDemand) []*UTXO {
	sorted := append([]*UTXO(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].holding(target.AssetID) >
			sorted[j].holding(target.AssetID)
	})

	var found uint64
	for i, u := range sorted {
		found += u.holding(target.AssetID)
		if found >= target.Remaining {
			log.Debugf("Accumulated %d utxos for %v", i+1,
				target.AssetID)

			return sorted[:i+1]
		}
	}

	return nil
}

// allocateInputs spends the selected UTXOs and records every holding they
// carry against the demand of its asset, until target is satisfied.
func allocateInputs(d *draft, selected []*UTXO, demands *demandSet,
	target *AssetDemand) {

	for _, u := range selected {
		if target.Satisfied {
			break
		}

		var (
			inputIndex uint32
			spent      bool
			lastAsset  string
			surplus    []AssetHolding
		)
		for _, holding := range u.Assets {
			if holding.Amount == 0 {
				continue
			}

			demand := demands.get(holding.AssetID)
			if demand == nil {
				lastAsset = holding.AssetID
				continue
			}

			if demand.Satisfied {
				surplus = append(surplus, holding)
				lastAsset = holding.AssetID
				continue
			}

			if !spent {
				inputIndex = d.addInput(u)
				spent = true
			}

			// Consecutive holdings of an aggregatable asset in the
			// same UTXO fund the demand as one entry.
			demand.allocate(
				inputIndex, holding.Amount,
				holding.AggregationPolicy,
				lastAsset == holding.AssetID,
			)
			lastAsset = holding.AssetID

			log.Tracef("Input %d funds %d of %v, %d remaining",
				inputIndex, holding.Amount, holding.AssetID,
				demand.Remaining)
		}

		// Holdings of satisfied demands in a spent UTXO go to the
		// change.
		if !spent {
			continue
		}
		for _, holding := range surplus {
			demand := demands.get(holding.AssetID)
			demand.ChangeAmount += holding.Amount
		}
	}
}

// topUp is the second selection pass of a transfer. It adds the designated
// financing output, then plain UTXOs in the given order, until enough reports
// that the inputs cover the transaction. It returns whether they do.
func topUp(d *draft, utxos []UTXO, finance fn.Option[UTXO],
	enough func() bool) bool {

	candidates := make([]*UTXO, 0, len(utxos)+1)
	finance.WhenSome(func(u UTXO) {
		candidates = append(candidates, &u)
	})
	for i := range utxos {
		if utxos[i].isPlain() {
			candidates = append(candidates, &utxos[i])
		}
	}

	for _, u := range candidates {
		if enough() {
			return true
		}

		if d.hasInput(u.OutPoint) {
			continue
		}

		log.Debugf("Adding utxo %v (%v) to cover the fee", u.OutPoint,
			u.Value)

		d.addInput(u)
	}

	return enough()
}
