// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import "github.com/btcsuite/ccbuilder/ccpayload"

// FundingInput is the part of an input's holding allocated to a demand.
type FundingInput struct {
	InputIndex uint32
	Amount     uint64
}

// DemandDestination is one unique destination of an asset demand. Amounts
// sent to the same address are summed.
type DemandDestination struct {
	// Address is the encoded destination address. It is empty for burns.
	Address string

	// Burn marks units that are destroyed.
	Burn bool

	Amount uint64

	// RedeemScript is set for multisig destinations.
	RedeemScript []byte

	dest *resolvedDestination
}

// AssetDemand tracks the funding of one asset requested by a transfer.
type AssetDemand struct {
	AssetID string

	// Requested is the sum of the amounts of all destinations.
	Requested uint64

	// Remaining is the part of Requested not yet allocated to an input.
	Remaining uint64

	Destinations  []DemandDestination
	FundingInputs []FundingInput

	// Satisfied is set once Remaining reached zero.
	Satisfied bool

	// ChangeAmount is the number of units held by the funding inputs
	// that no destination takes.
	ChangeAmount uint64
}

// demandSet holds the demands of a transfer in the order their assets were
// first requested.
type demandSet struct {
	order []*AssetDemand
	index map[string]*AssetDemand
}

func newDemandSet() *demandSet {
	return &demandSet{
		index: make(map[string]*AssetDemand),
	}
}

// get returns the demand of assetID, or nil.
func (s *demandSet) get(assetID string) *AssetDemand {
	return s.index[assetID]
}

// add records amount units of assetID for dest, merging destinations that
// share an address.
func (s *demandSet) add(assetID string, amount uint64,
	dest *resolvedDestination) {

	demand, ok := s.index[assetID]
	if !ok {
		demand = &AssetDemand{AssetID: assetID}
		s.index[assetID] = demand
		s.order = append(s.order, demand)
	}

	demand.Requested += amount
	demand.Remaining += amount

	for i := range demand.Destinations {
		existing := &demand.Destinations[i]
		if existing.dest.burn == dest.burn &&
			existing.dest.address == dest.address {

			existing.Amount += amount
			return
		}
	}

	demand.Destinations = append(demand.Destinations, DemandDestination{
		Address:      dest.address,
		Burn:         dest.burn,
		Amount:       amount,
		RedeemScript: dest.redeemScript,
		dest:         dest,
	})
}

// hasBurn returns whether any demand destroys units.
func (s *demandSet) hasBurn() bool {
	for _, demand := range s.order {
		for _, dest := range demand.Destinations {
			if dest.Burn {
				return true
			}
		}
	}

	return false
}

// allocate records holding units of an input against the demand. The amount
// is merged into the previous funding entry when merge is set.
func (d *AssetDemand) allocate(inputIndex uint32, holding uint64,
	policy ccpayload.AggregationPolicy, merge bool) {

	amount := holding
	if holding >= d.Remaining {
		amount = d.Remaining
		d.ChangeAmount += holding - d.Remaining
		d.Satisfied = true
	}
	d.Remaining -= amount

	if merge && policy == ccpayload.Aggregatable &&
		len(d.FundingInputs) > 0 {

		d.FundingInputs[len(d.FundingInputs)-1].Amount += amount
		return
	}

	d.FundingInputs = append(d.FundingInputs, FundingInput{
		InputIndex: inputIndex,
		Amount:     amount,
	})
}

// export returns copies of the demands for the caller.
func (s *demandSet) export() []AssetDemand {
	demands := make([]AssetDemand, 0, len(s.order))
	for _, demand := range s.order {
		c := *demand
		c.Destinations = append(
			[]DemandDestination(nil), demand.Destinations...,
		)
		c.FundingInputs = append(
			[]FundingInput(nil), demand.FundingInputs...,
		)
		demands = append(demands, c)
	}

	return demands
}
