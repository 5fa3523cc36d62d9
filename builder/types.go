// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/ccbuilder/ccpayload"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// AssetHolding is an amount of one asset held by a UTXO.
type AssetHolding struct {
	// AssetID identifies the asset.
	AssetID string

	// Amount is the number of units held.
	Amount uint64

	// AggregationPolicy is the policy of the asset. The zero value is
	// ccpayload.Aggregatable.
	AggregationPolicy ccpayload.AggregationPolicy
}

// UTXO is an unspent output available to a build call. The builder never
// modifies the UTXOs it is given.
type UTXO struct {
	// OutPoint identifies the output.
	OutPoint wire.OutPoint

	// Value is the value of the output.
	Value btcutil.Amount

	// PkScript is the script of the output. It is required when the
	// previous output is injected into the input, when an unlocked asset
	// is derived from it and when a transfer has to find its change
	// address from it.
	PkScript []byte

	// Assets lists the colored holdings of the output in protocol order.
	// It is empty for plain outputs.
	Assets []AssetHolding

	// Used marks an output that is known to be spent. Supplying one is an
	// error.
	Used bool
}

// holding returns the number of units of assetID held by the UTXO.
func (u *UTXO) holding(assetID string) uint64 {
	var total uint64
	for _, asset := range u.Assets {
		if asset.AssetID == assetID {
			total += asset.Amount
		}
	}

	return total
}

// isPlain returns whether the UTXO carries no colored holdings.
func (u *UTXO) isPlain() bool {
	return len(u.Assets) == 0
}

// clone returns a deep copy of the UTXO.
func (u *UTXO) clone() UTXO {
	c := *u
	c.PkScript = append([]byte(nil), u.PkScript...)
	c.Assets = append([]AssetHolding(nil), u.Assets...)

	return c
}

// Destination is a sealed interface describing where transferred units go.
// It is one of PlainAddress, BurnSink or MultisigSpec.
type Destination interface {
	// isDestination is a marker method that is part of the sealed
	// interface pattern.
	isDestination()
}

// PlainAddress sends units to an address of the configured network.
type PlainAddress struct {
	Address string
}

// BurnSink destroys the units. It is only valid in transfers.
type BurnSink struct{}

// MultisigSpec sends units to the pay-to-script-hash address of a Threshold
// of len(PubKeys) multisig script over the serialized public keys, in the
// given order.
type MultisigSpec struct {
	PubKeys   [][]byte
	Threshold int
}

func (PlainAddress) isDestination() {}
func (BurnSink) isDestination()     {}
func (MultisigSpec) isDestination() {}

// A compile-time assertion to ensure that all types implementing the
// Destination interface adhere to it.
var _ Destination = PlainAddress{}
var _ Destination = BurnSink{}
var _ Destination = MultisigSpec{}

// Transfer moves Amount units to Destination. AssetID is ignored in the
// initial distribution of an issuance.
type Transfer struct {
	AssetID     string
	Amount      uint64
	Destination Destination
}

// Flags are the optional switches of a request.
type Flags struct {
	// InjectPreviousOutput copies the previous output script of every
	// input into its signature script.
	InjectPreviousOutput bool

	// SplitChange separates the plain change from a dust change output.
	// Transfers split even when no colored units are left over.
	SplitChange bool

	// NoSplit keeps the change of a transfer in a single output. It wins
	// over SplitChange.
	NoSplit bool
}

// IssuanceRequest describes a new asset and its initial distribution.
type IssuanceRequest struct {
	// UTXOs are the outputs available to fund the issuance. Only plain
	// outputs are spent, in the given order.
	UTXOs []UTXO

	// Fee overrides the builder's default fee policy when non-zero.
	Fee btcutil.Amount

	// IssueAddress receives the issued units that are not transferred and
	// the change.
	IssueAddress string

	// Amount is the number of units to issue.
	Amount uint64

	// Divisibility is the number of decimal places of the asset.
	Divisibility uint8

	// AggregationPolicy is the aggregation policy of the asset.
	AggregationPolicy ccpayload.AggregationPolicy

	// Reissuable unlocks the asset so that later issuances from the same
	// script add units to it. Assets are locked by default.
	Reissuable bool

	// Transfers is the optional initial distribution. Each transfer gets
	// its own output.
	Transfers []Transfer

	// TorrentHash and SHA2 optionally reference the asset metadata.
	TorrentHash []byte
	SHA2        []byte

	// Rules marks custom asset rules, which count as metadata in the
	// cost of the issuance.
	Rules bool

	// Flags are the optional switches of the request.
	Flags Flags

	// FinanceOutput, when set, is the only input of the issuance. The
	// builder trusts it to cover the cost and fails only once the
	// change is computed.
	FinanceOutput fn.Option[UTXO]

	// FinanceChangeAddress receives the plain change when set.
	FinanceChangeAddress string

	// ReturnPubKey is the key able to reclaim the metadata carrier
	// output. A default unspendable key is used when empty.
	ReturnPubKey []byte
}

// TransferRequest describes a transfer of existing units.
type TransferRequest struct {
	// UTXOs are the outputs available to the transfer.
	UTXOs []UTXO

	// Fee overrides the builder's default fee policy when non-zero.
	Fee btcutil.Amount

	// To lists the destinations of the transferred units.
	To []Transfer

	// Burn lists the units to destroy. Their destinations are ignored.
	Burn []Transfer

	// From is the address receiving the colored change. It defaults to
	// the address of the first input.
	From string

	// TorrentHash and SHA2 optionally reference metadata.
	TorrentHash []byte
	SHA2        []byte

	// Flags are the optional switches of the request.
	Flags Flags

	// FinanceOutput is tried first when the asset inputs do not cover
	// the fee.
	FinanceOutput fn.Option[UTXO]

	// FinanceChangeAddress receives the plain change when set.
	FinanceChangeAddress string

	// ReturnPubKey is the key able to reclaim the metadata carrier
	// output.
	ReturnPubKey []byte
}

// MultisigOutput describes an output paying to a multisig destination.
type MultisigOutput struct {
	Index        uint32
	RedeemScript []byte
	Address      string
}

// Result is the outcome of a successful build.
type Result struct {
	// TxHex is the serialized unsigned transaction.
	TxHex string

	// AssetID is the identifier of the issued asset.
	AssetID string

	// Fee is the fee paid by the transaction.
	Fee btcutil.Amount

	// MultisigOutputs lists the outputs that pay to multisig
	// destinations.
	MultisigOutputs []MultisigOutput

	// ColoredOutputIndexes lists, in ascending order, the outputs that
	// carry colored units.
	ColoredOutputIndexes []uint32

	// Demands holds the per asset allocations of a transfer.
	Demands []AssetDemand

	// Draft is the assembled transaction with its previous output data.
	// It is only set when Config.ReturnDraft is.
	Draft *txauthor.AuthoredTx

	tx          *wire.MsgTx
	prevScripts [][]byte
	inputValues []btcutil.Amount
}

// Tx returns a copy of the assembled transaction.
func (r *Result) Tx() *wire.MsgTx {
	return r.tx.Copy()
}
