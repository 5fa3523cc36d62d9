// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/ccbuilder/builder"
	"github.com/btcsuite/ccbuilder/ccpayload"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Request types.
const (
	typeIssuance = "issuance"
	typeTransfer = "transfer"
	typeBurn     = "burn"
)

type jsonAsset struct {
	AssetID           string                      `json:"assetId"`
	Amount            uint64                      `json:"amount"`
	AggregationPolicy ccpayload.AggregationPolicy `json:"aggregationPolicy"`
}

type jsonUTXO struct {
	TxID         string      `json:"txid"`
	Index        uint32      `json:"index"`
	Value        int64       `json:"value"`
	ScriptPubKey string      `json:"scriptPubKey,omitempty"`
	Assets       []jsonAsset `json:"assets,omitempty"`
	Used         bool        `json:"used,omitempty"`
}

// jsonTransfer is a transfer to an address, to a multisig destination when
// PubKeys is set, or a burn.
type jsonTransfer struct {
	AssetID string   `json:"assetId,omitempty"`
	Amount  uint64   `json:"amount"`
	Address string   `json:"address,omitempty"`
	PubKeys []string `json:"pubKeys,omitempty"`
	M       int      `json:"m,omitempty"`
	Burn    bool     `json:"burn,omitempty"`
}

type jsonFlags struct {
	InjectPreviousOutput bool `json:"injectPreviousOutput,omitempty"`
	SplitChange          bool `json:"splitChange,omitempty"`
	NoSplit              bool `json:"noSplit,omitempty"`
}

// jsonRequest is the file format of a build request. Type selects which of
// the remaining fields apply.
type jsonRequest struct {
	Type                 string                      `json:"type"`
	UTXOs                []jsonUTXO                  `json:"utxos"`
	Fee                  int64                       `json:"fee,omitempty"`
	IssueAddress         string                      `json:"issueAddress,omitempty"`
	Amount               uint64                      `json:"amount,omitempty"`
	Divisibility         uint8                       `json:"divisibility,omitempty"`
	AggregationPolicy    ccpayload.AggregationPolicy `json:"aggregationPolicy"`
	Reissuable           bool                        `json:"reissuable,omitempty"`
	Transfer             []jsonTransfer              `json:"transfer,omitempty"`
	To                   []jsonTransfer              `json:"to,omitempty"`
	Burn                 []jsonTransfer              `json:"burn,omitempty"`
	From                 string                      `json:"from,omitempty"`
	TorrentHash          string                      `json:"torrentHash,omitempty"`
	SHA2                 string                      `json:"sha2,omitempty"`
	Rules                bool                        `json:"rules,omitempty"`
	Flags                jsonFlags                   `json:"flags"`
	FinanceOutput        *jsonUTXO                   `json:"financeOutput,omitempty"`
	FinanceChangeAddress string                      `json:"financeChangeAddress,omitempty"`
	ReturnPubKey         string                      `json:"returnPubKey,omitempty"`
}

// decodeRequest reads one request. Unknown fields are rejected.
func decodeRequest(r io.Reader) (*jsonRequest, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var req jsonRequest
	if err := dec.Decode(&req); err != nil {
		return nil, err
	}

	return &req, nil
}

// decodeHex decodes an optional hex field.
func decodeHex(field, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}

	return b, nil
}

func (u *jsonUTXO) toUTXO(field string) (builder.UTXO, error) {
	hash, err := chainhash.NewHashFromStr(u.TxID)
	if err != nil {
		return builder.UTXO{}, fmt.Errorf("%s.txid: %w", field, err)
	}

	pkScript, err := decodeHex(field+".scriptPubKey", u.ScriptPubKey)
	if err != nil {
		return builder.UTXO{}, err
	}

	utxo := builder.UTXO{
		OutPoint: *wire.NewOutPoint(hash, u.Index),
		Value:    btcutil.Amount(u.Value),
		PkScript: pkScript,
		Used:     u.Used,
	}
	for _, asset := range u.Assets {
		utxo.Assets = append(utxo.Assets, builder.AssetHolding{
			AssetID:           asset.AssetID,
			Amount:            asset.Amount,
			AggregationPolicy: asset.AggregationPolicy,
		})
	}

	return utxo, nil
}

func (t *jsonTransfer) toTransfer(field string) (builder.Transfer, error) {
	transfer := builder.Transfer{
		AssetID: t.AssetID,
		Amount:  t.Amount,
	}

	switch {
	case t.Burn:
		transfer.Destination = builder.BurnSink{}

	case len(t.PubKeys) > 0:
		spec := builder.MultisigSpec{Threshold: t.M}
		for i, key := range t.PubKeys {
			pubKey, err := decodeHex(
				fmt.Sprintf("%s.pubKeys[%d]", field, i), key,
			)
			if err != nil {
				return transfer, err
			}
			spec.PubKeys = append(spec.PubKeys, pubKey)
		}

		// A missing threshold asks for every key.
		if spec.Threshold == 0 {
			spec.Threshold = len(spec.PubKeys)
		}
		transfer.Destination = spec

	case t.Address != "":
		transfer.Destination = builder.PlainAddress{Address: t.Address}
	}

	return transfer, nil
}

func toTransfers(field string, in []jsonTransfer) ([]builder.Transfer, error) {
	var transfers []builder.Transfer
	for i := range in {
		transfer, err := in[i].toTransfer(fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, transfer)
	}

	return transfers, nil
}

// common holds the fields shared by every request type.
type common struct {
	utxos       []builder.UTXO
	finance     fn.Option[builder.UTXO]
	torrentHash []byte
	sha2        []byte
	returnKey   []byte
	flags       builder.Flags
}

func (r *jsonRequest) common() (*common, error) {
	c := &common{
		finance: fn.None[builder.UTXO](),
		flags: builder.Flags{
			InjectPreviousOutput: r.Flags.InjectPreviousOutput,
			SplitChange:          r.Flags.SplitChange,
			NoSplit:              r.Flags.NoSplit,
		},
	}

	for i := range r.UTXOs {
		utxo, err := r.UTXOs[i].toUTXO(fmt.Sprintf("utxos[%d]", i))
		if err != nil {
			return nil, err
		}
		c.utxos = append(c.utxos, utxo)
	}

	if r.FinanceOutput != nil {
		utxo, err := r.FinanceOutput.toUTXO("financeOutput")
		if err != nil {
			return nil, err
		}
		c.finance = fn.Some(utxo)
	}

	var err error
	c.torrentHash, err = decodeHex("torrentHash", r.TorrentHash)
	if err != nil {
		return nil, err
	}

	c.sha2, err = decodeHex("sha2", r.SHA2)
	if err != nil {
		return nil, err
	}

	c.returnKey, err = decodeHex("returnPubKey", r.ReturnPubKey)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (r *jsonRequest) issuanceRequest() (*builder.IssuanceRequest, error) {
	c, err := r.common()
	if err != nil {
		return nil, err
	}

	transfers, err := toTransfers("transfer", r.Transfer)
	if err != nil {
		return nil, err
	}

	return &builder.IssuanceRequest{
		UTXOs:                c.utxos,
		Fee:                  btcutil.Amount(r.Fee),
		IssueAddress:         r.IssueAddress,
		Amount:               r.Amount,
		Divisibility:         r.Divisibility,
		AggregationPolicy:    r.AggregationPolicy,
		Reissuable:           r.Reissuable,
		Transfers:            transfers,
		TorrentHash:          c.torrentHash,
		SHA2:                 c.sha2,
		Rules:                r.Rules,
		Flags:                c.flags,
		FinanceOutput:        c.finance,
		FinanceChangeAddress: r.FinanceChangeAddress,
		ReturnPubKey:         c.returnKey,
	}, nil
}

func (r *jsonRequest) transferRequest() (*builder.TransferRequest, error) {
	c, err := r.common()
	if err != nil {
		return nil, err
	}

	to, err := toTransfers("to", r.To)
	if err != nil {
		return nil, err
	}

	burn, err := toTransfers("burn", r.Burn)
	if err != nil {
		return nil, err
	}

	return &builder.TransferRequest{
		UTXOs:                c.utxos,
		Fee:                  btcutil.Amount(r.Fee),
		To:                   to,
		Burn:                 burn,
		From:                 r.From,
		TorrentHash:          c.torrentHash,
		SHA2:                 c.sha2,
		Flags:                c.flags,
		FinanceOutput:        c.finance,
		FinanceChangeAddress: r.FinanceChangeAddress,
		ReturnPubKey:         c.returnKey,
	}, nil
}

// build runs the operation selected by the request type.
func build(b *builder.Builder, r *jsonRequest) (*builder.Result, error) {
	switch r.Type {
	case typeIssuance:
		req, err := r.issuanceRequest()
		if err != nil {
			return nil, err
		}

		return b.BuildIssuance(req)

	case typeTransfer, typeBurn:
		req, err := r.transferRequest()
		if err != nil {
			return nil, err
		}

		if r.Type == typeBurn {
			return b.BuildBurn(req)
		}

		return b.BuildTransfer(req)

	default:
		return nil, fmt.Errorf("unknown request type %q", r.Type)
	}
}
