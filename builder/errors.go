// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/ccbuilder/ccpayload"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrInvalidConfiguration indicates a bad network name or conflicting
	// fee settings.
	ErrInvalidConfiguration ErrorCode = iota

	// ErrMissingRequiredField indicates that a required request field was
	// not provided.
	ErrMissingRequiredField

	// ErrInvalidRequest indicates a request field that is present but
	// malformed, such as an undecodable address.
	ErrInvalidRequest

	// ErrInsufficientFunds indicates that the selected inputs cannot cover
	// the outputs, the fee and the change floor.
	ErrInsufficientFunds

	// ErrInsufficientAssetUnits indicates that the supplied UTXOs do not
	// hold enough units of a requested asset.
	ErrInsufficientAssetUnits

	// ErrUnknownAssetReference indicates that no supplied UTXO holds a
	// requested asset at all.
	ErrUnknownAssetReference

	// ErrAlreadySpentInput indicates that a UTXO marked as used was
	// supplied.
	ErrAlreadySpentInput

	// ErrPayloadConstruction indicates that the metadata could not be
	// encoded or carried by the transaction.
	ErrPayloadConstruction

	// ErrOverIssuance indicates that the initial distribution transfers
	// more units than are issued.
	ErrOverIssuance
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidConfiguration:   "ErrInvalidConfiguration",
	ErrMissingRequiredField:   "ErrMissingRequiredField",
	ErrInvalidRequest:         "ErrInvalidRequest",
	ErrInsufficientFunds:      "ErrInsufficientFunds",
	ErrInsufficientAssetUnits: "ErrInsufficientAssetUnits",
	ErrUnknownAssetReference:  "ErrUnknownAssetReference",
	ErrAlreadySpentInput:      "ErrAlreadySpentInput",
	ErrPayloadConstruction:    "ErrPayloadConstruction",
	ErrOverIssuance:           "ErrOverIssuance",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}

	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error is the error returned by every build operation. It carries a code
// and, depending on the code, the details a caller needs to retry with
// adjusted parameters.
type Error struct {
	Code ErrorCode
	Desc string
	Err  error

	// Field names the missing or malformed request field.
	Field string

	// TxType is the type of the transaction being built.
	TxType ccpayload.Type

	// Fee, TotalCost and Missing are set for ErrInsufficientFunds.
	Fee       btcutil.Amount
	TotalCost btcutil.Amount
	Missing   btcutil.Amount

	// AssetID is set for the asset related codes.
	AssetID string

	// OutPoint is set for ErrAlreadySpentInput and duplicate inputs.
	OutPoint wire.OutPoint
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Desc + ": " + e.Err.Error()
	}

	return e.Desc
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// newError creates an Error given a set of arguments.
func newError(c ErrorCode, desc string, err error) Error {
	return Error{Code: c, Desc: desc, Err: err}
}

// missingField returns an ErrMissingRequiredField error for field.
func missingField(field string) Error {
	e := newError(ErrMissingRequiredField,
		fmt.Sprintf("must have %q", field), nil)
	e.Field = field

	return e
}

// invalidField returns an ErrInvalidRequest error for field.
func invalidField(field string, err error) Error {
	e := newError(ErrInvalidRequest, fmt.Sprintf("invalid %q", field), err)
	e.Field = field

	return e
}

// insufficientFunds returns an ErrInsufficientFunds error with the cost
// breakdown filled in.
func insufficientFunds(txType ccpayload.Type, fee, totalCost,
	missing btcutil.Amount) Error {

	e := newError(ErrInsufficientFunds, fmt.Sprintf("not enough funds "+
		"for %v: fee %v, total cost %v, missing %v", txType, fee,
		totalCost, missing), nil)
	e.TxType = txType
	e.Fee = fee
	e.TotalCost = totalCost
	e.Missing = missing

	return e
}

// IsError returns whether err is an Error with a matching error code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Code == code
	}

	return false
}
