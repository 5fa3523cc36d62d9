// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command ccbuild builds unsigned colored coins transactions from JSON request
// files and prints the results as a JSON array on standard output, in the
// order the files were given.
//
// Every request file holds one request:
//
//	{
//	  "type": "transfer",
//	  "utxos": [{"txid": "...", "index": 0, "value": 100000,
//	             "scriptPubKey": "76a9...88ac",
//	             "assets": [{"assetId": "La...", "amount": 50}]}],
//	  "to": [{"assetId": "La...", "amount": 20, "address": "mk..."}],
//	  "fee": 5000
//	}
//
// The type is one of issuance, transfer or burn.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/ccbuilder/builder"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"
)

// jsonMultisigOutput describes an output paying to a multisig destination.
type jsonMultisigOutput struct {
	Index        uint32 `json:"index"`
	RedeemScript string `json:"redeemScript"`
	Address      string `json:"address"`
}

// jsonResult is the outcome of one request file.
type jsonResult struct {
	File                 string               `json:"file"`
	TxHex                string               `json:"txHex,omitempty"`
	AssetID              string               `json:"assetId,omitempty"`
	Fee                  int64                `json:"fee,omitempty"`
	MultisigOutputs      []jsonMultisigOutput `json:"multisigOutputs,omitempty"`
	ColoredOutputIndexes []uint32             `json:"coloredOutputIndexes,omitempty"`
	PSBT                 string               `json:"psbt,omitempty"`
	Error                string               `json:"error,omitempty"`
	ErrorCode            string               `json:"errorCode,omitempty"`
}

// errBuildFailed is returned when at least one request could not be built.
var errBuildFailed = errors.New("one or more requests failed")

func main() {
	if err := ccbuildMain(os.Args[1:], os.Stdout); err != nil {
		os.Exit(1)
	}
}

// ccbuildMain is the real main function for ccbuild. It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
func ccbuildMain(args []string, stdout io.Writer) error {
	cfg, err := loadConfig(args)
	if err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) {
			fmt.Fprintln(os.Stderr, err)
			return err
		}

		if flagsErr.Type == flags.ErrHelp {
			return nil
		}

		return err
	}

	if !cfg.NoFileLogging {
		logFile := filepath.Join(cfg.LogDir, defaultLogFilename)
		if err := initLogRotator(logFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return err
		}
		defer func() {
			if logRotatorPipe != nil {
				logRotatorPipe.Close()
			}
			if logRotator != nil {
				logRotator.Close()
			}
		}()
	}
	setLogLevels(cfg.DebugLevel)

	builderCfg, err := cfg.builderConfig()
	if err != nil {
		log.Errorf("Invalid fee rate: %v", err)
		return err
	}

	b, err := builder.New(builderCfg)
	if err != nil {
		log.Errorf("Invalid configuration: %v", err)
		return err
	}

	results, err := runBatch(
		context.Background(), b, cfg.requestFiles, cfg.Jobs, cfg.PSBT,
	)
	if err != nil {
		log.Errorf("Unable to run requests: %v", err)
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	for _, res := range results {
		if res.Error != "" {
			return errBuildFailed
		}
	}

	return nil
}

// runBatch builds the request files concurrently with at most jobs builds at
// a time. A request that fails to build is reported in its result. Files that
// cannot be read or decoded stop the batch.
func runBatch(ctx context.Context, b *builder.Builder, files []string,
	jobs int, withPSBT bool) ([]*jsonResult, error) {

	results := make([]*jsonResult, len(files))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)

	for i, file := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			req, err := loadRequest(file)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}

			results[i] = buildOne(b, file, req, withPSBT)

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// loadRequest reads and decodes one request file.
func loadRequest(file string) (*jsonRequest, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return decodeRequest(f)
}

// buildOne builds a single request and converts the outcome.
func buildOne(b *builder.Builder, file string, req *jsonRequest,
	withPSBT bool) *jsonResult {

	out := &jsonResult{File: file}

	res, err := build(b, req)
	if err != nil {
		log.Warnf("Unable to build %s (%s): %v", file, req.Type, err)

		out.Error = err.Error()
		var e builder.Error
		if errors.As(err, &e) {
			out.ErrorCode = e.Code.String()
		}

		return out
	}

	log.Infof("Built %s %s: %d colored outputs, fee %v", req.Type, file,
		len(res.ColoredOutputIndexes), res.Fee)

	out.TxHex = res.TxHex
	out.AssetID = res.AssetID
	out.Fee = int64(res.Fee)
	out.ColoredOutputIndexes = res.ColoredOutputIndexes
	for _, m := range res.MultisigOutputs {
		out.MultisigOutputs = append(out.MultisigOutputs,
			jsonMultisigOutput{
				Index:        m.Index,
				RedeemScript: fmt.Sprintf("%x", m.RedeemScript),
				Address:      m.Address,
			})
	}

	if withPSBT {
		packet, err := res.PacketBase64()
		if err != nil {
			log.Warnf("Unable to export %s as PSBT: %v", file, err)
			out.Error = err.Error()

			return out
		}
		out.PSBT = packet
	}

	return out
}
