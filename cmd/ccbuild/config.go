// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btclog"
	"github.com/btcsuite/ccbuilder/builder"
	"github.com/btcsuite/ccbuilder/pkg/btcunit"
	"github.com/jessevdk/go-flags"
)

const (
	defaultLogLevel    = "info"
	defaultLogFilename = "ccbuild.log"
)

var (
	defaultAppDir = btcutil.AppDataDir("ccbuild", false)
	defaultLogDir = filepath.Join(defaultAppDir, "logs")
)

// config defines the command line options of ccbuild.
type config struct {
	Network         string `long:"network" description:"Network the addresses belong to (mainnet, testnet, regtest, simnet, signet)"`
	Fee             int64  `long:"fee" description:"Flat fee in satoshis for requests that carry none"`
	FeeRate         string `long:"feerate" description:"Fee rate in sat/kvB for requests that carry no fee"`
	MinDust         int64  `long:"mindust" description:"Value in satoshis of every destination and change output"`
	MinDustMultisig int64  `long:"mindustmultisig" description:"Value in satoshis reserved for a multisig metadata carrier"`
	WriteMultisig   bool   `long:"writemultisig" description:"Reserve a multisig metadata carrier when a request has metadata"`
	MaxPayload      int    `long:"maxpayload" description:"Size in bytes of the OP_RETURN metadata slot"`
	PSBT            bool   `long:"psbt" description:"Also output every transaction as a base64 PSBT"`
	Jobs            int    `short:"j" long:"jobs" description:"Number of requests built at the same time"`
	DebugLevel      string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	LogDir          string `long:"logdir" description:"Directory to log output"`
	NoFileLogging   bool   `long:"nofilelogging" description:"Disable file logging"`

	// requestFiles are the positional arguments.
	requestFiles []string
}

// builderConfig returns the builder configuration selected by the options.
func (c *config) builderConfig() (builder.Config, error) {
	cfg := builder.Config{
		Network:              c.Network,
		DefaultFee:           btcutil.Amount(c.Fee),
		MinDustValue:         btcutil.Amount(c.MinDust),
		MinDustValueMultisig: btcutil.Amount(c.MinDustMultisig),
		WriteMultisig:        c.WriteMultisig,
		MaxPayloadSize:       c.MaxPayload,
	}

	if c.FeeRate != "" {
		rate, err := btcunit.ParseSatPerKVByte(c.FeeRate)
		if err != nil {
			return cfg, err
		}
		cfg.DefaultFeeRate = rate
	}

	return cfg, nil
}

// loadConfig parses the command line. Parser errors, including the help
// request, are reported to the user by the parser itself.
func loadConfig(args []string) (*config, error) {
	cfg := config{
		DebugLevel: defaultLogLevel,
		LogDir:     defaultLogDir,
		Jobs:       runtime.NumCPU(),
	}

	parser := flags.NewParser(&cfg, flags.Default)
	parser.Usage = "[OPTIONS] request.json..."

	remaining, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	if len(remaining) == 0 {
		return nil, errors.New("at least one request file is required")
	}
	cfg.requestFiles = remaining

	if _, ok := btclog.LevelFromString(cfg.DebugLevel); !ok {
		return nil, fmt.Errorf("invalid debug level %q", cfg.DebugLevel)
	}

	if cfg.Jobs < 1 {
		return nil, fmt.Errorf("jobs must be positive, got %d", cfg.Jobs)
	}

	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	return &cfg, nil
}

// cleanAndExpandPath expands environment variables and a leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if path[0] == '~' {
		homeDir := filepath.Dir(defaultAppDir)
		path = filepath.Join(homeDir, path[1:])
	}

	return filepath.Clean(os.ExpandEnv(path))
}
