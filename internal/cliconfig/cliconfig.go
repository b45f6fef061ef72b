// Package cliconfig loads the TOML-based config file the apg command reads
// its defaults from. The `toml:"..."` struct-tag style and
// the Unmarshal-into-struct call follow the teacher's TQW config loader
// (internal/tqw/tqw.go, internal/tqw/marshaling.go).
package cliconfig

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the command-line defaults a grammar author would otherwise
// have to repeat on every invocation.
type Config struct {
	// Protected lists rule names whose PPPT map must never be used to elide
	// a call (spec §4.4 "Recursive rule handling").
	Protected []string `toml:"protected"`

	// Strict mirrors the input validator's strict line-ending mode (spec
	// §4.1).
	Strict bool `toml:"strict"`

	// OutFile is the default path an emitted initialization image is
	// written to when the caller doesn't override it on the command line.
	OutFile string `toml:"out_file"`
}

// Default returns the zero-value config a command falls back to when no
// config file is found.
func Default() Config {
	return Config{OutFile: "out.apg"}
}

// Load reads and parses the TOML config file at path. A missing file is not
// an error; it returns Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
