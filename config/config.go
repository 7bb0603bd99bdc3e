// Package config loads machine run configurations written in CUE.
//
// A configuration names the program to run and how to drive it:
//
//	program: "day09.txt"
//	inputs: [2]
//	poke: "0": 2
//	network: {
//		mode:   "ring"
//		phases: [5, 6, 7, 8, 9]
//		search: true
//	}
package config

import (
	"os"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/ezrec/intvm/translate"
)

var f = translate.From

const (
	NETWORK_MODE_PIPELINE = "pipeline"
	NETWORK_MODE_RING     = "ring"
)

// Schema is the CUE schema every configuration is validated against.
const Schema = `
program?: string
source?:  string
inputs?:  [...int]
poke?: close({[=~"^[0-9]+$"]: int})
ascii?:   bool
verbose?: bool
network?: close({
	mode:   "pipeline" | "ring"
	phases: [...int]
	signal: *0 | int
	search: *false | bool
})
`

// Network describes a chain of program copies, one per phase.
type Network struct {
	Mode   string  `json:"mode"`
	Phases []int64 `json:"phases"`
	Signal int64   `json:"signal"`
	Search bool    `json:"search"` // Search all phase orderings for the largest output.
}

// Config is a decoded run configuration.
type Config struct {
	Program string           `json:"program,omitempty"` // Path of a program image.
	Source  string           `json:"source,omitempty"`  // Path of an assembly source.
	Inputs  []int64          `json:"inputs,omitempty"`
	Poke    map[string]int64 `json:"poke,omitempty"`
	Ascii   bool             `json:"ascii,omitempty"`
	Verbose bool             `json:"verbose,omitempty"`
	Network *Network         `json:"network,omitempty"`
}

// ErrConfig locates a configuration error.
type ErrConfig struct {
	Path string
	Err  error
}

func (err *ErrConfig) Error() string {
	return f("%v: %v", err.Path, err.Err)
}

func (err *ErrConfig) Unwrap() error {
	return err.Err
}

// Load reads and unifies the CUE files at paths, validates them against
// Schema, and decodes the result.
func Load(paths ...string) (cfg *Config, err error) {
	sources := make(map[string][]byte, len(paths))
	for _, path := range paths {
		var content []byte
		content, err = os.ReadFile(path)
		if err != nil {
			return
		}
		sources[path] = content
	}

	return parse(paths, sources)
}

// Parse decodes a single CUE document.
func Parse(path string, content []byte) (cfg *Config, err error) {
	return parse([]string{path}, map[string][]byte{path: content})
}

func parse(paths []string, sources map[string][]byte) (cfg *Config, err error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString("close({" + Schema + "})")
	if err = schema.Err(); err != nil {
		err = &ErrConfig{Path: "schema", Err: err}
		return
	}

	value := schema
	for _, path := range paths {
		file := ctx.CompileBytes(sources[path], cue.Filename(path))
		if err = file.Err(); err != nil {
			err = &ErrConfig{Path: path, Err: err}
			return
		}
		value = value.Unify(file)
	}

	if err = value.Validate(cue.Concrete(true)); err != nil {
		err = &ErrConfig{Path: paths[len(paths)-1], Err: err}
		return
	}

	cfg = &Config{}
	if err = value.Decode(cfg); err != nil {
		err = &ErrConfig{Path: paths[len(paths)-1], Err: err}
		cfg = nil
		return
	}

	return
}

// Pokes returns the memory patches keyed by address.
func (cfg *Config) Pokes() (pokes map[int64]int64, err error) {
	pokes = make(map[int64]int64, len(cfg.Poke))
	for key, value := range cfg.Poke {
		var addr int64
		addr, err = strconv.ParseInt(key, 10, 64)
		if err != nil {
			return
		}
		pokes[addr] = value
	}

	return
}
