// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ezrec/intvm/config"
	"github.com/ezrec/intvm/cpu"
	"github.com/ezrec/intvm/emulator"
	"github.com/ezrec/intvm/io"
	"github.com/ezrec/intvm/translate"
)

// pokeFlag collects repeated addr=value memory patches.
type pokeFlag map[int64]int64

func (pf pokeFlag) String() string {
	var parts []string
	for addr, value := range pf {
		parts = append(parts, fmt.Sprintf("%d=%d", addr, value))
	}
	return strings.Join(parts, ",")
}

func (pf pokeFlag) Set(text string) (err error) {
	addr_text, value_text, ok := strings.Cut(text, "=")
	if !ok {
		return fmt.Errorf("%q: expected addr=value", text)
	}

	addr, err := strconv.ParseInt(addr_text, 0, 64)
	if err != nil {
		return
	}
	value, err := strconv.ParseInt(value_text, 0, 64)
	if err != nil {
		return
	}

	pf[addr] = value
	return
}

// patch applies pokes to a program image.
func patch(prog cpu.Program, pokes map[int64]int64) (cpu.Program, error) {
	if len(pokes) == 0 {
		return prog, nil
	}

	m := cpu.Load(prog)
	for addr, value := range pokes {
		if addr >= cpu.MEMORY_DENSE_LIMIT {
			return nil, fmt.Errorf("poke %d: address beyond program image", addr)
		}
		err := m.Poke(addr, value)
		if err != nil {
			return nil, fmt.Errorf("poke %d: %w", addr, err)
		}
	}

	return m.Snapshot(), nil
}

// newEmulator creates an emulator for a patched image. The listing, if
// any, only maps addresses back to source lines.
func newEmulator(prog cpu.Program, listing *cpu.Listing, opts ...cpu.Option) *emulator.Emulator {
	emu := emulator.NewEmulator(prog, opts...)
	emu.Listing = listing
	return emu
}

func main() {
	var compile string
	var assemble string
	var cfg_path string
	var input string
	var output string
	var ascii bool
	var disasm bool
	var verbose bool
	var lang string
	pokes := pokeFlag{}

	flag.StringVar(&compile, "c", "", "Program image to run")
	flag.StringVar(&assemble, "a", "", ".asm file to assemble and run")
	flag.StringVar(&cfg_path, "config", "", ".cue run configuration")
	flag.StringVar(&input, "i", "-", "Tape input")
	flag.StringVar(&output, "o", "-", "Tape output")
	flag.BoolVar(&ascii, "ascii", false, "ASCII tape mode")
	flag.Var(pokes, "poke", "Patch memory before running, as addr=value (repeatable)")
	flag.BoolVar(&disasm, "d", false, "Disassemble the program, do not execute")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.StringVar(&lang, "lang", "", "Message language tag")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	if len(lang) != 0 {
		translate.Use(lang)
	}

	cfg := &config.Config{}
	if len(cfg_path) != 0 {
		var err error
		cfg, err = config.Load(cfg_path)
		if err != nil {
			log.Fatal(err)
		}

		cfg_pokes, err := cfg.Pokes()
		if err != nil {
			log.Fatalf("%v: %v", cfg_path, err)
		}
		for addr, value := range cfg_pokes {
			if _, ok := pokes[addr]; !ok {
				pokes[addr] = value
			}
		}
	}

	if len(compile) == 0 && len(assemble) == 0 {
		compile = cfg.Program
		assemble = cfg.Source
	}
	ascii = ascii || cfg.Ascii
	verbose = verbose || cfg.Verbose

	logger := zap.NewNop()
	if verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatal(err)
		}
		defer logger.Sync()
	}

	var prog cpu.Program
	var listing *cpu.Listing

	switch {
	case len(assemble) != 0:
		inf, err := os.Open(assemble)
		if err != nil {
			log.Fatalf("%v: %v", assemble, err)
		}
		defer inf.Close()

		asm := &cpu.Assembler{Logger: logger}
		listing, err = asm.Parse(inf)
		if err != nil {
			log.Fatalf("%v: %v", assemble, err)
		}
		prog = listing.Binary()
	case len(compile) != 0:
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		prog, err = cpu.ParseProgram(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
	default:
		log.Fatalf("%v: no program given, use -c or -a", os.Args[0])
	}

	prog, err := patch(prog, pokes)
	if err != nil {
		log.Fatal(err)
	}

	if disasm {
		for ip, text := range cpu.Disassemble(prog) {
			fmt.Printf("%6d: %v\n", ip, text)
		}
		return
	}

	opts := []cpu.Option{cpu.WithLogger(logger)}

	if cfg.Network != nil {
		runNetwork(prog, cfg.Network, logger, opts)
		return
	}

	opts = append(opts, cpu.WithInput(cfg.Inputs...))

	emu := newEmulator(prog, listing, opts...)
	emu.SetLogger(logger)

	if ascii {
		emu.Tape.Mode = io.TAPE_MODE_ASCII
	}

	if input == "-" {
		emu.Tape.Input = os.Stdin
	} else {
		inf, err := os.Open(input)
		if err != nil {
			log.Fatalf("%v: %v", input, err)
		}
		defer inf.Close()
		emu.Tape.Input = inf
	}

	if output == "-" {
		emu.Tape.Output = os.Stdout
	} else {
		ouf, err := os.Create(output)
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
		defer ouf.Close()
		emu.Tape.Output = ouf
	}

	err = emu.Run()
	if err != nil {
		if verbose {
			log.Print(emu.Machine)
		}
		log.Fatal(err)
	}
}

// runNetwork runs the program as a chain of machines and prints the
// final signal.
func runNetwork(prog cpu.Program, cfg *config.Network, logger *zap.Logger, opts []cpu.Option) {
	feedback := cfg.Mode == config.NETWORK_MODE_RING

	if cfg.Search {
		best, order, err := emulator.MaxSignal(prog, cfg.Phases, feedback, opts...)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%d %v\n", best, order)
		return
	}

	var net *emulator.Network
	if feedback {
		net = emulator.NewRing(prog, cfg.Phases, opts...)
	} else {
		net = emulator.NewPipeline(prog, cfg.Phases, opts...)
	}
	net.SetLogger(logger)

	signal, err := net.Run(cfg.Signal)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(signal)
}
