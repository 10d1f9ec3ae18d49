// Command regctl lists, reads and writes registers described by register
// catalogs, on a simulated bus, through /dev/mem or on the running CPU.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/fkcurrie/regio/internal/config"
	"github.com/fkcurrie/regio/internal/session"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: regctl [flags] <command> [args]

Commands:
%s
Flags:
`, commandHelp)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	backend := flag.String("backend", "", "Backend: sim, devmem or cpu (overrides config)")
	catalogs := flag.String("catalog", "", "Comma separated catalogs, builtin:<name> or YAML paths (overrides config)")
	tracePath := flag.String("trace", "", "Write a CBOR access trace to this file")
	strict := flag.Bool("strict", false, "Reject field values wider than their field")
	verbose := flag.Bool("v", false, "Log every register access")
	flag.Usage = usage
	flag.Parse()

	log.SetFlags(0)
	log.SetPrefix("regctl: ")

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Traces are read without opening a backend.
	if args[0] == "trace" {
		if err := runTrace(os.Stdout, args[1:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *catalogs != "" {
		cfg.Catalogs = strings.Split(*catalogs, ",")
	}
	if *tracePath != "" {
		cfg.Trace.Path = *tracePath
	}
	if *strict {
		cfg.Strict = true
	}
	if *verbose {
		cfg.Trace.Verbose = true
	} else {
		// Backend lifecycle logs only with -v.
		log.SetOutput(io.Discard)
	}

	s, err := session.Open(cfg)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("Failed to open session: %v", err)
	}

	a := &app{s: s, out: os.Stdout}
	if args[0] == "shell" {
		err = a.shell()
	} else {
		err = a.run(args)
	}
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatal(err)
	}
}
