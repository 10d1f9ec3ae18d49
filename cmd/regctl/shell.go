package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

func (a *app) completer() *readline.PrefixCompleter {
	names := func(string) []string { return a.s.Catalog.Names() }
	regItem := func(cmd string) readline.PrefixCompleterInterface {
		return readline.PcItem(cmd, readline.PcItemDynamic(names))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("list"),
		regItem("show"),
		regItem("read"),
		regItem("write"),
		regItem("get"),
		regItem("set"),
		regItem("modify"),
		regItem("diagram"),
		readline.PcItem("lint"),
		readline.PcItem("trace"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

// shell runs commands read from the terminal until EOF or "exit".
func (a *app) shell() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "regctl> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    a.completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	out := a.out
	a.out = rl.Stdout()
	defer func() { a.out = out }()

	fmt.Fprintf(a.out, "%s catalog, %d registers. Type help for commands.\n", a.s.Catalog.Name, a.s.Catalog.Len())
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		if !a.exec(rl.Stderr(), line) {
			return nil
		}
	}
}

// exec runs one shell line and reports whether the shell should go on.
func (a *app) exec(errOut io.Writer, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	switch strings.ToLower(parts[0]) {
	case "exit", "quit", "q":
		return false
	case "shell":
		fmt.Fprintln(errOut, "Already in the shell")
		return true
	}
	parts[0] = strings.ToLower(parts[0])
	if err := a.run(parts); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(errOut, "Usage: %s\n", strings.TrimPrefix(err.Error(), errUsage.Error()+": "))
		} else {
			fmt.Fprintf(errOut, "Error: %v\n", err)
		}
	}
	return true
}
