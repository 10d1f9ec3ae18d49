package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fkcurrie/regio/internal/session"
	"github.com/fkcurrie/regio/internal/trace"
	"github.com/fkcurrie/regio/pkg/diagram"
)

const commandHelp = `  list [GROUP]                     List registers, optionally of one group
  show REG                         Describe a register and its fields
  read REG                         Read a register and decode its fields
  write REG VALUE                  Write a whole register
  get REG FIELD                    Read one field
  set REG FIELD VALUE              Write one field, keeping the others
  modify REG FIELD=VALUE...        Write several fields with one read and one write
  diagram [-o FILE] [-value V] [-scale S] REG
                                   Draw a register as SVG, or PNG if FILE ends in .png
  lint                             Report overlapping fields and shared addresses
  trace FILE                       Print a recorded access trace
  shell                            Start an interactive shell
`

var errUsage = errors.New("usage")

// app runs commands against an open session.
type app struct {
	s   *session.Session
	out io.Writer
}

func (a *app) run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "list", "ls":
		return a.list(args)
	case "show":
		return a.show(args)
	case "read", "r":
		return a.read(args)
	case "write", "w":
		return a.write(args)
	case "get":
		return a.get(args)
	case "set":
		return a.set(args)
	case "modify", "mod":
		return a.modify(args)
	case "diagram":
		return a.diagram(args)
	case "lint":
		return a.lint()
	case "trace":
		return runTrace(a.out, args)
	case "help":
		fmt.Fprint(a.out, commandHelp)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func need(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s", errUsage, usage)
	}
	return nil
}

func (a *app) list(args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("%w: list [GROUP]", errUsage)
	}
	for _, d := range a.s.Catalog.Registers() {
		if len(args) == 1 && !strings.EqualFold(d.Group, args[0]) {
			continue
		}
		fmt.Fprintf(a.out, "%-18s %-24s %-7s %-3s %s\n", d.Name, d.Where(), d.Width, d.Access, d.Description)
	}
	return nil
}

func (a *app) show(args []string) error {
	if err := need(args, 1, "show REG"); err != nil {
		return err
	}
	d, err := a.s.Register(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s  %s\n", d.Name, d.Description)
	if d.Group != "" {
		fmt.Fprintf(a.out, "  group:  %s\n", d.Group)
	}
	fmt.Fprintf(a.out, "  at:     %s\n", d.Where())
	fmt.Fprintf(a.out, "  width:  %s\n", d.Width)
	fmt.Fprintf(a.out, "  access: %s\n", d.Access)
	fmt.Fprintf(a.out, "  reset:  %#x\n", d.Reset)
	for i := range d.Fields {
		f := &d.Fields[i]
		fmt.Fprintf(a.out, "  %-9s %-16s %-3s %s\n", f.Range(), f.Name, f.Access, f.Description)
		for _, name := range session.ValueNames(f) {
			fmt.Fprintf(a.out, "  %9s   %s = %#x\n", "", name, f.Values[name])
		}
	}
	return nil
}

func (a *app) read(args []string) error {
	if err := need(args, 1, "read REG"); err != nil {
		return err
	}
	d, err := a.s.Register(args[0])
	if err != nil {
		return err
	}
	v, err := a.s.Read(d.Name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s = %#x\n", d.Name, v)
	for _, r := range session.Decode(d, v) {
		if !r.Field.Access.CanRead() {
			continue
		}
		fmt.Fprintf(a.out, "  %-9s %-16s %s\n", r.Field.Range(), r.Field.Name, formatValue(r.Value, r.Name))
	}
	return nil
}

func formatValue(v uint64, name string) string {
	if name != "" {
		return fmt.Sprintf("%#x (%s)", v, name)
	}
	return fmt.Sprintf("%#x", v)
}

func (a *app) write(args []string) error {
	if err := need(args, 2, "write REG VALUE"); err != nil {
		return err
	}
	return a.s.Write(args[0], args[1])
}

func (a *app) get(args []string) error {
	if err := need(args, 2, "get REG FIELD"); err != nil {
		return err
	}
	d, err := a.s.Register(args[0])
	if err != nil {
		return err
	}
	v, err := a.s.Get(d.Name, args[1])
	if err != nil {
		return err
	}
	var name string
	for i := range d.Fields {
		if strings.EqualFold(d.Fields[i].Name, args[1]) {
			name, _ = d.Fields[i].ValueName(v)
		}
	}
	fmt.Fprintln(a.out, formatValue(v, name))
	return nil
}

func (a *app) set(args []string) error {
	if err := need(args, 3, "set REG FIELD VALUE"); err != nil {
		return err
	}
	v, err := a.s.Set(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %#x\n", v)
	return nil
}

func (a *app) modify(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: modify REG FIELD=VALUE...", errUsage)
	}
	v, err := a.s.Modify(args[0], args[1:])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %#x\n", v)
	return nil
}

func (a *app) diagram(args []string) error {
	fs := flag.NewFlagSet("diagram", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	out := fs.String("o", "", "Output file; .png renders PNG, anything else SVG")
	value := fs.String("value", "", "Label fields with this register value, or \"read\" to read it")
	scale := fs.Float64("scale", 2, "PNG scale factor")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := need(fs.Args(), 1, "diagram [-o FILE] [-value V] [-scale S] REG"); err != nil {
		return err
	}
	d, err := a.s.Register(fs.Arg(0))
	if err != nil {
		return err
	}

	var opt diagram.Options
	switch *value {
	case "":
	case "read":
		v, err := a.s.Read(d.Name)
		if err != nil {
			return err
		}
		opt.Value = &v
	default:
		v, err := session.ParseNumber(*value)
		if err != nil {
			return err
		}
		opt.Value = &v
	}

	if *out == "" {
		return diagram.SVG(a.out, d, opt)
	}
	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(*out), ".png") {
		err = diagram.PNG(f, d, opt, *scale)
	} else {
		err = diagram.SVG(f, d, opt)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %s\n", *out)
	return nil
}

func (a *app) lint() error {
	findings := a.s.Lint()
	for _, f := range findings {
		fmt.Fprintln(a.out, f)
	}
	if len(findings) == 0 {
		fmt.Fprintln(a.out, "no findings")
	}
	return nil
}

func runTrace(out io.Writer, args []string) error {
	if err := need(args, 1, "trace FILE"); err != nil {
		return err
	}
	r, err := trace.NewReader(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	h := r.Header()
	fmt.Fprintf(out, "session %s started %s, backend %s, catalog %s\n",
		h.Session, h.Start.Format("2006-01-02 15:04:05"), h.Backend, h.Catalog)
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, e)
	}
}
