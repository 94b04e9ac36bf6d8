package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/lya/manifest"
	"github.com/chazu/lya/pkg/bytecode"
)

// machineFlags are the VM overrides shared by run and exec.
type machineFlags struct {
	memory   *int
	maxSteps *int
	trace    *bool
	stack    *bool
}

func addMachineFlags(fs *flag.FlagSet) machineFlags {
	return machineFlags{
		memory:   fs.Int("memory", 0, "Words of VM memory (default from lya.toml, else 65536)"),
		maxSteps: fs.Int("max-steps", 0, "Abort after this many instructions (0 = unlimited)"),
		trace:    fs.Bool("trace", false, "Log every executed instruction at debug level"),
		stack:    fs.Bool("stack", false, "Print the final stack contents"),
	}
}

// config merges the manifest's [vm] table with flags given explicitly on
// the command line.
func (f machineFlags) config(fs *flag.FlagSet, m *manifest.Manifest) bytecode.Config {
	cfg := m.MachineConfig()
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "memory":
			cfg.MemorySize = *f.memory
		case "max-steps":
			cfg.MaxSteps = *f.maxSteps
		case "trace":
			cfg.Trace = *f.trace
		}
	})
	return cfg
}

// handleRun processes the `lya run` subcommand.
// Usage:
//
//	lya run                 # project entry from lya.toml
//	lya run prog.lya
//	lya run -max-steps 1000000 prog.lya
func (c *cli) handleRun(ctx context.Context, args []string) int {
	fs := c.newFlagSet("run", "[flags] [file.lya]")
	mf := addMachineFlags(fs)
	noCache := fs.Bool("no-cache", false, "Bypass the compile cache")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	m, err := c.project()
	if err != nil {
		c.errorf("loading manifest: %s", err)
		return exitFailure
	}
	path, err := c.sourcePath(m, fs.Args())
	if err != nil {
		c.errorf("%s", err)
		return exitUsage
	}
	prog, err := c.compileFile(ctx, m, path, !*noCache)
	if err != nil {
		c.reportCompileError(err)
		return exitFailure
	}
	return c.execute(ctx, path, prog, mf.config(fs, m), *mf.stack)
}

// handleExec processes the `lya exec` subcommand. The file is either an
// encoded program written by `lya build` or LVM assembler text.
func (c *cli) handleExec(ctx context.Context, args []string) int {
	fs := c.newFlagSet("exec", "[flags] file.lvm|file.asm")
	mf := addMachineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}

	m, err := c.project()
	if err != nil {
		c.errorf("loading manifest: %s", err)
		return exitFailure
	}
	path := fs.Arg(0)
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.dir, path)
	}
	prog, err := loadBytecode(path)
	if err != nil {
		c.errorf("%s", err)
		return exitFailure
	}
	return c.execute(ctx, path, prog, mf.config(fs, m), *mf.stack)
}

// loadBytecode reads an encoded program, or assembles the file when it
// does not start with the program magic.
func loadBytecode(path string) (*bytecode.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(data, bytecode.ProgramMagic) {
		prog, err := bytecode.UnmarshalProgram(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return prog, nil
	}
	prog, err := bytecode.Assemble(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// execute runs prog on the console streams and reports runtime failures
// against the source line that produced the failing instruction.
func (c *cli) execute(ctx context.Context, path string, prog *bytecode.Program, cfg bytecode.Config, showStack bool) int {
	vm := bytecode.NewVMWithIO(cfg, c.stdin, c.stdout)
	stack, err := vm.Run(ctx, prog)
	log.Debugf("%s: %d step(s)", path, vm.Steps())
	if showStack {
		for i, v := range stack {
			fmt.Fprintf(c.stdout, "M[%d] = %s\n", i, v)
		}
	}
	if err == nil {
		return exitOK
	}

	var rt *bytecode.RuntimeError
	switch {
	case errors.As(err, &rt):
		if line := prog.LineOf(rt.PC); line > 0 {
			c.errorf("%s:%d: %s", path, line, rt)
		} else {
			c.errorf("%s: %s", path, rt)
		}
	case errors.Is(err, context.Canceled):
		c.errorf("%s: interrupted after %d step(s)", path, vm.Steps())
	default:
		c.errorf("%s: %s", path, err)
	}
	return exitFailure
}
