package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chazu/lya/pkg/bytecode"
)

// handleBuild processes the `lya build` subcommand.
// Usage:
//
//	lya build              # <entry>.lvm next to the project entry
//	lya build -o out.lvm prog.lya
//	lya build -S prog.lya  # assembler text instead of bytecode
func (c *cli) handleBuild(ctx context.Context, args []string) int {
	fs := c.newFlagSet("build", "[-o output] [-S] [file.lya]")
	output := fs.String("o", "", "Output path (default: source name with .lvm or .asm)")
	asm := fs.Bool("S", false, "Write assembler text instead of encoded bytecode")
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
	prog, err := c.compileFile(ctx, m, path, true)
	if err != nil {
		c.reportCompileError(err)
		return exitFailure
	}

	var data []byte
	ext := ".lvm"
	if *asm {
		data = []byte(assembly(prog))
		ext = ".asm"
	} else {
		data, err = bytecode.MarshalProgram(prog)
		if err != nil {
			c.errorf("%s", err)
			return exitFailure
		}
	}

	out := *output
	if out == "" {
		out = trimExt(path) + ext
	} else if !filepath.IsAbs(out) {
		out = filepath.Join(c.dir, out)
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		c.errorf("%s", err)
		return exitFailure
	}
	log.Infof("wrote %s (%d instruction(s), %d bytes)", out, prog.Len(), len(data))
	return exitOK
}

// handleDis processes the `lya dis` subcommand: it prints the listing of a
// source file or of an encoded program.
func (c *cli) handleDis(ctx context.Context, args []string) int {
	fs := c.newFlagSet("dis", "[file.lya|file.lvm]")
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

	var prog *bytecode.Program
	if data, err := os.ReadFile(path); err == nil && bytes.HasPrefix(data, bytecode.ProgramMagic) {
		prog, err = bytecode.UnmarshalProgram(data)
		if err != nil {
			c.errorf("%s: %s", path, err)
			return exitFailure
		}
	} else {
		prog, err = c.compileFile(ctx, m, path, false)
		if err != nil {
			c.reportCompileError(err)
			return exitFailure
		}
	}
	fmt.Fprint(c.stdout, prog.DisassembleWithName(filepath.Base(path)))
	return exitOK
}

// assembly renders prog as text that bytecode.Assemble reads back.
func assembly(prog *bytecode.Program) string {
	var sb strings.Builder
	for _, s := range prog.Strings {
		sb.WriteString(".string " + strconv.Quote(s) + "\n")
	}
	for _, line := range prog.DisassembleToLines() {
		sb.WriteString(line + "\n")
	}
	return sb.String()
}
