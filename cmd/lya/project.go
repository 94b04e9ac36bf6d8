package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chazu/lya/cache"
	"github.com/chazu/lya/compiler"
	"github.com/chazu/lya/compiler/hash"
	"github.com/chazu/lya/manifest"
	"github.com/chazu/lya/pkg/bytecode"
	"github.com/chazu/lya/server"
)

// project returns the manifest governing c.dir, or the defaults when
// there is no lya.toml above it.
func (c *cli) project() (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(c.dir)
	if err != nil {
		return nil, err
	}
	if m != nil {
		log.Debugf("using %s", filepath.Join(m.Dir, manifest.FileName))
		return m, nil
	}
	abs, err := filepath.Abs(c.dir)
	if err != nil {
		return nil, err
	}
	return manifest.Default(abs), nil
}

// sourcePath resolves a command-line file argument against c.dir, falling
// back to the project entry when none is given.
func (c *cli) sourcePath(m *manifest.Manifest, args []string) (string, error) {
	if len(args) > 1 {
		return "", fmt.Errorf("expected one source file, got %d", len(args))
	}
	if len(args) == 0 {
		entry := m.EntryPath()
		if _, err := os.Stat(entry); err != nil {
			return "", fmt.Errorf("no source file given and project entry %s: %w", entry, err)
		}
		return entry, nil
	}
	if filepath.IsAbs(args[0]) {
		return args[0], nil
	}
	return filepath.Join(c.dir, args[0]), nil
}

// compileError carries the compilation that failed so the caller can
// print its diagnostics.
type compileError struct {
	path string
	comp *compiler.Compilation
	err  error
}

func (e *compileError) Error() string {
	return fmt.Sprintf("%s: %s", e.path, e.err)
}

func (e *compileError) Unwrap() error {
	return e.err
}

// compileFile compiles the source at path, consulting the project's
// compile cache when useCache is set. Cache failures are logged and
// never fail the compilation.
func (c *cli) compileFile(ctx context.Context, m *manifest.Manifest, path string, useCache bool) (*bytecode.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	src := string(data)

	var store *cache.Store
	if useCache && m.Cache.Enabled {
		store, err = cache.Open(m.CachePath())
		if err != nil {
			log.Warningf("compile cache unavailable: %s", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	if store != nil {
		if key, ok := hash.HashSource(src); ok {
			prog, hit, err := store.Get(ctx, cache.Key(key))
			switch {
			case err != nil:
				log.Warningf("reading compile cache: %s", err)
			case hit:
				log.Debugf("cache hit for %s (%s)", path, cache.Key(key))
				return prog, nil
			}
		}
	}

	comp, err := compiler.Compile(src)
	if err != nil {
		return nil, &compileError{path: path, comp: comp, err: err}
	}
	log.Infof("compiled %s: %d instruction(s)", path, comp.Program.Len())

	if store != nil {
		key := cache.Key(hash.HashProgram(comp.AST))
		if err := store.Put(ctx, key, filepath.Base(path), comp.Program); err != nil {
			log.Warningf("writing compile cache: %s", err)
		}
	}
	return comp.Program, nil
}

// reportCompileError prints the diagnostics of a failed compilation, or
// the bare error when it is not a compilation failure.
func (c *cli) reportCompileError(err error) {
	var ce *compileError
	if errors.As(err, &ce) && ce.comp != nil {
		r := newFileReport(ce.path, ce.comp, ce.err)
		writeText(c.stderr, []fileReport{r}, c.color)
		return
	}
	c.errorf("%s", err)
}

const sampleProgram = `// Entry point of %s
dcl n int = 5;

fact: proc(n int) returns(int);
  if n <= 1 then return 1; fi
  return n * fact(n - 1);
end;

print("fact(", n, ") = ", fact(n));
`

// handleInit processes the `lya init` subcommand.
// Usage:
//
//	lya init            # project named after the directory
//	lya init myproject
func (c *cli) handleInit(args []string) int {
	fs := c.newFlagSet("init", "[name]")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	abs, err := filepath.Abs(c.dir)
	if err != nil {
		c.errorf("%s", err)
		return exitFailure
	}
	m := manifest.Default(abs)
	m.Project.Name = filepath.Base(abs)
	if fs.NArg() > 0 {
		m.Project.Name = fs.Arg(0)
	}
	m.Project.Version = "0.1.0"

	if err := m.Save(abs); err != nil {
		c.errorf("%s", err)
		return exitFailure
	}
	entry := m.EntryPath()
	if _, err := os.Stat(entry); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(entry, []byte(fmt.Sprintf(sampleProgram, m.Project.Name)), 0644); err != nil {
			c.errorf("%s", err)
			return exitFailure
		}
	}
	fmt.Fprintf(c.stdout, "Created %s\n", filepath.Join(abs, manifest.FileName))
	return exitOK
}

// handleCache processes the `lya cache` subcommand.
// Usage:
//
//	lya cache list
//	lya cache prune -older-than 168h
//	lya cache clear
func (c *cli) handleCache(ctx context.Context, args []string) int {
	if len(args) == 0 {
		c.errorf("cache requires one of: list, prune, clear")
		return exitUsage
	}
	sub := args[0]
	fs := c.newFlagSet("cache "+sub, "")
	olderThan := fs.Duration("older-than", 30*24*time.Hour, "Prune entries unused for this long")
	if err := fs.Parse(args[1:]); err != nil {
		return exitUsage
	}

	m, err := c.project()
	if err != nil {
		c.errorf("loading manifest: %s", err)
		return exitFailure
	}
	store, err := cache.Open(m.CachePath())
	if err != nil {
		c.errorf("%s", err)
		return exitFailure
	}
	defer store.Close()

	switch sub {
	case "list":
		entries, err := store.Entries(ctx)
		if err != nil {
			c.errorf("%s", err)
			return exitFailure
		}
		w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tNAME\tSIZE\tLAST USED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.Key.String()[:12], e.Name, e.Size, e.LastUsed.Format(time.RFC3339))
		}
		w.Flush()
	case "prune", "clear":
		cutoff := time.Now().Add(-*olderThan)
		if sub == "clear" {
			cutoff = time.Now().Add(time.Hour)
		}
		n, err := store.Prune(ctx, cutoff)
		if err != nil {
			c.errorf("%s", err)
			return exitFailure
		}
		fmt.Fprintf(c.stdout, "Removed %d entr%s from %s\n", n, plural(n, "y", "ies"), store.Path())
	default:
		c.errorf("unknown cache command %q", sub)
		return exitUsage
	}
	return exitOK
}

// handleLSP processes the `lya lsp` subcommand. Logging must not go to
// stdout, which carries the protocol.
func (c *cli) handleLSP(args []string) int {
	fs := c.newFlagSet("lsp", "")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if err := server.NewLSP(version).Run(); err != nil {
		c.errorf("language server: %s", err)
		return exitFailure
	}
	return exitOK
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func trimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}
