package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chazu/lya/compiler"
)

const (
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiBold   = "\x1b[1m"
	ansiReset  = "\x1b[0m"
)

// fileReport is the outcome of checking one source file.
type fileReport struct {
	File        string           `yaml:"file"`
	OK          bool             `yaml:"ok"`
	ParseErrors []string         `yaml:"parse_errors,omitempty"`
	Issues      []compiler.Issue `yaml:"issues,omitempty"`
	Error       string           `yaml:"error,omitempty"`
}

func newFileReport(path string, comp *compiler.Compilation, err error) fileReport {
	r := fileReport{File: path, OK: err == nil}
	if comp != nil {
		r.ParseErrors = comp.ParseErrors
		r.Issues = comp.Issues
	}
	if err != nil && len(r.ParseErrors) == 0 && len(r.Issues) == 0 {
		r.Error = err.Error()
	}
	return r
}

// handleCheck processes the `lya check` subcommand.
// Usage:
//
//	lya check                       # project entry
//	lya check a.lya b.lya
//	lya check -format yaml src/*.lya
func (c *cli) handleCheck(args []string) int {
	fs := c.newFlagSet("check", "[-format text|yaml] [files...]")
	format := fs.String("format", "text", "Report format: text or yaml")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *format != "text" && *format != "yaml" {
		c.errorf("unknown format %q", *format)
		return exitUsage
	}

	files := fs.Args()
	if len(files) == 0 {
		m, err := c.project()
		if err != nil {
			c.errorf("loading manifest: %s", err)
			return exitFailure
		}
		path, err := c.sourcePath(m, nil)
		if err != nil {
			c.errorf("%s", err)
			return exitUsage
		}
		files = []string{path}
	}

	reports := make([]fileReport, 0, len(files))
	failed := false
	for _, file := range files {
		r := c.checkFile(file)
		failed = failed || !r.OK
		reports = append(reports, r)
	}

	if *format == "yaml" {
		enc := yaml.NewEncoder(c.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			c.errorf("%s", err)
			return exitFailure
		}
		enc.Close()
	} else {
		writeText(c.stdout, reports, c.color)
	}

	if failed {
		return exitFailure
	}
	return exitOK
}

func (c *cli) checkFile(file string) fileReport {
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fileReport{File: file, Error: err.Error()}
	}
	comp, err := compiler.Compile(string(data))
	return newFileReport(file, comp, err)
}

// writeText prints one line per diagnostic in file:line: form, followed
// by a summary.
func writeText(w io.Writer, reports []fileReport, color bool) {
	paint := func(code, s string) string {
		if !color {
			return s
		}
		return code + s + ansiReset
	}

	problems := 0
	for _, r := range reports {
		for _, msg := range r.ParseErrors {
			line, text := splitParseError(msg)
			fmt.Fprintf(w, "%s:%d: %s %s\n", paint(ansiBold, r.File), line, paint(ansiRed, "syntax error:"), text)
			problems++
		}
		for _, is := range r.Issues {
			fmt.Fprintf(w, "%s:%d: %s %s\n", paint(ansiBold, r.File), is.Line, paint(ansiRed, is.Kind.String()+":"), is.Message)
			problems++
		}
		if r.Error != "" {
			fmt.Fprintf(w, "%s: %s %s\n", paint(ansiBold, r.File), paint(ansiRed, "error:"), r.Error)
			problems++
		}
	}
	if problems > 0 {
		fmt.Fprintf(w, "%s\n", paint(ansiYellow, fmt.Sprintf("%d problem(s) in %d file(s)", problems, len(reports))))
	}
}

// splitParseError separates the "line N: " prefix of a parse error.
func splitParseError(msg string) (int, string) {
	var line int
	if _, err := fmt.Sscanf(msg, "line %d:", &line); err != nil {
		return 0, msg
	}
	if _, text, ok := strings.Cut(msg, ": "); ok {
		return line, text
	}
	return line, msg
}
