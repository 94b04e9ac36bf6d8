// LYA CLI - compiles LYA programs to LVM bytecode and runs them
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var version = "0.1.0"

var log = commonlog.GetLogger("lya.cli")

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	debug := flag.Bool("debug", false, "Debug logging (implies -v)")
	logFile := flag.String("log", "", "Write log output to this file instead of stderr")
	chdir := flag.String("C", "", "Run as if started in this directory")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lya [options] <command> [arguments]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles LYA programs to LVM bytecode and runs them.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n")
		fmt.Fprintf(os.Stderr, "  run [file.lya]           Compile and run (default: the project entry)\n")
		fmt.Fprintf(os.Stderr, "  build [-o out] [file]    Compile to an .lvm bytecode file\n")
		fmt.Fprintf(os.Stderr, "  exec file.lvm|file.asm   Run compiled bytecode or assembler text\n")
		fmt.Fprintf(os.Stderr, "  check [files...]         Report diagnostics (-format text|yaml)\n")
		fmt.Fprintf(os.Stderr, "  dis [file]               Print the LVM instruction listing\n")
		fmt.Fprintf(os.Stderr, "  init [name]              Create lya.toml and main.lya\n")
		fmt.Fprintf(os.Stderr, "  cache list|prune|clear   Manage the compile cache\n")
		fmt.Fprintf(os.Stderr, "  lsp                      Start the language server on stdio\n")
		fmt.Fprintf(os.Stderr, "  version                  Print the version\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lya run hello.lya\n")
		fmt.Fprintf(os.Stderr, "  lya build -o hello.lvm hello.lya && lya exec hello.lvm\n")
		fmt.Fprintf(os.Stderr, "  lya check -format yaml src/*.lya\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	if *debug {
		verbosity = 2
	}
	var logPath *string
	if *logFile != "" {
		logPath = logFile
	}
	commonlog.Configure(verbosity, logPath)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(exitUsage)
	}

	dir := *chdir
	if dir == "" {
		dir = "."
	}
	app := &cli{
		dir:    dir,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		color:  isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
	}

	// SIGINT cancels a running program between instructions
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.dispatch(ctx, args[0], args[1:])
	stop()
	os.Exit(code)
}

// cli holds the streams and settings shared by every subcommand.
type cli struct {
	dir    string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	color  bool
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) int {
	log.Debugf("command %s %v", cmd, args)
	switch cmd {
	case "run":
		return c.handleRun(ctx, args)
	case "build":
		return c.handleBuild(ctx, args)
	case "exec":
		return c.handleExec(ctx, args)
	case "check":
		return c.handleCheck(args)
	case "dis":
		return c.handleDis(ctx, args)
	case "init":
		return c.handleInit(args)
	case "cache":
		return c.handleCache(ctx, args)
	case "lsp":
		return c.handleLSP(args)
	case "version":
		fmt.Fprintf(c.stdout, "lya %s\n", version)
		return exitOK
	}
	c.errorf("unknown command %q (run 'lya -h' for usage)", cmd)
	return exitUsage
}

// errorf prints an error line to stderr, in red when stderr is a terminal.
func (c *cli) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if c.color {
		fmt.Fprintf(c.stderr, "%serror:%s %s\n", ansiRed, ansiReset, msg)
		return
	}
	fmt.Fprintf(c.stderr, "error: %s\n", msg)
}

// newFlagSet creates a subcommand flag set that reports to stderr instead
// of exiting the process.
func (c *cli) newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: lya %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}
