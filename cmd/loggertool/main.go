// Command loggertool works with logger metadata and data files from the
// command line: it infers and checks data types, validates and dumps
// metadata, and imports files.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// env is what a command may touch besides its arguments.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	e := env{stdin: stdin, stdout: stdout, stderr: stderr}
	if len(args) < 1 {
		printUsage(stderr)
		return exitUsage
	}

	command, args := args[0], args[1:]
	switch command {
	case "infer":
		return e.infer(args)
	case "check":
		return e.check(args)
	case "metadata":
		return e.metadata(args)
	case "import":
		return e.importFiles(args)
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return exitUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `loggertool - logger metadata and data file tool

Usage: loggertool <command> [options] [args]

Commands:
  infer [FILE...]              Infer the narrowest data type of the values
                               (one per line) in the files, or stdin
  check TYPE [FILE...]         Check that every value conforms to TYPE
  metadata [-dump] PATH...     Load and validate metadata files or directories
  import [options] PATH...     Import logger files and directories
  help                         Show this help message

Run 'loggertool <command> -h' for the options of a command.
`)
}

// newFlagSet returns a flag set reporting to e.stderr.
func (e env) newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.Usage = func() {
		fmt.Fprintf(e.stderr, "Usage: loggertool %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}
