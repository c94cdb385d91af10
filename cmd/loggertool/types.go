package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/loggerimport/internal/datatypes"
)

// eachLine calls fn with every trimmed, non-blank line of the files, or of
// stdin when there are none. where is "file:line".
func (e env) eachLine(files []string, fn func(where, line string)) error {
	scan := func(name string, r io.Reader) error {
		sc := bufio.NewScanner(r)
		n := 0
		for sc.Scan() {
			n++
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			fn(fmt.Sprintf("%s:%d", name, n), line)
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}

	if len(files) == 0 {
		return scan("<stdin>", e.stdin)
	}
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		err = scan(name, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (e env) infer(args []string) int {
	fs := e.newFlagSet("infer", "[-pg] [FILE...]")
	pg := fs.Bool("pg", false, "also print the Postgres column type")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	inf := datatypes.NewInferrer(datatypes.WithDeferredFailure())
	if err := e.eachLine(fs.Args(), func(_, v string) { inf.Send(v) }); err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitFailure
	}
	if inf.Count() == 0 {
		fmt.Fprintln(e.stderr, "FAIL: no values to infer a type from")
		return exitFailure
	}

	t, err := inf.Finish()
	if err != nil {
		fmt.Fprintf(e.stderr, "FAIL: I was not able to infer a type: %v\n", err)
		return exitFailure
	}
	if *pg && t.PgType() != "" {
		fmt.Fprintf(e.stdout, "%s\t%s\n", t, t.PgType())
	} else {
		fmt.Fprintln(e.stdout, t)
	}
	return exitOK
}

func (e env) check(args []string) int {
	fs := e.newFlagSet("check", "TYPE [FILE...]")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return exitUsage
	}

	t, err := datatypes.Parse(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitUsage
	}

	var checked, failed int
	err = e.eachLine(fs.Args()[1:], func(where, v string) {
		checked++
		if !t.Check(v) {
			failed++
			fmt.Fprintf(e.stderr, "FAIL: %s: %q is not a %s\n", where, v, t)
		}
	})
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitFailure
	}
	if failed > 0 {
		fmt.Fprintf(e.stderr, "%d of %d values failed\n", failed, checked)
		return exitFailure
	}
	fmt.Fprintf(e.stdout, "%d values ok\n", checked)
	return exitOK
}
