package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/loggerimport/internal/config"
	"github.com/JonMunkholm/loggerimport/internal/importer"
	"github.com/JonMunkholm/loggerimport/internal/logging"
	"github.com/JonMunkholm/loggerimport/internal/metadata"
	"github.com/JonMunkholm/loggerimport/internal/record"
)

func (e env) importFiles(args []string) int {
	fs := e.newFlagSet("import", "[options] PATH...")
	configPath := fs.String("config", config.DefaultFile, "configuration file (optional)")
	mdDir := fs.String("metadata", "", "metadata directory (default METADATA_DIR)")
	encoding := fs.String("encoding", "", "input encoding: ascii, utf8 or latin1 (default IMPORT_ENCODING)")
	strict := fs.Bool("strict", false, "fail rows with untyped columns")
	ignoreUnknown := fs.Bool("ignore-unknown-tables", false, "skip files of tables the logger does not configure")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return exitUsage
	}

	// A missing .env is fine; the environment may be complete.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitFailure
	}
	logger := logging.New(e.stderr, cfg.Logging.Level, cfg.Logging.Format)

	dir := cfg.Metadata.Dir
	if *mdDir != "" {
		dir = *mdDir
	}
	mds, err := metadata.NewLoader(metadata.WithLogger(logger)).LoadDir(dir)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitFailure
	}
	if len(mds) == 0 {
		fmt.Fprintf(e.stderr, "Error: no metadata files in %s\n", dir)
		return exitFailure
	}
	coll, err := metadata.CollectLoggers(mds)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %s: %v\n", dir, err)
		return exitFailure
	}

	opts := cfg.Import.Options()
	opts.Logger = logger
	if *encoding != "" {
		enc, err := importer.ParseEncoding(*encoding)
		if err != nil {
			fmt.Fprintf(e.stderr, "Error: %v\n", err)
			return exitUsage
		}
		opts.Encoding = enc
	}
	if *strict {
		opts.CheckMode = record.RequireTypes
	}
	if *ignoreUnknown {
		opts.IgnoreNoTableMatch = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Import.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Import.Timeout)
		defer cancel()
	}

	res, err := importer.New(coll.Metadatas(), opts).Run(ctx, fs.Args())
	if res == nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitFailure
	}

	if *asJSON {
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(e.stderr, "Error: %v\n", err)
			return exitFailure
		}
	} else {
		e.printResult(res)
	}

	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitFailure
	}
	if _, _, failed := res.Counts(); failed > 0 {
		return exitFailure
	}
	return exitOK
}

func (e env) printResult(res *importer.Result) {
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tTABLE\tROWS\tSKIPPED\tTYPE ERRORS\tTIME GOOD/UNUSUAL/BAD\tSTATUS")
	for _, f := range res.Files {
		tq := "-"
		if f.TimeQuality != nil {
			tq = fmt.Sprintf("%d/%d/%d", f.TimeQuality.Good, f.TimeQuality.Unusual, f.TimeQuality.Bad)
		}
		status := "ok"
		switch {
		case f.Failed():
			status = importer.FormatUserError(f.Err)
		case f.Skipped:
			status = "skipped: " + f.SkipReason
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n", f.Name, f.Table, f.Rows, f.SkippedRows, f.TypeErrors, tq, status)
	}
	tw.Flush()

	imported, skipped, failed := res.Counts()
	fmt.Fprintf(e.stdout, "\nimport %s: %d imported, %d skipped, %d failed in %s\n",
		res.ID, imported, skipped, failed, res.Duration.Round(time.Millisecond))
}
