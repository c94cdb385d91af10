package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/loggerimport/internal/logging"
	"github.com/JonMunkholm/loggerimport/internal/metadata"
)

func (e env) metadata(args []string) int {
	fs := e.newFlagSet("metadata", "[-dump] [-format yaml|json] PATH...")
	dump := fs.Bool("dump", false, "dump the loaded metadata")
	format := fs.String("format", "yaml", "dump format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return exitUsage
	}
	if *format != "yaml" && *format != "json" {
		fmt.Fprintf(e.stderr, "Error: unknown format %q\n", *format)
		return exitUsage
	}

	loader := metadata.NewLoader(metadata.WithLogger(logging.Discard()))
	var (
		mds    []*metadata.Metadata
		status = exitOK
	)
	for _, path := range fs.Args() {
		loaded, warnings, err := loadPath(loader, path)
		if err != nil {
			fmt.Fprintf(e.stderr, "FAIL: %s: %v\n", path, err)
			status = exitFailure
			continue
		}
		for _, w := range warnings {
			fmt.Fprintf(e.stderr, "WARN: %s: %s\n", path, w)
		}
		for _, md := range loaded {
			fmt.Fprintf(e.stdout, "ok: %s (%d tables)\n", md.LoggerName, len(md.Tables()))
		}
		mds = append(mds, loaded...)
	}

	// Logger names must be unique across all paths.
	if len(mds) > 1 {
		if _, err := metadata.CollectLoggers(mds); err != nil {
			fmt.Fprintf(e.stderr, "FAIL: %v\n", err)
			status = exitFailure
		}
	}

	if *dump && len(mds) > 0 {
		infos := make([]metadata.LoggerInfo, len(mds))
		for i, md := range mds {
			infos[i] = md.Info()
		}
		if err := e.writeInfos(infos, *format); err != nil {
			fmt.Fprintf(e.stderr, "Error: %v\n", err)
			return exitFailure
		}
	}
	return status
}

// loadPath loads one metadata file or every metadata file of a directory.
func loadPath(loader *metadata.Loader, path string) ([]*metadata.Metadata, []metadata.Warning, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	if fi.IsDir() {
		mds, err := loader.LoadDir(path)
		return mds, nil, err
	}
	md, warnings, err := loader.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return []*metadata.Metadata{md}, warnings, nil
}

func (e env) writeInfos(infos []metadata.LoggerInfo, format string) error {
	if strings.EqualFold(format, "json") {
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	enc := yaml.NewEncoder(e.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(infos); err != nil {
		return err
	}
	return enc.Close()
}
