// Package importer imports batches of logger files.
//
// Each file is detected, decoded, resolved against the loaded metadata and
// read record by record. Every record is type checked and converted to UTC,
// and the import reports row counts, type check failures and quality
// summaries of the timestamp column and the numeric columns.
//
// Files are independent: a failure is recorded in that file's result and
// the batch carries on. Files are processed concurrently with no ordering
// between them.
package importer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/loggerimport/internal/datatypes"
	"github.com/JonMunkholm/loggerimport/internal/metadata"
	"github.com/JonMunkholm/loggerimport/internal/quality"
	"github.com/JonMunkholm/loggerimport/internal/record"
	"github.com/JonMunkholm/loggerimport/internal/toa5"
)

var (
	// ErrUnsupportedFile is returned for files that are neither TOA5 nor CSV.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrCSVNotImplemented is returned for files detected as plain CSV.
	ErrCSVNotImplemented = errors.New("CSV import is not implemented")

	// ErrEmptyFile is returned for files without any content.
	ErrEmptyFile = errors.New("empty file")
)

// DefaultMaxTypeErrorSamples is the number of type check messages kept per
// file. All failures are counted.
const DefaultMaxTypeErrorSamples = 20

// Options configure an Importer.
type Options struct {
	Encoding Encoding

	// MaxFileSize limits the raw size of each file; 0 disables the limit.
	MaxFileSize int64

	// Concurrency bounds the files imported at once by Run.
	Concurrency int

	// IgnoreNoTableMatch skips files of tables the logger does not
	// configure instead of failing them. Tables in the logger's
	// ignore_tables are always skipped.
	IgnoreNoTableMatch bool

	CheckMode record.CheckMode

	MaxTypeErrorSamples int

	Classifier *quality.Classifier
	Logger     *slog.Logger
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Encoding:            EncodingUTF8,
		Concurrency:         DefaultMaxConcurrentImports,
		CheckMode:           record.SkipUntyped,
		MaxTypeErrorSamples: DefaultMaxTypeErrorSamples,
	}
}

// FileResult is the outcome of importing one file. Err is set when the
// file failed; Error carries its user message.
type FileResult struct {
	Name        string                     `json:"name"`
	FileType    string                     `json:"file_type"`
	Table       string                     `json:"table,omitempty"`
	Bytes       int64                      `json:"bytes"`
	Rows        int                        `json:"rows"`
	SkippedRows int                        `json:"skipped_rows"`
	TypeErrors  int                        `json:"type_errors"`
	Samples     []string                   `json:"type_error_samples,omitempty"`
	First       *time.Time                 `json:"first,omitempty"`
	Last        *time.Time                 `json:"last,omitempty"`
	TimeQuality *quality.Summary           `json:"time_quality,omitempty"`
	Columns     map[string]quality.Summary `json:"columns,omitempty"`
	Skipped     bool                       `json:"skipped"`
	SkipReason  string                     `json:"skip_reason,omitempty"`
	Err         error                      `json:"-"`
	Error       *UserMessage               `json:"error,omitempty"`
}

// Failed reports whether the file failed.
func (f *FileResult) Failed() bool { return f.Err != nil }

func (f *FileResult) fail(err error) {
	f.Err = err
	msg := MapError(err)
	f.Error = &msg
}

// Result is the outcome of one import run.
type Result struct {
	ID       uuid.UUID     `json:"id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Files    []FileResult  `json:"files"`
}

// Counts returns the number of imported, skipped and failed files.
func (r *Result) Counts() (imported, skipped, failed int) {
	for i := range r.Files {
		switch f := &r.Files[i]; {
		case f.Failed():
			failed++
		case f.Skipped:
			skipped++
		default:
			imported++
		}
	}
	return imported, skipped, failed
}

// Importer imports logger files against a fixed set of metadata.
type Importer struct {
	mds    []*metadata.Metadata
	opts   Options
	logger *slog.Logger
}

// New returns an importer. Zero fields of opts take their defaults.
func New(mds []*metadata.Metadata, opts Options) *Importer {
	def := DefaultOptions()
	if opts.Encoding == "" {
		opts.Encoding = def.Encoding
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.MaxTypeErrorSamples <= 0 {
		opts.MaxTypeErrorSamples = def.MaxTypeErrorSamples
	}
	if opts.Classifier == nil {
		opts.Classifier = quality.DefaultClassifier()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{mds: slices.Clone(mds), opts: opts, logger: logger}
}

// WithLogger returns a copy of im that logs to logger.
func (im *Importer) WithLogger(logger *slog.Logger) *Importer {
	c := *im
	c.logger = logger
	return &c
}

// Metadata returns the loggers the importer resolves files against.
func (im *Importer) Metadata() []*metadata.Metadata { return im.mds }

// Run imports the given files and the regular files of the given
// directories. Per-file failures are reported in the result; the returned
// error is only set when ctx ended the run early or a path could not be
// listed.
func (im *Importer) Run(ctx context.Context, paths []string) (*Result, error) {
	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}
	res := &Result{ID: uuid.New(), Started: time.Now(), Files: make([]FileResult, len(files))}
	logger := im.logger.With("import_id", res.ID)
	logger.Info("import started", "files", len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.opts.Concurrency)
	for i, path := range files {
		g.Go(func() error {
			res.Files[i] = im.importFile(gctx, logger, path)
			return nil
		})
	}
	_ = g.Wait()
	res.Duration = time.Since(res.Started)

	imported, skipped, failed := res.Counts()
	logger.Info("import finished",
		"imported", imported,
		"skipped", skipped,
		"failed", failed,
		"duration", res.Duration,
	)
	return res, ctx.Err()
}

func expandPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				out = append(out, filepath.Join(p, e.Name()))
			}
		}
	}
	return out, nil
}

// ImportFile imports one file from disk.
func (im *Importer) ImportFile(ctx context.Context, path string) FileResult {
	return im.importFile(ctx, im.logger, path)
}

func (im *Importer) importFile(ctx context.Context, logger *slog.Logger, path string) FileResult {
	f, err := os.Open(path)
	if err != nil {
		res := FileResult{Name: path, FileType: record.FileUnknown.String()}
		res.fail(err)
		logger.Error("open failed", "file", path, "error", err)
		return res
	}
	defer f.Close()

	var size int64
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}
	return im.importReader(ctx, logger, f, path, size)
}

// ImportReader imports one file read from r. name is used for file type
// detection and messages; size may be 0 if unknown.
func (im *Importer) ImportReader(ctx context.Context, r io.Reader, name string, size int64) FileResult {
	return im.importReader(ctx, im.logger, r, name, size)
}

func (im *Importer) importReader(ctx context.Context, logger *slog.Logger, r io.Reader, name string, size int64) FileResult {
	res := FileResult{Name: name}
	logger = logger.With("file", name)

	br := bufio.NewReader(r)
	head, _ := br.Peek(16)
	ft, err := DetectFileType(name, head)
	res.FileType = ft.String()
	switch {
	case errors.Is(err, ErrUnsupportedFile):
		res.Skipped = true
		res.SkipReason = err.Error()
		logger.Warn("skipping file", "reason", err)
		return res
	case err != nil:
		res.fail(err)
		logger.Error("import failed", "error", err)
		return res
	case ft == record.FileCSV:
		res.fail(fmt.Errorf("%s: %w", name, ErrCSVNotImplemented))
		logger.Error("import failed", "error", res.Err)
		return res
	}

	if err := im.importTOA5(ctx, logger, br, size, &res); err != nil {
		res.fail(err)
		logger.Error("import failed", "error", err, "rows", res.Rows)
		return res
	}
	if !res.Skipped {
		logger.Info("file imported",
			"table", res.Table,
			"rows", res.Rows,
			"type_errors", res.TypeErrors,
			"skipped_rows", res.SkippedRows,
		)
	}
	return res
}

// DetectFileType detects a file's type from its name and first bytes. A
// .dat file must start with the TOA5 magic, quoted or not. A .csv file is
// detected as CSV. Anything else fails with ErrUnsupportedFile, and an
// empty head with ErrEmptyFile.
func DetectFileType(name string, head []byte) (record.FileType, error) {
	if len(head) == 0 {
		return record.FileUnknown, fmt.Errorf("%s: %w", name, ErrEmptyFile)
	}
	head = bytes.TrimPrefix(head, []byte{0xEF, 0xBB, 0xBF})
	switch strings.ToLower(filepath.Ext(name)) {
	case ".dat":
		if bytes.HasPrefix(head, []byte(`"`+toa5.Magic+`",`)) || bytes.HasPrefix(head, []byte(toa5.Magic+",")) {
			return record.FileTOA5, nil
		}
		return record.FileUnknown, fmt.Errorf("%s: %w: .dat file is not TOA5", name, ErrUnsupportedFile)
	case ".csv":
		return record.FileCSV, nil
	default:
		return record.FileUnknown, fmt.Errorf("%s: %w", name, ErrUnsupportedFile)
	}
}

// columnStats collects the numeric values of one typed column.
type columnStats struct {
	idx    int
	name   string
	typ    datatypes.Type
	values []float64
}

func (im *Importer) importTOA5(ctx context.Context, logger *slog.Logger, r io.Reader, size int64, res *FileResult) error {
	in, counter := WrapInput(r, im.opts.Encoding, im.opts.MaxFileSize, size)
	defer func() { res.Bytes = counter.BytesRead }()

	rd, err := toa5.NewReader(in, im.mds, res.Name)
	if err != nil {
		var nt *toa5.NoTableMatchError
		if errors.As(err, &nt) {
			switch {
			case nt.Ignored():
				res.Skipped = true
				res.SkipReason = fmt.Sprintf("table %q is ignored by logger %s", nt.TableName, nt.Metadata.LoggerName)
				logger.Debug("skipping ignored table", "table", nt.TableName)
				return nil
			case im.opts.IgnoreNoTableMatch:
				res.Skipped = true
				res.SkipReason = err.Error()
				logger.Warn("skipping unknown table", "table", nt.TableName)
				return nil
			}
		}
		return err
	}

	table := rd.Table()
	res.Table = table.Ident()
	md := table.Parent()

	timeCol := -1
	switch table.Columns[table.PriKey].Type.Kind() {
	case datatypes.KindTimestampNoTz, datatypes.KindTimestampWithTz:
		timeCol = table.PriKey
	}
	var stats []*columnStats
	for i, col := range table.Columns {
		switch col.Type.Kind() {
		case datatypes.KindNum, datatypes.KindNonNegInt, datatypes.KindBigInt:
			stats = append(stats, &columnStats{idx: i, name: col.Name, typ: col.Type})
		}
	}

	// Interval buckets are aligned to the logger's local clock.
	zone := time.UTC
	if md != nil && md.TZ != nil {
		zone = md.TZ
	}
	var times []time.Time
	for rec, err := range rd.Records() {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Rows++

		if err := rec.Typecheck(im.opts.CheckMode); err != nil {
			if !errors.Is(err, record.ErrType) {
				return err
			}
			im.typeError(logger, res, err)
			continue
		}
		conv, err := rec.TZConv()
		if err != nil {
			if !errors.Is(err, record.ErrType) {
				return err
			}
			im.typeError(logger, res, err)
			continue
		}
		full := conv.FullRow()

		if timeCol >= 0 && full[timeCol].Present && !datatypes.IsNaN(full[timeCol].Value) {
			ts, err := time.Parse(record.UTCLayout, full[timeCol].Value)
			if err != nil {
				return fmt.Errorf("%s: %w", conv.Source(), err)
			}
			if md != nil && inRanges(md.SkipRecords, ts) {
				res.SkippedRows++
				logger.Debug("skipping record", "source", conv.Source(), "time", ts)
				continue
			}
			times = append(times, ts.In(zone))
		}

		for _, cs := range stats {
			f := full[cs.idx]
			if !f.Present {
				continue
			}
			v, err := cs.typ.ToNumeric(f.Value)
			if err != nil {
				return fmt.Errorf("%s: column %s: %w", conv.Source(), cs.name, err)
			}
			cs.values = append(cs.values, v)
		}
	}

	if len(times) > 0 {
		first, last := times[0].UTC(), times[len(times)-1].UTC()
		res.First, res.Last = &first, &last
		if table.Interval != metadata.IntervalUndef {
			qs, err := quality.CheckTimeSeqStrict(times, table.Interval)
			if err != nil {
				return err
			}
			s := quality.SummarizeQualities(qs)
			res.TimeQuality = &s
		}
	}
	if len(stats) > 0 {
		res.Columns = make(map[string]quality.Summary, len(stats))
		for _, cs := range stats {
			if len(cs.values) > 0 {
				res.Columns[cs.name] = im.opts.Classifier.Summarize(cs.values)
			}
		}
	}
	return nil
}

func (im *Importer) typeError(logger *slog.Logger, res *FileResult, err error) {
	res.TypeErrors++
	if len(res.Samples) < im.opts.MaxTypeErrorSamples {
		res.Samples = append(res.Samples, err.Error())
	}
	logger.Debug("type check failed", "error", err)
}

func inRanges(ranges []metadata.TimeRange, t time.Time) bool {
	for _, r := range ranges {
		if r.Contains(t) {
			return true
		}
	}
	return false
}
