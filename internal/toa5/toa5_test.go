package toa5

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/loggerimport/internal/metadata"
	"github.com/JonMunkholm/loggerimport/internal/record"
)

func quietLoader() *metadata.Loader {
	return metadata.NewLoader(metadata.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func loadTestLogger(t *testing.T) *metadata.Metadata {
	t.Helper()
	md, _, err := quietLoader().LoadFile("../metadata/testdata/TestLogger.json")
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	return md
}

func loadFoo(t *testing.T) *metadata.Metadata {
	t.Helper()
	doc := `{"logger_name":"Foo","toa5_env_match":{"station_name":"Foo"},"tz":"UTC","tables":{"foo":{"columns":[{"name":"TIMESTAMP","unit":"TS"}]}}}`
	md, _, err := quietLoader().Load(strings.NewReader(doc), "foo")
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	return md
}

var testEnv = EnvironmentLine{
	StationName:  "TestLogger",
	LoggerModel:  "CR1000X",
	LoggerSerial: "12342",
	LoggerOS:     "CR1000X.Std.03.02",
	ProgramName:  "CPU:TestLogger.CR1X",
	ProgramSig:   "2438",
	TableName:    "Hourly",
}

func readAll(t *testing.T, path string, mds []*metadata.Metadata) (*Reader, [][]record.Field) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r, err := NewReader(f, mds, path)
	if err != nil {
		t.Fatalf("NewReader(%s): %v", path, err)
	}
	var rows [][]record.Field
	for rec, err := range r.Records() {
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if rec.Table() != r.Table() {
			t.Errorf("record table = %s, want %s", rec.Table().Ident(), r.Table().Ident())
		}
		rows = append(rows, rec.FullRow())
	}
	return r, rows
}

func fields(vals ...string) []record.Field {
	out := make([]record.Field, len(vals))
	for i, v := range vals {
		if v == "-" {
			out[i] = record.Absent
		} else {
			out[i] = record.Of(v)
		}
	}
	return out
}

// ---- Header Tests ----

func TestReadHeader(t *testing.T) {
	in := `"TOA5","Foo","CR1000X","1","OS","prog","42","foo"
"TIMESTAMP","RECORD","x"
"TS","RN",""
"","","Smp"
`
	cr := csv.NewReader(strings.NewReader(in))
	cr.FieldsPerRecord = -1
	env, hdr, err := ReadHeader(cr)
	if err != nil {
		t.Fatalf("ReadHeader error: %v", err)
	}
	wantEnv := EnvironmentLine{"Foo", "CR1000X", "1", "OS", "prog", "42", "foo"}
	if diff := cmp.Diff(wantEnv, env); diff != "" {
		t.Errorf("env mismatch (-want +got):\n%s", diff)
	}
	wantHdr := metadata.Header{{Name: "TIMESTAMP", Unit: "TS"}, {Name: "RECORD", Unit: "RN"}, {Name: "x", Prc: "Smp"}}
	if diff := cmp.Diff(wantHdr, hdr); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestReadHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"not toa5", "\"TOB1\",\"a\",\"b\",\"c\",\"d\",\"e\",\"f\",\"g\"\n"},
		{"short env line", "\"TOA5\",\"a\",\"b\"\n"},
		{"long env line", "\"TOA5\",\"a\",\"b\",\"c\",\"d\",\"e\",\"f\",\"g\",\"h\"\n"},
		{"bad env quoting", "\"TOA5,\"a\n"},
		{"missing header rows", "\"TOA5\",\"a\",\"b\",\"c\",\"d\",\"e\",\"f\",\"g\"\n\"x\"\n\"u\"\n"},
		{"column count mismatch", "\"TOA5\",\"a\",\"b\",\"c\",\"d\",\"e\",\"f\",\"g\"\n\"x\",\"y\"\n\"u\"\n\"\",\"\"\n"},
		{"duplicate names", "\"TOA5\",\"a\",\"b\",\"c\",\"d\",\"e\",\"f\",\"g\"\n\"x\",\"x\"\n\"u\",\"u\"\n\"\",\"\"\n"},
		{"bad header quoting", "\"TOA5\",\"a\",\"b\",\"c\",\"d\",\"e\",\"f\",\"g\"\n\"x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr := csv.NewReader(strings.NewReader(tt.in))
			cr.FieldsPerRecord = -1
			_, _, err := ReadHeader(cr)
			if !errors.Is(err, ErrHeader) {
				t.Errorf("ReadHeader error = %v, want ErrHeader", err)
			}
		})
	}
}

func TestEnvironmentLineMatches(t *testing.T) {
	s := func(v string) *string { return &v }
	tests := []struct {
		m    *metadata.EnvMatch
		want bool
	}{
		{&metadata.EnvMatch{StationName: s("TestLogger")}, true},
		{&metadata.EnvMatch{StationName: s("TestLogger"), ProgramSig: s("2438")}, true},
		{&metadata.EnvMatch{StationName: s("TestLogger"), ProgramSig: s("1234")}, false},
		{&metadata.EnvMatch{LoggerOS: s("")}, false},
		{&metadata.EnvMatch{}, true},
		{nil, false},
	}
	for i, tt := range tests {
		if got := testEnv.Matches(tt.m); got != tt.want {
			t.Errorf("case %d: Matches = %v, want %v", i, got, tt.want)
		}
	}
}

// ---- Resolver Tests ----

func TestResolve(t *testing.T) {
	md := loadFoo(t)
	env := EnvironmentLine{StationName: "Foo", TableName: "foo"}
	hdr := metadata.Header{{Name: "TIMESTAMP", Unit: "TS"}}

	tbl, variant, err := Resolve(env, hdr, []*metadata.Metadata{md})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	want, _ := md.Table("foo")
	if tbl != want {
		t.Errorf("Resolve table = %v, want %v", tbl.Ident(), want.Ident())
	}
	if diff := cmp.Diff([]int{0}, variant); diff != "" {
		t.Errorf("variant mismatch (-want +got):\n%s", diff)
	}

	other := env
	other.StationName = "Bar"
	_, _, err = Resolve(other, hdr, []*metadata.Metadata{md})
	var nmm *NoMetadataMatchError
	if !errors.As(err, &nmm) || !errors.Is(err, ErrResolve) {
		t.Errorf("Resolve(other station) error = %v, want NoMetadataMatchError", err)
	}

	_, _, err = Resolve(env, hdr, []*metadata.Metadata{md, md})
	if !errors.Is(err, ErrAmbiguousMetadata) || errors.Is(err, ErrResolve) {
		t.Errorf("Resolve(twice) error = %v, want ErrAmbiguousMetadata", err)
	}

	_, _, err = Resolve(env, metadata.Header{{Name: "Foobar"}}, []*metadata.Metadata{md})
	var nvm *NoVariantMatchError
	if !errors.As(err, &nvm) || nvm.Table != want {
		t.Errorf("Resolve(bad header) error = %v, want NoVariantMatchError", err)
	}

	missing := env
	missing.TableName = "bar"
	_, _, err = Resolve(missing, hdr, []*metadata.Metadata{md})
	var ntm *NoTableMatchError
	if !errors.As(err, &ntm) {
		t.Fatalf("Resolve(bad table) error = %v, want NoTableMatchError", err)
	}
	if ntm.Metadata != md || ntm.TableName != "bar" || ntm.Ignored() {
		t.Errorf("NoTableMatchError = %+v", ntm)
	}

	typeless := *md
	typeless.LoggerType = metadata.LoggerTypeInvalid
	_, _, err = Resolve(env, hdr, []*metadata.Metadata{&typeless})
	if !errors.As(err, &nmm) {
		t.Errorf("Resolve(invalid logger type) error = %v, want NoMetadataMatchError", err)
	}
}

func TestResolveIgnoredTable(t *testing.T) {
	md := loadTestLogger(t)
	env := testEnv
	env.TableName = "World"
	_, _, err := Resolve(env, nil, []*metadata.Metadata{md})
	var ntm *NoTableMatchError
	if !errors.As(err, &ntm) || !ntm.Ignored() {
		t.Errorf("Resolve(ignored table) error = %v, want ignored NoTableMatchError", err)
	}
}

func TestResolveVariantLengthPanics(t *testing.T) {
	cols := []metadata.Column{{BaseColumn: metadata.BaseColumn{Name: "TIMESTAMP", Unit: "TS"}}, {BaseColumn: metadata.BaseColumn{Name: "xy"}}}
	tbl := metadata.NewTable("foo", 0, metadata.IntervalUndef, cols)
	station := "Foo"
	md := &metadata.Metadata{LoggerName: "Foo", LoggerType: metadata.LoggerTypeTOA5, EnvMatch: &metadata.EnvMatch{StationName: &station}}
	if err := md.AddTable(tbl); err != nil {
		t.Fatal(err)
	}
	hdr := metadata.Header{{Name: "TIMESTAMP", Unit: "TS"}}
	if err := tbl.AddVariant(metadata.Header{hdr[0], cols[1].Header()}, []int{0, 1}); err != nil {
		t.Fatal(err)
	}
	// A header whose key matches a longer variant can only come from a
	// broken variant map, so register one by hand.
	if err := tbl.AddVariant(hdr, []int{1}); err != nil {
		t.Fatal(err)
	}
	tbl.Variants()[1].Indexes = append(tbl.Variants()[1].Indexes, 0)

	defer func() {
		if recover() == nil {
			t.Error("Resolve did not panic on a variant length mismatch")
		}
	}()
	_, _, _ = Resolve(EnvironmentLine{StationName: "Foo", TableName: "foo"}, hdr, []*metadata.Metadata{md})
}

// ---- Reader Tests ----

func TestReadDaily(t *testing.T) {
	md := loadTestLogger(t)
	r, rows := readAll(t, "testdata/TestLogger_Daily.dat", []*metadata.Metadata{md})
	if r.Table().Name != "Daily" || r.Table().Parent() != md {
		t.Errorf("table = %s", r.Table().Ident())
	}
	env := testEnv
	env.TableName = "Daily"
	if diff := cmp.Diff(env, r.Env()); diff != "" {
		t.Errorf("env mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4, 5, 6, 7}, r.Variant()); diff != "" {
		t.Errorf("variant mismatch (-want +got):\n%s", diff)
	}
	if len(rows) != 6 {
		t.Fatalf("got %d rows, want 6", len(rows))
	}
	want := fields("2021-06-22 00:00:00", "3", "13.03", "2021-06-21 16:00:15", "20.45", "2021-06-22 00:00:00", "38.21", "2021-06-21 14:47:35")
	if diff := cmp.Diff(want, rows[3]); diff != "" {
		t.Errorf("row 3 mismatch (-want +got):\n%s", diff)
	}
}

func TestReadHourlyVariants(t *testing.T) {
	md := loadTestLogger(t)
	mds := []*metadata.Metadata{md}

	r, rows := readAll(t, "testdata/TestLogger_Hourly_abc.dat", mds)
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4, 5, 7}, r.Variant()); diff != "" {
		t.Errorf("abc variant mismatch (-want +got):\n%s", diff)
	}
	want := [][]record.Field{
		fields("2021-06-18 11:00:00", "0", "13.11", "35.3", "35.65", "32.41", "-", "24.46", "-"),
		fields("2021-06-18 12:00:00", "1", "13.09", "35.61", "36.56", "32.96", "-", "24", "-"),
	}
	if diff := cmp.Diff(want, rows[:2]); diff != "" {
		t.Errorf("abc rows mismatch (-want +got):\n%s", diff)
	}

	r, rows = readAll(t, "testdata/TestLogger_Hourly_def.dat", mds)
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4, 6, 7, 8}, r.Variant()); diff != "" {
		t.Errorf("def variant mismatch (-want +got):\n%s", diff)
	}
	want = [][]record.Field{
		fields("2021-06-19 08:00:00", "21", "13.22", "30.84", "33.5", "-", "28.51", "46.3", "1015.323"),
	}
	if diff := cmp.Diff(want, rows[:1]); diff != "" {
		t.Errorf("def rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRecordContext(t *testing.T) {
	md := loadTestLogger(t)
	path := "testdata/TestLogger_Hourly_abc.dat"
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r, err := NewReader(f, []*metadata.Metadata{md}, "archive.zip", path)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := r.Read()
	if err != nil {
		t.Fatal(err)
	}
	if rec.Line() != 5 {
		t.Errorf("Line = %d, want 5", rec.Line())
	}
	if rec.FileType() != record.FileTOA5 {
		t.Errorf("FileType = %v, want TOA5", rec.FileType())
	}
	if diff := cmp.Diff([]string{"archive.zip", path}, rec.Filenames()); diff != "" {
		t.Errorf("filenames mismatch (-want +got):\n%s", diff)
	}
	wantEnv := map[string]string{
		"station_name":  "TestLogger",
		"logger_model":  "CR1000X",
		"logger_serial": "12342",
		"logger_os":     "CR1000X.Std.03.02",
		"program_name":  "CPU:TestLogger.CR1X",
		"program_sig":   "2438",
		"table_name":    "Hourly",
	}
	if diff := cmp.Diff(wantEnv, rec.Env()); diff != "" {
		t.Errorf("env mismatch (-want +got):\n%s", diff)
	}
	rec, _ = r.Read()
	if rec.Line() != 6 {
		t.Errorf("Line = %d, want 6", rec.Line())
	}
}

func TestReadIgnoredTable(t *testing.T) {
	md := loadTestLogger(t)
	f, err := os.Open("testdata/TestLogger_Hello.dat")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	_, err = NewReader(f, []*metadata.Metadata{md}, "hello")
	var ntm *NoTableMatchError
	if !errors.As(err, &ntm) || !ntm.Ignored() {
		t.Errorf("NewReader error = %v, want ignored NoTableMatchError", err)
	}
}

func TestReadErrors(t *testing.T) {
	md := loadFoo(t)
	hdr := `"TOA5","Foo","","","","","","foo"` + "\n" + `"TIMESTAMP"` + "\n" + `"TS"` + "\n" + `""` + "\n"
	for _, body := range []string{`"x","y"` + "\n", `"x` + "\n"} {
		r, err := NewReader(strings.NewReader(hdr+body), []*metadata.Metadata{md}, "dummy")
		if err != nil {
			t.Fatalf("NewReader error: %v", err)
		}
		_, err = r.Read()
		if !errors.Is(err, record.ErrRecord) {
			t.Errorf("Read(%q) error = %v, want ErrRecord", body, err)
		}
		if err != nil && !strings.Contains(err.Error(), "dummy:") {
			t.Errorf("Read(%q) error %q lacks source", body, err)
		}
	}

	r, err := NewReader(strings.NewReader(hdr), []*metadata.Metadata{md})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Read(); err != io.EOF {
		t.Errorf("Read on empty body = %v, want io.EOF", err)
	}
}
