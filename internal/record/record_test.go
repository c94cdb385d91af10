package record

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/loggerimport/internal/metadata"
)

func quietLoader() *metadata.Loader {
	return metadata.NewLoader(metadata.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func hourlyTable(t *testing.T) *metadata.Table {
	t.Helper()
	md, _, err := quietLoader().LoadFile("../metadata/testdata/TestLogger.json")
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	tbl, _ := md.Table("Hourly")
	return tbl
}

func loadTable(t *testing.T, doc string) *metadata.Table {
	t.Helper()
	md, _, err := quietLoader().Load(strings.NewReader(doc), t.Name())
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	return md.Tables()[0]
}

var (
	abcVariant = []int{0, 1, 2, 3, 4, 5, 7}
	abcRow     = []string{"2021-06-18 11:00:00", "0", "13.11", "35.3", "35.65", "32.41", "24.46"}
)

func newAbcRecord(t *testing.T, row []string) *Record {
	t.Helper()
	rec, err := New(hourlyTable(t), abcVariant, row, WithSource(5, "Hourly.dat"), WithFileType(FileTOA5))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return rec
}

// ---- BuildRow Tests ----

func TestBuildRow(t *testing.T) {
	got, err := BuildRow([]string{"a", "", "c"}, []int{3, 0, 1}, 5)
	if err != nil {
		t.Fatalf("BuildRow error: %v", err)
	}
	want := []Field{Of(""), Of("c"), Absent, Of("a"), Absent}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildRow mismatch (-want +got):\n%s", diff)
	}
	if got[0] == Absent {
		t.Error("empty value must not equal Absent")
	}

	if _, err := BuildRow([]string{"a"}, []int{0, 1}, 2); !errors.Is(err, ErrRecord) {
		t.Errorf("BuildRow length mismatch error = %v, want ErrRecord", err)
	}
	if _, err := BuildRow([]string{"a"}, []int{2}, 2); !errors.Is(err, ErrRecord) {
		t.Errorf("BuildRow bad index error = %v, want ErrRecord", err)
	}
}

func TestFieldString(t *testing.T) {
	if got := Absent.String(); got != "<absent>" {
		t.Errorf("Absent.String() = %q", got)
	}
	if got := Of("").String(); got != `""` {
		t.Errorf("Of(\"\").String() = %q", got)
	}
}

// ---- Record Tests ----

func TestNewRecord(t *testing.T) {
	rec := newAbcRecord(t, abcRow)
	want := []Field{
		Of("2021-06-18 11:00:00"), Of("0"), Of("13.11"), Of("35.3"), Of("35.65"),
		Of("32.41"), Absent, Of("24.46"), Absent,
	}
	if diff := cmp.Diff(want, rec.FullRow()); diff != "" {
		t.Errorf("FullRow mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(abcRow, rec.Orig()); diff != "" {
		t.Errorf("Orig mismatch (-want +got):\n%s", diff)
	}
	if rec.Source() != "Hourly.dat:5" {
		t.Errorf("Source = %q", rec.Source())
	}
	if rec.Env() != nil {
		t.Errorf("Env = %v, want nil", rec.Env())
	}

	v, err := rec.Value("RelHumid")
	if err != nil || v != Of("24.46") {
		t.Errorf("Value(RelHumid) = %v, %v", v, err)
	}
	v, err = rec.Value("BP_mbar_Avg")
	if err != nil || v.Present {
		t.Errorf("Value(BP_mbar_Avg) = %v, %v; want absent", v, err)
	}
	if _, err := rec.Value("nope"); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("Value(nope) error = %v, want ErrUnknownColumn", err)
	}

	_, err = New(hourlyTable(t), abcVariant, abcRow[:3], WithSource(9, "x.dat"))
	var re *RowError
	if !errors.As(err, &re) || re.Source != "x.dat:9" {
		t.Errorf("New short row error = %v, want RowError from x.dat:9", err)
	}
}

func TestRecordEnv(t *testing.T) {
	env := map[string]string{"station_name": "TestLogger", "table_name": "Hourly"}
	rec, err := New(hourlyTable(t), abcVariant, abcRow, WithEnv(env))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	env["station_name"] = "changed"
	want := map[string]string{"station_name": "TestLogger", "table_name": "Hourly"}
	if diff := cmp.Diff(want, rec.Env()); diff != "" {
		t.Errorf("Env mismatch (-want +got):\n%s", diff)
	}

	conv, err := rec.TZConv()
	if err != nil {
		t.Fatalf("TZConv error: %v", err)
	}
	if diff := cmp.Diff(want, conv.Env()); diff != "" {
		t.Errorf("converted Env mismatch (-want +got):\n%s", diff)
	}
}

func TestSource(t *testing.T) {
	tests := []struct {
		names []string
		want  string
	}{
		{nil, "<unknown>:3"},
		{[]string{"a.dat"}, "a.dat:3"},
		{[]string{"a.zip", "b.dat"}, "[a.zip b.dat]:3"},
	}
	for _, tt := range tests {
		if got := Source(3, tt.names...); got != tt.want {
			t.Errorf("Source(%v) = %q, want %q", tt.names, got, tt.want)
		}
	}
}

func TestTypecheck(t *testing.T) {
	rec := newAbcRecord(t, abcRow)
	if err := rec.Typecheck(SkipUntyped); err != nil {
		t.Fatalf("Typecheck error: %v", err)
	}

	bad := append([]string{}, abcRow...)
	bad[2] = "123.45"
	err := newAbcRecord(t, bad).Typecheck(SkipUntyped)
	var te *TypeError
	if !errors.As(err, &te) {
		t.Fatalf("Typecheck error = %v, want TypeError", err)
	}
	if te.Column.Name != "BattV_Min" || te.Value != "123.45" || te.Source != "Hourly.dat:5" {
		t.Errorf("TypeError = %+v", te)
	}
	if !errors.Is(err, ErrType) {
		t.Error("TypeError does not wrap ErrType")
	}

	untyped := loadTable(t, `{"logger_name":"Foo","toa5_env_match":{"station_name":"Foo"},"tz":"UTC","tables":{"foo":{"columns":[{"name":"TIMESTAMP","unit":"TS","type":"TimestampNoTz"},{"name":"xy"}]}}}`)
	rec, err = New(untyped, []int{0, 1}, []string{"2023-01-01 00:00:00", "whatever"})
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Typecheck(SkipUntyped); err != nil {
		t.Errorf("Typecheck(SkipUntyped) error: %v", err)
	}
	if err := rec.Typecheck(RequireTypes); !errors.Is(err, ErrUntyped) {
		t.Errorf("Typecheck(RequireTypes) error = %v, want ErrUntyped", err)
	}
}

func TestTZConv(t *testing.T) {
	rec := newAbcRecord(t, abcRow)
	conv, err := rec.TZConv()
	if err != nil {
		t.Fatalf("TZConv error: %v", err)
	}
	if got := conv.FullRow()[0]; got != Of("2021-06-18 11:00:00Z") {
		t.Errorf("converted timestamp = %v", got)
	}
	if rec.FullRow()[0] != Of("2021-06-18 11:00:00") {
		t.Error("TZConv modified its input")
	}
	if !conv.Converted() || rec.Converted() {
		t.Error("Converted flags wrong")
	}
	if err := conv.Typecheck(SkipUntyped); !errors.Is(err, ErrConverted) {
		t.Errorf("Typecheck after TZConv error = %v, want ErrConverted", err)
	}
	if _, err := conv.TZConv(); !errors.Is(err, ErrConverted) {
		t.Errorf("TZConv twice error = %v, want ErrConverted", err)
	}
	if _, err := conv.FullRowAsNumeric(); !errors.Is(err, ErrConverted) {
		t.Errorf("FullRowAsNumeric after TZConv error = %v, want ErrConverted", err)
	}
}

func TestTZConvZones(t *testing.T) {
	tbl := loadTable(t, `{"logger_name":"Foo","toa5_env_match":{"station_name":"Foo"},"tz":"+05:30","tables":{"foo":{"columns":[{"name":"TIMESTAMP","unit":"TS","type":"TimestampNoTz"},{"name":"Other","type":"TimestampWithTz"},{"name":"Value","type":"Num(5,2)"}]}}}`)
	rec, err := New(tbl, []int{0, 1, 2}, []string{"2023-01-02 03:04:05", "2023-01-02 03:04:05 -01:00", "1.5"})
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Typecheck(SkipUntyped); err != nil {
		t.Fatalf("Typecheck error: %v", err)
	}
	conv, err := rec.TZConv()
	if err != nil {
		t.Fatalf("TZConv error: %v", err)
	}
	want := []string{"2023-01-01 21:34:05Z", "2023-01-02 04:04:05Z", "1.5"}
	if diff := cmp.Diff(want, conv.Orig()); diff != "" {
		t.Errorf("TZConv mismatch (-want +got):\n%s", diff)
	}

	rec, _ = New(tbl, []int{0, 1, 2}, []string{"NaN", "nan", "NAN"})
	conv, err = rec.TZConv()
	if err != nil {
		t.Fatalf("TZConv(NaN) error: %v", err)
	}
	if diff := cmp.Diff([]string{"NaN", "nan", "NAN"}, conv.Orig()); diff != "" {
		t.Errorf("TZConv(NaN) mismatch (-want +got):\n%s", diff)
	}
}

func TestView(t *testing.T) {
	rec := newAbcRecord(t, abcRow)
	got, err := rec.View("Press_Humid")
	if err != nil {
		t.Fatalf("View error: %v", err)
	}
	want := []Field{Of("2021-06-18 11:00:00"), Absent, Of("24.46")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("View mismatch (-want +got):\n%s", diff)
	}
	if _, err := rec.View("nope"); err == nil {
		t.Error("View(nope) succeeded")
	}
}

func TestFullRowAsNative(t *testing.T) {
	rec := newAbcRecord(t, abcRow)
	got, err := rec.FullRowAsNative()
	if err != nil {
		t.Fatalf("FullRowAsNative error: %v", err)
	}
	if len(got) != 9 {
		t.Fatalf("got %d values, want 9", len(got))
	}
	ts, ok := got[0].(pgtype.Timestamptz)
	if !ok || !ts.Valid || !ts.Time.Equal(time.Date(2021, 6, 18, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("TIMESTAMP = %#v", got[0])
	}
	if n, ok := got[1].(pgtype.Int4); !ok || n.Int32 != 0 || !n.Valid {
		t.Errorf("RECORD = %#v", got[1])
	}
	num, ok := got[2].(pgtype.Numeric)
	if !ok || !num.Valid || num.Int.Int64() != 1311 || num.Exp != -2 {
		t.Errorf("BattV_Min = %#v", got[2])
	}
	if got[6] != nil || got[8] != nil {
		t.Errorf("absent columns = %#v, %#v; want nil", got[6], got[8])
	}
}

func TestFullRowAsNumeric(t *testing.T) {
	rec := newAbcRecord(t, abcRow)
	got, err := rec.FullRowAsNumeric()
	if err != nil {
		t.Fatalf("FullRowAsNumeric error: %v", err)
	}
	want := []float64{
		float64(time.Date(2021, 6, 18, 11, 0, 0, 0, time.UTC).Unix()),
		0, 13.11, 35.3, 35.65, 32.41, math.NaN(), 24.46, math.NaN(),
	}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b float64) bool {
		return a == b || (math.IsNaN(a) && math.IsNaN(b))
	})); diff != "" {
		t.Errorf("FullRowAsNumeric mismatch (-want +got):\n%s", diff)
	}

	untyped := loadTable(t, `{"logger_name":"Foo","toa5_env_match":{"station_name":"Foo"},"tz":"UTC","tables":{"foo":{"columns":[{"name":"TIMESTAMP","unit":"TS","type":"TimestampNoTz"},{"name":"xy"}]}}}`)
	rec, _ = New(untyped, []int{0, 1}, []string{"2023-01-01 00:00:00", "1"})
	if _, err := rec.FullRowAsNumeric(); !errors.Is(err, ErrUntyped) {
		t.Errorf("FullRowAsNumeric(untyped) error = %v, want ErrUntyped", err)
	}
	native, err := rec.FullRowAsNative()
	if err != nil {
		t.Fatalf("FullRowAsNative(untyped) error: %v", err)
	}
	if native[1] != "1" {
		t.Errorf("untyped native value = %#v, want \"1\"", native[1])
	}
}
