package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/JonMunkholm/loggerimport/internal/config"
	"github.com/JonMunkholm/loggerimport/internal/importer"
	"github.com/JonMunkholm/loggerimport/internal/logging"
	"github.com/JonMunkholm/loggerimport/internal/metadata"
)

func TestMain(m *testing.M) {
	slog.SetDefault(logging.Discard())
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	loader := metadata.NewLoader(metadata.WithLogger(logging.Discard()))
	md, _, err := loader.LoadFile("../metadata/testdata/TestLogger.json")
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second, ShutdownTimeout: time.Second},
		Import: config.ImportConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   50 * time.Millisecond,
			Timeout:       time.Minute,
			Encoding:      "utf8",
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	opts := cfg.Import.Options()
	opts.Logger = logging.Discard()
	s := NewServer(cfg, importer.New([]*metadata.Metadata{md}, opts))
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Errorf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	er := decode[ErrorResponse](t, rec)
	if er.Code != code {
		t.Errorf("code = %q, want %q", er.Code, code)
	}
	if er.Message == "" || er.Error == "" {
		t.Errorf("error response without message: %+v", er)
	}
}

func importRequest(t *testing.T, filename, body string) *http.Request {
	t.Helper()
	target := "/api/import"
	if filename != "" {
		target += "?filename=" + filename
	}
	return httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
}

func readTestdata(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("../toa5/testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestListLoggers(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/loggers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	got := decode[[]loggerSummary](t, rec)
	want := []loggerSummary{{Name: "TestLogger", Type: "TOA5", TZ: "UTC", Tables: []string{"Daily", "Hourly"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("loggers mismatch (-want +got):\n%s", diff)
	}
}

func TestGetTable(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/loggers/TestLogger/tables/Hourly", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	got := decode[metadata.TableInfo](t, rec)
	if got.Ident != "TestLogger/Hourly" || got.Interval != "1hour" || got.PriKey != "TIMESTAMP" {
		t.Errorf("table = %+v", got)
	}
	// abc, def and the union of both.
	if got.Variants != 3 {
		t.Errorf("variants = %d, want 3", got.Variants)
	}
	if len(got.Columns) != 9 {
		t.Fatalf("columns = %d, want 9", len(got.Columns))
	}
	wantCol := metadata.ColumnInfo{
		Name:    "AirT_C(42)",
		Unit:    "Deg C",
		Prc:     "Smp",
		Type:    "Num(5,2)",
		PgType:  "NUMERIC(5,2)",
		SQLName: "airt_c_42",
		Variant: "abc",
	}
	if diff := cmp.Diff(wantCol, got.Columns[5]); diff != "" {
		t.Errorf("column mismatch (-want +got):\n%s", diff)
	}

	if len(got.Mappings) != 1 {
		t.Fatalf("mappings = %+v", got.Mappings)
	}
	m := got.Mappings[0]
	if m.Name != "Press_Humid" || m.Type != "view" || m.Columns["RelHumid"] != "RH_Smp" {
		t.Errorf("mapping = %+v", m)
	}
}

func TestGetTableNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	for _, path := range []string{
		"/api/loggers/Nope/tables/Hourly",
		"/api/loggers/TestLogger/tables/Nope",
	} {
		rec := do(s, httptest.NewRequest(http.MethodGet, path, nil))
		wantError(t, rec, http.StatusNotFound, "HTTP404")
	}
}

func TestInfer(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		body string
		want inferResponse
	}{
		{"1\n2\n3\n", inferResponse{Type: "NonNegInt", PgType: "INTEGER", Count: 3}},
		{"1\n-2\n", inferResponse{Type: "BigInt", PgType: "BIGINT", Count: 2}},
		{"1.5\r\n\n-22.25\r\n", inferResponse{Type: "Num(4,2)", PgType: "NUMERIC(4,2)", Count: 2}},
		{"NaN\nnan\n", inferResponse{Type: "OnlyNan", Count: 2}},
		{"2021-06-18 11:00:00\n", inferResponse{Type: "TimestampNoTz", PgType: "TIMESTAMP", Count: 1}},
	}
	for _, tt := range tests {
		rec := do(s, httptest.NewRequest(http.MethodPost, "/api/infer", strings.NewReader(tt.body)))
		if rec.Code != http.StatusOK {
			t.Errorf("infer %q: status %d: %s", tt.body, rec.Code, rec.Body.String())
			continue
		}
		if diff := cmp.Diff(tt.want, decode[inferResponse](t, rec)); diff != "" {
			t.Errorf("infer %q mismatch (-want +got):\n%s", tt.body, diff)
		}
	}
}

func TestInferErrors(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/infer", strings.NewReader("1\nabc\n")))
	wantError(t, rec, http.StatusUnprocessableEntity, "TYP004")

	rec = do(s, httptest.NewRequest(http.MethodPost, "/api/infer", strings.NewReader("\n \n")))
	wantError(t, rec, http.StatusBadRequest, "HTTP400")
}

func TestImport(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, importRequest(t, "TestLogger_Hourly_abc.dat", readTestdata(t, "TestLogger_Hourly_abc.dat")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	got := decode[importResponse](t, rec)
	if got.ID == uuid.Nil {
		t.Error("import id not set")
	}
	if got.Table != "TestLogger/Hourly" || got.Rows != 5 || got.TypeErrors != 0 {
		t.Errorf("result = %+v", got.FileResult)
	}
	if got.TimeQuality == nil || got.TimeQuality.Good != 4 || got.TimeQuality.Unusual != 1 {
		t.Errorf("time quality = %+v", got.TimeQuality)
	}
	if got.Error != nil {
		t.Errorf("unexpected error %+v", got.Error)
	}
	if st := s.Limiter().Status(); st.Active != 0 {
		t.Errorf("limiter slot not released: %+v", st)
	}
}

func TestImportIgnoredTable(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, importRequest(t, "TestLogger_Hello.dat", readTestdata(t, "TestLogger_Hello.dat")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[importResponse](t, rec)
	if !got.Skipped || got.SkipReason == "" {
		t.Errorf("result = %+v, want skipped", got.FileResult)
	}
}

func TestImportErrors(t *testing.T) {
	const unknownLogger = `"TOA5","Elsewhere","CR1000X","1","CR1000X.Std.03.02","CPU:x.CR1X","1","Hourly"
"TIMESTAMP","RECORD"
"TS","RN"
"",""
"2021-06-18 11:00:00",0
`
	tests := []struct {
		name     string
		filename string
		body     string
		status   int
		code     string
	}{
		{"no filename", "", "x", http.StatusBadRequest, "FILE006"},
		{"csv", "data.csv", "a,b\n1,2\n", http.StatusNotImplemented, "FILE004"},
		{"empty", "x.dat", "", http.StatusUnsupportedMediaType, "FILE005"},
		{"unknown logger", "x.dat", unknownLogger, http.StatusUnprocessableEntity, "RES001"},
	}
	s := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, importRequest(t, tt.filename, tt.body))
			wantError(t, rec, tt.status, tt.code)
		})
	}
}

func TestImportTooLarge(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Import.MaxFileSize = 100 })
	rec := do(s, importRequest(t, "TestLogger_Hourly_abc.dat", readTestdata(t, "TestLogger_Hourly_abc.dat")))
	wantError(t, rec, http.StatusRequestEntityTooLarge, "FILE001")
}

func TestImportBusy(t *testing.T) {
	s := newTestServer(t, nil)
	for range s.Limiter().MaxConcurrent() {
		if !s.Limiter().TryAcquire() {
			t.Fatal("TryAcquire failed on an idle limiter")
		}
	}
	defer func() {
		for range s.Limiter().MaxConcurrent() {
			s.Limiter().Release()
		}
	}()

	rec := do(s, importRequest(t, "x.dat", readTestdata(t, "TestLogger_Daily.dat")))
	wantError(t, rec, http.StatusServiceUnavailable, "IMP001")
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After not set")
	}
}

func TestImportAPIKey(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Security.APIKeys = []string{"secret"} })
	body := readTestdata(t, "TestLogger_Daily.dat")

	rec := do(s, importRequest(t, "d.dat", body))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d", rec.Code)
	}

	req := importRequest(t, "d.dat", body)
	req.Header.Set("X-API-Key", "wrong")
	if rec := do(s, req); rec.Code != http.StatusForbidden {
		t.Errorf("wrong key: status = %d", rec.Code)
	}

	req = importRequest(t, "d.dat", body)
	req.Header.Set("X-API-Key", "secret")
	if rec := do(s, req); rec.Code != http.StatusOK {
		t.Errorf("valid key: status = %d: %s", rec.Code, rec.Body.String())
	}

	// Read-only routes stay open.
	if rec := do(s, httptest.NewRequest(http.MethodGet, "/api/loggers", nil)); rec.Code != http.StatusOK {
		t.Errorf("loggers: status = %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, nil)
	s.Limiter().TryAcquire()
	defer s.Limiter().Release()

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[statusResponse](t, rec)
	want := importer.LimiterStatus{Active: 1, Available: 1, MaxConcurrent: 2}
	if got.Imports != want || got.Loggers != 1 || got.Uptime == "" {
		t.Errorf("status = %+v", got)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Security.RateLimit = 2 })
	for i := range 2 {
		if rec := do(s, httptest.NewRequest(http.MethodGet, "/api/status", nil)); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	wantError(t, rec, http.StatusTooManyRequests, "HTTP429")

	// Another client has its own budget.
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	if rec := do(s, req); rec.Code != http.StatusOK {
		t.Errorf("other client: status = %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/loggers", nil))
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("header %s not set", h)
		}
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestShutdownWaitsForImports(t *testing.T) {
	s := newTestServer(t, nil)
	if !s.Limiter().TryAcquire() {
		t.Fatal("TryAcquire failed")
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Limiter().Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	if n := s.Limiter().ActiveCount(); n != 0 {
		t.Errorf("active = %d after shutdown", n)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{importer.ErrTooManyImports, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{importer.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{importer.ErrUnsupportedFile, http.StatusUnsupportedMediaType},
		{importer.ErrCSVNotImplemented, http.StatusNotImplemented},
		{metadata.ErrInvalid, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
