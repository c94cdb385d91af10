package web

import (
	"bufio"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/loggerimport/internal/datatypes"
	"github.com/JonMunkholm/loggerimport/internal/importer"
	"github.com/JonMunkholm/loggerimport/internal/metadata"
)

// maxInferBody limits the values posted to /api/infer.
const maxInferBody = 1 << 20

type loggerSummary struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	TZ     string   `json:"tz"`
	Tables []string `json:"tables"`
}

type inferResponse struct {
	Type   string `json:"type"`
	PgType string `json:"pg_type,omitempty"`
	Count  int    `json:"count"`
}

type statusResponse struct {
	Imports importer.LimiterStatus `json:"imports"`
	Loggers int                    `json:"loggers"`
	Uptime  string                 `json:"uptime"`
}

// handleListLoggers lists the loaded loggers and their tables.
func (s *Server) handleListLoggers(w http.ResponseWriter, r *http.Request) {
	mds := s.importer.Metadata()
	out := make([]loggerSummary, 0, len(mds))
	for _, md := range mds {
		sum := loggerSummary{
			Name:   md.LoggerName,
			Type:   md.LoggerType.String(),
			Tables: []string{},
		}
		if md.TZ != nil {
			sum.TZ = md.TZ.String()
		}
		for _, t := range md.Tables() {
			sum.Tables = append(sum.Tables, t.Name)
		}
		out = append(out, sum)
	}
	writeJSON(w, out)
}

// handleGetTable describes one table of one logger.
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	md := s.findLogger(chi.URLParam(r, "logger"))
	if md == nil {
		respondNotFound(w, "logger")
		return
	}
	t, ok := md.Table(chi.URLParam(r, "table"))
	if !ok {
		respondNotFound(w, "table")
		return
	}
	writeJSON(w, t.Info())
}

func (s *Server) findLogger(name string) *metadata.Metadata {
	for _, md := range s.importer.Metadata() {
		if md.LoggerName == name {
			return md
		}
	}
	return nil
}

// handleInfer infers the type of newline separated values. Blank lines are
// ignored.
func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxInferBody)

	inf := datatypes.NewInferrer()
	sc := bufio.NewScanner(r.Body)
	for sc.Scan() {
		v := strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(v) == "" {
			continue
		}
		if err := inf.Send(v); err != nil {
			respondError(w, r, err, http.StatusUnprocessableEntity)
			return
		}
	}
	if err := sc.Err(); err != nil {
		respondError(w, r, err, 0)
		return
	}
	if inf.Count() == 0 {
		writeJSONStatus(w, http.StatusBadRequest, ErrorResponse{
			Error:   "no values provided",
			Message: "No values provided",
			Action:  "Send one value per line in the request body",
			Code:    "HTTP400",
		})
		return
	}

	t, err := inf.Finish()
	if err != nil {
		respondError(w, r, err, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, inferResponse{Type: t.String(), PgType: t.PgType(), Count: inf.Count()})
}

// handleStatus reports import slots and loaded loggers.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusResponse{
		Imports: s.limiter.Status(),
		Loggers: len(s.importer.Metadata()),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	})
}
