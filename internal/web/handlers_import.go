package web

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/loggerimport/internal/importer"
	"github.com/JonMunkholm/loggerimport/internal/logging"
)

var errNoFilename = errors.New("no file provided: the filename query parameter is required")

type importResponse struct {
	ID uuid.UUID `json:"id"`
	importer.FileResult
}

// handleImport imports one logger file sent as the request body. The
// filename query parameter names the file; its extension selects the
// file type.
//
// The body is streamed through the importer, so memory does not grow with
// the file size.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	name := path.Base(strings.TrimSpace(r.URL.Query().Get("filename")))
	if name == "." || name == "/" {
		respondError(w, r, errNoFilename, http.StatusBadRequest)
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		w.Header().Set("Retry-After", "30")
		respondError(w, r, err, 0)
		return
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
	defer cancel()

	id := uuid.New()
	logger := logging.WithFields(ctx, "import_id", id)

	size := r.ContentLength
	if size < 0 {
		size = 0
	}
	res := s.importer.WithLogger(logger).ImportReader(ctx, r.Body, name, size)
	if res.Failed() {
		respondError(w, r, res.Err, 0)
		return
	}
	writeJSON(w, importResponse{ID: id, FileResult: res})
}
