package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"cashbook/internal/export"
	"cashbook/internal/log"
)

// handleExport sends the whole collection as a workbook download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ts := s.ctrl.Snapshot()

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, ts); err != nil {
		if errors.Is(err, export.ErrNothingToExport) {
			ConflictError(err.Error()).Write(w, r)
			return
		}
		log.NewStructuredLogger(log.FromContext(ctx)).
			LogError(ctx, "Export failed", err, log.ComponentExport, log.OpExport, log.NewFields().WithCount(len(ts)))
		InternalServerError("export failed").Write(w, r)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Transactions exported", log.FieldCount, len(ts))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
