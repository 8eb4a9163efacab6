package http

import (
	"errors"
	"net/http"

	"cashbook/internal/log"
	"cashbook/internal/prefs"
)

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.currentPreferences(r.Context())).Write(w, r)
}

// handlePutPreferences merges the given fields into the stored preferences.
func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, fe, err := parsePreferences(w, r)
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	if fe != nil {
		ValidationError(fe.Field, fe.Message).Write(w, r)
		return
	}

	p, err := s.prefs.Update(ctx, req.Preferences())
	switch {
	case errors.Is(err, prefs.ErrInvalidTheme):
		ValidationError("theme", err.Error()).Write(w, r)
	case errors.Is(err, prefs.ErrInvalidCurrency):
		ValidationError("currency", err.Error()).Write(w, r)
	case err != nil:
		log.NewStructuredLogger(log.FromContext(ctx)).
			LogError(ctx, "Saving preferences failed", err, log.ComponentPrefs, log.OpUpdate, nil)
		InternalServerError("could not save preferences").Write(w, r)
	default:
		NewJSONResponse().Body(p).Write(w, r)
	}
}
