package http

import (
	"errors"
	"net/http"

	"cashbook/internal/core"
	"cashbook/internal/reconcile"
)

type draftBody struct {
	Date     string `json:"date"`
	Category string `json:"category"`
	Type     string `json:"type"`
	Amount   string `json:"amount"`
}

// editorBody is the transaction in the edit slot with its prefilled fields.
type editorBody struct {
	ID    string    `json:"id"`
	Draft draftBody `json:"draft"`
}

func newEditorBody(id core.ID, d core.Draft) *editorBody {
	return &editorBody{
		ID:    id.String(),
		Draft: draftBody{Date: d.Date, Category: d.Category, Type: d.Type, Amount: d.Amount},
	}
}

func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	id := core.Confirmed(r.PathValue("id"))
	d, err := s.ctrl.BeginEdit(id)
	if errors.Is(err, reconcile.ErrUnknownTransaction) {
		NotFoundError(err.Error(), "").Write(w, r)
		return
	}
	if err != nil {
		InternalServerError(err.Error()).Write(w, r)
		return
	}
	NewJSONResponse().Body(newEditorBody(id, d)).Write(w, r)
}

func (s *Server) handleBeginAdd(w http.ResponseWriter, r *http.Request) {
	s.ctrl.BeginAdd()
	NoContent().Write(w, r)
}

func (s *Server) handleCloseEditor(w http.ResponseWriter, r *http.Request) {
	s.ctrl.CloseEditor()
	NoContent().Write(w, r)
}
