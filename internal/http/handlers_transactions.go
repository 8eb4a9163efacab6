package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"cashbook/internal/aggregate"
	"cashbook/internal/core"
	"cashbook/internal/format"
	"cashbook/internal/log"
	"cashbook/internal/prefs"
	"cashbook/internal/reconcile"
	"cashbook/internal/store"
	"cashbook/internal/view"
)

// listResponse is everything the list page renders in one pass. The view
// fields reflect the query filters; the totals cover the whole collection.
type listResponse struct {
	Transactions   []core.Transaction    `json:"transactions"`
	Rows           []format.Row          `json:"rows"`
	Summary        core.Summary          `json:"summary"`
	Totals         totalsDisplay         `json:"totals"`
	CategoryTotals []core.CategoryAmount `json:"categoryTotals"`
	Monthly        core.MonthlyTotals    `json:"monthly"`
	MonthLabels    [12]string            `json:"monthLabels"`
	Months         []monthOption         `json:"months"`
	Categories     []string              `json:"categories"`
	Range          *rangeBody            `json:"range,omitempty"`
	Notice         string                `json:"notice"`
	MutationError  string                `json:"mutationError,omitempty"`
	Editing        *editorBody           `json:"editing"`
	Currency       string                `json:"currency"`
	Theme          prefs.Theme           `json:"theme"`
}

type totalsDisplay struct {
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Balance string `json:"balance"`
}

type monthOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type rangeBody struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

type resetResponse struct {
	Deleted int      `json:"deleted"`
	Failed  []string `json:"failed"`
	Error   string   `json:"error,omitempty"`
	listResponse
}

// handleList serves the current view. A change of from/to re-lists the
// store with that range, as does refresh=true; other filters are applied
// to the held collection.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	o, err := parseViewOptions(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}

	forced, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	rng := rangeOf(o)

	var (
		ts     []core.Transaction
		notice string
	)
	if forced || !sameRange(rng, s.ctrl.Range()) {
		res := s.ctrl.Refresh(ctx, rng)
		ts, notice = res.Transactions, res.Notice
	} else {
		ts, notice = s.ctrl.Snapshot(), s.ctrl.Notice()
	}

	NewJSONResponse().Body(s.buildList(ctx, ts, o, notice)).Write(w, r)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, fe, err := parseTransaction(w, r)
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	if fe != nil {
		ValidationError(fe.Field, fe.Message).Write(w, r)
		return
	}
	s.respondMutation(w, r, s.ctrl.Add(r.Context(), req.Draft()), http.StatusCreated)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := core.Confirmed(r.PathValue("id"))
	req, fe, err := parseTransaction(w, r)
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	if fe != nil {
		ValidationError(fe.Field, fe.Message).Write(w, r)
		return
	}
	s.respondMutation(w, r, s.ctrl.Edit(r.Context(), id, req.Draft()), http.StatusOK)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := core.Confirmed(r.PathValue("id"))
	s.respondMutation(w, r, s.ctrl.Remove(r.Context(), id), http.StatusOK)
}

// handleReset deletes every transaction. Ids the store refused are listed
// in failed; the status stays 200 because the local collection is empty
// either way.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res := s.ctrl.ResetAll(ctx)

	body := resetResponse{
		Deleted:      res.Deleted,
		Failed:       make([]string, len(res.Failed)),
		listResponse: s.buildList(ctx, s.ctrl.Snapshot(), view.Options{}, res.Notice),
	}
	for i, id := range res.Failed {
		body.Failed[i] = id.String()
	}
	if res.Err != nil {
		body.Error = publicMessage(res.Err)
		log.FromContext(ctx).WarnContext(ctx, "Reset incomplete",
			log.NewFields().WithOperation(log.OpReset).WithCount(len(res.Failed)).WithError(res.Err).ToSlice()...)
	}
	NewJSONResponse().Body(body).Write(w, r)
}

// respondMutation maps a controller result to a response. Store failures
// that were followed by a refresh are not HTTP errors: the body carries the
// refreshed collection, the notice and mutationError.
func (s *Server) respondMutation(w http.ResponseWriter, r *http.Request, res reconcile.Result, okStatus int) {
	ctx := r.Context()

	var ve *core.ValidationError
	switch {
	case errors.As(res.Mutation, &ve):
		ValidationError(ve.Field, ve.Err.Error()).Write(w, r)
		return
	case errors.Is(res.Mutation, reconcile.ErrUnknownTransaction), store.IsNotFound(res.Mutation):
		NotFoundError(publicMessage(res.Mutation), res.Notice).Write(w, r)
		return
	}

	o, err := parseViewOptions(r)
	if err != nil {
		o = view.Options{}
	}
	body := s.buildList(ctx, res.Transactions, o, res.Notice)
	status := okStatus
	if res.Mutation != nil {
		body.MutationError = publicMessage(res.Mutation)
		status = http.StatusOK
	}
	if err := res.Err(); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Mutation finished with errors", log.FieldError, err.Error())
	}
	NewJSONResponse().Status(status).Body(body).Write(w, r)
}

// buildList derives the view of ts for o and computes the totals. The date
// range is a store query, so from/to are not re-applied here.
func (s *Server) buildList(ctx context.Context, ts []core.Transaction, o view.Options, notice string) listResponse {
	p := s.currentPreferences(ctx)

	rng := rangeOf(o)
	o.From, o.To = core.Date{}, core.Date{}
	visible := view.Derive(ts, o)

	summary := aggregate.Summarize(ts)
	body := listResponse{
		Transactions:   visible,
		Rows:           s.fmt.Rows(visible, p.Currency),
		Summary:        summary,
		CategoryTotals: aggregate.CategoryTotals(ts),
		Monthly:        aggregate.Monthly(ts, s.monthly),
		MonthLabels:    format.ShortMonths,
		Categories:     view.Categories(ts),
		Notice:         notice,
		Currency:       p.Currency,
		Theme:          p.Theme,
		Totals: totalsDisplay{
			Income:  s.fmt.Amount(summary.Income, p.Currency),
			Expense: s.fmt.Amount(summary.Expense, p.Currency),
			Balance: s.fmt.Amount(summary.Balance, p.Currency),
		},
	}
	if body.CategoryTotals == nil {
		body.CategoryTotals = []core.CategoryAmount{}
	}
	if body.Categories == nil {
		body.Categories = []string{}
	}
	months := view.Months(ts)
	body.Months = make([]monthOption, len(months))
	for i, m := range months {
		body.Months[i] = monthOption{Value: m, Label: format.MonthLabel(m)}
	}
	if rng != nil {
		body.Range = &rangeBody{}
		if rng.From.Valid() {
			body.Range.From = rng.From.String()
		}
		if rng.To.Valid() {
			body.Range.To = rng.To.String()
		}
	}
	if id, ok := s.ctrl.Editing(); ok {
		for _, t := range ts {
			if t.ID == id {
				body.Editing = newEditorBody(id, core.DraftOf(t))
				break
			}
		}
	}
	return body
}

func (s *Server) currentPreferences(ctx context.Context) prefs.Preferences {
	p, err := s.prefs.Get(ctx)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Preferences unavailable, using defaults", log.FieldError, err.Error())
	}
	return p
}
