package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/store"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/transactions/", time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestListSendsDateRange(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/transactions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		io.WriteString(w, `[{"id":"1","date":"2025-08-20","category":"Food","type":"expense","amount":500}]`)
	})

	from, _ := core.ParseDate("2025-08-01")
	list, err := c.List(context.Background(), &store.DateRange{From: from})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotQuery != "date_gte=2025-08-01" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if len(list) != 1 || list[0].Amount.Cents != 50000 || list[0].Type != core.Expense {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestCreateAndUpdateSendJSON(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["type"] != "income" || body["category"] != "Salary" {
			t.Errorf("unexpected body %v", body)
		}
		body["id"] = "42"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(body)
	})

	tx := core.Transaction{ID: core.Provisional(1), Date: core.NewDate(2025, 8, 19), Category: "Salary", Type: core.Income, Amount: core.Money{Cents: 404300}}
	created, err := c.Create(context.Background(), tx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID.String() != "42" || created.ID.IsProvisional() {
		t.Fatalf("expected server id, got %+v", created.ID)
	}
	if _, err := c.Update(context.Background(), core.Confirmed("42"), tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	want := []string{"POST /transactions", "PUT /transactions/42"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Fatalf("paths = %v", paths)
	}
}

func TestErrorsAreClassified(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		notFound bool
		decode   bool
	}{
		{"server error", http.StatusInternalServerError, "oops", false, false},
		{"not found", http.StatusNotFound, `"Not found"`, true, false},
		{"bad json", http.StatusOK, `<html>`, false, true},
		{"wrong shape", http.StatusOK, `{"id":"1"}`, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})
			_, err := c.List(context.Background(), nil)
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := errors.Is(err, store.ErrNotFound); got != tc.notFound {
				t.Fatalf("not found = %v, err=%v", got, err)
			}
			if got := errors.Is(err, store.ErrDecode); got != tc.decode {
				t.Fatalf("decode = %v, err=%v", got, err)
			}
		})
	}
}

func TestDeleteIgnoresBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/transactions/a%20b" && r.URL.Path != "/transactions/a b" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `{"id":"a b"}`)
	})
	if err := c.Delete(context.Background(), core.Confirmed("a b")); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestUnreachableIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = c.Delete(context.Background(), core.Confirmed("1"))
	if err == nil || errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrDecode) {
		t.Fatalf("expected plain transport error, got %v", err)
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	if _, err := New("ftp://example.com", 0); err == nil {
		t.Fatalf("expected scheme error")
	}
}
