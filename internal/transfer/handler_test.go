package transfer

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T) (http.Handler, *fixture) {
	t.Helper()
	f := newFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Route("/api/transfers", NewHandler(logger, f.svc).MountRoutes)
	return r, f
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandlerLifecycle(t *testing.T) {
	h, f := newTestRouter(t)

	rr := do(t, h, http.MethodPost, "/api/transfers/",
		`{"origin_id":"br-1","destination_id":"hq","items":[{"item_id":"X","quantity":5,"unit":"kg"}]}`,
		map[string]string{headerActor: "user-1"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created StockRequest
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != StatusNew || created.CreatedBy != "user-1" {
		t.Fatalf("unexpected request %+v", created)
	}

	rr = do(t, h, http.MethodPost, "/api/transfers/"+created.ID+"/approve", `{"expected_version":1}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/api/transfers/outbound?sort=destination&dir=desc&per_page=25", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("outbound: expected 200, got %d", rr.Code)
	}
	var page Page
	if err := json.NewDecoder(rr.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 1 || page.PerPage != 25 || page.Items[0].DestinationName != "Headquarters" {
		t.Fatalf("unexpected page %+v", page)
	}

	headers := map[string]string{headerIdempotencyKey: "dispatch-1"}
	for i := 0; i < 2; i++ {
		rr = do(t, h, http.MethodPost, "/api/transfers/"+created.ID+"/dispatch", "", headers)
		if rr.Code != http.StatusOK {
			t.Fatalf("dispatch attempt %d: expected 200, got %d: %s", i, rr.Code, rr.Body.String())
		}
	}

	rr = do(t, h, http.MethodPost, "/api/transfers/"+created.ID+"/receive", "", map[string]string{headerBranch: "br-2"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign receive: expected 403, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/api/transfers/inbound?branch=hq", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), created.RequestNumber) {
		t.Fatalf("inbound: unexpected response %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodPost, "/api/transfers/"+created.ID+"/receive", "", map[string]string{headerBranch: "hq"})
	if rr.Code != http.StatusOK {
		t.Fatalf("receive: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodPost, "/api/transfers/"+created.ID+"/approve", "", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("approve completed: expected 409, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("expected problem document, got %q", ct)
	}

	rr = do(t, h, http.MethodDelete, "/api/transfers/"+created.ID, "", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("delete completed: expected 409, got %d", rr.Code)
	}
	if len(f.notifier.changes) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(f.notifier.changes))
	}
}

func TestHandlerErrors(t *testing.T) {
	h, _ := newTestRouter(t)

	cases := []struct {
		name   string
		method string
		target string
		body   string
		code   int
	}{
		{"same origin and destination", http.MethodPost, "/api/transfers/", `{"origin_id":"hq","destination_id":"hq","items":[{"item_id":"X","quantity":1}]}`, http.StatusBadRequest},
		{"empty items", http.MethodPost, "/api/transfers/", `{"origin_id":"br-1","destination_id":"hq","items":[]}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/transfers/", `{"origin":"br-1"}`, http.StatusBadRequest},
		{"missing request", http.MethodGet, "/api/transfers/nope", "", http.StatusNotFound},
		{"bad sort key", http.MethodGet, "/api/transfers/outbound?sort=items", "", http.StatusBadRequest},
		{"bad page", http.MethodGet, "/api/transfers/outbound?page=x", "", http.StatusBadRequest},
		{"inbound without branch", http.MethodGet, "/api/transfers/inbound", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, tc.method, tc.target, tc.body, nil)
			if rr.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHandlerEditAndDelete(t *testing.T) {
	h, _ := newTestRouter(t)

	rr := do(t, h, http.MethodPost, "/api/transfers/",
		`{"origin_id":"br-1","destination_id":"hq","items":[{"item_id":"X","quantity":5}]}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	var created StockRequest
	_ = json.NewDecoder(rr.Body).Decode(&created)

	rr = do(t, h, http.MethodPatch, "/api/transfers/"+created.ID, `{"notes":"call ahead","expected_version":1}`, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "call ahead") {
		t.Fatalf("edit: %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodDelete, "/api/transfers/"+created.ID+"?version=1", "", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("stale delete: expected 409, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodDelete, "/api/transfers/"+created.ID+"?version=2", "", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rr.Code)
	}
}

func chunked(t *testing.T, h http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, io.MultiReader(strings.NewReader(body)))
	if req.ContentLength != -1 {
		t.Fatalf("expected unknown length, got %d", req.ContentLength)
	}
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandlerTransitionBodyWithoutLength(t *testing.T) {
	h, f := newTestRouter(t)

	rr := do(t, h, http.MethodPost, "/api/transfers/",
		`{"origin_id":"br-1","destination_id":"hq","items":[{"item_id":"X","quantity":5}]}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	var created StockRequest
	_ = json.NewDecoder(rr.Body).Decode(&created)

	rr = chunked(t, h, "/api/transfers/"+created.ID+"/approve", `{"expected_version":7}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("stale approve: expected 409, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = chunked(t, h, "/api/transfers/"+created.ID+"/approve", `{"bogus":true}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", rr.Code)
	}

	rr = chunked(t, h, "/api/transfers/"+created.ID+"/approve", `{"expected_version":1,"note":"ok for friday"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(f.approvals.logs) != 1 || f.approvals.logs[0].Note != "ok for friday" {
		t.Fatalf("note not recorded: %+v", f.approvals.logs)
	}

	rr = chunked(t, h, "/api/transfers/"+created.ID+"/dispatch", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("empty body dispatch: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}
