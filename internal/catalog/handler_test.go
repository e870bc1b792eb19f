package catalog

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

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, _ := newTestService(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Route("/api/catalog", NewHandler(logger, svc).MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(target); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHandlerBranchOverrides(t *testing.T) {
	h := newTestRouter(t)

	rr := do(t, h, http.MethodPost, "/api/catalog/items/",
		`{"name":"Flour","sku":"FL-001","category":"Dry Goods","storage_unit":"bag","ingredient_unit":"kg","storage_ingredient_factor":25,"defaults":{"reorder_level":10,"quantity":30,"min_level":5,"max_level":50}}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created Item
	decode(t, rr, &created)
	itemPath := "/api/catalog/items/" + created.ID

	rr = do(t, h, http.MethodGet, itemPath+"?branch=br-2", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before override, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodPut, itemPath+"/branches/br-2", `{"reorder_level":25}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var updated Item
	decode(t, rr, &updated)
	if o, ok := updated.BranchData["br-2"]; !ok || o.ReorderLevel == nil || *o.ReorderLevel != 25 {
		t.Fatalf("override not stored: %+v", updated.BranchData)
	}

	rr = do(t, h, http.MethodGet, itemPath+"?branch=br-2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resolved ResolvedItem
	decode(t, rr, &resolved)
	if resolved.BranchID != "br-2" || resolved.Effective.ReorderLevel != 25 || resolved.Effective.Quantity != 30 {
		t.Fatalf("unexpected resolved view %+v", resolved)
	}

	rr = do(t, h, http.MethodGet, itemPath, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var raw Item
	decode(t, rr, &raw)
	if raw.Defaults.ReorderLevel != 10 || len(raw.BranchData) != 1 {
		t.Fatalf("raw item should keep defaults and override records, got %+v", raw)
	}

	rr = do(t, h, http.MethodDelete, itemPath+"/branches/br-2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var cleared Item
	decode(t, rr, &cleared)
	if _, ok := cleared.BranchData["br-2"]; ok {
		t.Fatalf("override still present: %+v", cleared.BranchData)
	}

	rr = do(t, h, http.MethodDelete, itemPath+"/branches/br-2", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 clearing a missing override, got %d", rr.Code)
	}
	rr = do(t, h, http.MethodGet, itemPath+"?branch=br-2", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after clear, got %d", rr.Code)
	}
}

func TestHandlerRejectsBadInput(t *testing.T) {
	h := newTestRouter(t)

	rr := do(t, h, http.MethodGet, "/api/catalog/items/itm-missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown item, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/api/catalog/items/", `{"name":"Flour"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete form, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodPut, "/api/catalog/items/itm-missing/branches/br-1", `{"bogus":1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown override field, got %d", rr.Code)
	}
}
