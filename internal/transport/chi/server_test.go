package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/draftbox-io/stampline/internal/domain/record"
	"github.com/draftbox-io/stampline/internal/query"
	"github.com/draftbox-io/stampline/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	logger := zap.NewNop()
	return NewServer(query.NewService(st, logger), st, logger), st
}

func seed(t *testing.T, st *store.MemoryStore, image string, fields map[string]string) *record.Record {
	t.Helper()
	rec, err := record.New(image, fields)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Put(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestListRecords(t *testing.T) {
	srv, st := newTestServer(t)
	seed(t, st, "DRW-001_stamp.png", map[string]string{record.FieldTechnicalArea: "BANA"})
	seed(t, st, "DRW-002_stamp.png", map[string]string{record.FieldTechnicalArea: "EL"})

	req := httptest.NewRequest("GET", "/v1/records?filter=TEKNIKOMRADE+%3D+%27EL%27", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Items []recordResponse `json:"items"`
		Total int              `json:"total"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Items) != 1 {
		t.Fatalf("total = %d, items = %d", resp.Total, len(resp.Items))
	}
	if resp.Items[0].Fields[record.FieldTechnicalArea] != "EL" {
		t.Errorf("area = %q", resp.Items[0].Fields[record.FieldTechnicalArea])
	}
}

func TestListRecords_BadFilter(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/v1/records?filter=NOSUCH+%3D+%27x%27", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestListRecords_BadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/v1/records?limit=nope", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestListRecords_UnsafeFilterYieldsEmpty(t *testing.T) {
	srv, st := newTestServer(t)
	seed(t, st, "DRW-001_stamp.png", nil)

	req := httptest.NewRequest("GET", "/v1/records?filter=BLAD+%3D+%27001%27%3B+DROP", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 0 {
		t.Errorf("total = %d, want 0 for a blocked filter", resp.Total)
	}
}

func TestGetRecord(t *testing.T) {
	srv, st := newTestServer(t)
	rec := seed(t, st, "DRW-001_stamp.png", map[string]string{record.FieldSheet: "001"})
	rec.Flag(record.FieldSheet, "sheet number disagrees with filename digits")
	if err := st.Put(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/v1/records/DRW-001", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp recordResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Key != "DRW-001" {
		t.Errorf("key = %q", resp.Key)
	}
	if resp.Flags[record.FieldSheet] == "" {
		t.Error("flag missing from response")
	}
}

func TestGetRecord_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/v1/records/MISSING", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}
