package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Hearthside-Labs/Mosaic/internal/config"
	"github.com/Hearthside-Labs/Mosaic/internal/engine"
	"github.com/Hearthside-Labs/Mosaic/internal/palette"
	"github.com/Hearthside-Labs/Mosaic/internal/scoring"
	"github.com/Hearthside-Labs/Mosaic/internal/store"
)

// Mocks
type mockStore struct {
	datasets map[string]*store.Dataset
}

func newMockStore() *mockStore {
	return &mockStore{datasets: make(map[string]*store.Dataset)}
}

func (m *mockStore) LoadDataset(_ context.Context, name string) (*store.Dataset, error) {
	ds, ok := m.datasets[name]
	if !ok {
		return nil, fmt.Errorf("read dataset: %w", fs.ErrNotExist)
	}
	return ds, nil
}

func (m *mockStore) ListDatasets(_ context.Context) ([]store.DatasetInfo, error) {
	var out []store.DatasetInfo
	for name, ds := range m.datasets {
		out = append(out, store.DatasetInfo{Name: name, Regions: ds.Len(), UpdatedAt: time.Now()})
	}
	return out, nil
}

func (m *mockStore) Stats(_ context.Context) (*store.Stats, error) {
	s := &store.Stats{Datasets: len(m.datasets), ByName: make(map[string]int)}
	for name, ds := range m.datasets {
		s.Regions += ds.Len()
		s.ByName[name] = ds.Len()
	}
	return s, nil
}

func (m *mockStore) Close() error { return nil }

func apiDataset() *store.Dataset {
	regions := []*store.Region{
		{ID: "06001400100", Name: "Downtown Tract",
			Geometry: json.RawMessage(`{"type":"Point","coordinates":[-122.27,37.8]}`),
			Scores: scoring.FactorScores{
				scoring.FactorPrice:       0.2,
				scoring.FactorWalkability: 0.9,
				scoring.FactorTraffic:     1.0,
			}},
		{ID: "06001400200", Name: "Hillside Tract",
			Geometry: json.RawMessage(`{"type":"Point","coordinates":[-122.1,37.7]}`),
			Scores: scoring.FactorScores{
				scoring.FactorWalkability: 0.4,
				scoring.FactorTraffic:     0.25,
			}},
	}
	return store.NewDataset("bay-area", regions, nil)
}

func setupTestRouter() (http.Handler, *engine.Engine, *mockStore) {
	ms := newMockStore()
	ms.datasets["bay-area"] = apiDataset()
	ms.datasets["king-county"] = store.NewDataset("king-county", []*store.Region{
		{ID: "53033000100", Name: "Ballard", Scores: scoring.FactorScores{scoring.FactorTraffic: 0.8}},
	}, nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Engine:  config.EngineConfig{FrameIntervalMs: 50, SessionTTLMinutes: 45},
		Scoring: config.ScoringConfig{Scheme: "category", Palette: "thermal"},
	}
	e := engine.New(ms.datasets["bay-area"], scoring.CategorySchema(), palette.Thermal(), nil, nil, cfg, logger)
	router := NewRouter(e, ms, nil, nil, "test-token", logger)
	return router, e, ms
}

func createTestSession(t *testing.T, router http.Handler) CreateSessionResponse {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/sessions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp CreateSessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return resp
}

func TestCreateSession(t *testing.T) {
	router, _, _ := setupTestRouter()

	resp := createTestSession(t, router)
	if resp.Session == nil || resp.Batch == nil {
		t.Fatal("expected session and batch in create response")
	}
	if resp.Session.Weights["affordability"] != 3 {
		t.Errorf("expected default affordability 3, got %d", resp.Session.Weights["affordability"])
	}
	if len(resp.Batch.Regions) != 2 {
		t.Errorf("expected 2 regions in initial batch, got %d", len(resp.Batch.Regions))
	}
	if resp.Batch.Seq != 1 {
		t.Errorf("expected initial seq 1, got %d", resp.Batch.Seq)
	}
}

func TestGetSession(t *testing.T) {
	router, _, _ := setupTestRouter()
	created := createTestSession(t, router)

	req := httptest.NewRequest("GET", "/api/v1/sessions/"+created.Session.ID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/sessions/not-a-uuid", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/sessions/00000000-0000-0000-0000-000000000001", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", w.Code)
	}
}

func TestEndSession(t *testing.T) {
	router, _, _ := setupTestRouter()
	created := createTestSession(t, router)
	sid := created.Session.ID.String()

	req := httptest.NewRequest("DELETE", "/api/v1/sessions/"+sid, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/sessions/"+sid, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after end, got %d", w.Code)
	}
}

func TestPutWeight(t *testing.T) {
	router, _, _ := setupTestRouter()
	created := createTestSession(t, router)
	sid := created.Session.ID.String()

	body := `{"value":5}`
	req := httptest.NewRequest("PUT", "/api/v1/sessions/"+sid+"/weights/affordability", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var view engine.SessionView
	json.NewDecoder(w.Body).Decode(&view)
	if view.Weights["affordability"] != 5 {
		t.Errorf("expected affordability 5, got %d", view.Weights["affordability"])
	}

	// Missing value field.
	req = httptest.NewRequest("PUT", "/api/v1/sessions/"+sid+"/weights/affordability", bytes.NewBufferString(`{}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing value, got %d", w.Code)
	}

	// Unknown group.
	req = httptest.NewRequest("PUT", "/api/v1/sessions/"+sid+"/weights/schools", bytes.NewBufferString(`{"value":3}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown group, got %d", w.Code)
	}

	// Out-of-range value.
	req = httptest.NewRequest("PUT", "/api/v1/sessions/"+sid+"/weights/affordability", bytes.NewBufferString(`{"value":6}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for out-of-range value, got %d", w.Code)
	}
}

func TestPutWeightsBulk(t *testing.T) {
	router, _, _ := setupTestRouter()
	created := createTestSession(t, router)
	sid := created.Session.ID.String()

	body := `{"weights":{"affordability":5,"traffic":0}}`
	req := httptest.NewRequest("PUT", "/api/v1/sessions/"+sid+"/weights", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var view engine.SessionView
	json.NewDecoder(w.Body).Decode(&view)
	if view.Weights["affordability"] != 5 || view.Weights["traffic"] != 0 {
		t.Errorf("bulk weights not applied: %v", view.Weights)
	}

	// One bad entry rejects the whole batch.
	body = `{"weights":{"livability":1,"schools":2}}`
	req = httptest.NewRequest("PUT", "/api/v1/sessions/"+sid+"/weights", bytes.NewBufferString(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for partial batch, got %d", w.Code)
	}
	req = httptest.NewRequest("GET", "/api/v1/sessions/"+sid, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	json.NewDecoder(w.Body).Decode(&view)
	if view.Weights["livability"] != 3 {
		t.Errorf("rejected batch leaked: %v", view.Weights)
	}
}

func TestPutSelectionFloorConflict(t *testing.T) {
	router, _, _ := setupTestRouter()
	created := createTestSession(t, router)
	sid := created.Session.ID.String()

	for _, factor := range []string{"walkability", "transit"} {
		req := httptest.NewRequest("PUT", "/api/v1/sessions/"+sid+"/selections/livability/"+factor,
			bytes.NewBufferString(`{"enabled":false}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("disable %s: expected 200, got %d: %s", factor, w.Code, w.Body.String())
		}
	}

	req := httptest.NewRequest("PUT", "/api/v1/sessions/"+sid+"/selections/livability/noise",
		bytes.NewBufferString(`{"enabled":false}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 at the selection floor, got %d", w.Code)
	}

	// Toggling an always-on group member is a plain bad request.
	req = httptest.NewRequest("PUT", "/api/v1/sessions/"+sid+"/selections/traffic/traffic",
		bytes.NewBufferString(`{"enabled":false}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for always-on toggle, got %d", w.Code)
	}
}

func TestResetSession(t *testing.T) {
	router, _, _ := setupTestRouter()
	created := createTestSession(t, router)
	sid := created.Session.ID.String()

	req := httptest.NewRequest("PUT", "/api/v1/sessions/"+sid+"/weights/affordability", bytes.NewBufferString(`{"value":0}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/v1/sessions/"+sid+"/reset", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view engine.SessionView
	json.NewDecoder(w.Body).Decode(&view)
	if view.Weights["affordability"] != 3 {
		t.Errorf("reset did not restore defaults: %v", view.Weights)
	}
}

func TestAttributesReflectWrites(t *testing.T) {
	router, _, _ := setupTestRouter()
	created := createTestSession(t, router)
	sid := created.Session.ID.String()

	// Zero everything but traffic; downtown scores a clean 100.
	body := `{"weights":{"affordability":0,"livability":0,"environmental":0}}`
	req := httptest.NewRequest("PUT", "/api/v1/sessions/"+sid+"/weights", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/sessions/"+sid+"/attributes", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var batch engine.RecolorBatch
	json.NewDecoder(w.Body).Decode(&batch)
	if batch.Seq != 2 {
		t.Errorf("expected recomputed seq 2, got %d", batch.Seq)
	}
	if batch.Regions[0].Index != 100 || batch.Regions[1].Index != 25 {
		t.Errorf("unexpected indexes: %d, %d", batch.Regions[0].Index, batch.Regions[1].Index)
	}
}

func TestRegionEndpoints(t *testing.T) {
	router, _, _ := setupTestRouter()
	created := createTestSession(t, router)
	sid := created.Session.ID.String()

	req := httptest.NewRequest("GET", "/api/v1/sessions/"+sid+"/regions/06001400100", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var report engine.RegionReport
	json.NewDecoder(w.Body).Decode(&report)
	if report.Index != 55 || report.Name != "Downtown Tract" {
		t.Errorf("unexpected report: %+v", report)
	}

	req = httptest.NewRequest("GET", "/api/v1/sessions/"+sid+"/regions/06001400100/breakdown", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var breakdown engine.BreakdownReport
	json.NewDecoder(w.Body).Decode(&breakdown)
	if len(breakdown.Contributions) != 9 {
		t.Errorf("expected 9 contributions, got %d", len(breakdown.Contributions))
	}

	req = httptest.NewRequest("GET", "/api/v1/sessions/"+sid+"/regions/99999", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown region, got %d", w.Code)
	}
}

func TestShortlist(t *testing.T) {
	router, _, _ := setupTestRouter()
	created := createTestSession(t, router)
	sid := created.Session.ID.String()

	req := httptest.NewRequest("GET", "/api/v1/sessions/"+sid+"/shortlist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list []*engine.RegionReport
	json.NewDecoder(w.Body).Decode(&list)
	if len(list) == 0 {
		t.Fatal("expected a non-empty shortlist")
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Index < list[i].Index {
			t.Errorf("shortlist not sorted: %d before %d", list[i-1].Index, list[i].Index)
		}
	}

	req = httptest.NewRequest("GET", "/api/v1/sessions/"+sid+"/shortlist?limit=zero", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestTranslateWithoutProvider(t *testing.T) {
	router, _, _ := setupTestRouter()
	created := createTestSession(t, router)
	sid := created.Session.ID.String()

	req := httptest.NewRequest("POST", "/api/v1/sessions/"+sid+"/translate",
		bytes.NewBufferString(`{"text":"cheap and quiet"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a translator, got %d", w.Code)
	}
}

func TestNarrativeWithoutProvider(t *testing.T) {
	router, _, _ := setupTestRouter()
	created := createTestSession(t, router)
	sid := created.Session.ID.String()

	req := httptest.NewRequest("POST", "/api/v1/sessions/"+sid+"/narrative",
		bytes.NewBufferString(`{"region_id":"06001400100"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a requestor, got %d", w.Code)
	}
}

func TestDatasetEndpoints(t *testing.T) {
	router, _, _ := setupTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/datasets", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var infos []store.DatasetInfo
	json.NewDecoder(w.Body).Decode(&infos)
	if len(infos) != 2 {
		t.Errorf("expected 2 datasets, got %d", len(infos))
	}

	req = httptest.NewRequest("GET", "/api/v1/datasets/active", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var active engine.DatasetView
	json.NewDecoder(w.Body).Decode(&active)
	if active.Name != "bay-area" || active.Regions != 2 {
		t.Errorf("unexpected active dataset: %+v", active)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/schema", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view SchemaView
	json.NewDecoder(w.Body).Decode(&view)
	if view.MaxWeight != scoring.MaxWeight {
		t.Errorf("expected max weight %d, got %d", scoring.MaxWeight, view.MaxWeight)
	}
	if len(view.Groups) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(view.Groups))
	}
	if view.Groups[0].Key != "affordability" || view.Groups[3].Key != "traffic" {
		t.Errorf("groups out of schema order: %+v", view.Groups)
	}
	if !view.Groups[3].AlwaysOn {
		t.Error("traffic group should be always-on")
	}
}

func TestAdminRequiresToken(t *testing.T) {
	router, _, _ := setupTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/admin/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}
}

func TestAdminActivateDataset(t *testing.T) {
	router, e, _ := setupTestRouter()
	created := createTestSession(t, router)

	req := httptest.NewRequest("POST", "/api/v1/admin/datasets/king-county/activate", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var active engine.DatasetView
	json.NewDecoder(w.Body).Decode(&active)
	if active.Name != "king-county" || active.Regions != 1 {
		t.Errorf("unexpected activated dataset: %+v", active)
	}
	if e.ActiveDataset().Name != "king-county" {
		t.Error("engine did not swap datasets")
	}

	// Existing sessions survive the swap with their weights intact.
	view, err := e.Session(created.Session.ID)
	if err != nil {
		t.Fatalf("session lost on swap: %v", err)
	}
	if view.Weights["affordability"] != 3 {
		t.Errorf("weights changed on swap: %v", view.Weights)
	}

	req = httptest.NewRequest("POST", "/api/v1/admin/datasets/nowhere/activate", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown dataset, got %d", w.Code)
	}
}

func TestAdminSessions(t *testing.T) {
	router, _, _ := setupTestRouter()
	createTestSession(t, router)
	createTestSession(t, router)

	req := httptest.NewRequest("GET", "/api/v1/admin/sessions", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var views []*engine.SessionView
	json.NewDecoder(w.Body).Decode(&views)
	if len(views) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(views))
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := NewMetricsRouter()
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := NewMetricsRouter()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
