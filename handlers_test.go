package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kwv/capmesh/montage"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// newTestApp builds a fully wired app with the built-in layout placed on the
// default head sphere and no MQTT client.
func newTestApp(t *testing.T) *App {
	t.Helper()
	app := NewApp()
	app.Config = montage.DefaultConfig()
	app.Layout = montage.DefaultLayout()
	app.place(app.Config, app.Layout)
	app.Aligner = montage.NewAligner(app.Registry, app.Scene, app.Frame, nil, "", false)
	return app
}

// seedObservations feeds one observation per fiducial marker, matching each
// anchor role's reference midpoint exactly so the solve yields an identity
// fit.
func seedObservations(app *App) {
	reference := montage.ReferencePoints(montage.NewLocator(app.Scene))
	for role := 0; role < montage.AnchorCount; role++ {
		app.Registry.Observe(role+1, reference[role], montage.IdentityRotation())
	}
}

func getJSON(t *testing.T, handler http.Handler, path string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code == http.StatusOK && out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("GET %s: invalid JSON: %v", path, err)
		}
	}
	return rec
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// /health
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)
	handler := newHTTPServer(app)

	var health struct {
		Status     string `json:"status"`
		Landmarks  int    `json:"landmarks"`
		Calibrated bool   `json:"calibrated"`
	}
	rec := getJSON(t, handler, "/health", &health)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if health.Status != "ok" {
		t.Errorf("status field = %q, want ok", health.Status)
	}
	if health.Landmarks != app.Scene.Len() {
		t.Errorf("landmarks = %d, want %d", health.Landmarks, app.Scene.Len())
	}
	if health.Calibrated {
		t.Error("fresh app should not be calibrated")
	}
}

// ---------------------------------------------------------------------------
// /api/landmarks
// ---------------------------------------------------------------------------

func TestLandmarksEndpoint(t *testing.T) {
	app := newTestApp(t)
	handler := newHTTPServer(app)

	var response struct {
		Landmarks []montage.LandmarkPose `json:"landmarks"`
		Timestamp int64                  `json:"timestamp"`
	}
	rec := getJSON(t, handler, "/api/landmarks", &response)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(response.Landmarks) != app.Scene.Len() {
		t.Errorf("landmarks count = %d, want %d", len(response.Landmarks), app.Scene.Len())
	}
	if response.Timestamp == 0 {
		t.Error("response should carry a timestamp")
	}

	names := make(map[string]bool, len(response.Landmarks))
	for _, lm := range response.Landmarks {
		names[lm.Name] = true
	}
	if !names["Cz"] || !names["Fpz"] {
		t.Error("expected Cz and Fpz among the landmarks")
	}
}

// ---------------------------------------------------------------------------
// /api/fiducials
// ---------------------------------------------------------------------------

func TestFiducialsEndpoint_Empty(t *testing.T) {
	app := newTestApp(t)
	handler := newHTTPServer(app)

	var response struct {
		Fiducials  []json.RawMessage `json:"fiducials"`
		Complete   bool              `json:"complete"`
		Calibrated bool              `json:"calibrated"`
	}
	rec := getJSON(t, handler, "/api/fiducials", &response)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(response.Fiducials) != 0 || response.Complete {
		t.Errorf("fresh app should report no fiducials, got %d complete=%v",
			len(response.Fiducials), response.Complete)
	}
}

func TestFiducialsEndpoint_Populated(t *testing.T) {
	app := newTestApp(t)
	seedObservations(app)
	handler := newHTTPServer(app)

	var response struct {
		Fiducials []struct {
			ID   int    `json:"id"`
			Role string `json:"role"`
		} `json:"fiducials"`
		Complete bool `json:"complete"`
	}
	getJSON(t, handler, "/api/fiducials", &response)

	if !response.Complete {
		t.Error("all five markers observed, complete should be true")
	}
	if len(response.Fiducials) != montage.AnchorCount {
		t.Fatalf("fiducials count = %d, want %d", len(response.Fiducials), montage.AnchorCount)
	}
	if response.Fiducials[0].Role != "front" {
		t.Errorf("first role = %q, want front", response.Fiducials[0].Role)
	}
	if response.Fiducials[4].Role != "top" {
		t.Errorf("last role = %q, want top", response.Fiducials[4].Role)
	}
}

// ---------------------------------------------------------------------------
// /api/align
// ---------------------------------------------------------------------------

func TestAlignEndpoint_Incomplete(t *testing.T) {
	app := newTestApp(t)
	handler := newHTTPServer(app)

	rec := postJSON(t, handler, "/api/align", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 when observations incomplete", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "front") {
		t.Errorf("error should name the first missing marker, got %q", rec.Body.String())
	}
}

func TestAlignEndpoint_Success(t *testing.T) {
	app := newTestApp(t)
	seedObservations(app)
	handler := newHTTPServer(app)

	rec := postJSON(t, handler, "/api/align", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var record montage.AlignmentRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("invalid align response: %v", err)
	}
	// Observations match the reference midpoints exactly, so the scale is 1.
	for _, s := range []float64{record.Scale.X, record.Scale.Y, record.Scale.Z} {
		if s < 0.999 || s > 1.001 {
			t.Errorf("scale = %+v, want identity", record.Scale)
			break
		}
	}

	if !app.Registry.Calibrated() {
		t.Error("successful align should mark the registry calibrated")
	}
	if app.Frame.Committed() == nil {
		t.Error("successful align should commit to the frame")
	}
}

func TestAlignEndpoint_MethodNotAllowed(t *testing.T) {
	app := newTestApp(t)
	handler := newHTTPServer(app)

	rec := getJSON(t, handler, "/api/align", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/align status = %d, want 405", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// /api/alignment
// ---------------------------------------------------------------------------

func TestAlignmentEndpoint_Lifecycle(t *testing.T) {
	app := newTestApp(t)
	handler := newHTTPServer(app)

	var before struct {
		Calibrated bool                     `json:"calibrated"`
		Result     *montage.AlignmentRecord `json:"result"`
	}
	getJSON(t, handler, "/api/alignment", &before)
	if before.Calibrated || before.Result != nil {
		t.Errorf("fresh app alignment = %+v, want uncalibrated with no result", before)
	}

	seedObservations(app)
	if rec := postJSON(t, handler, "/api/align", ""); rec.Code != http.StatusOK {
		t.Fatalf("align failed: %d %s", rec.Code, rec.Body.String())
	}

	var after struct {
		Calibrated bool                     `json:"calibrated"`
		Result     *montage.AlignmentRecord `json:"result"`
	}
	getJSON(t, handler, "/api/alignment", &after)
	if !after.Calibrated || after.Result == nil {
		t.Errorf("post-align alignment = %+v, want calibrated with result", after)
	}
}

// ---------------------------------------------------------------------------
// /api/reset
// ---------------------------------------------------------------------------

func TestResetEndpoint(t *testing.T) {
	app := newTestApp(t)
	seedObservations(app)
	handler := newHTTPServer(app)

	if rec := postJSON(t, handler, "/api/align", ""); rec.Code != http.StatusOK {
		t.Fatalf("align failed: %d", rec.Code)
	}

	rec := postJSON(t, handler, "/api/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want 200", rec.Code)
	}
	if app.Registry.Calibrated() {
		t.Error("reset should reopen the registry")
	}
	if app.Frame.Committed() != nil {
		t.Error("reset should restore the identity frame")
	}
}

// ---------------------------------------------------------------------------
// /api/offset
// ---------------------------------------------------------------------------

func TestOffsetEndpoint(t *testing.T) {
	app := newTestApp(t)
	handler := newHTTPServer(app)

	rec := postJSON(t, handler, "/api/offset",
		`{"position": {"x": 0.1, "y": 0, "z": 0}, "rotation": {"x": 0, "y": 0, "z": 0}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("offset status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	manual := app.Frame.Manual()
	if manual.Position.X != 0.1 {
		t.Errorf("manual position X = %g, want 0.1", manual.Position.X)
	}
	// Omitted scale defaults to identity instead of collapsing to zero.
	if manual.Scale.X != 1 || manual.Scale.Y != 1 || manual.Scale.Z != 1 {
		t.Errorf("manual scale = %v, want identity", manual.Scale)
	}
}

func TestOffsetEndpoint_BadPayload(t *testing.T) {
	app := newTestApp(t)
	handler := newHTTPServer(app)

	rec := postJSON(t, handler, "/api/offset", `{broken`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("offset status = %d, want 400", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// /api/viewer
// ---------------------------------------------------------------------------

func TestViewerEndpoint(t *testing.T) {
	app := newTestApp(t)
	app.Config.CullDistance = 0.05
	handler := newHTTPServer(app)

	rec := postJSON(t, handler, "/api/viewer", `{"position": {"x": 10, "y": 0, "z": 0}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("viewer status = %d, want 200", rec.Code)
	}

	app.Scene.CullByDistance(app.Frame.Apply, app.Config.CullDistance)
	if visible := app.Scene.VisibleNames(); len(visible) != 0 {
		t.Errorf("distant viewer should cull everything, still visible: %v", visible)
	}

	// null position clears the viewer and restores visibility.
	rec = postJSON(t, handler, "/api/viewer", `{"position": null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("viewer clear status = %d, want 200", rec.Code)
	}
	if visible := app.Scene.VisibleNames(); len(visible) != app.Scene.Len() {
		t.Errorf("clearing the viewer should restore all %d landmarks, got %d",
			app.Scene.Len(), len(visible))
	}
}

// ---------------------------------------------------------------------------
// default route
// ---------------------------------------------------------------------------

func TestRootRoute(t *testing.T) {
	app := newTestApp(t)
	handler := newHTTPServer(app)

	rec := getJSON(t, handler, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("root status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}

	rec = getJSON(t, handler, "/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}
