package server

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ayusman/lune/internal/calibration"
	"github.com/ayusman/lune/internal/detector"
	"github.com/ayusman/lune/internal/geometry"
	"github.com/ayusman/lune/internal/ringsize"
	"github.com/ayusman/lune/internal/session"
)

var testViewport = geometry.Viewport{Width: 1280, Height: 720}

// spanLandmarks returns a hand whose vertical ring finger spans spanPx on
// testViewport.
func spanLandmarks(spanPx float64) []detector.Landmark {
	h := detector.OpenPalmLandmarks()
	h.Points[detector.RingMCP] = detector.Landmark{X: 0.5, Y: 0.5}
	h.Points[detector.RingPIP] = detector.Landmark{X: 0.5, Y: 0.5 + spanPx/testViewport.Height}
	return h.Points[:]
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/health", nil)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var response map[string]any
		decodeBody(t, rec, &response)
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
			rec := do(t, s, method, "/api/health", nil)
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})

	t.Run("msgpack format", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/health?format=msgpack", nil)
		if ct := rec.Header().Get("Content-Type"); ct != "application/x-msgpack" {
			t.Fatalf("expected msgpack content type, got %s", ct)
		}
		var response map[string]any
		if err := msgpack.Unmarshal(rec.Body.Bytes(), &response); err != nil {
			t.Fatalf("msgpack decode: %v", err)
		}
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/nonexistent", "/", "/api/recordings", "/api/camera"} {
		if rec := do(t, s, http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>Ring sizer</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	cssContent := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir})

	t.Run("serves index.html at root path", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/", nil)
		if rec.Code != http.StatusOK || rec.Body.String() != testContent {
			t.Errorf("got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("serves static files from configured directory", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/style.css", nil)
		if rec.Code != http.StatusOK || rec.Body.String() != cssContent {
			t.Errorf("got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		if rec := do(t, s, http.MethodGet, "/nonexistent.html", nil); rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("api routes win over static files", func(t *testing.T) {
		if rec := do(t, s, http.MethodGet, "/api/health", nil); rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
	})
}

func TestNew(t *testing.T) {
	s := New(Config{StaticDir: "/some/path"})
	if s.config.StaticDir != "/some/path" {
		t.Errorf("expected StaticDir /some/path, got %s", s.config.StaticDir)
	}
	if s.config.Session.Window != session.DefaultOptions().Window {
		t.Errorf("expected default session options, got %+v", s.config.Session)
	}
	var _ http.Handler = s
}

func TestServer_Sizes(t *testing.T) {
	s := New(Config{})

	rec := do(t, s, http.MethodGet, "/api/sizes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var table []ringsize.Entry
	decodeBody(t, rec, &table)
	if len(table) != len(ringsize.Table()) {
		t.Errorf("expected %d rows, got %d", len(ringsize.Table()), len(table))
	}
}

func TestServer_Lookup(t *testing.T) {
	s := New(Config{})

	tests := []struct {
		name   string
		query  string
		status int
		wantUS float64
	}{
		{"diameter", "diameter=17.3", http.StatusOK, 7},
		{"circumference", "circumference=54.4", http.StatusOK, 7},
		{"us", "us=7", http.StatusOK, 7},
		{"uk lower case", "uk=n", http.StatusOK, 7},
		{"eu", "eu=54", http.StatusOK, 7},
		{"no match", "diameter=1000", http.StatusNotFound, 0},
		{"unknown us", "us=7.25", http.StatusNotFound, 0},
		{"bad number", "diameter=abc", http.StatusBadRequest, 0},
		{"bad eu", "eu=54.5", http.StatusBadRequest, 0},
		{"missing parameter", "", http.StatusBadRequest, 0},
		{"bad band width", "us=7&band_width=-1", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, "/api/sizes/lookup?"+tt.query, nil)
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			var body map[string]any
			decodeBody(t, rec, &body)
			if tt.status != http.StatusOK {
				if body["error"] == nil {
					t.Error("expected an error message")
				}
				if tt.status == http.StatusNotFound && body["error"] != "no match" {
					t.Errorf("expected 'no match', got %v", body["error"])
				}
				return
			}
			if body["us"] != tt.wantUS {
				t.Errorf("expected US %v, got %v", tt.wantUS, body["us"])
			}
			if _, ok := body["advice"]; ok {
				t.Error("advice only appears with band_width")
			}
		})
	}

	t.Run("band width", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/sizes/lookup?us=7&band_width=6", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var body lookupResponse
		decodeBody(t, rec, &body)
		if body.UK != "N" || body.AdjustedUS != 7.5 || body.BandWidthMm != 6 {
			t.Errorf("unexpected response %+v", body)
		}
		if body.Advice != ringsize.BandWidthAdvice(6) {
			t.Errorf("unexpected advice %q", body.Advice)
		}
	})
}

func TestServer_Measure(t *testing.T) {
	s := New(Config{})

	t.Run("reference calibration", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/measure", map[string]any{
			"landmarks": spanLandmarks(100),
			"viewport":  testViewport,
			"reference": calibration.ReferenceScale{KnownMm: 22.5, MeasuredPx: 100},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var res session.Result
		decodeBody(t, rec, &res)
		if math.Abs(res.Sample.DiameterMm-18) > 1e-6 {
			t.Errorf("diameter = %f, want 18", res.Sample.DiameterMm)
		}
		if res.Sample.Method != calibration.MethodReference {
			t.Errorf("method = %v, want reference", res.Sample.Method)
		}
		if res.Size == nil || res.Size.US != 8 {
			t.Errorf("size = %+v, want US 8", res.Size)
		}
		if !res.Transform.Visible {
			t.Error("expected a visible overlay")
		}
	})

	t.Run("anatomical profile", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/measure", map[string]any{
			"landmarks": spanLandmarks(100),
			"viewport":  testViewport,
			"gender":    "male",
			"size":      "l",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var res session.Result
		decodeBody(t, rec, &res)
		if res.Sample.Method != calibration.MethodAnatomical || !res.Sample.Valid() {
			t.Errorf("unexpected sample %+v", res.Sample)
		}
	})

	bad := []struct {
		name string
		body any
	}{
		{"no landmarks", map[string]any{"viewport": testViewport}},
		{"too few landmarks", map[string]any{"landmarks": spanLandmarks(100)[:5], "viewport": testViewport}},
		{"bad viewport", map[string]any{"landmarks": spanLandmarks(100), "viewport": geometry.Viewport{}}},
		{"bad gender", map[string]any{"landmarks": spanLandmarks(100), "viewport": testViewport, "gender": "robot"}},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, s, http.MethodPost, "/api/measure", tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rec.Code)
			}
		})
	}

	t.Run("empty body", func(t *testing.T) {
		if rec := do(t, s, http.MethodPost, "/api/measure", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("msgpack request", func(t *testing.T) {
		enc, err := msgpackJSON(map[string]any{
			"landmarks": spanLandmarks(100),
			"viewport":  testViewport,
			"reference": calibration.ReferenceScale{KnownMm: 22.5, MeasuredPx: 100},
		})
		if err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/measure?format=msgpack", bytes.NewReader(enc))
		req.Header.Set("Content-Type", "application/x-msgpack")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var res session.Result
		dec := msgpack.NewDecoder(rec.Body)
		dec.SetCustomStructTag("json")
		if err := dec.Decode(&res); err != nil {
			t.Fatalf("msgpack decode: %v", err)
		}
		if math.Abs(res.Sample.DiameterMm-18) > 1e-6 {
			t.Errorf("diameter = %f, want 18", res.Sample.DiameterMm)
		}
	})
}

func msgpackJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	err := enc.Encode(v)
	return buf.Bytes(), err
}

func TestServer_MethodRouting(t *testing.T) {
	s := New(Config{})
	if rec := do(t, s, http.MethodGet, "/api/measure", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/measure: expected 405, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/sizes", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/sizes: expected 405, got %d", rec.Code)
	}
	if !strings.HasPrefix(do(t, s, http.MethodGet, "/api/sizes", nil).Header().Get("Access-Control-Allow-Origin"), "*") {
		t.Error("expected CORS header")
	}
}
