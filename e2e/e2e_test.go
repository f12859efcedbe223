package e2e

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/lune/internal/app"
	"github.com/ayusman/lune/internal/calibration"
	"github.com/ayusman/lune/internal/detector"
	"github.com/ayusman/lune/internal/geometry"
	"github.com/ayusman/lune/internal/server"
	"github.com/ayusman/lune/internal/session"
	"github.com/ayusman/lune/internal/store"
)

var viewport = geometry.Viewport{Width: 1280, Height: 720}

// spanHand returns landmarks with a vertical ring finger spanning spanPx.
func spanHand(spanPx float64) []detector.Landmark {
	h := detector.OpenPalmLandmarks()
	h.Points[detector.RingMCP] = detector.Landmark{X: 0.5, Y: 0.5}
	h.Points[detector.RingPIP] = detector.Landmark{X: 0.5, Y: 0.5 + spanPx/viewport.Height}
	return h.Points[:]
}

func postJSON(t *testing.T, client *http.Client, url string, body any, out any) int {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	srv := server.New(server.Config{Store: s})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	reference := calibration.ReferenceScale{KnownMm: 22.5, MeasuredPx: 100}

	t.Run("TrackWithSpike", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/track", nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()

		send := func(msg any) map[string]json.RawMessage {
			if err := conn.WriteJSON(msg); err != nil {
				t.Fatalf("write: %v", err)
			}
			var reply map[string]json.RawMessage
			if err := conn.ReadJSON(&reply); err != nil {
				t.Fatalf("read: %v", err)
			}
			return reply
		}

		send(map[string]any{"type": "calibrate", "reference": reference})

		var last session.Result
		for i := 0; i < 10; i++ {
			span := 100.0
			if i == 5 {
				span = 120
			}
			reply := send(map[string]any{"landmarks": spanHand(span), "viewport": viewport, "timestamp_ms": i * 66})
			if err := json.Unmarshal(reply["result"], &last); err != nil {
				t.Fatalf("result %d: %v", i, err)
			}
		}

		if math.Abs(last.Measurement.DiameterMm-18) > 1e-6 {
			t.Errorf("stabilized diameter = %f, want 18 with the spike rejected", last.Measurement.DiameterMm)
		}
		if last.Size == nil || last.Size.US != 8 {
			t.Errorf("size = %+v, want US 8", last.Size)
		}
		if math.Abs(last.Transform.RotationDeg) > 1e-6 {
			t.Errorf("vertical finger rotation = %f, want 0", last.Transform.RotationDeg)
		}
	})

	var recordingID string
	t.Run("CreateRecording", func(t *testing.T) {
		var rec store.Recording
		status := postJSON(t, client, ts.URL+"/api/recordings", map[string]any{
			"name":     "e2e",
			"gender":   "female",
			"viewport": viewport,
		}, &rec)
		if status != http.StatusCreated {
			t.Fatalf("status = %d, want %d", status, http.StatusCreated)
		}
		recordingID = rec.ID
	})

	t.Run("AppendFrames", func(t *testing.T) {
		frames := make([]map[string]any, 0, 12)
		for i := 0; i < 12; i++ {
			f := map[string]any{"timestamp_ms": i * 66}
			if i%4 != 3 {
				f["landmarks"] = spanHand(100)
			}
			frames = append(frames, f)
		}
		var out map[string]int
		status := postJSON(t, client, ts.URL+"/api/recordings/"+recordingID+"/frames", map[string]any{"frames": frames}, &out)
		if status != http.StatusOK || out["frames"] != 12 {
			t.Fatalf("status = %d, frames = %d", status, out["frames"])
		}
	})

	t.Run("Replay", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/recordings/" + recordingID + "/replay?known_mm=22.5&measured_px=100")
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Results []session.Result `json:"results"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Results) != 12 {
			t.Fatalf("results = %d, want 12", len(body.Results))
		}
		misses := 0
		for _, r := range body.Results {
			if !r.Visible {
				misses++
			}
		}
		if misses != 3 {
			t.Errorf("misses = %d, want 3", misses)
		}
		if last := body.Results[11]; last.Size == nil || last.Size.US != 8 {
			t.Errorf("final size = %+v, want US 8", last.Size)
		}
	})

	t.Run("Lookup", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/sizes/lookup?diameter=18&band_width=4")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		defer resp.Body.Close()
		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		if body["us"] != 8.0 || body["adjusted_us"] != 8.5 {
			t.Errorf("unexpected lookup %v", body)
		}
	})
}

func TestE2E_CameraPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	application := app.New(app.Config{Store: s, Detector: detector.NewMockDetector()})
	srv := server.New(server.Config{Store: s, App: application})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/live", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Wait for the hub to register the client.
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := ts.Client().Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatal(err)
		}
		var health map[string]any
		json.NewDecoder(resp.Body).Decode(&health)
		resp.Body.Close()
		if health["live"] == 1.0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("live client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	application.SetReference(calibration.ReferenceScale{KnownMm: 22.5, MeasuredPx: 100})
	hand := detector.FromPoints(spanHand(100))
	for i := 0; i < 3; i++ {
		application.Track(hand, viewport, time.UnixMilli(int64(i*66)))
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got session.Result
	for i := 0; i < 3; i++ {
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
	if got.Seq != 3 || got.Size == nil || got.Size.US != 8 {
		t.Errorf("unexpected live result %+v", got)
	}
}
