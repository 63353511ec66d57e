package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/facegate/internal/app"
	"github.com/ayusman/facegate/internal/capture"
	"github.com/ayusman/facegate/internal/config"
	"github.com/ayusman/facegate/internal/detector"
	"github.com/ayusman/facegate/internal/notify"
	"github.com/ayusman/facegate/internal/render"
	"github.com/ayusman/facegate/internal/server"
	"github.com/ayusman/facegate/internal/store"
	"github.com/ayusman/facegate/testdata"
)

// readEvent reads hub messages until an event of the given kind arrives.
func readEvent(t *testing.T, conn *websocket.Conn, kind notify.Kind) notify.Event {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", kind, err)
		}

		var m server.Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		if m.Type == "event" && m.Event != nil && m.Event.Kind == kind {
			return *m.Event
		}
	}
}

func postJSON(t *testing.T, client *http.Client, url, body string) *http.Response {
	t.Helper()
	resp, err := client.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	return resp
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	alice, err := testdata.Vectors(testdata.Alice)
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}

	settings := config.Default()
	settings.Camera.Cadence = 2 * time.Millisecond
	settings.Store.ExportDir = filepath.Join(tmpDir, "exports")

	mockDetector := detector.NewMockDetector()
	hub := server.NewDetectionsHub()
	application := app.New(app.Config{
		Settings: settings,
		Store:    s,
		Source:   capture.NewMockSource(),
		Detector: mockDetector,
		Sinks:    []render.Sink{hub},
		Notifier: hub,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer application.Stop()

	ts := httptest.NewServer(server.New(server.Config{App: application, Hub: hub}))
	defer ts.Close()
	client := ts.Client()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/detections", nil)
	if err != nil {
		t.Fatalf("dial detections: %v", err)
	}
	defer conn.Close()
	for hub.Clients() == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	var aliceID string

	t.Run("ImportDescriptors", func(t *testing.T) {
		doc, err := testdata.Document(testdata.Alice)
		if err != nil {
			t.Fatalf("load fixture: %v", err)
		}
		body, _ := json.Marshal(map[string]any{"name": "alice", "descriptors": json.RawMessage(doc)})

		resp := postJSON(t, client, ts.URL+"/api/enrollments", string(body))
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}

		var created struct {
			Enrollment struct {
				ID string `json:"id"`
			} `json:"enrollment"`
			Imported int `json:"imported"`
		}
		json.NewDecoder(resp.Body).Decode(&created)
		if created.Imported != 3 {
			t.Errorf("imported = %d, want 3", created.Imported)
		}
		aliceID = created.Enrollment.ID
	})

	t.Run("VerifyMatchingFace", func(t *testing.T) {
		mockDetector.SetDetections([]detector.Detection{detector.SampleFace(alice[2], 0.97)})

		resp := postJSON(t, client, ts.URL+"/api/session/verify", `{"enrollment_id":"`+aliceID+`"}`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
		}

		e := readEvent(t, conn, notify.KindVerified)
		if e.EnrollmentID != aliceID {
			t.Errorf("verified enrollment = %s, want %s", e.EnrollmentID, aliceID)
		}
		if e.Distance >= settings.Matcher.Threshold {
			t.Errorf("distance = %v, want below %v", e.Distance, settings.Matcher.Threshold)
		}
	})

	t.Run("RegisterNewFace", func(t *testing.T) {
		waitIdle(t, application)
		mockDetector.SetDetections([]detector.Detection{detector.SampleFace([]float64{0.5, 0.25, 0.125}, 0.9)})

		resp := postJSON(t, client, ts.URL+"/api/session/register", `{"name":"carol"}`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
		}

		e := readEvent(t, conn, notify.KindRegistered)
		if e.Name != "carol" || e.Captures != settings.Matcher.MaxCaptures {
			t.Errorf("unexpected registered event: %+v", e)
		}

		resp, err := client.Get(ts.URL + "/api/enrollments/" + e.EnrollmentID + "/descriptors")
		if err != nil {
			t.Fatalf("export error = %v", err)
		}
		defer resp.Body.Close()

		var exported [][]float64
		json.NewDecoder(resp.Body).Decode(&exported)
		if len(exported) != 3 {
			t.Fatalf("exported %d descriptors, want 3", len(exported))
		}
		for _, d := range exported {
			if len(d) != 3 || d[0] != 0.5 {
				t.Errorf("unexpected descriptor %v", d)
			}
		}
	})

	t.Run("ListEnrollments", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/enrollments")
		if err != nil {
			t.Fatalf("list error = %v", err)
		}
		defer resp.Body.Close()

		var listed struct {
			Enrollments []struct {
				Name string `json:"name"`
			} `json:"enrollments"`
		}
		json.NewDecoder(resp.Body).Decode(&listed)
		if len(listed.Enrollments) != 2 {
			t.Errorf("len(enrollments) = %d, want 2", len(listed.Enrollments))
		}
	})

	t.Run("RejectBadDocument", func(t *testing.T) {
		resp := postJSON(t, client, ts.URL+"/api/enrollments", `{"name":"x","descriptors":"nope"}`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("UpdateOptions", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/detector/options", bytes.NewBufferString(`{"input_size":160}`))
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("PUT options error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if got := application.Options().InputSize; got != 160 {
			t.Errorf("InputSize = %d, want 160", got)
		}
	})
}

func waitIdle(t *testing.T, a *app.App) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for a.Status().Session != nil {
		if time.Now().After(deadline) {
			t.Fatal("session did not end")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
