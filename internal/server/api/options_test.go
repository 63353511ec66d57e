package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ayusman/facegate/internal/detector"
)

type fakeOptions struct {
	opts detector.Options
	sets int
}

func (f *fakeOptions) Options() detector.Options { return f.opts }

func (f *fakeOptions) SetOptions(o detector.Options) error {
	f.opts = o
	f.sets++
	return nil
}

func TestOptionsHandler_Get(t *testing.T) {
	fake := &fakeOptions{opts: detector.DefaultOptions()}

	req := httptest.NewRequest(http.MethodGet, "/api/detector/options", nil)
	rec := httptest.NewRecorder()
	NewOptionsHandler(fake).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var got detector.Options
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got != detector.DefaultOptions() {
		t.Errorf("expected %+v, got %+v", detector.DefaultOptions(), got)
	}
}

func TestOptionsHandler_PutMerges(t *testing.T) {
	fake := &fakeOptions{opts: detector.DefaultOptions()}

	req := httptest.NewRequest(http.MethodPut, "/api/detector/options", strings.NewReader(`{"input_size":224}`))
	rec := httptest.NewRecorder()
	NewOptionsHandler(fake).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	want := detector.DefaultOptions()
	want.InputSize = 224
	if fake.opts != want {
		t.Errorf("expected %+v, got %+v", want, fake.opts)
	}
}

func TestOptionsHandler_PutInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"input size", `{"input_size":100}`},
		{"score threshold", `{"score_threshold":1.5}`},
		{"max faces", `{"max_faces":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeOptions{opts: detector.DefaultOptions()}

			req := httptest.NewRequest(http.MethodPut, "/api/detector/options", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			NewOptionsHandler(fake).ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
			if fake.sets != 0 {
				t.Errorf("expected options to be unchanged")
			}
		})
	}
}

func TestOptionsHandler_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/detector/options", nil)
	rec := httptest.NewRecorder()
	NewOptionsHandler(&fakeOptions{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
