package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/facegate/internal/capture"
	"github.com/ayusman/facegate/internal/detector"
)

func startWorker(t *testing.T, det detector.Detector, timeout time.Duration) *Worker {
	t.Helper()

	w := New(det, timeout)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func roundTrip(t *testing.T, w *Worker, req Request) Response {
	t.Helper()

	require.NoError(t, w.Submit(req))
	select {
	case resp := <-w.Responses():
		return resp
	case <-time.After(2 * time.Second):
		t.Fatalf("no response for %s", req.Op)
		return Response{}
	}
}

func TestWorker_LoadModelsIsIdempotent(t *testing.T) {
	det := detector.NewMockDetector()
	w := startWorker(t, det, time.Second)

	resp := roundTrip(t, w, Request{Op: OpLoadModels, Seq: 1})
	assert.Equal(t, StatusModelsReady, resp.Status)
	assert.Equal(t, uint64(1), resp.Seq)

	resp = roundTrip(t, w, Request{Op: OpLoadModels, Seq: 2})
	assert.Equal(t, StatusModelsReady, resp.Status)
	assert.Equal(t, 1, det.Loads(), "models should load once")
}

func TestWorker_LoadFailureIsFault(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetLoadError(detector.ErrBackendUnavailable)
	w := startWorker(t, det, time.Second)

	resp := roundTrip(t, w, Request{Op: OpLoadModels})
	assert.Equal(t, StatusFault, resp.Status)
	assert.ErrorIs(t, resp.Err, detector.ErrBackendUnavailable)

	// A later attempt retries the load.
	det.SetLoadError(nil)
	resp = roundTrip(t, w, Request{Op: OpLoadModels})
	assert.Equal(t, StatusModelsReady, resp.Status)
	assert.Equal(t, 2, det.Loads())
}

func TestWorker_DetectBeforeLoad(t *testing.T) {
	det := detector.NewMockDetector()
	w := startWorker(t, det, time.Second)

	resp := roundTrip(t, w, Request{Op: OpDetect, Seq: 7})
	assert.Equal(t, StatusFault, resp.Status)
	assert.ErrorIs(t, resp.Err, detector.ErrModelsNotLoaded)
	assert.Equal(t, 0, det.Calls())
}

func TestWorker_DetectStatuses(t *testing.T) {
	det := detector.NewMockDetector()
	w := startWorker(t, det, time.Second)
	roundTrip(t, w, Request{Op: OpLoadModels})

	frame := capture.Frame{Data: []byte{1}, Width: 4, Height: 3}

	t.Run("no detections", func(t *testing.T) {
		resp := roundTrip(t, w, Request{Op: OpDetect, Seq: 1, Generation: 3, Frame: frame, Options: detector.DefaultOptions()})
		assert.Equal(t, StatusNoDetections, resp.Status)
		assert.Equal(t, uint64(3), resp.Generation)
		assert.Equal(t, 4, resp.Frame.Width)
	})

	t.Run("ok", func(t *testing.T) {
		det.SetDetections([]detector.Detection{detector.SampleFace([]float64{0.1, 0.2}, 0.95)})
		opts := detector.Options{InputSize: 224, ScoreThreshold: 0.4, MaxFaces: 2}

		resp := roundTrip(t, w, Request{Op: OpDetect, Seq: 2, Frame: frame, Options: opts})
		assert.Equal(t, StatusOK, resp.Status)
		require.Len(t, resp.Detections, 1)
		assert.Equal(t, opts, det.LastOptions(), "options travel with each submission")
	})

	t.Run("fault", func(t *testing.T) {
		det.SetError(errors.New("inference exploded"))
		resp := roundTrip(t, w, Request{Op: OpDetect, Seq: 3, Frame: frame})
		assert.Equal(t, StatusFault, resp.Status)
		assert.Error(t, resp.Err)
		det.SetError(nil)
	})

	t.Run("warmup", func(t *testing.T) {
		resp := roundTrip(t, w, Request{Op: OpWarmup, Frame: frame})
		assert.Equal(t, OpWarmup, resp.Op)
		assert.Equal(t, StatusOK, resp.Status)
	})
}

func TestWorker_Timeout(t *testing.T) {
	det := detector.NewMockDetector()
	w := startWorker(t, det, 20*time.Millisecond)
	roundTrip(t, w, Request{Op: OpLoadModels})

	det.SetDelay(time.Second)
	start := time.Now()
	resp := roundTrip(t, w, Request{Op: OpDetect})
	assert.Equal(t, StatusFault, resp.Status)
	assert.ErrorIs(t, resp.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWorker_SubmitBusy(t *testing.T) {
	w := New(detector.NewMockDetector(), time.Second)

	// Not running: the first request fills the queue.
	require.NoError(t, w.Submit(Request{Op: OpDetect}))
	assert.ErrorIs(t, w.Submit(Request{Op: OpDetect}), ErrBusy)
}

func TestWorker_UnknownOp(t *testing.T) {
	w := startWorker(t, detector.NewMockDetector(), time.Second)
	resp := roundTrip(t, w, Request{Op: Op(99)})
	assert.Equal(t, StatusFault, resp.Status)
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "models-ready", StatusModelsReady.String())
	assert.Equal(t, "no-detections", StatusNoDetections.String())
	assert.Equal(t, "warmup", OpWarmup.String())
}

func TestWorker_DrainWhileStopped(t *testing.T) {
	w := New(detector.NewMockDetector(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// leave a response undelivered and a request queued behind it
	require.NoError(t, w.Submit(Request{Op: OpLoadModels, Seq: 1}))
	require.Eventually(t, func() bool { return len(w.responses) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, w.Submit(Request{Op: OpLoadModels, Seq: 2}))
	require.Eventually(t, func() bool { return len(w.requests) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, w.Submit(Request{Op: OpLoadModels, Seq: 3}))

	cancel()
	<-done

	assert.Equal(t, 2, w.Drain())
	assert.Equal(t, 0, w.Drain())
	assert.NoError(t, w.Submit(Request{Op: OpLoadModels, Seq: 4}), "a drained worker accepts work again")
}
