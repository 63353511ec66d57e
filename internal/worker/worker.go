// Package worker hosts the face detector out of line from the controller.
// The controller talks to it only through a request and a response channel.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/facegate/internal/capture"
	"github.com/ayusman/facegate/internal/detector"
)

// ErrBusy is returned by Submit when a request is already queued.
var ErrBusy = errors.New("worker busy")

// DefaultTimeout bounds a single detector call.
const DefaultTimeout = 5 * time.Second

// Op is a worker operation.
type Op int

const (
	OpLoadModels Op = iota + 1
	OpDetect
	OpWarmup
)

func (o Op) String() string {
	switch o {
	case OpLoadModels:
		return "load-models"
	case OpDetect:
		return "detect"
	case OpWarmup:
		return "warmup"
	default:
		return "unknown"
	}
}

// Status is the outcome of a request.
type Status int

const (
	StatusOK Status = iota + 1
	StatusNoDetections
	StatusFault
	StatusModelsReady
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoDetections:
		return "no-detections"
	case StatusFault:
		return "fault"
	case StatusModelsReady:
		return "models-ready"
	default:
		return "unknown"
	}
}

// Request is a message to the worker.
type Request struct {
	Op         Op
	Seq        uint64
	Generation uint64
	Frame      capture.Frame
	Options    detector.Options
}

// Response is the single reply to a Request.
type Response struct {
	Op         Op
	Seq        uint64
	Generation uint64
	Status     Status
	Detections []detector.Detection
	Frame      capture.Frame
	Err        error
}

// Worker runs detector calls on its own goroutine.
type Worker struct {
	det       detector.Detector
	timeout   time.Duration
	requests  chan Request
	responses chan Response
	loaded    bool
}

// New creates a Worker around det. A non-positive timeout uses DefaultTimeout.
func New(det detector.Detector, timeout time.Duration) *Worker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Worker{
		det:       det,
		timeout:   timeout,
		requests:  make(chan Request, 1),
		responses: make(chan Response, 1),
	}
}

// Submit queues req without blocking. It returns ErrBusy if a request is
// already waiting to be picked up.
func (w *Worker) Submit(req Request) error {
	select {
	case w.requests <- req:
		return nil
	default:
		return ErrBusy
	}
}

// Responses returns the channel results are delivered on.
func (w *Worker) Responses() <-chan Response {
	return w.responses
}

// Drain discards a queued request and an undelivered response, returning
// how many were dropped. Call it only while Run is not running.
func (w *Worker) Drain() int {
	n := 0
	for {
		select {
		case <-w.requests:
			n++
		case <-w.responses:
			n++
		default:
			return n
		}
	}
}

// Run processes requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.requests:
			resp := w.handle(ctx, req)
			select {
			case w.responses <- resp:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, req Request) Response {
	resp := Response{
		Op:         req.Op,
		Seq:        req.Seq,
		Generation: req.Generation,
		Frame:      req.Frame,
	}

	switch req.Op {
	case OpLoadModels:
		if w.loaded {
			resp.Status = StatusModelsReady
			return resp
		}
		if err := w.call(ctx, w.det.Load); err != nil {
			log.Printf("face models unavailable: %v", err)
			resp.Status = StatusFault
			resp.Err = err
			return resp
		}
		w.loaded = true
		resp.Status = StatusModelsReady
		return resp

	case OpDetect, OpWarmup:
		if !w.loaded {
			log.Printf("%s ignored: models not loaded", req.Op)
			resp.Status = StatusFault
			resp.Err = detector.ErrModelsNotLoaded
			return resp
		}

		var dets []detector.Detection
		err := w.call(ctx, func(c context.Context) error {
			var err error
			dets, err = w.det.Detect(c, req.Frame, req.Options)
			return err
		})
		if err != nil {
			resp.Status = StatusFault
			resp.Err = err
			return resp
		}
		if len(dets) == 0 {
			resp.Status = StatusNoDetections
			return resp
		}
		resp.Status = StatusOK
		resp.Detections = dets
		return resp

	default:
		resp.Status = StatusFault
		resp.Err = fmt.Errorf("unknown op %d", req.Op)
		return resp
	}
}

// call runs fn with the per-request timeout. A detector that ignores its
// context is abandoned when the deadline passes.
func (w *Worker) call(ctx context.Context, fn func(context.Context) error) error {
	c, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(c)
	}()

	select {
	case err := <-done:
		return err
	case <-c.Done():
		return fmt.Errorf("detector timed out after %v: %w", w.timeout, c.Err())
	}
}
