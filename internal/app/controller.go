package app

import (
	"log"
	"time"

	"github.com/ayusman/facegate/internal/capture"
	"github.com/ayusman/facegate/internal/detector"
	"github.com/ayusman/facegate/internal/identity"
	"github.com/ayusman/facegate/internal/render"
	"github.com/ayusman/facegate/internal/worker"
)

// Submitter accepts worker requests without blocking.
type Submitter interface {
	Submit(worker.Request) error
}

// Hooks are called by the Controller on its owning goroutine.
type Hooks struct {
	// Outcome is called when the matcher reports a terminal outcome.
	Outcome func(identity.Outcome)
	// Captured is called when registration stores a descriptor.
	Captured func(captures int)
	// Ready is called once the detector has loaded and warmed up.
	Ready func()
	// Unavailable is called when model loading fails.
	Unavailable func(error)
}

// Controller is the frame pump and result router. It keeps at most one
// detection request outstanding and is not safe for concurrent use: a single
// goroutine calls Tick, Handle and the session methods.
type Controller struct {
	source  capture.Source
	worker  Submitter
	matcher *identity.Matcher
	sinks   render.Sink
	hooks   Hooks
	opts    detector.Options
	warmup  capture.Frame

	inFlight   bool
	pending    uint64 // seq of the outstanding request
	armed      bool
	ready      bool
	loading    bool
	warming    bool
	seq        uint64
	generation uint64
}

// NewController creates a Controller. A non-empty warmup frame is run through
// the detector once after the models load.
func NewController(source capture.Source, w Submitter, matcher *identity.Matcher, sinks render.Sink, opts detector.Options, warmup capture.Frame, hooks Hooks) *Controller {
	if sinks == nil {
		sinks = render.Sinks{}
	}
	return &Controller{
		source:  source,
		worker:  w,
		matcher: matcher,
		sinks:   sinks,
		hooks:   hooks,
		opts:    opts,
		warmup:  warmup,
		armed:   true,
	}
}

// LoadModels asks the worker to load the detector models.
func (c *Controller) LoadModels() {
	if c.loading || c.ready {
		return
	}
	if err := c.worker.Submit(worker.Request{Op: worker.OpLoadModels}); err != nil {
		log.Printf("load models: %v", err)
		c.unavailable(err)
		return
	}
	c.loading = true
}

// Tick runs one pump cycle. A stopped source disarms the pump until OnPlay.
func (c *Controller) Tick() {
	if !c.armed {
		return
	}
	c.armed = false

	if !c.source.Playing() {
		return
	}
	if c.inFlight || !c.ready {
		c.armed = true
		return
	}

	frame, err := c.source.Grab()
	if err != nil {
		log.Printf("grab frame: %v", err)
		c.armed = true
		return
	}

	c.seq++
	req := worker.Request{
		Op:         worker.OpDetect,
		Seq:        c.seq,
		Generation: c.generation,
		Frame:      frame,
		Options:    c.opts,
	}
	if err := c.worker.Submit(req); err != nil {
		log.Printf("submit frame %d: %v", c.seq, err)
		c.armed = true
		return
	}
	c.inFlight = true
	c.pending = c.seq
}

// Reset forgets any request lost when the loop last stopped. Responses that
// still arrive for it are discarded as stale.
func (c *Controller) Reset() {
	c.generation++
	c.inFlight = false
	c.loading = false
	c.warming = false
	c.armed = true
}

// OnPlay starts a new source run. Results of earlier runs are discarded.
func (c *Controller) OnPlay() {
	c.generation++
	c.armed = true
}

// Handle processes a worker response.
func (c *Controller) Handle(resp worker.Response) {
	switch resp.Op {
	case worker.OpLoadModels:
		c.loading = false
		if resp.Status != worker.StatusModelsReady {
			c.unavailable(resp.Err)
			return
		}
		if c.warmup.Empty() {
			c.markReady()
			return
		}
		if err := c.worker.Submit(worker.Request{Op: worker.OpWarmup, Frame: c.warmup, Options: c.opts}); err != nil {
			log.Printf("warmup: %v", err)
			c.markReady()
			return
		}
		c.warming = true

	case worker.OpWarmup:
		c.warming = false
		if resp.Status == worker.StatusFault {
			log.Printf("warmup failed: %v", resp.Err)
		}
		c.markReady()

	case worker.OpDetect:
		c.OnResult(resp)
	}
}

// OnResult routes a detection result to the matcher and the sinks, then
// clears the in-flight flag and re-arms the pump. A late answer to a request
// forgotten by Reset leaves the outstanding request in flight.
func (c *Controller) OnResult(resp worker.Response) {
	if c.inFlight && resp.Seq != c.pending {
		return
	}
	defer c.rearm()

	if resp.Generation != c.generation {
		return
	}

	dets := resp.Detections
	fault := resp.Status == worker.StatusFault
	if fault {
		log.Printf("frame %d: %v", resp.Seq, resp.Err)
		dets = nil
	}

	if len(dets) > 0 && dets[0].HasDescriptor() {
		c.route(identity.Descriptor(dets[0].Descriptor))
	}

	c.sinks.Render(render.Result{
		Seq:        resp.Seq,
		Frame:      resp.Frame,
		Detections: dets,
		Fault:      fault,
		Mode:       c.matcher.Mode().String(),
		Captures:   c.matcher.Captures(),
		At:         time.Now(),
	})
}

func (c *Controller) route(d identity.Descriptor) {
	registering := c.matcher.Mode() == identity.ModeRegistering
	before := c.matcher.Captures()

	out, ok := c.matcher.Dispatch(d)

	if registering && c.matcher.Captures() > before && c.hooks.Captured != nil {
		c.hooks.Captured(c.matcher.Captures())
	}
	if ok && c.hooks.Outcome != nil {
		c.hooks.Outcome(out)
	}
}

func (c *Controller) rearm() {
	c.inFlight = false
	c.armed = true
}

func (c *Controller) markReady() {
	c.ready = true
	c.armed = true
	if c.hooks.Ready != nil {
		c.hooks.Ready()
	}
}

func (c *Controller) unavailable(err error) {
	if c.hooks.Unavailable != nil {
		c.hooks.Unavailable(err)
	}
}

// SetOptions replaces the detector options used for the next submission.
func (c *Controller) SetOptions(opts detector.Options) {
	c.opts = opts
}

// Options returns the detector options used for submissions.
func (c *Controller) Options() detector.Options {
	return c.opts
}

// Matcher returns the controller's matcher.
func (c *Controller) Matcher() *identity.Matcher {
	return c.matcher
}

func (c *Controller) InFlight() bool { return c.inFlight }
func (c *Controller) Armed() bool { return c.armed }
func (c *Controller) Ready() bool { return c.ready }
func (c *Controller) Loading() bool { return c.loading || c.warming }
func (c *Controller) Generation() uint64 { return c.generation }
func (c *Controller) Seq() uint64 { return c.seq }
