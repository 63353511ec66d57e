// Package app runs the face registration and verification pipeline: a frame
// pump and result router on one goroutine, a detector worker on another, and
// a session API that is safe to call from anywhere.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/facegate/internal/cache"
	"github.com/ayusman/facegate/internal/capture"
	"github.com/ayusman/facegate/internal/config"
	"github.com/ayusman/facegate/internal/detector"
	"github.com/ayusman/facegate/internal/identity"
	"github.com/ayusman/facegate/internal/notify"
	"github.com/ayusman/facegate/internal/render"
	"github.com/ayusman/facegate/internal/store"
	"github.com/ayusman/facegate/internal/worker"
)

// ErrNotRunning is returned by session calls when the pipeline is stopped.
var ErrNotRunning = errors.New("pipeline not running")

// ErrSessionActive is returned when a session is started while another runs.
var ErrSessionActive = errors.New("a session is already active")

// Config holds the collaborators of an App.
type Config struct {
	Settings *config.Config
	Store    *store.Store
	Cache    *cache.DescriptorCache // optional
	Source   capture.Player
	Detector detector.Detector
	Sinks    []render.Sink
	Notifier notify.Notifier
}

// Session describes the active registration or verification.
type Session struct {
	ID           string    `json:"id"`
	Mode         string    `json:"mode"`
	EnrollmentID string    `json:"enrollment_id,omitempty"`
	Name         string    `json:"name,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}

// Status is a snapshot of the pipeline state.
type Status struct {
	Running     bool             `json:"running"`
	Ready       bool             `json:"ready"`
	Playing     bool             `json:"playing"`
	InFlight    bool             `json:"in_flight"`
	Mode        string           `json:"mode"`
	Captures    int              `json:"captures"`
	MaxCaptures int              `json:"max_captures"`
	Frames      uint64           `json:"frames"`
	Session     *Session         `json:"session,omitempty"`
	Options     detector.Options `json:"options"`
}

// App owns the pipeline.
type App struct {
	settings    *config.Config
	store       *store.Store
	enrollments *Enrollments
	source      capture.Player
	detector    detector.Detector
	worker      *worker.Worker
	ctrl        *Controller
	notifier    notify.Notifier

	cmds chan func()

	// owned by the loop goroutine
	session *Session
	retryC  <-chan time.Time

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	workerC chan struct{}
	pending *detector.Options // applied when the loop next starts
	status  Status
	subs    map[int]chan notify.Event
	nextSub int
}

// New creates an App. Detector options persisted in the store take
// precedence over the configured defaults.
func New(cfg Config) *App {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	a := &App{
		settings:    settings,
		store:       cfg.Store,
		enrollments: NewEnrollments(cfg.Store, cfg.Cache, settings.Store.ExportDir),
		source:      cfg.Source,
		detector:    cfg.Detector,
		notifier:    notifier,
		cmds:        make(chan func()),
		subs:        make(map[int]chan notify.Event),
	}

	a.worker = worker.New(cfg.Detector, settings.Detector.Timeout)

	matcher := identity.NewMatcher(identity.Config{
		MaxCaptures: settings.Matcher.MaxCaptures,
		Threshold:   settings.Matcher.Threshold,
	})

	var warmup capture.Frame
	if settings.Detector.WarmupImage != "" {
		f, err := capture.LoadFrame(settings.Detector.WarmupImage)
		if err != nil {
			log.Printf("warmup image: %v", err)
		} else {
			warmup = f
		}
	}

	a.ctrl = NewController(cfg.Source, a.worker, matcher, render.Sinks(cfg.Sinks), a.initialOptions(), warmup, Hooks{
		Outcome:     a.onOutcome,
		Captured:    a.onCaptured,
		Ready:       a.onReady,
		Unavailable: a.onUnavailable,
	})
	a.snapshot()

	return a
}

func (a *App) initialOptions() detector.Options {
	opts := detector.Options{
		InputSize:      a.settings.Detector.InputSize,
		ScoreThreshold: a.settings.Detector.ScoreThreshold,
		MaxFaces:       a.settings.Detector.MaxFaces,
	}
	if opts.Validate() != nil {
		opts = detector.DefaultOptions()
	}

	if a.store != nil {
		var stored detector.Options
		err := a.store.Settings().GetJSON(store.SettingDetectorOptions, &stored)
		if err == nil && stored.Validate() == nil {
			return stored
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("load detector options: %v", err)
		}
	}
	return opts
}

// Start launches the worker and the pipeline loop. It is a no-op if the
// pipeline is already running.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.workerC = make(chan struct{})
	a.running = true

	go func(done chan struct{}) {
		defer close(done)
		a.worker.Run(ctx)
	}(a.workerC)
	go a.loop(ctx, a.done)

	log.Println("face pipeline started")
	return nil
}

// Stop halts the pipeline and releases the camera. The pipeline may be
// started again.
func (a *App) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	cancel, done, workerDone := a.cancel, a.done, a.workerC
	a.mu.Unlock()

	cancel()
	<-done
	<-workerDone
	if n := a.worker.Drain(); n > 0 {
		log.Printf("discarded %d pending detector messages", n)
	}

	a.ctrl.Matcher().Cancel()
	a.endSession()

	a.snapshot()
	log.Println("face pipeline stopped")
}

// Close stops the pipeline and closes the detector.
func (a *App) Close() error {
	a.Stop()
	if a.detector != nil {
		return a.detector.Close()
	}
	return nil
}

func (a *App) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.settings.Camera.Cadence)
	defer ticker.Stop()

	a.mu.Lock()
	if a.pending != nil {
		a.ctrl.SetOptions(*a.pending)
		a.pending = nil
	}
	a.mu.Unlock()

	a.ctrl.Reset()
	a.ctrl.LoadModels()
	a.snapshot()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.ctrl.Tick()
		case resp := <-a.worker.Responses():
			a.ctrl.Handle(resp)
		case fn := <-a.cmds:
			fn()
		case <-a.retryC:
			a.retryC = nil
			a.ctrl.LoadModels()
		}
		a.snapshot()
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (a *App) do(fn func()) error {
	a.mu.RLock()
	running, done := a.running, a.done
	a.mu.RUnlock()

	if !running {
		return ErrNotRunning
	}

	finished := make(chan struct{})
	select {
	case a.cmds <- func() { fn(); close(finished) }:
	case <-done:
		return ErrNotRunning
	}

	select {
	case <-finished:
		return nil
	case <-done:
		return ErrNotRunning
	}
}

// StartRegistration begins capturing reference descriptors for name.
func (a *App) StartRegistration(name string) (*Session, error) {
	if name == "" {
		return nil, fmt.Errorf("enrollment name is required")
	}

	var session *Session
	var err error
	doErr := a.do(func() {
		if a.session != nil {
			err = ErrSessionActive
			return
		}
		a.ctrl.Matcher().StartRegistration()
		session, err = a.play(&Session{Mode: identity.ModeRegistering.String(), Name: name})
	})
	if doErr != nil {
		return nil, doErr
	}
	return session, err
}

// StartVerification begins comparing live descriptors against an enrollment.
func (a *App) StartVerification(enrollmentID string) (*Session, error) {
	enr, err := a.enrollments.Get(enrollmentID)
	if err != nil {
		return nil, err
	}
	refs, err := a.enrollments.References(context.Background(), enrollmentID)
	if err != nil {
		return nil, err
	}

	var session *Session
	doErr := a.do(func() {
		if a.session != nil {
			err = ErrSessionActive
			return
		}
		m := a.ctrl.Matcher()
		m.Load(refs)
		if err = m.StartVerification(); err != nil {
			return
		}
		session, err = a.play(&Session{
			Mode:         identity.ModeVerifying.String(),
			EnrollmentID: enr.ID,
			Name:         enr.Name,
		})
	})
	if doErr != nil {
		return nil, doErr
	}
	return session, err
}

// play starts the source for a new session. Runs on the loop goroutine.
func (a *App) play(s *Session) (*Session, error) {
	if err := a.source.Play(); err != nil {
		a.ctrl.Matcher().Cancel()
		return nil, fmt.Errorf("start camera: %w", err)
	}
	a.ctrl.OnPlay()

	s.ID = uuid.New().String()
	s.StartedAt = time.Now()
	a.session = s

	log.Printf("%s session %s started", s.Mode, s.ID)
	cp := *s
	return &cp, nil
}

// Cancel ends the active session and stops the camera.
func (a *App) Cancel() error {
	return a.do(func() {
		a.ctrl.Matcher().Cancel()
		a.endSession()
	})
}

// endSession stops the source and clears the session. Runs on the loop goroutine.
func (a *App) endSession() {
	if a.source.Playing() {
		if err := a.source.Stop(); err != nil {
			log.Printf("error stopping camera: %v", err)
		}
	}
	a.session = nil
}

func (a *App) onOutcome(out identity.Outcome) {
	s := a.session
	if s == nil {
		return
	}

	ctx := context.Background()
	switch out.Kind {
	case identity.Registered:
		enr, err := a.enrollments.Save(ctx, s.Name, out.References)
		if err != nil {
			log.Printf("save enrollment %s: %v", s.Name, err)
			break
		}
		if path, err := a.enrollments.WriteExport(ctx, enr.ID); err != nil {
			log.Printf("export enrollment %s: %v", enr.ID, err)
		} else if path != "" {
			log.Printf("descriptors exported to %s", path)
		}
		a.emit(notify.Event{
			Kind:         notify.KindRegistered,
			EnrollmentID: enr.ID,
			Name:         enr.Name,
			Captures:     len(out.References),
		})

	case identity.Verified:
		if err := a.enrollments.RecordVerification(s.EnrollmentID, out.Distance, true); err != nil {
			log.Printf("record verification: %v", err)
		}
		a.emit(notify.Event{
			Kind:         notify.KindVerified,
			EnrollmentID: s.EnrollmentID,
			Name:         s.Name,
			Distance:     out.Distance,
		})
	}

	a.endSession()
}

func (a *App) onCaptured(captures int) {
	e := notify.Event{Kind: notify.KindCaptured, Captures: captures}
	if a.session != nil {
		e.Name = a.session.Name
	}
	a.emit(e)
}

func (a *App) onReady() {
	a.emit(notify.Event{Kind: notify.KindModelsReady})
}

func (a *App) onUnavailable(err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	a.emit(notify.Event{Kind: notify.KindCapabilityUnavailable, Message: msg})

	retry := a.settings.Detector.LoadRetry
	if retry <= 0 {
		retry = 10 * time.Second
	}
	a.retryC = time.After(retry)
}

// emit delivers e to the notifier and every subscriber. Slow subscribers
// miss events rather than block the loop.
func (a *App) emit(e notify.Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	a.notifier.Notify(e)

	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, ch := range a.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel of session events and a function that
// unsubscribes and closes it.
func (a *App) Subscribe() (<-chan notify.Event, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSub
	a.nextSub++
	ch := make(chan notify.Event, 16)
	a.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, id)
			a.mu.Unlock()
			close(ch)
		})
	}
}

// SetOptions validates and applies detector options, persisting them.
func (a *App) SetOptions(opts detector.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	if err := a.do(func() { a.ctrl.SetOptions(opts) }); errors.Is(err, ErrNotRunning) {
		a.queueOptions(opts)
	}

	if a.store != nil {
		if err := a.store.Settings().SetJSON(store.SettingDetectorOptions, opts); err != nil {
			return fmt.Errorf("save detector options: %w", err)
		}
	}
	return nil
}

// queueOptions hands opts to the loop when it is stopped. The loop picks
// them up under a.mu as it starts, so they are never written concurrently
// with a running loop.
func (a *App) queueOptions(opts detector.Options) {
	a.mu.Lock()
	stopped := !a.running
	if stopped {
		a.pending = &opts
		a.status.Options = opts
	}
	a.mu.Unlock()

	if !stopped {
		// started in between; the loop already consumed any queued options
		if err := a.do(func() { a.ctrl.SetOptions(opts) }); err != nil {
			a.mu.Lock()
			a.pending = &opts
			a.mu.Unlock()
		}
	}
}

// Options returns the detector options used for new submissions.
func (a *App) Options() detector.Options {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status.Options
}

// Status returns a snapshot of the pipeline state.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.status
	if s.Session != nil {
		cp := *s.Session
		s.Session = &cp
	}
	return s
}

// snapshot copies loop-owned state for readers on other goroutines.
func (a *App) snapshot() {
	m := a.ctrl.Matcher()
	st := Status{
		Ready:       a.ctrl.Ready(),
		Playing:     a.source.Playing(),
		InFlight:    a.ctrl.InFlight(),
		Mode:        m.Mode().String(),
		Captures:    m.Captures(),
		MaxCaptures: m.Config().MaxCaptures,
		Frames:      a.ctrl.Seq(),
		Options:     a.ctrl.Options(),
	}
	if a.session != nil {
		cp := *a.session
		st.Session = &cp
	}

	a.mu.Lock()
	st.Running = a.running
	if a.pending != nil {
		st.Options = *a.pending
	}
	a.status = st
	a.mu.Unlock()
}

// Enrollments returns the enrollment service.
func (a *App) Enrollments() *Enrollments {
	return a.enrollments
}

// Source returns the video source.
func (a *App) Source() capture.Player {
	return a.source
}

// Settings returns the configuration the app was created with.
func (a *App) Settings() *config.Config {
	return a.settings
}
