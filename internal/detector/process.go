package detector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/ayusman/facegate/internal/capture"
)

// idleTimeout stops the service process after a period without requests.
const idleTimeout = 30 * time.Second

// ProcessDetector implements Detector using a Python face service subprocess.
type ProcessDetector struct {
	python    string
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	loaded    bool
	requested bool
	idleTimer *time.Timer
}

// NewProcessDetector creates a new subprocess detector.
// The Python process is started lazily on first use.
func NewProcessDetector(python, script string) (*ProcessDetector, error) {
	if script == "" {
		script = findServiceScript()
	}
	if script == "" {
		return nil, fmt.Errorf("face_service.py not found: %w", ErrBackendUnavailable)
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("face service script: %w", err)
	}

	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	return &ProcessDetector{
		python: python,
		script: script,
	}, nil
}

// Load asks the service to load its models.
func (d *ProcessDetector) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started && d.loaded {
		return nil
	}

	reply, err := d.roundTrip(ctx, &serviceRequest{Op: opLoad})
	if err != nil {
		return err
	}
	if reply.Status != statusOK {
		return fmt.Errorf("load models: %s", reply.Error)
	}

	d.loaded = true
	d.requested = true
	return nil
}

// Detect sends a frame to the service and returns its detections.
func (d *ProcessDetector) Detect(ctx context.Context, frame capture.Frame, opts Options) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.requested {
		return nil, ErrModelsNotLoaded
	}

	// The process may have been stopped while idle; reload before detecting.
	if !d.started || !d.loaded {
		reply, err := d.roundTrip(ctx, &serviceRequest{Op: opLoad})
		if err != nil {
			return nil, err
		}
		if reply.Status != statusOK {
			return nil, fmt.Errorf("reload models: %s", reply.Error)
		}
		d.loaded = true
	}

	reply, err := d.roundTrip(ctx, &serviceRequest{
		Op:      opDetect,
		Image:   frame.Data,
		Width:   frame.Width,
		Height:  frame.Height,
		Options: opts,
	})
	if err != nil {
		return nil, err
	}
	if reply.Status != statusOK {
		return nil, fmt.Errorf("detect: %s", reply.Error)
	}

	return limit(reply.Faces, opts), nil
}

// Close shuts down the Python process.
func (d *ProcessDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

// roundTrip sends one request and waits for its reply. The process is
// killed on context expiry or a broken stream. Callers hold d.mu.
func (d *ProcessDetector) roundTrip(ctx context.Context, req *serviceRequest) (*serviceReply, error) {
	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	type result struct {
		reply *serviceReply
		err   error
	}
	done := make(chan result, 1)
	stdin, stdout := d.stdin, d.stdout

	go func() {
		if err := writeMessage(stdin, req); err != nil {
			done <- result{err: err}
			return
		}
		var reply serviceReply
		if err := readMessage(stdout, &reply); err != nil {
			done <- result{err: err}
			return
		}
		done <- result{reply: &reply}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			d.kill()
			return nil, fmt.Errorf("face service: %w", r.err)
		}
		d.resetIdleTimer()
		return r.reply, nil
	case <-ctx.Done():
		d.kill()
		<-done
		return nil, fmt.Errorf("face service: %w", ctx.Err())
	}
}

func (d *ProcessDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	d.cmd = exec.Command(d.python, d.script)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start face service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.loaded = false

	return nil
}

func (d *ProcessDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.reset()

	return err
}

func (d *ProcessDetector) kill() {
	if !d.started {
		return
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.cmd.Wait()
	d.reset()
}

func (d *ProcessDetector) reset() {
	d.started = false
	d.loaded = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
}

func (d *ProcessDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			log.Printf("face service exited: %v", err)
		}
	})
}

func findServiceScript() string {
	// Get executable directory
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/face_service.py",
		"../scripts/face_service.py",
		filepath.Join(execDir, "scripts/face_service.py"),
		filepath.Join(os.Getenv("HOME"), ".facegate/scripts/face_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".facegate/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
