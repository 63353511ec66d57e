package plugin

import (
	"context"
	"log"
	"sync"

	"github.com/ayusman/facegate/internal/notify"
)

// HookNotifier runs every plugin subscribed to an event's kind.
// Plugins run in the background so Notify never blocks the caller.
type HookNotifier struct {
	manager  *Manager
	executor *Executor

	wg sync.WaitGroup
}

// NewHookNotifier creates a notifier that dispatches events to plugins.
func NewHookNotifier(manager *Manager, executor *Executor) *HookNotifier {
	return &HookNotifier{
		manager:  manager,
		executor: executor,
	}
}

// Notify starts the subscribed plugins for e.
func (h *HookNotifier) Notify(e notify.Event) {
	subs := h.manager.Subscribers(string(e.Kind))
	if len(subs) == 0 {
		return
	}

	req := &Request{
		Event:        string(e.Kind),
		EnrollmentID: e.EnrollmentID,
		Name:         e.Name,
		Distance:     e.Distance,
		Captures:     e.Captures,
		Message:      notify.Alert(e),
		At:           e.At,
	}
	if req.Message == "" {
		req.Message = e.Message
	}

	for _, p := range subs {
		h.wg.Add(1)
		go func(p *Plugin) {
			defer h.wg.Done()
			resp, err := h.executor.Execute(context.Background(), p, req)
			if err != nil {
				log.Printf("plugin %s: %v", p.Manifest.Name, err)
				return
			}
			if !resp.Success {
				log.Printf("plugin %s failed: %s", p.Manifest.Name, resp.Error)
			}
		}(p)
	}
}

// Wait blocks until all running plugins have finished.
func (h *HookNotifier) Wait() {
	h.wg.Wait()
}
