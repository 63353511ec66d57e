package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPlugin_DesktopAlert_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pluginDir := findPluginDir("desktop-alert")
	if pluginDir == "" {
		t.Skip("desktop-alert plugin not found")
	}

	mgr := NewManager(filepath.Dir(pluginDir))
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	plug, err := mgr.Get("desktop-alert")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := os.Stat(plug.Executable); err != nil {
		t.Skip("desktop-alert plugin not built")
	}

	executor := NewExecutor(5 * time.Second)

	resp, err := executor.Execute(context.Background(), plug, &Request{
		Event:   "registered",
		Name:    "alice",
		Message: "Registration completed",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !resp.Success {
		t.Errorf("expected success, got error %q", resp.Error)
	}

	// An event without a message is rejected.
	resp, err = executor.Execute(context.Background(), plug, &Request{Event: "captured"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for empty message")
	}
}

func findPluginDir(name string) string {
	candidates := []string{
		filepath.Join("../../plugins", name),
		filepath.Join("../../../plugins", name),
	}

	for _, dir := range candidates {
		manifest := filepath.Join(dir, "plugin.json")
		if _, err := os.Stat(manifest); err == nil {
			return dir
		}
	}
	return ""
}
