// Package main provides a plugin that shows facegate alerts on the desktop.
// The alert is always echoed to stderr; macOS and Linux also get a
// notification through osascript or notify-send.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the event from the plugin executor.
type Request struct {
	Event        string  `json:"event"`
	EnrollmentID string  `json:"enrollment_id"`
	Name         string  `json:"name"`
	Distance     float64 `json:"distance"`
	Message      string  `json:"message"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeErrorResponse(fmt.Sprintf("event %s has no message", req.Event))
		return
	}

	fmt.Fprintln(os.Stderr, req.Message)

	if err := showNotification("facegate", req.Message); err != nil {
		// the stderr line above is enough when no notifier is installed
		fmt.Fprintf(os.Stderr, "notification unavailable: %v\n", err)
	}

	writeSuccessResponse()
}

// showNotification raises a desktop notification on supported platforms.
func showNotification(title, message string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		cmd = exec.Command("osascript", "-e", script)
	case "linux":
		if _, err := exec.LookPath("notify-send"); err != nil {
			return err
		}
		cmd = exec.Command("notify-send", title, message)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: false,
		Error:   errMsg,
	})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
