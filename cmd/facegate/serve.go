package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/facegate/internal/server"
	"github.com/ayusman/facegate/internal/tray"
)

var (
	serveAddr string
	serveTray bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the camera pipeline and the web interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&serveTray, "tray", false, "show a system tray menu")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := newPipeline(ctx, true)
	defer p.Close()

	if err := p.app.Start(ctx); err != nil {
		return err
	}

	webDir := findWebDir(cfg.Server.StaticDir)
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.New(server.Config{
			StaticDir: webDir,
			App:       p.app,
			Overlay:   p.overlay,
			Hub:       p.hub,
		}),
	}

	errc := make(chan error, 1)
	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	if serveTray {
		t := newTray(p, cancel)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray needs the main goroutine
		t.Run()
		cancel()
	}

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

// newTray wires the tray menu to the pipeline.
func newTray(p *pipeline, quit context.CancelFunc) *tray.Tray {
	t := tray.New()
	a := p.app

	t.OnRegister(func() {
		name := "user-" + time.Now().Format("20060102-150405")
		if _, err := a.StartRegistration(name); err != nil {
			t.SetStatus("Register failed: %v", err)
			return
		}
		t.SetBusy(true)
		t.SetStatus("Registering: 0/%d", cfg.Matcher.MaxCaptures)
	})
	t.OnVerify(func() {
		enr, err := a.Enrollments().Latest()
		if err != nil {
			t.SetStatus("No enrollment to verify against")
			return
		}
		if _, err := a.StartVerification(enr.ID); err != nil {
			t.SetStatus("Verify failed: %v", err)
			return
		}
		t.SetBusy(true)
		t.SetStatus("Verifying %s...", enr.Name)
	})
	t.OnCancel(func() {
		if err := a.Cancel(); err != nil {
			log.Printf("cancel: %v", err)
		}
		t.SetBusy(false)
		t.SetStatus("Ready")
	})
	t.OnOpenUI(func() {
		openBrowser("http://localhost" + cfg.Server.Addr)
	})
	t.OnQuit(quit)

	events, unsubscribe := a.Subscribe()
	go func() {
		defer unsubscribe()
		for e := range events {
			line, busy := tray.StatusLine(e, cfg.Matcher.MaxCaptures)
			t.SetStatus("%s", line)
			t.SetBusy(busy)
		}
	}()

	return t
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("open browser: %v", err)
	}
}

// findWebDir returns the first existing web directory among the configured
// one, the usual relative locations and ~/.facegate/web.
func findWebDir(configured string) string {
	candidates := []string{configured, "web", "../web", "../../web"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".facegate", "web"))
	}

	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
