package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/facegate/internal/app"
	"github.com/ayusman/facegate/internal/notify"
)

var sessionTimeout time.Duration

var registerCmd = &cobra.Command{
	Use:   "register NAME",
	Short: "Capture reference descriptors for NAME from the camera",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRegister(cmd.Context(), args[0])
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [ENROLLMENT_ID]",
	Short: "Verify the face in front of the camera (default: latest enrollment)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		return runVerify(cmd.Context(), id)
	},
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, verifyCmd} {
		c.Flags().DurationVar(&sessionTimeout, "timeout", time.Minute, "give up after this long")
		rootCmd.AddCommand(c)
	}
}

var errTimeout = errors.New("timed out")

// runSession starts the pipeline, calls start once it is running and feeds
// events to handle until it returns true.
func runSession(ctx context.Context, start func(*app.App) error, handle func(notify.Event) bool) error {
	ctx, cancel := context.WithTimeout(ctx, sessionTimeout)
	defer cancel()

	p := newPipeline(ctx, false)
	defer p.Close()

	events, unsubscribe := p.app.Subscribe()
	defer unsubscribe()

	if err := p.app.Start(ctx); err != nil {
		return err
	}
	if err := start(p.app); err != nil {
		return err
	}

	for {
		select {
		case e := <-events:
			if e.Kind == notify.KindCapabilityUnavailable {
				fmt.Fprintf(os.Stderr, "face models unavailable: %s (retrying)\n", e.Message)
				continue
			}
			if handle(e) {
				return nil
			}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %v", errTimeout, sessionTimeout)
			}
			return ctx.Err()
		}
	}
}

func runRegister(ctx context.Context, name string) error {
	bar := progressbar.NewOptions(cfg.Matcher.MaxCaptures,
		progressbar.OptionSetDescription("Registering "+name),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	var registered notify.Event
	err := runSession(ctx,
		func(a *app.App) error {
			_, err := a.StartRegistration(name)
			return err
		},
		func(e notify.Event) bool {
			switch e.Kind {
			case notify.KindCaptured:
				bar.Set(e.Captures)
			case notify.KindRegistered:
				registered = e
				return true
			}
			return false
		})
	bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	fmt.Println(notify.Alert(registered))
	fmt.Printf("Enrollment: %s\n", registered.EnrollmentID)
	if cfg.Store.ExportDir != "" {
		fmt.Printf("Descriptors: %s\n", filepath.Join(cfg.Store.ExportDir, registered.EnrollmentID+".json"))
	}
	return nil
}

func runVerify(ctx context.Context, id string) error {
	svc := app.NewEnrollments(db, nil, "")
	if id == "" {
		latest, err := svc.Latest()
		if err != nil {
			return fmt.Errorf("no enrollment to verify against: %w", err)
		}
		id = latest.ID
	}

	enr, err := svc.Get(id)
	if err != nil {
		return fmt.Errorf("enrollment %s: %w", id, err)
	}
	fmt.Fprintf(os.Stderr, "Verifying against %s (%s)...\n", enr.Name, enr.ID)

	var verified notify.Event
	err = runSession(ctx,
		func(a *app.App) error {
			_, err := a.StartVerification(id)
			return err
		},
		func(e notify.Event) bool {
			if e.Kind == notify.KindVerified {
				verified = e
				return true
			}
			return false
		})
	if err != nil {
		return err
	}

	fmt.Println(notify.Alert(verified))
	return nil
}
