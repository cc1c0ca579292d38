package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ayusman/smilecast/internal/app"
	"github.com/ayusman/smilecast/internal/capture"
	"github.com/ayusman/smilecast/internal/config"
	"github.com/ayusman/smilecast/internal/detector"
	"github.com/ayusman/smilecast/internal/drive"
	"github.com/ayusman/smilecast/internal/server"
	"github.com/ayusman/smilecast/internal/store"
	"github.com/ayusman/smilecast/internal/tray"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the webcam and notify on smiles",
	Long: `Open the webcam and watch for smiles. Every accepted smile is saved,
sent to the websocket endpoint and queued for upload to Google Drive.

Press 'q' in the preview window or Ctrl+C to stop. On the way out the
partial batch is queued for upload. Without --drain-timeout only the batch
the worker can finish within upload.stop_timeout is sent; anything left
stays in the output directory for "smilecast upload".`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("camera", 0, "camera device index")
	cmd.Flags().Bool("mirror", false, "flip frames horizontally")
	cmd.Flags().String("websocket-uri", "", "websocket endpoint for smile notifications")
	cmd.Flags().Bool("persistent", false, "reuse one websocket connection for all notifications")
	cmd.Flags().Bool("every-transition", false, "also notify when a smile ends")
	cmd.Flags().Float64("debounce", 0, "minimum seconds between accepted smile changes")
	cmd.Flags().Duration("drain-timeout", 0, "wait this long for queued uploads at shutdown")
	cmd.Flags().Bool("headless", false, "do not open a preview window")
	cmd.Flags().Bool("tray", false, "show a system tray menu (implies --headless)")
	cmd.Flags().String("http-addr", "", "serve the status API on this address (e.g. :8080)")
}

// applyRunFlags overlays the run command's flags the user set onto cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if changed(cmd, "camera") {
		cfg.Camera.Index = mustGetInt(cmd, "camera")
	}
	if changed(cmd, "mirror") {
		cfg.Camera.Mirror = mustGetBool(cmd, "mirror")
	}
	if changed(cmd, "websocket-uri") {
		cfg.Notify.URI = mustGetString(cmd, "websocket-uri")
	}
	if changed(cmd, "persistent") {
		cfg.Notify.Persistent = mustGetBool(cmd, "persistent")
	}
	if changed(cmd, "every-transition") {
		cfg.Notify.OnEveryTransition = mustGetBool(cmd, "every-transition")
	}
	if changed(cmd, "debounce") {
		cfg.Smile.DebounceSeconds = mustGetFloat64(cmd, "debounce")
	}
	if changed(cmd, "drain-timeout") {
		cfg.Upload.DrainTimeout = mustGetDuration(cmd, "drain-timeout")
	}
	if changed(cmd, "headless") {
		cfg.Display.Headless = mustGetBool(cmd, "headless")
	}
	if changed(cmd, "tray") {
		cfg.Display.Tray = mustGetBool(cmd, "tray")
	}
	if changed(cmd, "http-addr") {
		cfg.Server.Addr = mustGetString(cmd, "http-addr")
	}
	// systray owns the main thread, so the preview window cannot.
	if cfg.Display.Tray {
		cfg.Display.Headless = true
	}
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	// OpenCV windows must be driven from the thread that created them.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	detCfg := detector.DefaultConfig()
	detCfg.FaceCascade = findCascade(cfg.Detector.FaceCascade)
	detCfg.SmileCascade = findCascade(cfg.Detector.SmileCascade)
	det, err := detector.NewCascadeDetector(detCfg)
	if err != nil {
		return fmt.Errorf("load detector: %w", err)
	}

	camera := capture.NewCamera(cfg.Camera.Index, cfg.Camera.Mirror)
	if cfg.Camera.FPS > 0 {
		camera.SetFPS(cfg.Camera.FPS)
	}

	var display capture.Display = capture.Headless{}
	if !cfg.Display.Headless {
		display = capture.NewWindow(cfg.Display.Window, 'q')
	}

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.New(cfg.Store.Path)
		if err != nil {
			det.Close()
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
	}

	a, err := app.New(cfg, app.Deps{
		Camera:   camera,
		Detector: det,
		Uploader: drive.New(cfg.Upload.CredentialsPath),
		Display:  display,
		Store:    st,
		Logger:   log.Logger,
	})
	if err != nil {
		det.Close()
		return err
	}

	log.Info().
		Str("version", Version).
		Int("camera", cfg.Camera.Index).
		Str("websocket", cfg.Notify.URI).
		Str("folder", cfg.Upload.FolderID).
		Msg("starting smilecast")

	var srv *server.Server
	if cfg.Server.Addr != "" {
		srv = server.New(server.Config{
			Status:      func() any { return a.Status() },
			LatestImage: a.LatestPath(),
			Store:       st,
		}, log.Logger)
		go func() {
			if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
				log.Error().Err(err).Msg("status server failed")
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("status server shutdown")
			}
		}()
	}

	if cfg.Display.Tray {
		return runWithTray(ctx, cancel, a, cfg, log.Logger)
	}
	return a.Run(ctx)
}

// runWithTray runs the capture loop in the background while the tray holds
// the main thread. Either side ending stops the other.
func runWithTray(ctx context.Context, cancel context.CancelFunc, a *app.App, cfg *config.Config, log zerolog.Logger) error {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnQuit(cancel)
	if cfg.Server.Addr != "" {
		url := statusURL(cfg.Server.Addr)
		t.OnOpen(func() {
			if err := openBrowser(url); err != nil {
				log.Warn().Err(err).Str("url", url).Msg("opening status page")
			}
		})
	}
	a.OnTransition(func(s app.Status) {
		t.SetSmiling(s.Smiling)
		t.SetPending(s.PendingCaptures + s.PendingUploads)
	})

	var quitOnce sync.Once
	quit := func() { quitOnce.Do(t.Quit) }

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
		quit()
	}()
	go func() {
		<-ctx.Done()
		quit()
	}()

	t.Run()
	cancel()
	err := <-errCh
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func statusURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/api/status"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
