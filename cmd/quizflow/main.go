// Command quizflow runs the classroom quiz in the terminal. Players scan a
// difficulty card with the camera and answer a question from the shared bank.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/quizflow/quizflow/internal/app"
	"github.com/quizflow/quizflow/internal/config"
	"github.com/quizflow/quizflow/internal/logging"
	"github.com/quizflow/quizflow/internal/quiz"
	"github.com/quizflow/quizflow/internal/remote"
	"github.com/quizflow/quizflow/internal/scan"
	"github.com/quizflow/quizflow/internal/state"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "quizflow: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", filepath.Join(config.DataDir(), "config.json"), "config file")
	backend := flag.String("backend", "", "question store: rtdb, redis or memory")
	dbURL := flag.String("db", "", "realtime database URL")
	bankFile := flag.String("bank", "", "JSON export for the memory backend")
	camera := flag.String("camera", "", "V4L2 camera device, e.g. /dev/video0")
	frames := flag.String("frames", "", "glob of still images to scan instead of a camera")
	statePath := flag.String("state", "", "state database path")
	interval := flag.Duration("interval", 0, "minimum time between decode attempts")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	override(&cfg.Backend, *backend)
	override(&cfg.DatabaseURL, *dbURL)
	override(&cfg.BankFile, *bankFile)
	override(&cfg.Camera, *camera)
	override(&cfg.FrameGlob, *frames)
	override(&cfg.StatePath, *statePath)
	if *interval > 0 {
		cfg.ScanInterval = config.Duration(*interval)
	}
	if *debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogPath, cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := state.Open(cfg.StatePath)
	if err != nil {
		return err
	}
	defer store.Close()
	st := state.NewManager(store, logger)

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	db, closeDB, err := remote.Open(dialCtx, cfg)
	dialCancel()
	if err != nil {
		return err
	}
	defer closeDB()

	src, err := frameSource(cfg)
	if err != nil {
		return err
	}
	cycle := scan.NewCycle(src, scan.NewQRDecoder(), scan.Options{Logger: logger})
	defer cycle.Stop()

	logger.Info("starting",
		zap.String("backend", cfg.Backend),
		zap.String("state", cfg.StatePath),
		zap.String("camera", cfg.Camera),
		zap.Bool("camera_support", scan.CameraAvailable),
	)

	m := app.New(app.Deps{
		State:        st,
		Lobby:        quiz.NewLobby(db, st, logger),
		Selector:     quiz.NewSelector(db, st, quiz.SelectorOptions{Path: cfg.QuestionsPath, Logger: logger}),
		Recorder:     quiz.NewRecorder(db, st, logger),
		Camera:       cycle,
		ScanInterval: time.Duration(cfg.ScanInterval),
		Logger:       logger,
		Context:      ctx,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// frameSource picks the camera when one is configured, else still images.
func frameSource(cfg config.Config) (scan.FrameSource, error) {
	if cfg.Camera != "" {
		cam, err := scan.NewCameraSource(cfg.Camera, 1280, 720)
		if err != nil {
			return nil, err
		}
		return cam, nil
	}
	if cfg.FrameGlob == "" {
		return nil, errors.New("no frame source: set -camera or -frames")
	}
	return scan.LoadImageSource(cfg.FrameGlob)
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
