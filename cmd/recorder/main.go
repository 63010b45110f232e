package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/kikitori/external/audio"
	captureimpl "github.com/foxseedlab/kikitori/external/capture"
	configloader "github.com/foxseedlab/kikitori/external/config"
	"github.com/foxseedlab/kikitori/internal/client"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/recorder"
	"github.com/foxseedlab/kikitori/internal/view"
	"github.com/google/uuid"
	"github.com/samber/do/v2"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	dialTimeout = 10 * time.Second
	// finalizeTimeout outlasts the backend's own transcription bound.
	finalizeTimeout = 11 * time.Minute
)

func main() {
	filePath := flag.String("file", "", "transcribe an existing audio file instead of recording")
	sessionID := flag.String("session", "", "session id (default: random UUID)")
	flag.Parse()

	cfg, err := configloader.LoadRecorder()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config validation failed: %v\n", err)
		os.Exit(1)
	}

	id := *sessionID
	if id == "" {
		id = uuid.NewString()
	}

	if *filePath != "" {
		initLogger(cfg, os.Stderr)
		os.Exit(runFile(cfg, id, *filePath))
	}

	logFile, err := tea.LogToFile(filepath.Join(os.TempDir(), "kikitori-recorder.log"), "recorder")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	initLogger(cfg, logFile)
	code := runLive(cfg, id)
	_ = logFile.Close()
	os.Exit(code)
}

func initLogger(cfg *config.RecorderConfig, w io.Writer) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})))
}

func dialBackend(cfg *config.RecorderConfig) (*client.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	return client.Dial(ctx, cfg.BackendURL, slog.Default())
}

func runFile(cfg *config.RecorderConfig, id, path string) int {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("failed to open input", "path", path, "error", err)
		return 1
	}
	defer f.Close()

	backend, err := dialBackend(cfg)
	if err != nil {
		slog.Error("failed to connect backend", "url", cfg.BackendURL, "error", err)
		return 1
	}
	defer backend.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, finalizeTimeout)
	defer cancel()

	slog.Info("sending file", "session_id", id, "path", path)
	text, err := recorder.SendFile(ctx, backend, id, f, cfg.FileChunkSize)
	if err != nil {
		slog.Error("transcription failed", "session_id", id, "error", err)
		return 1
	}
	fmt.Println(text)
	return 0
}

func runLive(cfg *config.RecorderConfig, id string) int {
	backend, err := dialBackend(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect backend %s: %v\n", cfg.BackendURL, err)
		return 1
	}
	defer backend.Close()

	injector := setupDI(cfg, backend)
	ctrl, err := do.Invoke[*recorder.Controller](injector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build recorder: %v\n", err)
		return 1
	}
	if err := ctrl.Start(context.Background(), id); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start recording: %v\n", err)
		return 1
	}

	final, err := tea.NewProgram(view.New(ctrl, finalizeTimeout), tea.WithAltScreen()).Run()
	if err != nil {
		slog.Error("view failed", "error", err)
		if _, stopErr := ctrl.Stop(context.Background()); stopErr != nil {
			slog.Error("finalize after view failure failed", "error", stopErr)
		}
		return 1
	}

	m, ok := final.(view.Model)
	if !ok || !m.Done() {
		return 1
	}
	if m.Err() != nil {
		fmt.Fprintln(os.Stderr, m.Err())
		return 1
	}
	fmt.Println(m.Text())
	return 0
}

func setupDI(cfg *config.RecorderConfig, backend recorder.Backend) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, backend)
	audioimpl.RegisterDI(injector)
	captureimpl.RegisterDI(injector)
	recorder.RegisterDI(injector)

	return injector
}
