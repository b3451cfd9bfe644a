package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"videomass/config"
	"videomass/display"
	"videomass/events"
	"videomass/ffmpeg"
	"videomass/ffprobe"
	vmerrors "videomass/internal/errors"
	"videomass/logger"
	"videomass/orchestrator"
	"videomass/presets"
)

func main() {
	// SIGINT/SIGTERM cancel the root context; running ffmpeg processes are
	// killed through it.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, rest, err := config.Load(args)
	if err != nil {
		fmt.Fprintln(stderr, display.Error("configuration error: %v", err))
		return vmerrors.ExitCode(err)
	}
	if len(rest) == 0 {
		config.PrintUsage(stderr)
		return 2
	}

	a := newApp(cfg, stdout, stderr)
	defer a.close()

	err = a.dispatch(ctx, rest[0], rest[1:])
	if err == nil {
		return 0
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, display.Warning("canceled"))
		return vmerrors.CodeCanceled.ExitCode()
	}
	if errors.Is(err, errUsage) {
		return 2
	}
	fmt.Fprintln(stderr, display.Error("%v", err))
	return vmerrors.ExitCode(err)
}

// errUsage means the usage text was already printed.
var errUsage = errors.New("usage")

// app holds everything a command needs.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	ffmpeg   *ffmpeg.Runner
	ffplay   *ffmpeg.Runner
	prober   *ffprobe.Prober
	bus      *events.Bus
	store    *presets.Store
	progress *display.Progress
	detach   func()
	stdout   io.Writer
	stderr   io.Writer
}

func newApp(cfg *config.Config, stdout, stderr io.Writer) *app {
	log := logger.New(logger.Config{
		Writer: stderr,
		Format: cfg.LogFormat,
		Level:  logger.ParseLevel(cfg.LogLevel),
	})
	bus := events.NewBus(log.Logger)
	progress := display.NewProgress(stderr, isTerminal(stderr) && cfg.LogFormat != logger.FormatJSON)

	return &app{
		cfg:      cfg,
		log:      log,
		ffmpeg:   ffmpeg.NewRunner(cfg.Binaries.FFmpeg, log),
		ffplay:   ffmpeg.NewRunner(cfg.Binaries.FFplay, log),
		prober:   ffprobe.NewProber(ffmpeg.NewRunner(cfg.Binaries.FFprobe, log)),
		bus:      bus,
		store:    presets.NewStore(cfg.PresetsDir, log),
		progress: progress,
		detach:   progress.Attach(bus),
		stdout:   stdout,
		stderr:   stderr,
	}
}

func (a *app) close() {
	a.detach()
	a.progress.Close()
}

func (a *app) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "convert":
		return a.convert(ctx, args)
	case "presets":
		return a.presetsCmd(ctx, args)
	case "volume":
		return a.volume(ctx, args)
	case "info":
		return a.info(ctx, args)
	case "probe":
		return a.probe(ctx, args)
	case "play":
		return a.play(ctx, args)
	case "concat":
		return a.concat(ctx, args)
	case "config":
		return a.configCmd(args)
	case "help", "-h", "-help", "--help":
		config.PrintUsage(a.stdout)
		return nil
	default:
		fmt.Fprintf(a.stderr, "unknown command %q\n\n", name)
		config.PrintUsage(a.stderr)
		return errUsage
	}
}

// scheduler returns an orchestrator with cfg.Workers ffmpeg slots wired to
// the event bus.
func (a *app) scheduler() *orchestrator.DAGOrchestrator {
	o := orchestrator.NewDAGOrchestrator([]orchestrator.ResourceConstraint{
		{Type: orchestrator.ResourceFFmpeg, MaxSlots: a.cfg.Workers},
		{Type: orchestrator.ResourceProbe, MaxSlots: a.cfg.Workers},
		{Type: orchestrator.ResourceIO, MaxSlots: 1},
	})
	o.SetEventBus(a.bus)
	o.SetLogger(a.log)
	return o
}

// ensurePresets installs the built-in presets on first use.
func (a *app) ensurePresets() error {
	names, err := a.store.List()
	if err != nil || len(names) > 0 {
		return err
	}
	restored, err := a.store.RestoreDefaults(false)
	if err != nil {
		return err
	}
	a.log.Info("installed default presets", "dir", a.store.Dir, "presets", restored)
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
