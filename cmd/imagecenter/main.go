package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"jordanella.com/imagecenter/internal/config"
	"jordanella.com/imagecenter/internal/cv"
	"jordanella.com/imagecenter/internal/database"
	"jordanella.com/imagecenter/internal/logging"
	"jordanella.com/imagecenter/internal/remote"
	"jordanella.com/imagecenter/pkg/templates"
)

const usage = `usage: imagecenter <command> [flags] [args]

commands:
  find <template>...     wait for the first template that appears, print its center(s)
  exists <template>      print true or false
  during <template>      capture a burst of frames and search them
  colors <picture>       print every pixel as r,g,b (column by column)
  size <picture>         print width and height
  stats                  print per-template history from the database
  prune                  delete old history and compact the database
  serve                  run the remote matching server
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("imagecenter: %v", err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return flag.ErrHelp
	}

	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	f := registerFlags(fs, cmd)
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := config.Load(f.config)
	if err != nil {
		return err
	}

	logger := logging.NewLogger("imagecenter").SetMinLevel(settings.Level())
	if f.verbose {
		logger.SetMinLevel(logging.LogLevelDebug)
	}

	switch cmd {
	case "serve":
		return serve(ctx, settings, f, logger)
	case "stats":
		return stats(settings, out)
	case "prune":
		return prune(settings, f.olderThan, logger, out)
	}

	a, err := newApp(settings, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	opts, err := f.options(fs, settings)
	if err != nil {
		return err
	}

	switch cmd {
	case "find":
		if fs.NArg() == 0 {
			return fmt.Errorf("find: at least one template is required")
		}
		result, err := a.service.FindImage(ctx, fs.Args(), opts...)
		if err != nil {
			return err
		}
		printPoints(out, result.Points)

	case "exists":
		ref, err := oneArg(fs, cmd)
		if err != nil {
			return err
		}
		ok, err := a.service.ImageExists(ctx, ref, opts...)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ok)

	case "during":
		ref, err := oneArg(fs, cmd)
		if err != nil {
			return err
		}
		result, err := a.service.GetDuring(ctx, ref, f.window, opts...)
		if err != nil {
			return err
		}
		printPoints(out, result.Points)

	case "colors":
		ref, err := oneArg(fs, cmd)
		if err != nil {
			return err
		}
		colors, err := a.service.Colors(ref)
		if err != nil {
			return err
		}
		for _, c := range colors {
			fmt.Fprintf(out, "%d,%d,%d\n", c.R, c.G, c.B)
		}

	case "size":
		ref, err := oneArg(fs, cmd)
		if err != nil {
			return err
		}
		w, h, err := a.service.Dimensions(ref)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d %d\n", w, h)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

type cliFlags struct {
	config   string
	verbose  bool
	rate     float64
	attempts int
	pause    time.Duration
	timeout  time.Duration
	multiple bool
	picture  string
	bbox     string

	window     time.Duration
	frames     int
	framePause time.Duration
	frameDir   string

	addr      string
	olderThan time.Duration
}

func registerFlags(fs *flag.FlagSet, cmd string) *cliFlags {
	f := &cliFlags{}
	fs.StringVar(&f.config, "config", "", "Path to ini settings (default: built-in defaults)")
	fs.BoolVar(&f.verbose, "v", false, "Log at DEBUG level")

	switch cmd {
	case "serve":
		fs.StringVar(&f.addr, "addr", "", "Listen address (default: :<port> from settings)")
		return f
	case "prune":
		fs.DurationVar(&f.olderThan, "older-than", 30*24*time.Hour, "Delete sessions started longer ago than this")
		return f
	case "stats", "colors", "size":
		return f
	}

	fs.Float64Var(&f.rate, "rate", 0, "Required fraction of equal pixels, 0..1")
	fs.IntVar(&f.attempts, "attempts", 0, "Retries after the first attempt")
	fs.DurationVar(&f.pause, "pause", 0, "Pause between attempts")
	fs.DurationVar(&f.timeout, "timeout", 0, "Give up on a template after this long")
	fs.BoolVar(&f.multiple, "multiple", false, "Report every match, not just the first")
	fs.StringVar(&f.picture, "picture", "", "Match against this picture instead of the screen")
	fs.StringVar(&f.bbox, "bbox", "", "Capture only x,y,width,height")

	if cmd == "during" {
		fs.DurationVar(&f.window, "window", time.Second, "How long to capture frames")
		fs.IntVar(&f.frames, "frames", 0, "Maximum frames to capture (default: maxFrames from settings)")
		fs.DurationVar(&f.framePause, "frame-pause", 0, "Pause between captures")
		fs.StringVar(&f.frameDir, "frame-dir", "", "Write captured frames here (default: frameDir from settings)")
	}
	return f
}

// options turns explicitly set flags into cv options; unset flags leave the
// configured defaults alone.
func (f *cliFlags) options(fs *flag.FlagSet, settings *config.Settings) ([]cv.Option, error) {
	var opts []cv.Option
	var err error

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "rate":
			opts = append(opts, cv.WithRate(f.rate))
		case "attempts":
			opts = append(opts, cv.WithMaxAttempts(f.attempts))
		case "pause":
			opts = append(opts, cv.WithPause(f.pause))
		case "timeout":
			opts = append(opts, cv.WithTimeout(f.timeout))
		case "multiple":
			if f.multiple {
				opts = append(opts, cv.WithMultiple())
			}
		case "picture":
			opts = append(opts, cv.WithReference(f.picture))
		case "bbox":
			region, perr := cv.ParseRegion(f.bbox)
			if perr != nil {
				err = perr
				return
			}
			opts = append(opts, cv.WithRegion(region))
		case "frames":
			opts = append(opts, cv.WithMaxFrames(f.frames))
		case "frame-pause":
			opts = append(opts, cv.WithFramePause(f.framePause))
		}
	})
	if err != nil {
		return nil, err
	}

	frameDir := settings.FrameDir
	if f.frameDir != "" {
		frameDir = f.frameDir
	}
	if frameDir != "" {
		opts = append(opts, cv.WithFrameDir(frameDir))
	}
	return opts, nil
}

type app struct {
	service *cv.Service
	closers []io.Closer
}

func newApp(settings *config.Settings, logger *logging.Logger) (*app, error) {
	a := &app{}

	capturer, err := cv.NewCapturer(cv.CaptureMethod(settings.CaptureBackend))
	if err != nil {
		return nil, err
	}

	service := cv.NewService(capturer).
		WithLogger(logger.Named("cv")).
		WithDefaults(settings.PollingConfig()).
		WithFrameLimit(settings.MaxFrames).
		WithPicPath(settings.PicPath)

	if settings.Matcher == config.MatcherRemote {
		client, err := remote.Dial(settings.RemoteAddr(), remote.ClientOptions{
			Retry:  remote.RetryConfig{MaxRetries: settings.NetworkRetry},
			Logger: logger.Named("remote"),
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		service.WithLocator(client)
	}

	if settings.TemplateCatalog != "" {
		registry := templates.NewTemplateRegistry(settings.PicPath).WithLogger(logger.Named("templates"))
		if err := registry.Load(settings.TemplateCatalog); err != nil {
			a.Close()
			return nil, err
		}
		logger.DebugWithContext("template catalog loaded", map[string]interface{}{
			"path":      settings.TemplateCatalog,
			"templates": registry.Count(),
		})
		service.WithTemplateRegistry(registry)
	}

	if settings.DatabasePath != "" {
		db, err := database.OpenAndMigrate(settings.DatabasePath, logger.Named("database"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db)
		service.WithRecorder(database.NewHistory(db))
	}

	a.service = service
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}

func serve(ctx context.Context, settings *config.Settings, f *cliFlags, logger *logging.Logger) error {
	addr := f.addr
	if addr == "" {
		addr = net.JoinHostPort("", strconv.Itoa(settings.Port))
	}
	server := remote.NewServer(cv.NewMatcher(nil), logger.Named("remote"))
	return server.ListenAndServe(ctx, addr)
}

func stats(settings *config.Settings, out io.Writer) error {
	if settings.DatabasePath == "" {
		return fmt.Errorf("stats: databasePath is not set")
	}
	db, err := database.OpenAndMigrate(settings.DatabasePath, logging.Discard())
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := database.NewHistory(db).TemplateStats()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%-24s %8s %8s %8s %8s %10s\n", "TEMPLATE", "ATTEMPTS", "FOUND", "CAPERR", "HITRATE", "AVG_MS")
	for _, s := range rows {
		fmt.Fprintf(out, "%-24s %8d %8d %8d %7.1f%% %10.1f\n",
			s.Template, s.Attempts, s.Found, s.CaptureErrors, s.HitRate()*100, s.AvgDurationMs)
	}
	return nil
}

func prune(settings *config.Settings, olderThan time.Duration, logger *logging.Logger, out io.Writer) error {
	if settings.DatabasePath == "" {
		return fmt.Errorf("prune: databasePath is not set")
	}
	if olderThan < 0 {
		return fmt.Errorf("prune: -older-than must not be negative, got %v", olderThan)
	}
	db, err := database.OpenAndMigrate(settings.DatabasePath, logger.Named("database"))
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := database.NewHistory(db).PruneBefore(time.Now().Add(-olderThan))
	if err != nil {
		return err
	}
	if err := db.Vacuum(); err != nil {
		return fmt.Errorf("failed to vacuum %s: %w", db.Path(), err)
	}
	logger.InfoWithContext("history pruned", map[string]interface{}{
		"path":     db.Path(),
		"sessions": removed,
	})
	fmt.Fprintf(out, "%d\n", removed)
	return nil
}

func oneArg(fs *flag.FlagSet, cmd string) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected exactly one argument, got %d", cmd, fs.NArg())
	}
	return fs.Arg(0), nil
}

func printPoints(out io.Writer, points []cv.Point) {
	for _, p := range points {
		fmt.Fprintf(out, "%d %d\n", p.X, p.Y)
	}
}
