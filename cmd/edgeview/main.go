package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/edgeview/internal/config"
	"github.com/ironsheep/edgeview/internal/detect"
	"github.com/ironsheep/edgeview/internal/devservice"
	"github.com/ironsheep/edgeview/internal/handle"
	"github.com/ironsheep/edgeview/internal/imagefile"
	"github.com/ironsheep/edgeview/internal/server"
	"github.com/ironsheep/edgeview/internal/view"
	"github.com/ironsheep/edgeview/internal/web"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("edgeview %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printUsage()
			return
		}
	}

	// Logging goes to stderr; stdout carries MCP frames and CLI output.
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "mcp":
		err = runMCP(args)
	case "detect":
		err = runDetect(args)
	case "devservice":
		err = runDevService(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func printUsage() {
	fmt.Println("edgeview - upload an image and view its edge map")
	fmt.Println()
	fmt.Println("Usage: edgeview [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                   Serve the web page (default)")
	fmt.Println("  mcp                     Serve the view over MCP on stdin/stdout")
	fmt.Println("  detect FILE [-o OUT]    Send one file to the edge service")
	fmt.Println("  devservice              Run the local edge service")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println("  -config PATH     YAML config file (default $EDGEVIEW_CONFIG)")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  EDGEVIEW_ENDPOINT=cloud|local    Edge service preset")
	fmt.Println("  EDGEVIEW_SERVICE_URL=URL         Edge service override")
	fmt.Println("  EDGEVIEW_ADDR=:8080              Web listen address")
	fmt.Println("  EDGEVIEW_REQUEST_TIMEOUT=2m      Per-request timeout, 0 disables")
	fmt.Println("  EDGEVIEW_LOG_LEVEL=debug         Enable debug logging")
}

// loadConfig parses the common -config flag and any extra flags set up by
// the caller, then loads the configuration.
func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	path := fs.String("config", os.Getenv("EDGEVIEW_CONFIG"), "YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return nil, err
	}
	if cfg.Debug() {
		log.Printf("edgeview v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
		log.Printf("Edge service: %s (field %q, timeout %s)", cfg.DetectURL(), cfg.FormField, cfg.RequestTimeout)
	}
	return cfg, nil
}

func newDetector(cfg *config.Config) *detect.Client {
	return detect.NewClient(cfg.DetectURL(), detect.WithField(cfg.FormField))
}

func newView(cfg *config.Config, d view.Detector, reg *handle.Registry) *view.View {
	return view.New(d, reg,
		view.WithTimeout(cfg.RequestTimeout),
		view.WithLogger(log.New(os.Stderr, "view: ", log.Ldate|log.Ltime)),
	)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(args []string) error {
	cfg, err := loadConfig(flag.NewFlagSet("serve", flag.ExitOnError), args)
	if err != nil {
		return err
	}

	theme, err := web.NewTheme(cfg.AccentColor)
	if err != nil {
		return err
	}
	if !cfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	handles := handle.NewRegistry(handle.DefaultBasePath)
	detector := newDetector(cfg)
	sessions := web.NewSessions(func() *view.View {
		return newView(cfg, detector, handles)
	}, cfg.SessionTTL)
	defer sessions.CloseAll()

	router := web.NewRouter(sessions, handles, web.Options{
		Theme:          theme,
		MaxUploadBytes: cfg.MaxUploadBytes,
		ServiceURL:     cfg.DetectURL(),
	})

	ctx, stop := signalContext()
	defer stop()
	return serveHTTP(ctx, cfg.ListenAddr, router, func(ctx context.Context) {
		if cfg.SessionTTL > 0 {
			sessions.RunJanitor(ctx, cfg.SessionTTL/2)
		}
	})
}

func runDevService(args []string) error {
	cfg, err := loadConfig(flag.NewFlagSet("devservice", flag.ExitOnError), args)
	if err != nil {
		return err
	}
	if !cfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signalContext()
	defer stop()
	return serveHTTP(ctx, cfg.DevServiceAddr, devservice.NewRouter(devservice.DefaultOptions(), cfg.MaxUploadBytes), nil)
}

// serveHTTP runs h on addr alongside an optional background worker and shuts
// both down when ctx is done.
func serveHTTP(ctx context.Context, addr string, h http.Handler, worker func(context.Context)) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("Shutting down %s", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if worker != nil {
		g.Go(func() error {
			worker(gctx)
			return nil
		})
	}
	return g.Wait()
}

func runMCP(args []string) error {
	cfg, err := loadConfig(flag.NewFlagSet("mcp", flag.ExitOnError), args)
	if err != nil {
		return err
	}

	v := newView(cfg, newDetector(cfg), handle.NewRegistry(handle.DefaultBasePath))
	defer v.Close()

	return server.New(v, Version).Run()
}

func runDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	out := fs.String("o", "", "output file (default FILE with .edges.jpg)")

	// Flags may follow the file name.
	var file string
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		file, args = args[0], args[1:]
	}
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if file == "" {
		file = fs.Arg(0)
	}
	if file == "" {
		return errors.New("usage: edgeview detect FILE [-o OUT]")
	}
	if !imagefile.Accepts(file) {
		log.Printf("Warning: %s does not have an image extension, sending anyway", file)
	}

	f, err := imagefile.Open(file)
	if err != nil {
		return err
	}

	v := newView(cfg, newDetector(cfg), handle.NewRegistry(handle.DefaultBasePath))
	defer v.Close()
	if _, err := v.SelectFile(f); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	task := v.RequestDetection(ctx)
	if task == nil {
		return errors.New("detection did not start")
	}
	snap := task.Wait()
	if snap.Phase != view.PhaseSucceeded {
		return fmt.Errorf("detection failed: %s", snap.Error)
	}

	data, contentType, _ := v.ResultData()
	target := *out
	if target == "" {
		target = file + ".edges.jpg"
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	fmt.Printf("%s -> %s (%s, %d bytes)\n", file, target, contentType, len(data))
	fmt.Printf("Total time: %.0f ms\n", snap.ElapsedMS)
	return nil
}
