// Command raytrace renders a scene description read from stdin and
// writes a P3 PPM image to stdout. Grounded on the original crt
// crate's main.rs: the same -j/--mem/--width/--height flags, driving
// the same parse -> render -> write_ppm pipeline, extended with
// --watch and --serve for the two long-running modes this port adds.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/selenia-project/crt/internal/cliutil"
	"github.com/selenia-project/crt/internal/netserve"
	"github.com/selenia-project/crt/internal/ppm"
	"github.com/selenia-project/crt/internal/raytrace"
	"github.com/selenia-project/crt/internal/watch"
)

func main() {
	var (
		jobs        = flag.Int("j", 0, "worker count (default: hardware parallelism)")
		jobsLong    = flag.Int("jobs", 0, "alias for -j")
		memKB       = flag.Int("mem", 640, "arena size in kilobytes")
		width       = flag.Int("width", 800, "image width in pixels")
		height      = flag.Int("height", 600, "image height in pixels")
		watchPath   = flag.String("watch", "", "re-render this file on every write, until interrupted")
		serveAddr   = flag.String("serve", "", "serve POST /render over HTTP/3 at this address")
		verbose     = flag.Bool("v", false, "enable info-level logging on stderr")
		verboseLong = flag.Bool("verbose", false, "alias for -v")
		showVersion = flag.Bool("version", false, "print version information and exit")
		showHelp    = flag.Bool("help", false, "print usage and exit")
	)

	flag.Usage = func() { cliutil.PrintUsage("raytrace") }
	flag.Parse()

	if *showHelp {
		cliutil.PrintUsage("raytrace")
		return
	}

	if *showVersion {
		cliutil.PrintVersion("raytrace")
		return
	}

	n := *jobs
	if *jobsLong != 0 {
		n = *jobsLong
	}

	log := cliutil.NewLogger(*verbose || *verboseLong)

	opts := raytrace.Options{
		MemBytes: *memKB * 1024,
		Width:    *width,
		Height:   *height,
		Workers:  n,
	}

	switch {
	case *watchPath != "" && *serveAddr != "":
		// A usage mistake, not a runtime failure: exit 2 (the
		// conventional "bad arguments" code) rather than ExitWithError's
		// exit 1, so scripts can tell the two apart.
		cliutil.ExitWithCode(2, "error: --watch and --serve are mutually exclusive")

	case *watchPath != "":
		runWatch(*watchPath, opts, log)

	case *serveAddr != "":
		runServe(*serveAddr, opts, log)

	default:
		runOnce(opts, log)
	}
}

// runOnce implements the original crt pipeline: read the whole scene
// from stdin, render once, write a PPM image to stdout.
func runOnce(opts raytrace.Options, log *cliutil.Logger) {
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		cliutil.ExitWithError("reading stdin: %v", err)
	}

	log.Info("rendering %dx%d with %d worker(s)", opts.Width, opts.Height, opts.Workers)

	buf, err := raytrace.Render(string(input), opts)
	if err != nil {
		cliutil.ExitWithError("%v", err)
	}

	if err := ppm.Write(os.Stdout, buf); err != nil {
		cliutil.ExitWithError("writing output: %v", err)
	}
}

// runWatch re-renders path to stdout on every write, stopping on
// SIGINT/SIGTERM. Each render is independent: no scene state survives
// from one invocation of the render callback to the next.
func runWatch(path string, opts raytrace.Options, log *cliutil.Logger) {
	stop := make(chan struct{})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	first := true

	err := watch.Run(path, stop, func(contents []byte) error {
		log.Info("re-rendering %s", path)

		if !first {
			if _, err := os.Stdout.Write([]byte{'\f'}); err != nil {
				return err
			}
		}
		first = false

		buf, err := raytrace.Render(string(contents), opts)
		if err != nil {
			log.Error("render failed: %v", err)
			return nil
		}

		return ppm.Write(os.Stdout, buf)
	})
	if err != nil {
		cliutil.ExitWithError("%v", err)
	}
}

// runServe starts the HTTP/3 render endpoint and blocks until it
// fails or the process is interrupted.
func runServe(addr string, opts raytrace.Options, log *cliutil.Logger) {
	srv, err := netserve.New(addr, netserve.Options{
		Width:    opts.Width,
		Height:   opts.Height,
		MemBytes: opts.MemBytes,
		Jobs:     opts.Workers,
		Render: func(scene string, opts raytrace.Options) ([]byte, error) {
			buf, err := raytrace.Render(scene, opts)
			if err != nil {
				return nil, err
			}

			return ppm.Encode(buf)
		},
	})
	if err != nil {
		cliutil.ExitWithError("starting server: %v", err)
	}

	boundAddr, err := srv.Start()
	if err != nil {
		cliutil.ExitWithError("starting server: %v", err)
	}

	log.Info("serving POST /render on https://%s", boundAddr)
	fmt.Fprintf(os.Stderr, "listening on https://%s\n", boundAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		_ = srv.Stop()

	case err := <-srv.Error():
		cliutil.ExitWithError("server error: %v", err)
	}
}
