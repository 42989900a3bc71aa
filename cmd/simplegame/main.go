package main

import (
	"flag"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"

	"github.com/oxide-engine/simplegame/assets"
	"github.com/oxide-engine/simplegame/internal/renderer"
)

func init() {
	// SDL and the Vulkan surface must stay on the main thread.
	runtime.LockOSThread()
}

type options struct {
	cfg     renderer.Config
	width   int
	height  int
	verbose bool
}

func parseFlags(args []string, output io.Writer) (options, error) {
	opts := options{cfg: renderer.DefaultConfig()}

	flags := flag.NewFlagSet("simplegame", flag.ContinueOnError)
	flags.SetOutput(output)

	assetDir := flags.String("assets", "", "directory to load assets from instead of the embedded set")
	flags.StringVar(&opts.cfg.Model, "model", "", "OBJ model inside the asset directory; empty draws the built-in quads")
	flags.StringVar(&opts.cfg.Texture, "texture", opts.cfg.Texture, "texture image inside the asset directory")
	flags.BoolVar(&opts.cfg.Validation, "validation", opts.cfg.Validation, "enable the Khronos validation layer")
	flags.BoolVar(&opts.cfg.Multisample, "msaa", false, "render with the highest supported sample count")
	var fov, follow float64
	flags.Float64Var(&fov, "fov", float64(opts.cfg.FieldOfView), "vertical field of view in degrees")
	flags.Float64Var(&follow, "follow", float64(opts.cfg.FollowDistance), "camera distance behind the character")
	flags.IntVar(&opts.width, "width", 800, "initial window width")
	flags.IntVar(&opts.height, "height", 600, "initial window height")
	flags.BoolVar(&opts.verbose, "v", false, "log swapchain and validation detail")

	if err := flags.Parse(args); err != nil {
		return opts, err
	}
	if opts.width <= 0 || opts.height <= 0 {
		return opts, errors.Newf("window size %dx%d must be positive", opts.width, opts.height)
	}

	opts.cfg.FieldOfView = float32(fov)
	opts.cfg.FollowDistance = float32(follow)

	var assetFS fs.FS = assets.FS
	if *assetDir != "" {
		assetFS = os.DirFS(*assetDir)
	}
	opts.cfg.Assets = assetFS

	return opts, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("%+v\n", err)
	}

	renderer.SetLogger(newLogger(opts.verbose))

	err = run(opts)
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}
