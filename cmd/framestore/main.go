// Package main provides the framestore command. It saves captured frames under
// sequential names and serves the capture operations over a JSON-lines stream
// for a UI process.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/isseis/go-safe-frame-store/internal/config"
	"github.com/isseis/go-safe-frame-store/internal/logging"
	"github.com/isseis/go-safe-frame-store/internal/payload"
	"github.com/isseis/go-safe-frame-store/internal/safefileio"
	"github.com/isseis/go-safe-frame-store/internal/service"
)

// Subcommands
const (
	cmdSave  = "save"
	cmdNext  = "next"
	cmdPath  = "path"
	cmdServe = "serve"
)

// Error definitions
var (
	errNoCommand      = errors.New("a command is required: save, next, path or serve")
	errUnknownCommand = errors.New("unknown command")
	errSaveFailed     = errors.New("one or more frames could not be saved")
)

// lookupEnv is replaced in tests.
var lookupEnv = os.LookupEnv

type globalOptions struct {
	configPath string
	outputDir  string
	logLevel   string
	logDir     string
	quiet      bool
}

type commandEnv struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	env := commandEnv{stdin: stdin, stdout: stdout, stderr: stderr}

	opts, fs, rest, err := parseGlobal(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		printUsage(fs, stderr)
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cfg, err := resolveConfig(opts, fs)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := dispatch(cfg, opts, rest, env); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseGlobal(args []string, stderr io.Writer) (*globalOptions, *flag.FlagSet, []string, error) {
	opts := &globalOptions{}

	fs := flag.NewFlagSet("framestore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(fs, stderr) }
	fs.StringVar(&opts.configPath, "config", "", "path to config file (.toml, .yaml, .yml or .ini)")
	fs.StringVar(&opts.outputDir, "output-dir", "", "output directory for frames. Overrides config and "+config.EnvOutputDir)
	fs.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&opts.logDir, "log-dir", "", "directory to place per-run JSON log (auto-named)")
	fs.BoolVar(&opts.quiet, "quiet", false, "force non-interactive log output")

	if err := fs.Parse(args); err != nil {
		return nil, fs, nil, err
	}
	if fs.NArg() == 0 {
		return nil, fs, nil, errNoCommand
	}
	return opts, fs, fs.Args(), nil
}

// resolveConfig applies defaults, the config file, the environment and the
// flags, in increasing order of precedence.
func resolveConfig(opts *globalOptions, fs *flag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	cfg.ApplyEnv(lookupEnv)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output-dir":
			cfg.OutputDir = opts.outputDir
		case "log-level":
			cfg.Log.Level = opts.logLevel
		case "log-dir":
			cfg.Log.Dir = opts.logDir
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func dispatch(cfg *config.Config, opts *globalOptions, args []string, env commandEnv) error {
	level, err := config.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger, err := logging.Setup(logging.Config{
		Level:               level,
		LogDir:              cfg.Log.Dir,
		Console:             env.stderr,
		ForceNonInteractive: opts.quiet,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() {
		if err := logger.Close(); err != nil {
			_, _ = fmt.Fprintf(env.stderr, "Warning: %v\n", err)
		}
	}()

	svcOpts, err := cfg.ServiceOptions()
	if err != nil {
		return err
	}
	svcOpts.Logger = logger.Logger
	svc, err := service.Build(svcOpts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	name, cmdArgs := args[0], args[1:]
	switch name {
	case cmdSave:
		return runSave(ctx, svc, cmdArgs, env)
	case cmdNext:
		return writeJSON(env.stdout, svc.GetNextImageNumber(ctx))
	case cmdPath:
		_, err := fmt.Fprintln(env.stdout, svc.GetSavePath())
		return err
	case cmdServe:
		return runServe(ctx, stop, svc, cfg.Server.MaxInFlight, env)
	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, name)
	}
}

func runSave(ctx context.Context, svc *service.Service, args []string, env commandEnv) error {
	var raw bool
	fs := flag.NewFlagSet(cmdSave, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	fs.BoolVar(&raw, "raw", false, "inputs are image bytes rather than base64 text")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Start failures are logged; each save reports its own directory error.
	_ = svc.Start()

	inputs := fs.Args()
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}

	failures := 0
	for _, input := range inputs {
		data, err := readInput(input, env.stdin)
		if err != nil {
			return err
		}
		encoded := string(data)
		if raw {
			encoded = base64.StdEncoding.EncodeToString(data)
		}

		res := svc.SaveImage(ctx, encoded)
		if !res.Success {
			failures++
		}
		if err := writeJSON(env.stdout, res); err != nil {
			return err
		}
	}

	if failures > 0 {
		return fmt.Errorf("%w: %d of %d", errSaveFailed, failures, len(inputs))
	}
	return nil
}

// readInput reads a payload from path, or from stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, payload.MaxEncodedSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		if len(data) > payload.MaxEncodedSize {
			return nil, fmt.Errorf("%w: stdin exceeds %d bytes", safefileio.ErrFileTooLarge, payload.MaxEncodedSize)
		}
		return data, nil
	}

	data, err := safefileio.SafeReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func runServe(ctx context.Context, stop context.CancelFunc, svc *service.Service, maxInFlight int, env commandEnv) error {
	_ = svc.Start()

	// After the first signal, restore default handling so a second one terminates
	// the process even while a read from stdin is blocked.
	go func() {
		<-ctx.Done()
		stop()
	}()

	srv := service.NewServer(svc, maxInFlight, nil)
	err := srv.Serve(ctx, env.stdin, env.stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	if fs == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "Usage: %s [flags] <command> [args]\n\n", filepath.Base(os.Args[0]))
	_, _ = fmt.Fprintln(w, "Commands:")
	_, _ = fmt.Fprintln(w, "  save [-raw] [file...]  save frames from files or stdin")
	_, _ = fmt.Fprintln(w, "  next                   print the next sequential number")
	_, _ = fmt.Fprintln(w, "  path                   print the active output directory")
	_, _ = fmt.Fprintln(w, "  serve                  answer JSON-lines requests on stdin/stdout")
	_, _ = fmt.Fprintln(w, "\nFlags:")
	fs.PrintDefaults()
}
