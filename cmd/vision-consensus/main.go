package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/avelsen/vision-consensus/internal/consensus"
	"github.com/avelsen/vision-consensus/internal/media"
	"github.com/avelsen/vision-consensus/internal/output"
	"github.com/avelsen/vision-consensus/internal/provider"
	"github.com/avelsen/vision-consensus/internal/runner"
	"github.com/avelsen/vision-consensus/internal/ui"
)

// Version information set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultModels = "gpt-4o,claude-sonnet-4-5"

type cliConfig struct {
	models  []string
	mode    runner.Mode
	prompt  string
	timeout time.Duration
	quiet   bool
	json    bool
	paths   []string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := parseFlags()
	if err != nil {
		return err
	}

	// Setup context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	showUI := ui.IsTerminal(os.Stderr) && !cfg.quiet && !cfg.json
	startTime := time.Now()

	// Load images up front; a bad file is reported per image, not fatal.
	images := make([]media.Image, 0, len(cfg.paths))
	failed := make([]runner.ImageResult, 0)
	for _, path := range cfg.paths {
		img, loadErr := media.Load(path)
		if loadErr != nil {
			failed = append(failed, runner.ImageResult{
				Filename:        path,
				ProcessingError: loadErr.Error(),
			})
			continue
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		return fmt.Errorf("no readable images among %d file(s)", len(cfg.paths))
	}

	registry, err := provider.BuildRegistry(cfg.models)
	if err != nil {
		return err
	}

	if showUI {
		ui.PrintHeader(os.Stderr, len(images), len(cfg.models), cfg.mode)
		ui.PrintPhase(os.Stderr, "Querying models...")
		fmt.Fprintln(os.Stderr)
	}

	progress := ui.NewProgress(os.Stderr, cfg.models, !showUI)
	progress.Start()
	instrument(registry, cfg.models, progress)

	r := runner.New(registry, cfg.timeout, cliLogger(cfg.quiet || showUI))
	result, err := r.Run(ctx, runner.Request{
		Images: images,
		Models: cfg.models,
		Prompt: cfg.prompt,
		Mode:   cfg.mode,
	})

	progress.Stop()

	if err != nil {
		return fmt.Errorf("running analysis: %w", err)
	}

	results := append(result.Images, failed...)

	if cfg.json || !showUI {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(output.Result{
			Prompt:     cfg.prompt,
			Mode:       result.Mode,
			Models:     cfg.models,
			Images:     results,
			CallsSaved: result.CallsSaved,
		})
	}

	ui.PrintSuccess(os.Stderr, fmt.Sprintf("Analyzed %d image(s)", len(result.Images)))
	for _, res := range results {
		ui.PrintImageResult(os.Stderr, res)
	}

	agreed := 0
	for _, res := range result.Images {
		if fullConsensus(res) {
			agreed++
		}
	}
	ui.PrintSummary(os.Stderr, len(results), agreed, result.CallsSaved, time.Since(startTime))

	return nil
}

// fullConsensus reports whether every answer for the image reached consensus.
func fullConsensus(res runner.ImageResult) bool {
	if res.ProcessingError != "" || len(res.Answers) == 0 {
		return false
	}
	for _, a := range res.Answers {
		if a.Status != consensus.StatusConsensus {
			return false
		}
	}
	return true
}

// instrument wraps each registered provider so the progress display follows
// the call lifecycle.
func instrument(registry *provider.Registry, models []string, progress *ui.Progress) {
	for _, model := range models {
		p, err := registry.Get(model)
		if err != nil {
			continue
		}
		registry.Register(model, provider.ProviderFunc(func(ctx context.Context, req provider.Request) (provider.Response, error) {
			progress.CallStarted(req.Model)
			resp, qErr := p.Query(ctx, req)
			if qErr != nil {
				progress.CallFailed(req.Model, qErr)
			} else {
				progress.CallCompleted(req.Model)
			}
			return resp, qErr
		}))
	}
}

func cliLogger(quiet bool) zerolog.Logger {
	if quiet {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// getVersion returns the version string, using build info as fallback.
func getVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

func parseFlags() (*cliConfig, error) {
	var (
		modelsStr   string
		modeStr     string
		promptText  string
		promptFile  string
		timeout     int
		quiet       bool
		jsonOutput  bool
		showVersion bool
	)

	flag.StringVar(&modelsStr, "models", defaultModels, "Comma-separated list of models to query")
	flag.StringVar(&modeStr, "mode", "individual", "Query mode: individual (one call per image per model) or batch (one call per model)")
	flag.StringVar(&promptText, "prompt", "", "Custom prompt (defaults to the built-in answer-only instruction)")
	flag.StringVar(&promptFile, "prompt-file", "", "Read custom prompt from file")
	flag.IntVar(&timeout, "timeout", 120, "Per-call timeout in seconds")
	flag.BoolVar(&quiet, "quiet", false, "Suppress progress output")
	flag.BoolVar(&quiet, "q", false, "Suppress progress output (shorthand)")
	flag.BoolVar(&jsonOutput, "json", false, "Output JSON to stdout (no interactive display)")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("vision-consensus %s\n", getVersion())
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(0)
	}

	paths := flag.Args()
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images provided: pass image paths as arguments")
	}
	if len(paths) > media.MaxImages {
		return nil, fmt.Errorf("too many images: %d (limit %d)", len(paths), media.MaxImages)
	}

	mode, err := runner.ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	if promptFile != "" {
		data, readErr := os.ReadFile(promptFile)
		if readErr != nil {
			return nil, fmt.Errorf("reading prompt file: %w", readErr)
		}
		promptText = strings.TrimSpace(string(data))
	}

	models := strings.Split(modelsStr, ",")
	for i := range models {
		models[i] = strings.TrimSpace(models[i])
	}

	return &cliConfig{
		models:  models,
		mode:    mode,
		prompt:  promptText,
		timeout: time.Duration(timeout) * time.Second,
		quiet:   quiet,
		json:    jsonOutput,
		paths:   paths,
	}, nil
}
