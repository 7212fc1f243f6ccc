// Package runner orchestrates fanning question images out to models and
// folding the answers back into per-image consensus results.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/avelsen/vision-consensus/internal/consensus"
	"github.com/avelsen/vision-consensus/internal/demux"
	"github.com/avelsen/vision-consensus/internal/media"
	"github.com/avelsen/vision-consensus/internal/prompt"
	"github.com/avelsen/vision-consensus/internal/provider"
)

// Mode selects how images are sent to each model.
type Mode string

const (
	// ModeIndividual sends one call per image per model.
	ModeIndividual Mode = "individual"
	// ModeBatch sends all images to each model in a single call, then
	// demultiplexes the combined answer.
	ModeBatch Mode = "batch"
)

// ParseMode validates a mode string; empty defaults to individual.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeIndividual:
		return ModeIndividual, nil
	case ModeBatch:
		return ModeBatch, nil
	}
	return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeIndividual, ModeBatch)
}

// Request is one logical unit of work: a set of images evaluated by a set of
// models. Nothing is retained between requests.
type Request struct {
	Images []media.Image
	Models []string
	// Prompt overrides the default instruction when non-empty. In batch
	// mode the required output format is appended to it.
	Prompt string
	Mode   Mode
}

// ImageResult aggregates all answers for one image. Exactly one of Answers
// and ProcessingError is populated.
type ImageResult struct {
	Filename        string             `json:"filename"`
	Answers         []consensus.Answer `json:"answers,omitempty"`
	ProcessingError string             `json:"processing_error,omitempty"`
}

// Result is the terminal output of one request.
type Result struct {
	Mode   Mode          `json:"mode"`
	Images []ImageResult `json:"images"`
	// CallsSaved is how many external calls batch mode avoided versus
	// individual mode. Zero in individual mode.
	CallsSaved int           `json:"calls_saved,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Runner fans model calls out and gathers them back in.
type Runner struct {
	registry *provider.Registry
	timeout  time.Duration
	log      zerolog.Logger
}

// New creates a runner with the given registry and per-call timeout.
func New(registry *provider.Registry, timeout time.Duration, log zerolog.Logger) *Runner {
	return &Runner{
		registry: registry,
		timeout:  timeout,
		log:      log.With().Str("component", "runner").Logger(),
	}
}

// Run executes one request. A model call failing is expected and becomes a
// failed answer; Run only errors on invalid input. One image failing never
// aborts the others.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Images) == 0 {
		return nil, errors.New("no images provided")
	}
	if len(req.Images) > media.MaxImages {
		return nil, fmt.Errorf("too many images: %d (limit %d)", len(req.Images), media.MaxImages)
	}
	if len(req.Models) == 0 {
		return nil, errors.New("no models provided")
	}

	start := time.Now()

	var result *Result
	switch req.Mode {
	case ModeBatch:
		result = r.runBatch(ctx, req)
	default:
		result = r.runIndividual(ctx, req)
	}

	result.Elapsed = time.Since(start)
	r.log.Info().
		Str("mode", string(result.Mode)).
		Int("images", len(result.Images)).
		Int("calls_saved", result.CallsSaved).
		Dur("elapsed", result.Elapsed).
		Msg("request complete")
	return result, nil
}

// runIndividual processes images sequentially; within one image all model
// calls run concurrently and are awaited as a unit before analysis.
func (r *Runner) runIndividual(ctx context.Context, req Request) *Result {
	instruction := req.Prompt
	if instruction == "" {
		instruction = prompt.Individual
	}

	results := make([]ImageResult, 0, len(req.Images))
	for _, img := range req.Images {
		results = append(results, r.processImage(ctx, img, req.Models, instruction))
	}

	return &Result{Mode: ModeIndividual, Images: results}
}

// processImage never lets one image's failure escape to the caller; an
// unexpected fault is reported as that image's processing error.
func (r *Runner) processImage(ctx context.Context, img media.Image, models []string, instruction string) (res ImageResult) {
	res.Filename = img.Name
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("image", img.Name).Any("panic", rec).Msg("image processing fault")
			res.Answers = nil
			res.ProcessingError = fmt.Sprintf("internal fault: %v", rec)
		}
	}()

	answers := r.fanOut(ctx, models, instruction, []media.Image{img})
	res.Answers = consensus.Analyze(answers)
	return res
}

// fanOut issues one call per model concurrently and waits for all of them.
// A failure never cancels the sibling calls: each slot settles on its own as
// either a successful or a failed answer.
func (r *Runner) fanOut(ctx context.Context, models []string, promptText string, images []media.Image) []consensus.Answer {
	answers := make([]consensus.Answer, len(models))

	var g errgroup.Group
	for i, model := range models {
		g.Go(func() error {
			resp, err := r.call(ctx, model, promptText, images)
			if err != nil {
				r.log.Warn().Str("model", model).Err(err).Msg("model call failed")
				answers[i] = consensus.Answer{Model: model, ErrorMessage: err.Error()}
				return nil
			}
			answers[i] = consensus.Answer{Model: model, Text: resp.Content, OK: true}
			return nil
		})
	}
	g.Wait()

	return answers
}

func (r *Runner) call(ctx context.Context, model, promptText string, images []media.Image) (provider.Response, error) {
	p, err := r.registry.Get(model)
	if err != nil {
		return provider.Response{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return p.Query(callCtx, provider.Request{
		Model:  model,
		Prompt: promptText,
		Images: images,
	})
}

// runBatch sends all images to each model at once, demultiplexes each
// combined answer back into per-image answers, and analyzes per image.
func (r *Runner) runBatch(ctx context.Context, req Request) *Result {
	filenames := media.Names(req.Images)

	var promptText string
	if req.Prompt != "" {
		promptText = prompt.BatchWith(req.Prompt, filenames)
	} else {
		promptText = prompt.Batch(filenames)
	}

	combined := make([]demux.Combined, len(req.Models))

	var g errgroup.Group
	for i, model := range req.Models {
		g.Go(func() error {
			c := demux.Combined{Model: model, Filenames: filenames}
			resp, err := r.call(ctx, model, promptText, req.Images)
			if err != nil {
				// One shared response per model: a failure here fails
				// every image in the batch identically.
				r.log.Warn().Str("model", model).Err(err).Msg("batch call failed")
				c.ErrorMessage = err.Error()
			} else {
				c.OK = true
				c.RawText = resp.Content
			}
			combined[i] = c
			return nil
		})
	}
	g.Wait()

	// Regroup: perModel[m][i] is model m's answer for image i.
	perModel := make([][]consensus.Answer, len(combined))
	for m, c := range combined {
		perModel[m] = demux.Demultiplex(c)
	}

	results := make([]ImageResult, len(req.Images))
	for i, img := range req.Images {
		answers := make([]consensus.Answer, len(perModel))
		for m := range perModel {
			answers[m] = perModel[m][i]
		}
		results[i] = ImageResult{
			Filename: img.Name,
			Answers:  consensus.Analyze(answers),
		}
	}

	return &Result{
		Mode:       ModeBatch,
		Images:     results,
		CallsSaved: len(req.Images)*len(req.Models) - len(req.Models),
	}
}
