// Package videoprocessor is the public entry point for assembling narrated vertical clips.
package videoprocessor

import (
	"context"

	"github.com/ZacxDev/clip-assembler/internal/config"
	"github.com/ZacxDev/clip-assembler/internal/ffmpeg"
	"github.com/ZacxDev/clip-assembler/internal/logging"
	"github.com/ZacxDev/clip-assembler/internal/plan"
	"github.com/ZacxDev/clip-assembler/internal/planner"
	"github.com/ZacxDev/clip-assembler/internal/platform"
	"github.com/ZacxDev/clip-assembler/internal/processor"
	"github.com/ZacxDev/clip-assembler/internal/source"
	"github.com/ZacxDev/clip-assembler/internal/store"
	"github.com/ZacxDev/clip-assembler/internal/tts"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type (
	Options       = config.Options
	PlanEntry     = plan.Entry
	Result        = processor.Result
	VideoMetadata = ffmpeg.VideoMetadata
	Run           = store.Run
	Segment       = store.Segment
)

// LoadOptions reads defaults, the YAML config file, .env and the environment.
func LoadOptions(path string) (*Options, error) {
	return config.Load(path)
}

// Assembler wires the real adapters around a pipeline.
type Assembler struct {
	opts     *Options
	log      *logrus.Logger
	media    *ffmpeg.Processor
	locator  *source.Locator
	plans    *plan.Repository
	platform platform.Platform
	store    *store.Store
}

func New(opts *Options) (*Assembler, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}
	plat, err := platform.Get(opts.Platform)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	log := logging.New(opts.LogLevel, opts.LogFormat, opts.Verbose)
	media := ffmpeg.NewProcessor(logging.WithComponent(log, "ffmpeg"), ffmpeg.Settings{
		VideoRate: opts.VideoRate,
		FrameRate: opts.FrameRate,
		Zoom:      opts.ZoomLevel,
	}, opts.Verbose)

	gen, err := planner.New(opts.Planner)
	if err != nil {
		// a cached plan still works without a generator
		log.WithError(err).Debug("Plan generator unavailable")
	}

	return &Assembler{
		opts:     opts,
		log:      log,
		media:    media,
		locator:  source.NewLocator(opts.Path(opts.Dirs.Movies), opts.Path(opts.Dirs.SRT), media, logging.WithComponent(log, "source")),
		plans:    plan.NewRepository(opts.Path(opts.PlanFile), gen, logging.WithComponent(log, "plan")),
		platform: plat,
	}, nil
}

// openStore opens the status database. A failure only disables status tracking.
func (a *Assembler) openStore() *store.Store {
	if a.store != nil {
		return a.store
	}
	s, err := store.Open(a.opts.Path(a.opts.StateDB), logging.WithComponent(a.log, "store"))
	if err != nil {
		a.log.WithError(err).Warn("Segment status tracking disabled")
		return nil
	}
	a.store = s
	return s
}

func (a *Assembler) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// Logger exposes the configured logger to the CLI.
func (a *Assembler) Logger() *logrus.Logger {
	return a.log
}

// Run executes the full pipeline for the first source video in the movies directory.
func (a *Assembler) Run(ctx context.Context) (*Result, error) {
	deps := processor.Deps{
		Locator: a.locator,
		Plans:   a.plans,
		Voice:   tts.NewKokoro(a.opts.TTS, logging.WithComponent(a.log, "tts")),
		Media:   a.media,
	}
	if s := a.openStore(); s != nil {
		deps.Store = s
	}
	p := processor.New(deps, processor.LayoutFromOptions(a.opts), a.platform, a.opts.Music,
		a.opts.KeepSource, logging.WithComponent(a.log, "pipeline"))
	return p.Run(ctx)
}

// Plan loads the cached plan or generates it from the source's subtitles. The source video is only
// looked up when the plan has to be generated.
func (a *Assembler) Plan(ctx context.Context) ([]PlanEntry, error) {
	return a.plans.LoadOrGenerate(ctx, func() (string, error) {
		video, err := a.locator.FindVideo()
		if err != nil {
			return "", err
		}
		return a.locator.Subtitles(video)
	})
}

// ExportVertical crops a single clip to the configured platform's 9:16 canvas.
func (a *Assembler) ExportVertical(inputPath, outputPath string) error {
	return a.media.ExportVertical(inputPath, outputPath, a.platform)
}

// GetVideoMetadata probes a media file.
func (a *Assembler) GetVideoMetadata(path string) (*VideoMetadata, error) {
	return a.media.GetVideoMetadata(path)
}

// Status returns the latest run and the persisted segment statuses of its source.
func (a *Assembler) Status(ctx context.Context) (*Run, []Segment, error) {
	s := a.openStore()
	if s == nil {
		return nil, nil, errors.New("status database unavailable")
	}
	run, err := s.LatestRun(ctx)
	if err != nil || run == nil {
		return run, nil, err
	}
	segs, err := s.Segments(ctx, run.Source)
	return run, segs, err
}

// GetSupportedPlatforms returns the registered export targets.
func GetSupportedPlatforms() []string {
	return platform.GetSupportedPlatforms()
}
