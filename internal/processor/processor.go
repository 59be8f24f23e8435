// Package processor drives a cut plan through synthesis, rendering, mixing, concatenation and export.
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZacxDev/clip-assembler/internal/config"
	"github.com/ZacxDev/clip-assembler/internal/ffmpeg"
	"github.com/ZacxDev/clip-assembler/internal/plan"
	"github.com/ZacxDev/clip-assembler/internal/platform"
	"github.com/ZacxDev/clip-assembler/internal/source"
	"github.com/ZacxDev/clip-assembler/internal/store"
	"github.com/ZacxDev/clip-assembler/internal/tts"
	"github.com/ZacxDev/clip-assembler/pkg/types"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoSourceVideo = source.ErrNoSourceVideo
	ErrNoClips       = errors.New("no clips were produced")
	ErrConcat        = errors.New("concatenation failed")
)

type Renderer interface {
	RenderSegment(req ffmpeg.RenderRequest) error
}

type Mixer interface {
	MixMusic(req ffmpeg.MixRequest) error
}

type Concatenator interface {
	Concat(clipPaths []string, outputPath string) error
}

type Exporter interface {
	ExportVertical(inputPath, outputPath string, plat platform.Platform) error
}

// Media is everything the pipeline asks of the transcoder; *ffmpeg.Processor satisfies it.
type Media interface {
	Renderer
	Mixer
	Concatenator
	Exporter
}

type PlanSource interface {
	LoadOrGenerate(ctx context.Context, subtitles plan.SubtitleSource) ([]plan.Entry, error)
}

type SourceLocator interface {
	FindVideo() (string, error)
	Subtitles(videoPath string) (string, error)
}

// StatusStore persists segment status. Failures are logged and never change the run's outcome.
type StatusStore interface {
	StartRun(ctx context.Context, source string) (string, error)
	FinishRun(ctx context.Context, id, outcome string) error
	Reconcile(ctx context.Context, source string, count int, clipPath func(idx int) string) error
	Record(ctx context.Context, source string, idx int, status types.SegmentStatus, clipPath, errMsg string) error
}

// Deps are the collaborators of a Pipeline. Store may be nil.
type Deps struct {
	Locator SourceLocator
	Plans   PlanSource
	Voice   tts.Synthesizer
	Media   Media
	Store   StatusStore
}

// Layout names every file the pipeline reads or writes.
type Layout struct {
	Clips   string
	Output  string
	Export  string
	Retired string
	Music   string
}

func LayoutFromOptions(opts *config.Options) Layout {
	return Layout{
		Clips:   opts.Path(opts.Dirs.Clips),
		Output:  opts.Path(opts.Dirs.Output),
		Export:  opts.Path(opts.Dirs.Export),
		Retired: opts.Path(opts.Dirs.Retired),
		Music:   opts.Path(opts.Dirs.Music),
	}
}

func (l Layout) ClipPath(idx int) string {
	return filepath.Join(l.Clips, fmt.Sprintf("clip_%d.mp4", idx))
}

func (l Layout) VoiceoverPath(idx int) string {
	return filepath.Join(l.Clips, fmt.Sprintf("voiceover_%d.wav", idx))
}

func (l Layout) MixedPath(idx int) string {
	return filepath.Join(l.Clips, fmt.Sprintf("mixed_%d.mp4", idx))
}

func (l Layout) DeliverablePath(stem string) string {
	return filepath.Join(l.Output, stem+".mp4")
}

// ExportPath is keyed by 1-based position in the final clip set.
func (l Layout) ExportPath(pos int) string {
	return filepath.Join(l.Export, fmt.Sprintf("%d.mp4", pos))
}

// Clip is a produced clip bound to its segment index.
type Clip struct {
	Index int
	Path  string
}

type SegmentResult struct {
	Index  int
	Status types.SegmentStatus
	Path   string
	Err    error
}

type Result struct {
	RunID       string
	Source      string
	Segments    []SegmentResult
	Clips       []Clip
	Deliverable string
	Exports     []string
}

// Pipeline runs one source video end to end.
type Pipeline struct {
	deps     Deps
	layout   Layout
	platform platform.Platform
	music    config.MusicOptions
	keep     bool
	log      logrus.FieldLogger

	pickTrack func(tracks []string) string
}

func New(deps Deps, layout Layout, plat platform.Platform, music config.MusicOptions, keepSource bool, log logrus.FieldLogger) *Pipeline {
	if deps.Store == nil {
		deps.Store = nopStore{}
	}
	return &Pipeline{
		deps:      deps,
		layout:    layout,
		platform:  plat,
		music:     music,
		keep:      keepSource,
		log:       log,
		pickTrack: lo.Sample[string],
	}
}

// Run processes the first source video found. Only fatal errors are returned; segment, mix and
// export failures are reported in the Result.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	video, err := p.deps.Locator.FindVideo()
	if err != nil {
		return nil, err
	}
	stem := source.Stem(video)
	log := p.log.WithField("source", stem)
	log.Infof("Processing %s", video)

	entries, err := p.deps.Plans.LoadOrGenerate(ctx, func() (string, error) {
		return p.deps.Locator.Subtitles(video)
	})
	if err != nil {
		return nil, errors.Wrap(err, "load plan")
	}

	res := &Result{Source: video}
	runID, err := p.deps.Store.StartRun(ctx, stem)
	if err != nil {
		log.WithError(err).Warn("Failed to record run start")
	}
	res.RunID = runID

	outcome := store.OutcomeFailed
	defer func() {
		if runID == "" {
			return
		}
		if err := p.deps.Store.FinishRun(context.WithoutCancel(ctx), runID, outcome); err != nil {
			log.WithError(err).Warn("Failed to record run outcome")
		}
	}()

	if err := p.deps.Store.Reconcile(ctx, stem, len(entries), p.layout.ClipPath); err != nil {
		log.WithError(err).Warn("Failed to reconcile segment status")
	}

	if err := os.MkdirAll(p.layout.Clips, 0755); err != nil {
		return res, errors.Wrap(err, "create clips directory")
	}

	clips, segments, err := p.produceClips(ctx, video, stem, entries)
	res.Segments = segments
	if err != nil {
		return res, err
	}
	if len(clips) == 0 {
		return res, ErrNoClips
	}

	clips = p.mixMusic(clips)
	res.Clips = clips

	deliverable := p.layout.DeliverablePath(stem)
	if err := p.deps.Media.Concat(clipPaths(clips), deliverable); err != nil {
		return res, errors.Wrapf(ErrConcat, "%v", err)
	}
	res.Deliverable = deliverable
	log.Infof("Deliverable written to %s (%d clips)", deliverable, len(clips))

	res.Exports = p.exportClips(clips)
	outcome = store.OutcomeSucceeded

	if p.keep {
		log.Info("Keeping source video and working clips")
		return res, nil
	}
	p.cleanup(video)
	return res, nil
}

func clipPaths(clips []Clip) []string {
	return lo.Map(clips, func(c Clip, _ int) string { return c.Path })
}

type nopStore struct{}

func (nopStore) StartRun(context.Context, string) (string, error)               { return "", nil }
func (nopStore) FinishRun(context.Context, string, string) error                { return nil }
func (nopStore) Reconcile(context.Context, string, int, func(int) string) error { return nil }
func (nopStore) Record(context.Context, string, int, types.SegmentStatus, string, string) error {
	return nil
}
