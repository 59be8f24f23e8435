package processor

import (
	"context"
	"os"

	"github.com/ZacxDev/clip-assembler/internal/ffmpeg"
	"github.com/ZacxDev/clip-assembler/internal/logging"
	"github.com/ZacxDev/clip-assembler/internal/plan"
	"github.com/ZacxDev/clip-assembler/pkg/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

var errNoNarration = errors.New("no narration")

// produceClips walks the plan in index order. Segment failures are isolated; only cancellation aborts.
func (p *Pipeline) produceClips(ctx context.Context, video, stem string, entries []plan.Entry) ([]Clip, []SegmentResult, error) {
	clips := make([]Clip, 0, len(entries))
	results := make([]SegmentResult, 0, len(entries))

	for idx, entry := range entries {
		if err := ctx.Err(); err != nil {
			return clips, results, errors.WithStack(err)
		}

		log := logging.WithSegment(p.log, idx).WithField("source", stem)
		r := p.produceSegment(ctx, log, video, stem, idx, entry)
		results = append(results, r)

		errMsg := ""
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		p.record(ctx, log, stem, idx, r.Status, r.Path, errMsg)

		switch r.Status {
		case types.SegmentStatusCached:
			log.Info("Clip already exists, skipping generation")
		case types.SegmentStatusDone:
			log.Infof("Clip ready: %s", r.Path)
		case types.SegmentStatusSkipped:
			log.WithError(r.Err).Warn("Segment skipped")
		case types.SegmentStatusFailed:
			log.WithError(r.Err).Error("Segment failed")
		}

		if r.Status.InClipSet() {
			clips = append(clips, Clip{Index: idx, Path: r.Path})
		}
	}

	slices.SortFunc(clips, func(a, b Clip) int { return a.Index - b.Index })
	return clips, results, nil
}

func (p *Pipeline) produceSegment(ctx context.Context, log logrus.FieldLogger, video, stem string, idx int, entry plan.Entry) SegmentResult {
	clipPath := p.layout.ClipPath(idx)
	res := SegmentResult{Index: idx}

	if exists(clipPath) {
		res.Status = types.SegmentStatusCached
		res.Path = clipPath
		return res
	}
	if !entry.HasNarration() {
		res.Status = types.SegmentStatusSkipped
		res.Err = errNoNarration
		return res
	}
	if err := entry.Validate(); err != nil {
		res.Status = types.SegmentStatusSkipped
		res.Err = err
		return res
	}

	voice := p.layout.VoiceoverPath(idx)
	p.record(ctx, log, stem, idx, types.SegmentStatusSynthesizing, "", "")
	if err := p.deps.Voice.Synthesize(ctx, entry.Narration, voice); err != nil {
		res.Status = types.SegmentStatusFailed
		res.Err = errors.Wrap(err, "synthesize narration")
		return res
	}

	p.record(ctx, log, stem, idx, types.SegmentStatusRendering, "", "")
	log.Debugf("Rendering %.3fs from %.3fs", entry.Duration(), entry.Start)
	err := p.deps.Media.RenderSegment(ffmpeg.RenderRequest{
		SourcePath:    video,
		Start:         entry.Start,
		End:           entry.End,
		NarrationPath: voice,
		OutputPath:    clipPath,
	})
	if err != nil {
		res.Status = types.SegmentStatusFailed
		res.Err = errors.Wrap(err, "render segment")
		return res
	}
	// success requires the clip on disk
	if !exists(clipPath) {
		res.Status = types.SegmentStatusFailed
		res.Err = errors.Errorf("renderer produced no output at %s", clipPath)
		return res
	}

	res.Status = types.SegmentStatusDone
	res.Path = clipPath
	return res
}

func (p *Pipeline) record(ctx context.Context, log logrus.FieldLogger, stem string, idx int, status types.SegmentStatus, clipPath, errMsg string) {
	if err := p.deps.Store.Record(ctx, stem, idx, status, clipPath, errMsg); err != nil {
		log.WithError(err).Debug("Failed to record segment status")
	}
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
