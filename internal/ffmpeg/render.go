package ffmpeg

import (
	"fmt"
	"math"

	"github.com/ZacxDev/clip-assembler/internal/config"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// RenderRequest describes one segment cut.
type RenderRequest struct {
	SourcePath    string
	Start, End    float64
	NarrationPath string
	OutputPath    string
}

// RenderSegment cuts [Start, End) from the source, reframes it to the vertical canvas with a slow
// zoom-in and a horizontal mirror, and muxes it with the narration audio as-is.
// A failed encode leaves no file at OutputPath.
func (p *Processor) RenderSegment(req RenderRequest) error {
	if req.End <= req.Start {
		return errors.Errorf("invalid range [%.3f, %.3f)", req.Start, req.End)
	}

	videoDuration := req.End - req.Start
	if audioDuration, err := p.ProbeDuration(req.NarrationPath); err != nil {
		p.log.WithError(err).Warn("could not get narration duration")
	} else {
		// durations are not reconciled
		p.log.Debugf("audio_duration=%.3f video_duration=%.3f", audioDuration, videoDuration)
	}

	stream := p.renderStream(req)
	return p.invoke(stream, req.OutputPath, "render segment")
}

func (p *Processor) renderStream(req RenderRequest) *ffmpeg.Stream {
	duration := req.End - req.Start

	source := ffmpeg.Input(req.SourcePath, ffmpeg.KwArgs{
		"ss": fmtSeconds(req.Start),
		"t":  fmtSeconds(duration),
	})
	narration := ffmpeg.Input(req.NarrationPath)

	video := source.Video().
		Filter("crop", ffmpeg.Args{"ih*9/16", "ih"}).
		Filter("scale", ffmpeg.Args{fmt.Sprint(config.CanvasWidth), fmt.Sprint(config.CanvasHeight)}).
		Filter("zoompan", ffmpeg.Args{}, ffmpeg.KwArgs{
			"z":   zoomExpr(p.zoom, duration, p.frameRate),
			"x":   "iw/2-(iw/zoom/2)",
			"y":   "ih/2-(ih/zoom/2)",
			"d":   "1",
			"s":   fmt.Sprintf("%dx%d", config.CanvasWidth, config.CanvasHeight),
			"fps": fmt.Sprint(p.frameRate),
		}).
		Filter("hflip", ffmpeg.Args{})

	return ffmpeg.Output([]*ffmpeg.Stream{video, narration.Audio()}, req.OutputPath, ffmpeg.KwArgs{
		"c:v":      "libx264",
		"b:v":      p.videoRate,
		"pix_fmt":  "yuv420p",
		"r":        fmt.Sprint(p.frameRate),
		"c:a":      "aac",
		"ar":       "44100",
		"ac":       "2",
		"threads":  GetOptimalThreadCount(),
		"movflags": "+faststart",
	})
}

// zoomExpr grows the zoom factor linearly from 1 to zoom over the segment's frames.
// The expression avoids commas so it survives filtergraph escaping.
func zoomExpr(zoom, duration float64, fps int) string {
	frames := math.Ceil(duration * float64(fps))
	if frames < 1 || zoom <= 1 {
		return "1"
	}
	return fmt.Sprintf("1+%.8f*on", (zoom-1)/frames)
}
