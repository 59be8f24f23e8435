package ffmpeg

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// MixRequest overlays one background track under a clip's audio.
type MixRequest struct {
	ClipPath   string
	MusicPath  string
	OutputPath string
	Offset     float64 // seconds skipped into the music track
	Volume     float64 // music gain, 1 = unchanged
}

// MixDuration bounds a mix to the shorter of the clip audio and the music left after offset.
// A non-positive result means the track has nothing left to play.
func MixDuration(clipAudio, musicTotal, offset float64) float64 {
	remaining := musicTotal - offset
	if remaining <= 0 {
		return 0
	}
	return math.Min(clipAudio, remaining)
}

// MixMusic writes a copy of the clip whose audio is the original mixed with attenuated music.
// The video stream is copied untouched.
func (p *Processor) MixMusic(req MixRequest) error {
	var bound float64
	clipDur, clipErr := p.ProbeDuration(req.ClipPath)
	musicDur, musicErr := p.ProbeDuration(req.MusicPath)
	if clipErr == nil && musicErr == nil {
		bound = MixDuration(clipDur, musicDur, req.Offset)
		if bound <= 0 {
			return errors.Errorf("music track %s is shorter than the %.0fs offset", req.MusicPath, req.Offset)
		}
	} else {
		// amix and -shortest still bound the output; only the explicit cap is lost
		p.log.WithError(firstErr(clipErr, musicErr)).Warn("mix duration unknown")
	}

	stream := p.mixStream(req, bound)
	return p.invoke(stream, req.OutputPath, "mix background music")
}

func (p *Processor) mixStream(req MixRequest, bound float64) *ffmpeg.Stream {
	clip := ffmpeg.Input(req.ClipPath)
	music := ffmpeg.Input(req.MusicPath, ffmpeg.KwArgs{"ss": fmtSeconds(req.Offset)})

	bed := music.Audio().Filter("volume", ffmpeg.Args{fmt.Sprintf("%.2f", req.Volume)})
	mixed := ffmpeg.Filter([]*ffmpeg.Stream{clip.Audio(), bed}, "amix", ffmpeg.Args{}, ffmpeg.KwArgs{
		"inputs":             "2",
		"duration":           "shortest",
		"dropout_transition": "2",
	})

	kwargs := ffmpeg.KwArgs{
		"c:v":      "copy",
		"c:a":      "aac",
		"ar":       "44100",
		"ac":       "2",
		"shortest": "",
	}
	if bound > 0 {
		kwargs["t"] = fmtSeconds(bound)
	}
	return ffmpeg.Output([]*ffmpeg.Stream{clip.Video(), mixed}, req.OutputPath, kwargs)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
