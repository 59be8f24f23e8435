package ffmpeg

import (
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ExtractSubtitles writes the first subtitle stream of a video to srtPath.
func (p *Processor) ExtractSubtitles(videoPath, srtPath string) error {
	stream := ffmpeg.Input(videoPath).Output(srtPath, ffmpeg.KwArgs{"map": "0:s:0"})
	return p.invoke(stream, srtPath, "extract subtitles")
}
