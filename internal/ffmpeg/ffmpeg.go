package ffmpeg

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// VideoMetadata contains metadata about a media file
type VideoMetadata struct {
	Duration float64
	Width    int
	Height   int
	Codec    string
	HasAudio bool
}

// ProbeError reports a media file whose duration or dimensions could not be read.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Cause lets errors.Cause see through to the underlying failure.
func (e *ProbeError) Cause() error { return e.Err }

// Processor wraps FFmpeg functionality
type Processor struct {
	verbose bool
	log     logrus.FieldLogger

	videoRate string
	frameRate int
	zoom      float64

	// probe and run are swapped out in tests
	probe func(path string) (string, error)
	run   func(stream *ffmpeg.Stream) error
}

// Settings tunes the encoder for rendered segments.
type Settings struct {
	VideoRate string
	FrameRate int
	Zoom      float64
}

// NewProcessor creates a new FFmpeg processor
func NewProcessor(log logrus.FieldLogger, s Settings, verbose bool) *Processor {
	p := &Processor{
		verbose:   verbose,
		log:       log,
		videoRate: s.VideoRate,
		frameRate: s.FrameRate,
		zoom:      s.Zoom,
		probe: func(path string) (string, error) {
			return ffmpeg.Probe(path)
		},
	}
	p.run = p.execute
	return p
}

func (p *Processor) execute(stream *ffmpeg.Stream) error {
	stream = stream.OverWriteOutput()
	if p.verbose {
		stream = stream.ErrorToStdOut()
	}
	return stream.Run()
}

// invoke logs and runs a compiled stream, removing a partial output on failure.
func (p *Processor) invoke(stream *ffmpeg.Stream, outputPath, what string) error {
	if p.verbose {
		p.log.Debugf("ffmpeg %s", strings.Join(stream.GetArgs(), " "))
	}
	if err := p.run(stream); err != nil {
		_ = os.Remove(outputPath)
		return errors.Wrapf(err, "failed to %s", what)
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		return errors.Wrapf(err, "failed to %s: output missing", what)
	}
	if info.Size() == 0 {
		_ = os.Remove(outputPath)
		return errors.Errorf("failed to %s: output file is empty: %s", what, outputPath)
	}
	return nil
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Duration   string `json:"duration"`
		NbFrames   string `json:"nb_frames"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (p *Processor) readProbe(path string) (*probeOutput, error) {
	raw, err := p.probe(path)
	if err != nil {
		return nil, &ProbeError{Path: path, Err: err}
	}
	var out probeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &ProbeError{Path: path, Err: errors.WithStack(err)}
	}
	return &out, nil
}

// GetVideoMetadata retrieves duration, dimensions and codec of the first video stream.
func (p *Processor) GetVideoMetadata(inputPath string) (*VideoMetadata, error) {
	data, err := p.readProbe(inputPath)
	if err != nil {
		return nil, err
	}

	md := &VideoMetadata{}
	found := false
	var frames, frameRate float64
	var streamDuration float64
	for _, s := range data.Streams {
		switch s.CodecType {
		case "audio":
			md.HasAudio = true
		case "video":
			if found {
				continue
			}
			found = true
			md.Width, md.Height, md.Codec = s.Width, s.Height, s.CodecName
			streamDuration = parseSeconds(s.Duration)
			frames = parseSeconds(s.NbFrames)
			frameRate = parseRate(s.RFrameRate)
		}
	}
	if !found {
		return nil, &ProbeError{Path: inputPath, Err: errors.New("no video stream found")}
	}
	if md.Width <= 0 || md.Height <= 0 {
		return nil, &ProbeError{Path: inputPath, Err: errors.Errorf("invalid dimensions %dx%d", md.Width, md.Height)}
	}

	// stream duration, then container duration, then frame count
	md.Duration = streamDuration
	if md.Duration == 0 {
		md.Duration = parseSeconds(data.Format.Duration)
	}
	if md.Duration == 0 && frames > 0 && frameRate > 0 {
		md.Duration = frames / frameRate
	}
	if md.Duration == 0 {
		return nil, &ProbeError{Path: inputPath, Err: errors.New("could not determine video duration")}
	}
	return md, nil
}

// ProbeDuration returns the duration in seconds of any media file, audio-only included.
func (p *Processor) ProbeDuration(path string) (float64, error) {
	data, err := p.readProbe(path)
	if err != nil {
		return 0, err
	}
	if d := parseSeconds(data.Format.Duration); d > 0 {
		return d, nil
	}
	for _, s := range data.Streams {
		if d := parseSeconds(s.Duration); d > 0 {
			return d, nil
		}
	}
	return 0, &ProbeError{Path: path, Err: errors.New("duration field missing or malformed")}
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func parseRate(s string) float64 {
	nums := strings.Split(s, "/")
	if len(nums) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(nums[0], 64)
	den, err2 := strconv.ParseFloat(nums[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

func GetOptimalThreadCount() int {
	cpuCount := runtime.NumCPU()
	// Use 75% of available cores to prevent overload
	return int(math.Max(1, float64(cpuCount)*0.75))
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
