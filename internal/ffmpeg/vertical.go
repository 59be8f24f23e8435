package ffmpeg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZacxDev/clip-assembler/internal/config"
	"github.com/ZacxDev/clip-assembler/internal/platform"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// CropRect is a crop window in source pixels.
type CropRect struct {
	Width, Height int
	X, Y          int
}

func (c CropRect) String() string {
	return fmt.Sprintf("%d:%d:%d:%d", c.Width, c.Height, c.X, c.Y)
}

// VerticalCrop returns the largest centered 9:16 window inside a width x height frame.
// The window is bounded by height first; when that would be wider than the frame, by width.
func VerticalCrop(width, height int) CropRect {
	h := height
	w := h * 9 / 16
	if w > width {
		w = width
		h = w * 16 / 9
	}
	return CropRect{
		Width:  w,
		Height: h,
		X:      (width - w) / 2,
		Y:      (height - h) / 2,
	}
}

// ExportVertical re-crops any clip to the exact 9:16 canvas, copying audio unchanged.
func (p *Processor) ExportVertical(inputPath, outputPath string, plat platform.Platform) error {
	metadata, err := p.GetVideoMetadata(inputPath)
	if err != nil {
		return err
	}

	crop := VerticalCrop(metadata.Width, metadata.Height)
	if p.verbose {
		p.log.Debugf("cropping %dx%d at (%d,%d) from %dx%d", crop.Width, crop.Height, crop.X, crop.Y,
			metadata.Width, metadata.Height)
	}
	if platform.ExceedsDuration(plat, metadata.Duration) {
		p.log.Warnf("%s is %.1fs, over the %s limit of %ds", filepath.Base(inputPath),
			metadata.Duration, plat.GetName(), plat.GetMaxDuration())
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "error creating export directory")
		}
	}

	if err := p.invoke(p.verticalStream(inputPath, outputPath, crop, plat), outputPath, "export vertical clip"); err != nil {
		return err
	}

	if info, err := os.Stat(outputPath); err == nil && info.Size() > plat.GetMaxFileSize() {
		p.log.Warnf("%s is %.2f MB, over the %s upload limit", filepath.Base(outputPath),
			float64(info.Size())/1024/1024, plat.GetName())
	}
	return nil
}

func (p *Processor) verticalStream(inputPath, outputPath string, crop CropRect, plat platform.Platform) *ffmpeg.Stream {
	filter := fmt.Sprintf("crop=%s,scale=%d:%d", crop, config.CanvasWidth, config.CanvasHeight)

	return ffmpeg.Input(inputPath).Output(outputPath, ffmpeg.KwArgs{
		"vf":       filter,
		"c:v":      plat.GetVideoCodec(),
		"b:v":      plat.GetVideoBitrate(),
		"pix_fmt":  "yuv420p",
		"c:a":      "copy",
		"threads":  GetOptimalThreadCount(),
		"movflags": "+faststart",
	})
}
