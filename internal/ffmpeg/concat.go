package ffmpeg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Concat joins clips in order by stream copy. All clips must share codec parameters.
func (p *Processor) Concat(clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return errors.New("no clips to concatenate")
	}

	list, err := concatList(clipPaths)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "concat_*.txt")
	if err != nil {
		return errors.Wrap(err, "failed to create concat list")
	}
	listPath := f.Name()
	defer os.Remove(listPath)

	if _, err := f.WriteString(list); err != nil {
		f.Close()
		return errors.Wrap(err, "failed to write concat list")
	}
	if err := f.Close(); err != nil {
		return errors.WithStack(err)
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "error creating output directory")
		}
	}

	return p.invoke(p.concatStream(listPath, outputPath), outputPath, "concatenate clips")
}

func (p *Processor) concatStream(listPath, outputPath string) *ffmpeg.Stream {
	return ffmpeg.Input(listPath, ffmpeg.KwArgs{
		"f":    "concat",
		"safe": "0",
	}).Output(outputPath, ffmpeg.KwArgs{
		"c":        "copy",
		"movflags": "+faststart",
	})
}

// concatList renders the concat demuxer input with absolute, quoted paths.
func concatList(clipPaths []string) (string, error) {
	var sb strings.Builder
	for _, clip := range clipPaths {
		abs, err := filepath.Abs(clip)
		if err != nil {
			return "", errors.WithStack(err)
		}
		fmt.Fprintf(&sb, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	return sb.String(), nil
}
