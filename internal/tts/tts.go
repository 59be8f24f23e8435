// Package tts synthesizes narration audio through an external engine.
package tts

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ZacxDev/clip-assembler/internal/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Synthesizer writes spoken narration for text to outPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) error
}

// Kokoro drives the kokoro-tts command line tool.
type Kokoro struct {
	bin     string
	voice   string
	lang    string
	speed   float64
	model   string
	voices  string
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewKokoro(opts config.TTSOptions, log logrus.FieldLogger) *Kokoro {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTTSTimeout
	}
	return &Kokoro{
		bin:     opts.Binary,
		voice:   opts.Voice,
		lang:    opts.Lang,
		speed:   opts.Speed,
		model:   opts.Model,
		voices:  opts.Voices,
		timeout: timeout,
		log:     log,
	}
}

func (k *Kokoro) args(textPath, outPath string) []string {
	return []string{
		textPath, outPath,
		"--voice", k.voice,
		"--lang", k.lang,
		"--speed", strconv.FormatFloat(k.speed, 'f', -1, 64),
		"--model", k.model,
		"--voices", k.voices,
	}
}

func (k *Kokoro) Synthesize(ctx context.Context, text, outPath string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("empty narration")
	}

	tmp, err := os.CreateTemp("", "narration-*.txt")
	if err != nil {
		return errors.Wrap(err, "create narration text file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write narration text")
	}
	if err := tmp.Close(); err != nil {
		return errors.WithStack(err)
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	args := k.args(tmp.Name(), outPath)
	k.log.Debugf("Running %s %s", k.bin, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, k.bin, args...)
	cmd.WaitDelay = 5 * time.Second
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		os.Remove(outPath)
		return errors.Errorf("%s timed out after %s", k.bin, k.timeout)
	}
	if err != nil {
		os.Remove(outPath)
		return errors.Wrapf(err, "%s failed: %s", k.bin, strings.TrimSpace(string(out)))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return errors.Errorf("%s exited cleanly but produced no audio at %s", k.bin, outPath)
	}
	if info.Size() == 0 {
		os.Remove(outPath)
		return errors.Errorf("%s produced an empty file at %s", k.bin, outPath)
	}
	return nil
}
