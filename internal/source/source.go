// Package source finds the input video, acquires its subtitles and retires it after a run.
package source

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoSourceVideo = errors.New("no .mp4 or .mkv file found")
	ErrNoSubtitles   = errors.New("no subtitles available")
)

// videoPatterns are searched in order; the first match wins.
var videoPatterns = []string{"*.mp4", "*.mkv"}

// SubtitleExtractor pulls an embedded subtitle track out of a video.
type SubtitleExtractor interface {
	ExtractSubtitles(videoPath, srtPath string) error
}

type Locator struct {
	moviesDir string
	srtDir    string
	extractor SubtitleExtractor
	log       logrus.FieldLogger
}

func NewLocator(moviesDir, srtDir string, extractor SubtitleExtractor, log logrus.FieldLogger) *Locator {
	return &Locator{moviesDir: moviesDir, srtDir: srtDir, extractor: extractor, log: log}
}

// FindVideo returns the first source video in the movies directory.
func (l *Locator) FindVideo() (string, error) {
	for _, pattern := range videoPatterns {
		matches, err := filepath.Glob(filepath.Join(l.moviesDir, pattern))
		if err != nil {
			return "", errors.WithStack(err)
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", errors.Wrapf(ErrNoSourceVideo, "in %s", l.moviesDir)
}

// Stem is the file name without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SubtitlePath is where subtitles for a video are kept.
func (l *Locator) SubtitlePath(videoPath string) string {
	return filepath.Join(l.srtDir, Stem(videoPath)+".srt")
}

// Subtitles returns a local subtitle file for the video, extracting the first embedded track when none exists.
func (l *Locator) Subtitles(videoPath string) (string, error) {
	srtPath := l.SubtitlePath(videoPath)
	if nonEmpty(srtPath) {
		return srtPath, nil
	}

	l.log.Infof("SRT not found locally for %s, extracting from video", Stem(videoPath))
	if l.extractor != nil {
		if err := os.MkdirAll(l.srtDir, 0755); err != nil {
			return "", errors.Wrap(err, "create subtitle directory")
		}
		if err := l.extractor.ExtractSubtitles(videoPath, srtPath); err != nil {
			l.log.WithError(err).Warn("Subtitle extraction failed")
		} else if nonEmpty(srtPath) {
			l.log.Infof("Extracted subtitles to %s", srtPath)
			return srtPath, nil
		}
	}
	return "", errors.Wrapf(ErrNoSubtitles, "for %s", Stem(videoPath))
}

func nonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// Archive moves the source video into retiredDir.
func Archive(videoPath, retiredDir string) (string, error) {
	if err := os.MkdirAll(retiredDir, 0755); err != nil {
		return "", errors.Wrap(err, "create retired directory")
	}
	dst := filepath.Join(retiredDir, filepath.Base(videoPath))
	if err := os.Rename(videoPath, dst); err == nil {
		return dst, nil
	}
	// rename fails across devices
	if err := copyFile(videoPath, dst); err != nil {
		return "", errors.Wrapf(err, "archive %s", videoPath)
	}
	if err := os.Remove(videoPath); err != nil {
		return "", errors.Wrapf(err, "remove archived source %s", videoPath)
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return errors.WithStack(err)
	}
	return errors.WithStack(out.Close())
}

// ClearDir removes every regular file directly inside dir. A missing dir is not an error.
func ClearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WithStack(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return errors.Wrapf(err, "remove %s", e.Name())
		}
	}
	return nil
}
