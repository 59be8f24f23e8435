package processor

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZacxDev/clip-assembler/internal/ffmpeg"
	"github.com/ZacxDev/clip-assembler/internal/logging"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var musicExtensions = []string{".mp3", ".wav", ".m4a", ".aac", ".ogg", ".flac"}

// musicTracks lists the background music candidates. A missing directory means no candidates.
func (p *Pipeline) musicTracks() []string {
	entries, err := os.ReadDir(p.layout.Music)
	if err != nil {
		if !os.IsNotExist(err) {
			p.log.WithError(err).Warn("Failed to read music directory")
		}
		return nil
	}
	files := lo.Filter(entries, func(e os.DirEntry, _ int) bool {
		return !e.IsDir() && lo.Contains(musicExtensions, strings.ToLower(filepath.Ext(e.Name())))
	})
	tracks := lo.Map(files, func(e os.DirEntry, _ int) string {
		return filepath.Join(p.layout.Music, e.Name())
	})
	sort.Strings(tracks)
	return tracks
}

// mixMusic returns a clip set of equal length and order. A clip whose mix fails is kept unmixed.
func (p *Pipeline) mixMusic(clips []Clip) []Clip {
	if p.music.Disabled {
		p.log.Info("Background music disabled")
		return clips
	}
	tracks := p.musicTracks()
	if len(tracks) == 0 {
		p.log.Info("No background music found, skipping mix")
		return clips
	}

	mixed := make([]Clip, 0, len(clips))
	for _, clip := range clips {
		log := logging.WithSegment(p.log, clip.Index)
		out := p.layout.MixedPath(clip.Index)

		if exists(out) {
			log.Debug("Mixed clip already exists, reusing")
			mixed = append(mixed, Clip{Index: clip.Index, Path: out})
			continue
		}

		track := p.pickTrack(tracks)
		err := p.deps.Media.MixMusic(ffmpeg.MixRequest{
			ClipPath:   clip.Path,
			MusicPath:  track,
			OutputPath: out,
			Offset:     p.music.Offset,
			Volume:     p.music.Volume,
		})
		if err == nil && !exists(out) {
			err = errors.Errorf("mixer produced no output at %s", out)
		}
		if err != nil {
			log.WithFields(logrus.Fields{"track": filepath.Base(track)}).WithError(err).
				Warn("Music mix failed, using unmixed clip")
			mixed = append(mixed, clip)
			continue
		}
		log.Debugf("Mixed %s under clip", filepath.Base(track))
		mixed = append(mixed, Clip{Index: clip.Index, Path: out})
	}
	return mixed
}
