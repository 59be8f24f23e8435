package processor

import (
	"os"

	"github.com/ZacxDev/clip-assembler/internal/logging"
	"github.com/ZacxDev/clip-assembler/internal/source"
)

// exportClips writes one vertical export per clip, numbered by 1-based position. Failures are logged
// and leave a gap only in the returned list, never in the numbering.
func (p *Pipeline) exportClips(clips []Clip) []string {
	if err := os.MkdirAll(p.layout.Export, 0755); err != nil {
		p.log.WithError(err).Error("Failed to create export directory")
		return nil
	}

	exported := make([]string, 0, len(clips))
	for i, clip := range clips {
		pos := i + 1
		out := p.layout.ExportPath(pos)
		log := logging.WithSegment(p.log, clip.Index).WithField("export", pos)

		if exists(out) {
			log.Debug("Export already exists, skipping")
			exported = append(exported, out)
			continue
		}
		if err := p.deps.Media.ExportVertical(clip.Path, out, p.platform); err != nil {
			log.WithError(err).Warn("Vertical export failed")
			continue
		}
		log.Infof("Exported %s", out)
		exported = append(exported, out)
	}
	return exported
}

// cleanup archives the source and clears working clip storage. Failures are logged; the deliverable
// already exists at this point.
func (p *Pipeline) cleanup(video string) {
	dst, err := source.Archive(video, p.layout.Retired)
	if err != nil {
		p.log.WithError(err).Error("Failed to archive source video")
	} else {
		p.log.Infof("Moved source to %s", dst)
	}
	if err := source.ClearDir(p.layout.Clips); err != nil {
		p.log.WithError(err).Error("Failed to clear clips directory")
	}
}
