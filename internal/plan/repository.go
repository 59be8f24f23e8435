package plan

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Generator turns subtitle text into a raw plan.
type Generator interface {
	Generate(ctx context.Context, subtitles string) ([]byte, error)
}

// SubtitleSource resolves the subtitle file lazily, so a cached plan never triggers a lookup.
type SubtitleSource func() (string, error)

// Repository is the single reader/writer of the cached plan file.
type Repository struct {
	path string
	gen  Generator
	log  logrus.FieldLogger

	mu sync.Mutex
}

func NewRepository(path string, gen Generator, log logrus.FieldLogger) *Repository {
	return &Repository{path: path, gen: gen, log: log}
}

// Path returns the cache file location.
func (r *Repository) Path() string {
	return r.path
}

// Cached reports whether a plan file is already present.
func (r *Repository) Cached() bool {
	_, err := os.Stat(r.path)
	return err == nil
}

func (r *Repository) load() ([]Entry, error) {
	b, err := os.ReadFile(r.path)
	if err != nil {
		return nil, errors.Wrapf(err, "read plan %s", r.path)
	}
	entries, err := Decode(b)
	if err != nil {
		return nil, errors.Wrapf(err, "decode plan %s", r.path)
	}
	return entries, nil
}

// LoadOrGenerate returns the cached plan when present. Otherwise it makes exactly one generator
// call and persists the decoded result before returning it.
func (r *Repository) LoadOrGenerate(ctx context.Context, subtitles SubtitleSource) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path); err == nil {
		r.log.Infof("Using cached plan %s", r.path)
		entries, err := r.load()
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, ErrNoPlan
		}
		return entries, nil
	}

	if r.gen == nil {
		return nil, errors.Wrap(ErrNoPlan, "plan not cached and no generator configured")
	}
	if subtitles == nil {
		return nil, errors.Wrap(ErrNoPlan, "plan not cached and no subtitle source given")
	}

	srtPath, err := subtitles()
	if err != nil {
		return nil, errors.Wrap(err, "resolve subtitles")
	}
	srt, err := os.ReadFile(srtPath)
	if err != nil {
		return nil, errors.Wrapf(err, "read subtitles %s", srtPath)
	}

	r.log.Infof("Generating plan from %s", filepath.Base(srtPath))
	raw, err := r.gen.Generate(ctx, string(srt))
	if err != nil {
		return nil, errors.Wrap(err, "generate plan")
	}
	entries, err := Decode(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode generated plan")
	}
	if len(entries) == 0 {
		return nil, ErrNoPlan
	}

	if err := r.save(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// save writes atomically: a crash never leaves a truncated plan that would short-circuit generation.
func (r *Repository) save(entries []Entry) error {
	b, err := Encode(entries)
	if err != nil {
		return err
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create plan directory")
	}
	tmp, err := os.CreateTemp(dir, ".plan-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp plan")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write plan")
	}
	if err := tmp.Close(); err != nil {
		return errors.WithStack(err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return errors.Wrap(err, "persist plan")
	}
	return nil
}
