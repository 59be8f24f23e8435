package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZacxDev/clip-assembler/internal/logging"
)

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

type fakeExtractor struct {
	calls   int
	content string
	err     error
}

func (f *fakeExtractor) ExtractSubtitles(_, srtPath string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(srtPath, []byte(f.content), 0o644)
}

func TestFindVideo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{"mp4 preferred over mkv", []string{"a.mkv", "b.mp4"}, "b.mp4"},
		{"mkv fallback", []string{"film.mkv", "notes.txt"}, "film.mkv"},
		{"sorted match", []string{"z.mp4", "a.mp4"}, "a.mp4"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			for _, f := range tt.files {
				touch(t, filepath.Join(dir, f), "x")
			}
			got, err := NewLocator(dir, "", nil, logging.Discard()).FindVideo()
			if err != nil {
				t.Fatalf("FindVideo() error = %v", err)
			}
			if filepath.Base(got) != tt.want {
				t.Errorf("FindVideo() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFindVideo_None(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "readme.txt"), "x")
	_, err := NewLocator(dir, "", nil, logging.Discard()).FindVideo()
	if !errors.Is(err, ErrNoSourceVideo) {
		t.Fatalf("error = %v, want ErrNoSourceVideo", err)
	}
}

func TestSubtitles(t *testing.T) {
	t.Parallel()

	t.Run("local file wins", func(t *testing.T) {
		t.Parallel()
		srtDir := t.TempDir()
		touch(t, filepath.Join(srtDir, "movie.srt"), "1\n")
		ext := &fakeExtractor{content: "x"}

		got, err := NewLocator("", srtDir, ext, logging.Discard()).Subtitles("/films/movie.mkv")
		if err != nil {
			t.Fatal(err)
		}
		if got != filepath.Join(srtDir, "movie.srt") || ext.calls != 0 {
			t.Errorf("got %s with %d extractions", got, ext.calls)
		}
	})

	t.Run("extracted when missing", func(t *testing.T) {
		t.Parallel()
		srtDir := filepath.Join(t.TempDir(), "srt")
		ext := &fakeExtractor{content: "1\n00:00:01,000 --> 00:00:02,000\nHi\n"}

		got, err := NewLocator("", srtDir, ext, logging.Discard()).Subtitles("movie.mp4")
		if err != nil {
			t.Fatal(err)
		}
		if ext.calls != 1 || !nonEmpty(got) {
			t.Errorf("got %s with %d extractions", got, ext.calls)
		}
	})

	t.Run("empty extraction is fatal", func(t *testing.T) {
		t.Parallel()
		ext := &fakeExtractor{content: ""}
		_, err := NewLocator("", t.TempDir(), ext, logging.Discard()).Subtitles("movie.mp4")
		if !errors.Is(err, ErrNoSubtitles) {
			t.Errorf("error = %v, want ErrNoSubtitles", err)
		}
	})

	t.Run("extractor failure is fatal", func(t *testing.T) {
		t.Parallel()
		ext := &fakeExtractor{err: errors.New("no subtitle stream")}
		_, err := NewLocator("", t.TempDir(), ext, logging.Discard()).Subtitles("movie.mp4")
		if !errors.Is(err, ErrNoSubtitles) {
			t.Errorf("error = %v, want ErrNoSubtitles", err)
		}
	})
}

func TestArchiveAndClearDir(t *testing.T) {
	root := t.TempDir()
	video := filepath.Join(root, "movies", "movie.mp4")
	touch(t, video, "data")

	dst, err := Archive(video, filepath.Join(root, "movies_retired"))
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if _, err := os.Stat(video); !os.IsNotExist(err) {
		t.Error("source should be gone after archiving")
	}
	if b, err := os.ReadFile(dst); err != nil || string(b) != "data" {
		t.Errorf("archived file = %q, %v", b, err)
	}

	clips := filepath.Join(root, "clips")
	touch(t, filepath.Join(clips, "clip_0.mp4"), "x")
	touch(t, filepath.Join(clips, "voiceover_0.wav"), "x")
	if err := ClearDir(clips); err != nil {
		t.Fatalf("ClearDir() error = %v", err)
	}
	entries, _ := os.ReadDir(clips)
	if len(entries) != 0 {
		t.Errorf("clips left behind: %v", entries)
	}
	if err := ClearDir(filepath.Join(root, "missing")); err != nil {
		t.Errorf("ClearDir() on missing dir = %v", err)
	}
}

func TestStem(t *testing.T) {
	if got := Stem("/a/b/The Movie.final.mkv"); got != "The Movie.final" {
		t.Errorf("Stem() = %q", got)
	}
}
