package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ZacxDev/clip-assembler/internal/config"
	"github.com/ZacxDev/clip-assembler/internal/ffmpeg"
	"github.com/ZacxDev/clip-assembler/internal/logging"
	"github.com/ZacxDev/clip-assembler/internal/plan"
	"github.com/ZacxDev/clip-assembler/internal/platform"
	"github.com/ZacxDev/clip-assembler/pkg/types"
)

type fakeLocator struct {
	video string
	err   error
}

func (f *fakeLocator) FindVideo() (string, error)       { return f.video, f.err }
func (f *fakeLocator) Subtitles(string) (string, error) { return "", errors.New("not needed") }

type fakePlans struct {
	entries []plan.Entry
	err     error
}

func (f *fakePlans) LoadOrGenerate(context.Context, plan.SubtitleSource) ([]plan.Entry, error) {
	return f.entries, f.err
}

type fakeVoice struct {
	calls []string
	fail  map[string]bool
}

func (f *fakeVoice) Synthesize(_ context.Context, text, out string) error {
	f.calls = append(f.calls, text)
	if f.fail[text] {
		return errors.New("tts exploded")
	}
	return os.WriteFile(out, []byte("wav"), 0o644)
}

type fakeMedia struct {
	renders []ffmpeg.RenderRequest
	mixes   []ffmpeg.MixRequest
	concats [][]string
	exports [][2]string

	failRender map[float64]bool // keyed by segment start
	failMix    bool
	failConcat bool
	failExport map[string]bool
}

func write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("x"), 0o644)
}

func (f *fakeMedia) RenderSegment(req ffmpeg.RenderRequest) error {
	f.renders = append(f.renders, req)
	if f.failRender[req.Start] {
		return errors.New("encode failed")
	}
	return write(req.OutputPath)
}

func (f *fakeMedia) MixMusic(req ffmpeg.MixRequest) error {
	f.mixes = append(f.mixes, req)
	if f.failMix {
		return errors.New("mix failed")
	}
	return write(req.OutputPath)
}

func (f *fakeMedia) Concat(clips []string, out string) error {
	f.concats = append(f.concats, append([]string(nil), clips...))
	if f.failConcat {
		return errors.New("incompatible streams")
	}
	return write(out)
}

func (f *fakeMedia) ExportVertical(in, out string, _ platform.Platform) error {
	f.exports = append(f.exports, [2]string{in, out})
	if f.failExport[in] {
		return errors.New("probe failed")
	}
	return write(out)
}

type fakeStore struct {
	runs     map[string]string
	statuses map[int][]types.SegmentStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: map[string]string{}, statuses: map[int][]types.SegmentStatus{}}
}

func (f *fakeStore) StartRun(context.Context, string) (string, error) {
	id := "run-" + string(rune('a'+len(f.runs)))
	f.runs[id] = ""
	return id, nil
}

func (f *fakeStore) FinishRun(_ context.Context, id, outcome string) error {
	f.runs[id] = outcome
	return nil
}

func (f *fakeStore) Reconcile(context.Context, string, int, func(int) string) error { return nil }

func (f *fakeStore) Record(_ context.Context, _ string, idx int, status types.SegmentStatus, _, _ string) error {
	f.statuses[idx] = append(f.statuses[idx], status)
	return nil
}

type fixture struct {
	root   string
	video  string
	layout Layout
	voice  *fakeVoice
	media  *fakeMedia
	store  *fakeStore
	plans  *fakePlans
	music  config.MusicOptions
	keep   bool
}

func newFixture(t *testing.T, entries []plan.Entry) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root:  root,
		video: filepath.Join(root, "movies", "movie.mp4"),
		layout: Layout{
			Clips:   filepath.Join(root, "clips"),
			Output:  filepath.Join(root, "output"),
			Export:  filepath.Join(root, "tiktok_output"),
			Retired: filepath.Join(root, "movies_retired"),
			Music:   filepath.Join(root, "music"),
		},
		voice: &fakeVoice{},
		media: &fakeMedia{},
		store: newFakeStore(),
		plans: &fakePlans{entries: entries},
		music: config.MusicOptions{Offset: config.DefaultMusicOffset, Volume: config.DefaultMusicVolume},
		keep:  true,
	}
	if err := write(f.video); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) pipeline() *Pipeline {
	p := New(Deps{
		Locator: &fakeLocator{video: f.video},
		Plans:   f.plans,
		Voice:   f.voice,
		Media:   f.media,
		Store:   f.store,
	}, f.layout, &platform.TikTok{}, f.music, f.keep, logging.Discard())
	p.pickTrack = func(tracks []string) string { return tracks[0] }
	return p
}

func (f *fixture) addMusic(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := write(filepath.Join(f.layout.Music, n)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRun_NarratedSegmentOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []plan.Entry{
		{Start: 0, End: 5, Narration: "Hello"},
		{Start: 5, End: 8, Narration: ""},
	})
	res, err := f.pipeline().Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.media.renders) != 1 || f.media.renders[0].OutputPath != f.layout.ClipPath(0) {
		t.Fatalf("renders = %+v", f.media.renders)
	}
	if got := f.media.renders[0]; got.Start != 0 || got.End != 5 || got.NarrationPath != f.layout.VoiceoverPath(0) {
		t.Errorf("render request = %+v", got)
	}
	if !reflect.DeepEqual(f.voice.calls, []string{"Hello"}) {
		t.Errorf("synthesis calls = %v", f.voice.calls)
	}
	if want := [][]string{{f.layout.ClipPath(0)}}; !reflect.DeepEqual(f.media.concats, want) {
		t.Errorf("concat input = %v, want %v", f.media.concats, want)
	}
	if !reflect.DeepEqual(res.Exports, []string{f.layout.ExportPath(1)}) {
		t.Errorf("exports = %v", res.Exports)
	}
	if res.Deliverable != filepath.Join(f.layout.Output, "movie.mp4") {
		t.Errorf("deliverable = %s", res.Deliverable)
	}
	if res.Segments[1].Status != types.SegmentStatusSkipped {
		t.Errorf("segment 1 = %+v, want skipped", res.Segments[1])
	}
	if _, err := os.Stat(f.layout.ClipPath(1)); !os.IsNotExist(err) {
		t.Error("no clip should exist for a segment without narration")
	}
}

func TestRun_ResumeMakesNoExternalCalls(t *testing.T) {
	t.Parallel()

	entries := []plan.Entry{
		{Start: 0, End: 4, Narration: "one"},
		{Start: 4, End: 9, Narration: "two"},
		{Start: 9, End: 12, Narration: "three"},
	}
	f := newFixture(t, entries)
	f.addMusic(t, "calm.mp3")

	first, err := f.pipeline().Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	f.voice, f.media = &fakeVoice{}, &fakeMedia{}
	second, err := f.pipeline().Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if len(f.voice.calls) != 0 || len(f.media.renders) != 0 || len(f.media.mixes) != 0 {
		t.Errorf("resumed run made calls: synth=%d render=%d mix=%d",
			len(f.voice.calls), len(f.media.renders), len(f.media.mixes))
	}
	if !reflect.DeepEqual(first.Clips, second.Clips) {
		t.Errorf("clip set changed: %v vs %v", first.Clips, second.Clips)
	}
	for _, seg := range second.Segments {
		if seg.Status != types.SegmentStatusCached {
			t.Errorf("segment %d = %s, want cached", seg.Index, seg.Status)
		}
	}
}

func TestRun_ExportsAreDenseAndOrdered(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []plan.Entry{
		{Start: 0, End: 3, Narration: "a"},
		{Start: 3, End: 6, Narration: "b"},
		{Start: 6, End: 9, Narration: "c"},
	})
	f.media.failRender = map[float64]bool{3: true}

	res, err := f.pipeline().Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantClips := []string{f.layout.ClipPath(0), f.layout.ClipPath(2)}
	if !reflect.DeepEqual(f.media.concats[0], wantClips) {
		t.Errorf("concat input = %v, want %v", f.media.concats[0], wantClips)
	}
	wantExports := [][2]string{
		{f.layout.ClipPath(0), f.layout.ExportPath(1)},
		{f.layout.ClipPath(2), f.layout.ExportPath(2)},
	}
	if !reflect.DeepEqual(f.media.exports, wantExports) {
		t.Errorf("exports = %v, want %v", f.media.exports, wantExports)
	}
	if res.Segments[1].Status != types.SegmentStatusFailed {
		t.Errorf("segment 1 = %+v, want failed", res.Segments[1])
	}
	if got := f.store.statuses[1]; got[len(got)-1] != types.SegmentStatusFailed {
		t.Errorf("stored statuses for 1 = %v", got)
	}
}

func TestRun_CachedClipKeepsIndexOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []plan.Entry{
		{Start: 0, End: 3, Narration: "a"},
		{Start: 3, End: 6, Narration: "b"},
		{Start: 6, End: 9, Narration: "c"},
	})
	// only the middle clip survives from an earlier run
	if err := write(f.layout.ClipPath(1)); err != nil {
		t.Fatal(err)
	}

	if _, err := f.pipeline().Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []string{f.layout.ClipPath(0), f.layout.ClipPath(1), f.layout.ClipPath(2)}
	if !reflect.DeepEqual(f.media.concats[0], want) {
		t.Errorf("concat input = %v, want %v", f.media.concats[0], want)
	}
	if len(f.media.renders) != 2 {
		t.Errorf("renders = %d, want 2", len(f.media.renders))
	}
}

func TestRun_SegmentFailuresAreIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []plan.Entry{
		{Start: 0, End: 3, Narration: "tts breaks"},
		{Start: 5, End: 4, Narration: "bad range"},
		{Start: 6, End: 9, Narration: "silent renderer"},
		{Start: 9, End: 12, Narration: "fine"},
	})
	f.voice.fail = map[string]bool{"tts breaks": true}

	p := f.pipeline()
	silent := &silentOnce{fakeMedia: f.media, start: 6}
	p.deps.Media = silent

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []types.SegmentStatus{
		types.SegmentStatusFailed,
		types.SegmentStatusSkipped,
		types.SegmentStatusFailed,
		types.SegmentStatusDone,
	}
	for i, seg := range res.Segments {
		if seg.Status != want[i] {
			t.Errorf("segment %d = %s (%v), want %s", i, seg.Status, seg.Err, want[i])
		}
	}
	if !reflect.DeepEqual(clipPaths(res.Clips), []string{f.layout.ClipPath(3)}) {
		t.Errorf("clips = %v", res.Clips)
	}
}

// silentOnce reports success for one segment without writing its clip.
type silentOnce struct {
	*fakeMedia
	start float64
}

func (s *silentOnce) RenderSegment(req ffmpeg.RenderRequest) error {
	if req.Start == s.start {
		s.renders = append(s.renders, req)
		return nil
	}
	return s.fakeMedia.RenderSegment(req)
}

func TestRun_MixFailureFallsBackToOriginal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []plan.Entry{{Start: 0, End: 5, Narration: "Hello"}})
	f.addMusic(t, "song.mp3", "notes.txt")
	f.media.failMix = true

	res, err := f.pipeline().Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(f.media.mixes) != 1 {
		t.Fatalf("mixes = %d, want 1", len(f.media.mixes))
	}
	if m := f.media.mixes[0]; m.Offset != 10 || m.Volume != 0.15 || filepath.Base(m.MusicPath) != "song.mp3" {
		t.Errorf("mix request = %+v", m)
	}
	if !reflect.DeepEqual(f.media.concats[0], []string{f.layout.ClipPath(0)}) {
		t.Errorf("concat input = %v, want unmixed clip", f.media.concats[0])
	}
	if len(res.Exports) != 1 {
		t.Errorf("exports = %v", res.Exports)
	}
}

func TestRun_MixedClipsFeedConcatAndExport(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []plan.Entry{
		{Start: 0, End: 5, Narration: "a"},
		{Start: 5, End: 9, Narration: ""},
		{Start: 9, End: 14, Narration: "c"},
	})
	f.addMusic(t, "song.MP3")

	if _, err := f.pipeline().Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []string{f.layout.MixedPath(0), f.layout.MixedPath(2)}
	if !reflect.DeepEqual(f.media.concats[0], want) {
		t.Errorf("concat input = %v, want %v", f.media.concats[0], want)
	}
	if f.media.exports[1][0] != f.layout.MixedPath(2) || f.media.exports[1][1] != f.layout.ExportPath(2) {
		t.Errorf("exports = %v", f.media.exports)
	}
}

func TestRun_MusicDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []plan.Entry{{Start: 0, End: 5, Narration: "Hello"}})
	f.addMusic(t, "song.mp3")
	f.music.Disabled = true

	if _, err := f.pipeline().Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(f.media.mixes) != 0 {
		t.Errorf("mixes = %d, want 0", len(f.media.mixes))
	}
}

func TestRun_ExportFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []plan.Entry{
		{Start: 0, End: 3, Narration: "a"},
		{Start: 3, End: 6, Narration: "b"},
	})
	f.media.failExport = map[string]bool{f.layout.ClipPath(0): true}

	res, err := f.pipeline().Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// numbering stays positional even when an export fails
	if !reflect.DeepEqual(res.Exports, []string{f.layout.ExportPath(2)}) {
		t.Errorf("exports = %v", res.Exports)
	}
}

func TestRun_FatalErrors(t *testing.T) {
	t.Parallel()

	t.Run("concat failure keeps the source", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, []plan.Entry{{Start: 0, End: 5, Narration: "Hello"}})
		f.keep = false
		f.media.failConcat = true

		_, err := f.pipeline().Run(context.Background())
		if !errors.Is(err, ErrConcat) {
			t.Fatalf("error = %v, want ErrConcat", err)
		}
		if _, err := os.Stat(f.video); err != nil {
			t.Error("source must not be archived after a failed run")
		}
		if len(f.media.exports) != 0 {
			t.Error("nothing is exported after a failed concatenation")
		}
		for id, outcome := range f.store.runs {
			if outcome != "failed" {
				t.Errorf("run %s outcome = %q", id, outcome)
			}
		}
	})

	t.Run("no clips", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, []plan.Entry{{Start: 0, End: 5, Narration: ""}})
		_, err := f.pipeline().Run(context.Background())
		if !errors.Is(err, ErrNoClips) {
			t.Fatalf("error = %v, want ErrNoClips", err)
		}
		if len(f.media.concats) != 0 {
			t.Error("concat must not run without clips")
		}
	})

	t.Run("no plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		f.plans.err = plan.ErrNoPlan
		_, err := f.pipeline().Run(context.Background())
		if !errors.Is(err, plan.ErrNoPlan) {
			t.Fatalf("error = %v, want ErrNoPlan", err)
		}
	})

	t.Run("no source", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		p := f.pipeline()
		p.deps.Locator = &fakeLocator{err: ErrNoSourceVideo}
		if _, err := p.Run(context.Background()); !errors.Is(err, ErrNoSourceVideo) {
			t.Fatalf("error = %v, want ErrNoSourceVideo", err)
		}
	})
}

func TestRun_CleanupAfterSuccess(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []plan.Entry{{Start: 0, End: 5, Narration: "Hello"}})
	f.keep = false

	if _, err := f.pipeline().Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(f.video); !os.IsNotExist(err) {
		t.Error("source should be archived")
	}
	if _, err := os.Stat(filepath.Join(f.layout.Retired, "movie.mp4")); err != nil {
		t.Errorf("archived source missing: %v", err)
	}
	entries, _ := os.ReadDir(f.layout.Clips)
	if len(entries) != 0 {
		t.Errorf("clips left after cleanup: %d", len(entries))
	}
	if _, err := os.Stat(f.layout.ExportPath(1)); err != nil {
		t.Errorf("export removed by cleanup: %v", err)
	}
	for _, outcome := range f.store.runs {
		if outcome != "succeeded" {
			t.Errorf("run outcome = %q", outcome)
		}
	}
}

func TestRun_RecordsStatusTransitions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []plan.Entry{{Start: 0, End: 5, Narration: "Hello"}})
	if _, err := f.pipeline().Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []types.SegmentStatus{
		types.SegmentStatusSynthesizing,
		types.SegmentStatusRendering,
		types.SegmentStatusDone,
	}
	if !reflect.DeepEqual(f.store.statuses[0], want) {
		t.Errorf("statuses = %v, want %v", f.store.statuses[0], want)
	}
}

func TestMusicTracks(t *testing.T) {
	f := newFixture(t, nil)
	f.addMusic(t, "b.wav", "a.mp3", "cover.jpg", "c.FLAC")
	got := f.pipeline().musicTracks()
	want := []string{
		filepath.Join(f.layout.Music, "a.mp3"),
		filepath.Join(f.layout.Music, "b.wav"),
		filepath.Join(f.layout.Music, "c.FLAC"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("musicTracks() = %v, want %v", got, want)
	}
}
