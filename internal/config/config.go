package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Options defines everything a pipeline run needs.
type Options struct {
	WorkDir string `yaml:"work_dir"`

	Dirs Dirs `yaml:"dirs"`

	PlanFile string `yaml:"plan_file"`
	StateDB  string `yaml:"state_db"`

	Platform  string  `yaml:"platform"`
	VideoRate string  `yaml:"render_bitrate"`
	ZoomLevel float64 `yaml:"zoom"`
	FrameRate int     `yaml:"fps"`

	Music MusicOptions `yaml:"music"`
	TTS   TTSOptions   `yaml:"tts"`

	Planner PlannerOptions `yaml:"planner"`

	KeepSource bool   `yaml:"keep_source"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"` // "text" or "json"
	Verbose    bool   `yaml:"-"`
}

// Dirs are the fixed working directories, relative to WorkDir unless absolute.
type Dirs struct {
	Movies  string `yaml:"movies"`
	SRT     string `yaml:"srt"`
	Clips   string `yaml:"clips"`
	Output  string `yaml:"output"`
	Export  string `yaml:"export"`
	Retired string `yaml:"retired"`
	Music   string `yaml:"music"`
}

type MusicOptions struct {
	Disabled bool    `yaml:"disabled"`
	Offset   float64 `yaml:"offset"` // seconds skipped into each track
	Volume   float64 `yaml:"volume"`
}

type TTSOptions struct {
	Binary  string        `yaml:"binary"`
	Voice   string        `yaml:"voice"`
	Lang    string        `yaml:"lang"`
	Speed   float64       `yaml:"speed"`
	Model   string        `yaml:"model"`
	Voices  string        `yaml:"voices"`
	Timeout time.Duration `yaml:"timeout"`
}

type PlannerOptions struct {
	Provider string `yaml:"provider"` // "gemini" or "openai"
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"-"`
}

const (
	// Fixed vertical canvas
	CanvasWidth  = 720
	CanvasHeight = 1280

	DefaultZoom      = 1.05
	DefaultFrameRate = 30
	DefaultVideoRate = "6000k"

	DefaultMusicOffset = 10.0
	DefaultMusicVolume = 0.15

	DefaultTTSTimeout = 120 * time.Second

	DefaultPlatform = "tiktok"
	DefaultProvider = ProviderGemini

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DefaultConfigFile = "clip-assembler.yaml"

	// Environment variable names
	EnvGeminiKey    = "GEMINI_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvPlannerURL   = "PLANNER_BASE_URL"
	EnvPlannerModel = "PLANNER_MODEL"
	EnvLogLevel     = "CLIP_ASSEMBLER_LOG_LEVEL"
	EnvLogFormat    = "CLIP_ASSEMBLER_LOG_FORMAT"
)

// Default returns the options used when no config file is present.
func Default() *Options {
	return &Options{
		WorkDir: ".",
		Dirs: Dirs{
			Movies:  "movies",
			SRT:     filepath.Join("scripts", "srt_files"),
			Clips:   "clips",
			Output:  "output",
			Export:  "tiktok_output",
			Retired: "movies_retired",
			Music:   "music",
		},
		PlanFile:  "plan.json",
		StateDB:   filepath.Join(".cache", "state.db"),
		Platform:  DefaultPlatform,
		VideoRate: DefaultVideoRate,
		ZoomLevel: DefaultZoom,
		FrameRate: DefaultFrameRate,
		Music: MusicOptions{
			Offset: DefaultMusicOffset,
			Volume: DefaultMusicVolume,
		},
		TTS: TTSOptions{
			Binary:  "kokoro-tts",
			Voice:   "af_sarah",
			Lang:    "en-us",
			Speed:   1.1,
			Model:   "./kokoro-v1.0.onnx",
			Voices:  "./voices-v1.0.bin",
			Timeout: DefaultTTSTimeout,
		},
		Planner: PlannerOptions{
			Provider: DefaultProvider,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads defaults, then the YAML file at path (if any), then .env and the environment.
// An empty path only loads DefaultConfigFile when it exists.
func Load(path string) (*Options, error) {
	_ = godotenv.Load() // best-effort

	opts := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, opts); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	case explicit || !os.IsNotExist(err):
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	opts.applyEnv()
	return opts, nil
}

func (o *Options) applyEnv() {
	if v := os.Getenv(EnvPlannerURL); v != "" {
		o.Planner.BaseURL = v
	}
	if v := os.Getenv(EnvPlannerModel); v != "" {
		o.Planner.Model = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		o.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		o.LogFormat = v
	}
	o.SetProvider(o.Planner.Provider)
}

// SetProvider selects the plan generator and picks up its API key from the environment.
func (o *Options) SetProvider(provider string) {
	o.Planner.Provider = provider
	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		o.Planner.APIKey = os.Getenv(EnvOpenAIKey)
	default:
		o.Planner.APIKey = os.Getenv(EnvGeminiKey)
	}
}

// Validate checks option values that would otherwise fail deep inside a run.
func (o *Options) Validate() error {
	if o.ZoomLevel < 1 {
		return errors.Errorf("zoom must be >= 1, got %.3f", o.ZoomLevel)
	}
	if o.FrameRate <= 0 {
		return errors.Errorf("fps must be > 0, got %d", o.FrameRate)
	}
	if o.Music.Offset < 0 {
		return errors.Errorf("music offset must be >= 0, got %.1f", o.Music.Offset)
	}
	if o.Music.Volume <= 0 || o.Music.Volume > 1 {
		return errors.Errorf("music volume must be in (0, 1], got %.2f", o.Music.Volume)
	}
	if o.TTS.Timeout <= 0 {
		return errors.Errorf("tts timeout must be > 0, got %s", o.TTS.Timeout)
	}
	switch strings.ToLower(o.Planner.Provider) {
	case ProviderGemini, ProviderOpenAI:
	default:
		return errors.Errorf("unsupported planner provider: %s (supported: %s, %s)",
			o.Planner.Provider, ProviderGemini, ProviderOpenAI)
	}
	return nil
}

// Path resolves a configured path against WorkDir.
func (o *Options) Path(p string) string {
	if filepath.IsAbs(p) || o.WorkDir == "" {
		return p
	}
	return filepath.Join(o.WorkDir, p)
}
