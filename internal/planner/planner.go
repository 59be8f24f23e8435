// Package planner holds the external services that turn subtitles into a cut plan.
package planner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ZacxDev/clip-assembler/internal/config"
	"github.com/ZacxDev/clip-assembler/internal/plan"
	"github.com/pkg/errors"
)

const systemPrompt = "You cut long videos into short narrated clips. Reply with JSON only."

// BuildPrompt asks for a plan in the shape plan.Decode understands.
func BuildPrompt(subtitles string) string {
	return "Generate a JSON plan for video cutting based on the following SRT subtitles. " +
		"The plan should be a list of objects with 'start', 'end', and 'narration' fields. " +
		"'start' and 'end' are seconds from the beginning of the video as numbers; " +
		"'narration' is the voice-over text for that clip.\n\nSRT:\n" + subtitles
}

// New builds the generator selected in the options.
func New(opts config.PlannerOptions) (plan.Generator, error) {
	switch strings.ToLower(opts.Provider) {
	case config.ProviderGemini, "":
		if opts.APIKey == "" {
			return nil, errors.Errorf("%s not set (put it in .env)", config.EnvGeminiKey)
		}
		return NewGemini(opts.APIKey, opts.Model, opts.BaseURL), nil
	case config.ProviderOpenAI:
		// local OpenAI-compatible servers accept any key
		if opts.APIKey == "" && opts.BaseURL == "" {
			return nil, errors.Errorf("%s not set (put it in .env)", config.EnvOpenAIKey)
		}
		return NewOpenAI(opts.APIKey, opts.Model, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported planner provider: %s", opts.Provider)
	}
}

var secretParam = regexp.MustCompile(`(?i)(key=)[^&\s"]+`)

func redact(s, key string) string {
	if key != "" {
		s = strings.ReplaceAll(s, key, "[REDACTED]")
	}
	return secretParam.ReplaceAllString(s, "${1}[REDACTED]")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
