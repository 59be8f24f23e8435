// Package plan holds the cut plan: the ordered list of time ranges and narration text the
// pipeline turns into clips.
package plan

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// ErrNoPlan is returned when no usable plan exists and none could be generated.
var ErrNoPlan = errors.New("no clip plan generated")

// narrationKeys are tried in order; generators are not consistent about the name.
var narrationKeys = []string{"narration", "detailed narration"}

// Entry is one row of the cut plan. Its identity is its position in the plan.
type Entry struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Narration string  `json:"narration"`
}

// Duration returns the length of the entry's range.
func (e Entry) Duration() float64 {
	return e.End - e.Start
}

// Validate reports why an entry cannot be rendered, or nil.
func (e Entry) Validate() error {
	switch {
	case e.Start < 0:
		return errors.Errorf("start %.3f is negative", e.Start)
	case e.End <= e.Start:
		return errors.Errorf("end %.3f is not after start %.3f", e.End, e.Start)
	}
	return nil
}

// HasNarration reports whether the entry has narration text to synthesize.
func (e Entry) HasNarration() bool {
	return strings.TrimSpace(e.Narration) != ""
}

// Decode parses a plan from raw generator or file output. Markdown fences and prose around the
// JSON array are tolerated. Numbers given as strings are accepted for start and end.
func Decode(raw []byte) ([]Entry, error) {
	body, err := ExtractArray(string(raw))
	if err != nil {
		return nil, err
	}
	parsed := gjson.Parse(body)
	if !parsed.IsArray() {
		return nil, errors.New("plan is not a JSON array")
	}

	var entries []Entry
	var decodeErr error
	parsed.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			decodeErr = errors.Errorf("plan entry %d is not an object", len(entries))
			return false
		}
		e := Entry{
			Start: item.Get("start").Float(),
			End:   item.Get("end").Float(),
		}
		for _, key := range narrationKeys {
			if v := item.Get(key); v.Exists() && strings.TrimSpace(v.String()) != "" {
				e.Narration = v.String()
				break
			}
		}
		entries = append(entries, e)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return entries, nil
}

// Encode renders entries as indented JSON.
func Encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return append(b, '\n'), nil
}

// ExtractArray trims everything outside the outermost JSON array. A top-level JSON object is
// rejected even when it contains an array.
func ExtractArray(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("empty plan")
	}
	if i := strings.IndexAny(s, "{["); i >= 0 && s[i] == '{' {
		return "", errors.New("plan is a JSON object, not an array")
	}
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return "", errors.New("no JSON array found in plan")
	}
	out := s[start : end+1]
	if !gjson.Valid(out) {
		return "", errors.New("plan contains invalid JSON")
	}
	return out, nil
}
