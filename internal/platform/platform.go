package platform

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Platform describes a short-form destination for per-clip vertical exports.
// Every target renders onto the same fixed 9:16 canvas; targets differ in encoder settings and limits.
type Platform interface {
	// GetName returns the registry key
	GetName() string

	// GetMaxDuration returns the longest clip the platform accepts, in seconds
	GetMaxDuration() int

	// GetMaxFileSize returns the maximum upload size in bytes
	GetMaxFileSize() int64

	// Audio is always copied from the clip, so only the video encoder varies.
	GetVideoCodec() string
	GetVideoBitrate() string
}

var platforms = make(map[string]Platform)

// Register adds a platform to the registry
func Register(p Platform) {
	platforms[p.GetName()] = p
}

// Get returns a platform by name
func Get(name string) (Platform, error) {
	p, ok := platforms[name]
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", name)
	}
	return p, nil
}

// GetSupportedPlatforms returns the registered platform names in sorted order
func GetSupportedPlatforms() []string {
	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ExceedsDuration reports whether a clip of the given length breaks the platform limit.
func ExceedsDuration(p Platform, seconds float64) bool {
	return p.GetMaxDuration() > 0 && seconds > float64(p.GetMaxDuration())
}
