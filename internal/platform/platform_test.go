package platform

import "testing"

func TestGetSupportedPlatforms_Sorted(t *testing.T) {
	got := GetSupportedPlatforms()
	want := []string{"instagram_reel", "tiktok", "youtube_shorts"}
	if len(got) != len(want) {
		t.Fatalf("platforms = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("platforms = %v, want %v", got, want)
		}
	}
}

func TestGet(t *testing.T) {
	p, err := Get("tiktok")
	if err != nil {
		t.Fatalf("Get(tiktok) error = %v", err)
	}
	if p.GetVideoCodec() != "libx264" || p.GetVideoBitrate() != "4M" {
		t.Errorf("encoder = %s@%s, want libx264@4M", p.GetVideoCodec(), p.GetVideoBitrate())
	}
	if _, err := Get("myspace"); err == nil {
		t.Error("expected error for unknown platform")
	}
}

func TestExceedsDuration(t *testing.T) {
	p, _ := Get("youtube_shorts")
	if ExceedsDuration(p, 59.9) {
		t.Error("59.9s should fit a 60s limit")
	}
	if !ExceedsDuration(p, 61) {
		t.Error("61s should exceed a 60s limit")
	}
}
