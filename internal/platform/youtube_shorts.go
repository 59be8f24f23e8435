package platform

type YouTubeShorts struct{}

func init() {
	Register(&YouTubeShorts{})
}

func (p *YouTubeShorts) GetName() string {
	return "youtube_shorts"
}

func (p *YouTubeShorts) GetMaxDuration() int {
	return 60
}

func (p *YouTubeShorts) GetMaxFileSize() int64 {
	return 256 * 1024 * 1024 * 1024 // upload cap is effectively unbounded for shorts
}

func (p *YouTubeShorts) GetVideoCodec() string {
	return "libx264"
}

func (p *YouTubeShorts) GetVideoBitrate() string {
	return "5M"
}
