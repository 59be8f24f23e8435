package platform

type InstagramReel struct{}

func init() {
	Register(&InstagramReel{})
}

func (p *InstagramReel) GetName() string {
	return "instagram_reel"
}

func (p *InstagramReel) GetMaxDuration() int {
	return 90
}

func (p *InstagramReel) GetMaxFileSize() int64 {
	return 250 * 1024 * 1024 // 250MB
}

func (p *InstagramReel) GetVideoCodec() string {
	return "libx264"
}

func (p *InstagramReel) GetVideoBitrate() string {
	return "3500k"
}
