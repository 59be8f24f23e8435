package platform

type TikTok struct{}

func init() {
	Register(&TikTok{})
}

func (p *TikTok) GetName() string {
	return "tiktok"
}

func (p *TikTok) GetMaxDuration() int {
	return 180
}

func (p *TikTok) GetMaxFileSize() int64 {
	return 287 * 1024 * 1024 // 287MB
}

func (p *TikTok) GetVideoCodec() string {
	return "libx264"
}

func (p *TikTok) GetVideoBitrate() string {
	return "4M"
}
