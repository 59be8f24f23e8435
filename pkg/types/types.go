package types

// SegmentStatus is the lifecycle state of one cut-plan segment.
type SegmentStatus string

const (
	SegmentStatusPending      SegmentStatus = "pending"
	SegmentStatusCached       SegmentStatus = "cached"
	SegmentStatusSynthesizing SegmentStatus = "synthesizing"
	SegmentStatusRendering    SegmentStatus = "rendering"
	SegmentStatusDone         SegmentStatus = "done"
	SegmentStatusSkipped      SegmentStatus = "skipped"
	SegmentStatusFailed       SegmentStatus = "failed"
)

// InClipSet reports whether a segment in this state contributes a clip.
func (s SegmentStatus) InClipSet() bool {
	return s == SegmentStatusCached || s == SegmentStatusDone
}
