package analyze

// Milestone marks a stage of the analysis pass. Milestones are emitted in a
// fixed order so subscribers can render monotonic progress.
type Milestone string

// Pass milestones, in emission order.
const (
	MilestoneStarting    Milestone = "starting"
	MilestoneDuplicates  Milestone = "duplicates"
	MilestoneSimilars    Milestone = "similars"
	MilestoneBlurry      Milestone = "blurry"
	MilestoneExposure    Milestone = "exposure"
	MilestoneFaces       Milestone = "faces"
	MilestoneOrientation Milestone = "orientation"
	MilestoneScreenshots Milestone = "screenshots"
	MilestoneDone        Milestone = "done"
)

// ProgressSink receives progress callbacks during a pass. Both callbacks are
// optional and are invoked from the scanning goroutine; subscribers that
// touch UI state must marshal onto their own context.
type ProgressSink struct {
	// OnMilestone fires once per completed stage.
	OnMilestone func(Milestone)
	// OnAsset fires after each asset finishes detector scanning.
	OnAsset func(done, total int)
}

func (s *ProgressSink) milestone(m Milestone) {
	if s != nil && s.OnMilestone != nil {
		s.OnMilestone(m)
	}
}

func (s *ProgressSink) asset(done, total int) {
	if s != nil && s.OnAsset != nil {
		s.OnAsset(done, total)
	}
}
