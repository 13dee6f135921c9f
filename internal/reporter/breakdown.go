package reporter

import "time"

// BlinkBreakdown is the main-thread work done inside SendBeginMainFrameToCommit.
type BlinkBreakdown struct {
	HandleInputEvents    time.Duration
	Animate              time.Duration
	StyleUpdate          time.Duration
	LayoutUpdate         time.Duration
	Prepaint             time.Duration
	Composite            time.Duration
	Paint                time.Duration
	ScrollingCoordinator time.Duration
	CompositeCommit      time.Duration
	UpdateLayers         time.Duration
}

// BeginMainSentToStarted names the queuing delay between sending the main
// frame and the main thread starting on it.
const BeginMainSentToStarted = "BeginMainSentToStarted"

type subStage struct {
	name string
	d    time.Duration
}

// subStages lists the blink sub-stages of a SendBeginMainFrameToCommit stage
// starting at stageStart. A zero mainStart omits the queuing delay.
func (b *BlinkBreakdown) subStages(stageStart, mainStart time.Time) []subStage {
	out := []subStage{
		{"HandleInputEvents", b.HandleInputEvents},
		{"Animate", b.Animate},
		{"StyleUpdate", b.StyleUpdate},
		{"LayoutUpdate", b.LayoutUpdate},
		{"Prepaint", b.Prepaint},
		{"Composite", b.Composite},
		{"Paint", b.Paint},
		{"ScrollingCoordinator", b.ScrollingCoordinator},
		{"CompositeCommit", b.CompositeCommit},
		{"UpdateLayers", b.UpdateLayers},
	}
	if !mainStart.IsZero() {
		delay := mainStart.Sub(stageStart)
		if delay < 0 {
			delay = 0
		}
		out = append(out, subStage{BeginMainSentToStarted, delay})
	}
	for i := range out {
		if out[i].d < 0 {
			out[i].d = 0
		}
	}
	return out
}

// VizBreakdown holds the presentation-backend timestamps of a submitted frame.
type VizBreakdown struct {
	ReceivedCompositorFrame time.Time
	DrawStart               time.Time
	SwapStart               time.Time
	SwapEnd                 time.Time
	Presentation            time.Time
}

var vizSubStageNames = [...]string{
	"SubmitToReceiveCompositorFrame",
	"ReceivedCompositorFrameToStartDraw",
	"StartDrawToSwapStart",
	"SwapStartToSwapEnd",
	"SwapEndToPresentationCompositorFrame",
}

// subStages lists the viz sub-stages of a submit stage starting at
// stageStart. A zero or out-of-order timestamp ends the list.
func (v *VizBreakdown) subStages(stageStart time.Time) []subStage {
	points := [...]time.Time{v.ReceivedCompositorFrame, v.DrawStart, v.SwapStart, v.SwapEnd, v.Presentation}
	out := make([]subStage, 0, len(points))
	prev := stageStart
	for i, p := range points {
		if p.IsZero() || p.Before(prev) {
			break
		}
		out = append(out, subStage{vizSubStageNames[i], p.Sub(prev)})
		prev = p
	}
	return out
}
