// Package seqtype enumerates the frame sequence types and the thread
// attributions used to partition smoothness metrics.
package seqtype

import (
	"fmt"

	"framemeter/internal/core"
)

// Type is the logical activity a tracker measures.
type Type uint8

const (
	CompositorAnimation Type = iota
	MainThreadAnimation
	PinchZoom
	RAF
	TouchScroll
	Universal
	Video
	WheelScroll
	ScrollbarScroll
	Custom
	CanvasAnimation
	JSAnimation
	typeCount
)

// BuiltIn returns every type a collection can track by type, in enum order.
func BuiltIn() []Type {
	types := make([]Type, 0, typeCount-1)
	for t := Type(0); t < typeCount; t++ {
		if t != Custom {
			types = append(types, t)
		}
	}
	return types
}

func (t Type) IsValid() bool { return t < typeCount }

func (t Type) String() string {
	switch t {
	case CompositorAnimation:
		return "CompositorAnimation"
	case MainThreadAnimation:
		return "MainThreadAnimation"
	case PinchZoom:
		return "PinchZoom"
	case RAF:
		return "RAF"
	case TouchScroll:
		return "TouchScroll"
	case Universal:
		return "Universal"
	case Video:
		return "Video"
	case WheelScroll:
		return "WheelScroll"
	case ScrollbarScroll:
		return "ScrollbarScroll"
	case Custom:
		return "Custom"
	case CanvasAnimation:
		return "CanvasAnimation"
	case JSAnimation:
		return "JSAnimation"
	}
	core.Checkf(false, "unknown sequence type %d", uint8(t))
	return "Invalid"
}

// ParseType maps a name produced by String back to its Type.
func ParseType(s string) (Type, error) {
	for t := Type(0); t < typeCount; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown sequence type %q", s)
}

// IsScroll reports whether the effective thread depends on which thread scrolls.
func (t Type) IsScroll() bool {
	switch t {
	case TouchScroll, WheelScroll, ScrollbarScroll:
		return true
	}
	return false
}

// IsAnimation reports whether the type counts towards AllAnimations.
func (t Type) IsAnimation() bool {
	switch t {
	case CompositorAnimation, MainThreadAnimation, RAF, CanvasAnimation, JSAnimation, Video:
		return true
	case PinchZoom, TouchScroll, WheelScroll, ScrollbarScroll, Universal, Custom:
		return false
	}
	return false
}

// IsInteraction reports whether the type counts towards AllInteractions.
func (t Type) IsInteraction() bool {
	switch t {
	case PinchZoom, TouchScroll, WheelScroll, ScrollbarScroll:
		return true
	case CompositorAnimation, MainThreadAnimation, RAF, CanvasAnimation, JSAnimation, Video, Universal, Custom:
		return false
	}
	return false
}

// ReportsJank is false for the catch-all sequence, which is never perceptible
// on its own, and for custom sequences, which the caller reports.
func (t Type) ReportsJank() bool {
	switch t {
	case Universal, Custom:
		return false
	}
	return t.IsValid()
}

// ReportsCheckerboarding is false for custom sequences only.
func (t Type) ReportsCheckerboarding() bool {
	return t.IsValid() && t != Custom
}

// DefaultThread is the effective thread before any scrolling thread is known.
func (t Type) DefaultThread() Thread {
	switch t {
	case CompositorAnimation, PinchZoom, Video, TouchScroll, WheelScroll, ScrollbarScroll:
		return Compositor
	case MainThreadAnimation, RAF, CanvasAnimation, JSAnimation, Custom:
		return Main
	case Universal:
		return Slower
	}
	core.Checkf(false, "unknown sequence type %d", uint8(t))
	return Unknown
}

// Thread is the thread a throughput value is attributed to.
type Thread uint8

const (
	Compositor Thread = iota
	Main
	// Slower aggregates both threads: a frame counts only once every thread
	// that was expected to update it did.
	Slower
	Unknown
)

func (th Thread) String() string {
	switch th {
	case Compositor:
		return "CompositorThread"
	case Main:
		return "MainThread"
	case Slower:
		return "SlowerThread"
	case Unknown:
		return "UnknownThread"
	}
	core.Checkf(false, "unknown thread %d", uint8(th))
	return "Invalid"
}

// ParseThread accepts the String form or the short forms "compositor",
// "main" and "slower".
func ParseThread(s string) (Thread, error) {
	switch s {
	case "CompositorThread", "compositor":
		return Compositor, nil
	case "MainThread", "main":
		return Main, nil
	case "SlowerThread", "slower":
		return Slower, nil
	}
	return Unknown, fmt.Errorf("unknown thread %q", s)
}
