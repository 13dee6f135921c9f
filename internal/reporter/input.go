package reporter

import (
	"fmt"
	"time"
)

// EventType is the category of an input event folded into a frame.
type EventType uint8

const (
	MousePressed EventType = iota
	MouseReleased
	MouseWheel
	KeyPressed
	KeyReleased
	TouchPressed
	TouchReleased
	TouchMoved
	GestureScrollBegin
	GestureScrollUpdate
	InertialGestureScrollUpdate
	GesturePinchBegin
	GesturePinchUpdate
	GesturePinchEnd
	GestureTap
	eventTypeCount
)

var eventTypeNames = [eventTypeCount]string{
	"MousePressed",
	"MouseReleased",
	"MouseWheel",
	"KeyPressed",
	"KeyReleased",
	"TouchPressed",
	"TouchReleased",
	"TouchMoved",
	"GestureScrollBegin",
	"GestureScrollUpdate",
	"InertialGestureScrollUpdate",
	"GesturePinchBegin",
	"GesturePinchUpdate",
	"GesturePinchEnd",
	"GestureTap",
}

func (e EventType) String() string {
	if e >= eventTypeCount {
		return "Invalid"
	}
	return eventTypeNames[e]
}

func ParseEventType(s string) (EventType, error) {
	for i, name := range eventTypeNames {
		if name == s {
			return EventType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

// IsScroll reports whether e is a scroll-class event.
func (e EventType) IsScroll() bool {
	return e == GestureScrollBegin || e == GestureScrollUpdate || e == InertialGestureScrollUpdate
}

// ScrollInputType is the device that produced a scroll.
type ScrollInputType uint8

const (
	Wheel ScrollInputType = iota
	Touchscreen
)

func (s ScrollInputType) String() string {
	switch s {
	case Wheel:
		return "Wheel"
	case Touchscreen:
		return "Touchscreen"
	}
	return "Invalid"
}

func ParseScrollInputType(s string) (ScrollInputType, error) {
	switch s {
	case "Wheel", "wheel":
		return Wheel, nil
	case "Touchscreen", "touchscreen", "touch":
		return Touchscreen, nil
	}
	return 0, fmt.Errorf("unknown scroll input type %q", s)
}

// EventMetrics is one input event whose effect a frame displays.
// ScrollInput is only meaningful for scroll-class events.
type EventMetrics struct {
	Type        EventType
	Timestamp   time.Time
	ScrollInput ScrollInputType
}
