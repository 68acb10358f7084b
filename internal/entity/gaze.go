package entity

import "time"

// Point2D is a landmark coordinate in frame pixel space.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EyeLandmarks are the contour points of one eye.
type EyeLandmarks []Point2D

// DetectionResult is the single face returned by the landmark service. A nil
// *DetectionResult means no face was found in the frame.
type DetectionResult struct {
	LeftEye  EyeLandmarks `json:"left_eye"`
	RightEye EyeLandmarks `json:"right_eye"`
}

type FrameDimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (d FrameDimensions) Center() Point2D {
	return Point2D{X: d.Width / 2, Y: d.Height / 2}
}

// Offset is the absolute distance of the eye midpoint from the frame center.
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GazeDecision is recomputed on every poll. Offset is nil when nothing was measured.
type GazeDecision struct {
	IsLooking bool    `json:"is_looking"`
	Offset    *Offset `json:"offset,omitempty"`
}

type ConfirmationState struct {
	ConsecutiveLookCount int  `json:"consecutive_look_count"`
	Confirmed            bool `json:"confirmed"`
}

// Frame is the latest video frame received from the browser.
type Frame struct {
	Data       []byte
	Dimensions FrameDimensions
	ReceivedAt time.Time
}
