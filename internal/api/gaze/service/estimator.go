package gazeService

import (
	"GazeGate/internal/api/gaze"
	"GazeGate/internal/entity"
	"GazeGate/pkg/response"
	"math"
)

// Estimate decides whether the detected face looks at the camera. A nil result yields a
// non-looking decision without an offset. An empty eye set on a present result is reported
// as gaze.ErrInvalidInput.
func Estimate(result *entity.DetectionResult, frame entity.FrameDimensions, t Thresholds) (entity.GazeDecision, error) {
	if result == nil {
		return entity.GazeDecision{}, nil
	}

	left, err := centroid(result.LeftEye)
	if err != nil {
		return entity.GazeDecision{}, response.Wrap(err, "left eye")
	}
	right, err := centroid(result.RightEye)
	if err != nil {
		return entity.GazeDecision{}, response.Wrap(err, "right eye")
	}

	avgX := (left.X + right.X) / 2
	avgY := (left.Y + right.Y) / 2
	center := frame.Center()

	offset := &entity.Offset{
		X: math.Abs(avgX - center.X),
		Y: math.Abs(avgY - center.Y),
	}

	maxX, maxY := t.effective(frame)

	return entity.GazeDecision{
		IsLooking: offset.X < maxX && offset.Y < maxY,
		Offset:    offset,
	}, nil
}

func (t Thresholds) effective(frame entity.FrameDimensions) (float64, float64) {
	if !t.ScaleWithFrame || t.ReferenceWidth <= 0 || t.ReferenceHeight <= 0 {
		return t.X, t.Y
	}
	return t.X * frame.Width / t.ReferenceWidth, t.Y * frame.Height / t.ReferenceHeight
}

func centroid(points entity.EyeLandmarks) (entity.Point2D, error) {
	if len(points) == 0 {
		return entity.Point2D{}, gaze.ErrInvalidInput
	}

	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}

	n := float64(len(points))
	return entity.Point2D{X: sumX / n, Y: sumY / n}, nil
}
