package gazeService

import (
	"GazeGate/internal/api/gaze"
	"GazeGate/internal/entity"
	"GazeGate/pkg/response"
	"GazeGate/pkg/utils"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type VideoSource interface {
	Latest() (entity.Frame, bool)
}

// FrameSource keeps the most recent frame pushed by the browser. Frames arriving faster
// than the ingest limit are dropped before decoding.
type FrameSource struct {
	mu      sync.RWMutex
	frame   entity.Frame
	ready   bool
	limiter *rate.Limiter
	utils   utils.IUtils
	frames  int
	dropped int
}

func NewFrameSource(u utils.IUtils, frameRate float64, burst int) *FrameSource {
	return &FrameSource{
		limiter: rate.NewLimiter(rate.Limit(frameRate), burst),
		utils:   u,
	}
}

// Attach replaces the latest frame. It reports false when the frame was dropped by the
// ingest limiter and returns gaze.ErrInvalidFrame when the bytes are not a decodable image.
func (s *FrameSource) Attach(data []byte) (bool, error) {
	if !s.limiter.Allow() {
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		return false, nil
	}

	width, height, err := s.utils.DecodeFrameDimensions(data)
	if err != nil {
		return false, response.Wrap(gaze.ErrInvalidFrame, "%v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame = entity.Frame{
		Data: data,
		Dimensions: entity.FrameDimensions{
			Width:  float64(width),
			Height: float64(height),
		},
		ReceivedAt: time.Now(),
	}
	s.ready = true
	s.frames++

	return true, nil
}

func (s *FrameSource) Latest() (entity.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.ready
}

func (s *FrameSource) Counts() (frames int, dropped int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames, s.dropped
}
