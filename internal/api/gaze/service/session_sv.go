package gazeService

import (
	"GazeGate/internal/api/gaze"
	"GazeGate/internal/entity"
	"GazeGate/pkg/log"
	"GazeGate/pkg/response"
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

type Detector interface {
	LoadModels(ctx context.Context) error
	DetectSingleFace(ctx context.Context, frame entity.Frame) (*entity.DetectionResult, error)
}

type detection struct {
	frame  entity.Frame
	result *entity.DetectionResult
	err    error
}

// Session runs the gaze loop for one connected page. State is only touched by the
// goroutine executing Run.
type Session struct {
	id        string
	cfg       Config
	detector  Detector
	source    VideoSource
	publisher Publisher
	log       *logrus.Logger

	phase        entity.SessionPhase
	modelsLoaded bool
	state        entity.ConfirmationState
	decision     entity.GazeDecision
	lastOffset   *entity.Offset
	stats        entity.SessionStats
}

func NewSession(id string, cfg Config, detector Detector, source VideoSource, publisher Publisher, logger *logrus.Logger) *Session {
	return &Session{
		id:        id,
		cfg:       cfg,
		detector:  detector,
		source:    source,
		publisher: publisher,
		log:       logger,
		phase:     entity.SessionPhaseLoading,
		stats:     entity.SessionStats{SessionID: id},
	}
}

func (s *Session) ID() string {
	return s.id
}

// Run loads the models, then polls the video source every PollInterval until the user is
// confirmed, the models fail to load or ctx is cancelled. A tick firing while a detection is
// still pending is skipped.
func (s *Session) Run(ctx context.Context) error {
	s.publish(ctx, "")

	if err := s.loadModels(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.phase = entity.SessionPhaseFailed
		s.log.WithFields(log.Fields{
			log.SessionIDKey: s.id,
			"error":          err.Error(),
		}).Error("Failed to load face landmark models")
		s.publish(ctx, "Failed to load models. Please reload the page.")

		if !errors.Is(err, gaze.ErrModelLoad) {
			err = response.Wrap(gaze.ErrModelLoad, "%v", err)
		}
		return err
	}

	s.phase = entity.SessionPhaseReady
	s.modelsLoaded = true
	s.publish(ctx, "")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	results := make(chan detection, 1)
	inFlight := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			s.stats.Ticks++
			if inFlight {
				s.stats.SkippedTicks++
				continue
			}

			frame, ok := s.source.Latest()
			if !ok {
				continue
			}

			inFlight = true
			go s.detect(ctx, frame, results)

		case d := <-results:
			inFlight = false
			// the session may have been torn down while the detection was pending
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if s.apply(ctx, d) {
				return nil
			}
		}
	}
}

func (s *Session) loadModels(ctx context.Context) error {
	loaded := make(chan error, 1)
	go func() {
		loaded <- s.detector.LoadModels(ctx)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-loaded:
		return err
	}
}

func (s *Session) detect(ctx context.Context, frame entity.Frame, results chan<- detection) {
	result, err := s.detector.DetectSingleFace(ctx, frame)
	select {
	case results <- detection{frame: frame, result: result, err: err}:
	case <-ctx.Done():
	}
}

// apply runs the estimator and the counter on one detection and publishes the new status.
// It reports whether the session is confirmed.
func (s *Session) apply(ctx context.Context, d detection) bool {
	s.stats.Detections++

	result := d.result
	if d.err != nil {
		s.stats.Errors++
		s.log.WithFields(log.Fields{
			log.SessionIDKey: s.id,
			"error":          d.err.Error(),
		}).Warn("Face detection failed, treating frame as no face")
		result = nil
	}

	decision, err := Estimate(result, d.frame.Dimensions, s.cfg.Thresholds)
	if err != nil {
		s.stats.Errors++
		s.log.WithFields(log.Fields{
			log.SessionIDKey: s.id,
			"error":          err.Error(),
		}).Warn("Degenerate detector output, treating frame as no face")
		decision = entity.GazeDecision{}
	}

	s.decision = decision
	if decision.Offset != nil {
		s.lastOffset = decision.Offset
	}
	s.state = Tick(decision, s.state, s.cfg.ConfirmThreshold)

	s.log.WithFields(log.Fields{
		log.SessionIDKey: s.id,
		"is_looking":     decision.IsLooking,
		"look_duration":  s.state.ConsecutiveLookCount,
	}).Debug("Gaze tick")

	if s.state.Confirmed {
		s.phase = entity.SessionPhaseConfirmed
	}
	s.publish(ctx, "")

	return s.state.Confirmed
}

func (s *Session) publish(ctx context.Context, errMsg string) {
	if err := s.publisher.Publish(ctx, s.status(errMsg)); err != nil && ctx.Err() == nil {
		s.log.WithFields(log.Fields{
			log.SessionIDKey: s.id,
			"error":          err.Error(),
		}).Warn("Failed to publish gaze status")
	}
}

func (s *Session) status(errMsg string) gaze.SessionStatus {
	status := gaze.SessionStatus{
		SessionID:         s.id,
		Phase:             s.phase,
		ModelsLoaded:      s.modelsLoaded,
		IsLookingAtCamera: s.decision.IsLooking,
		LookDuration:      s.state.ConsecutiveLookCount,
		Remaining:         remaining(s.state, s.cfg.ConfirmThreshold),
		LastOffset:        s.lastOffset,
		Confirmed:         s.state.Confirmed,
		Error:             errMsg,
		UpdatedAt:         time.Now(),
	}
	if s.state.Confirmed {
		status.Redirect = s.cfg.RedirectRoute
	}
	return status
}

// State returns the current confirmation state. It must not be called while Run is active.
func (s *Session) State() entity.ConfirmationState {
	return s.state
}

func (s *Session) Phase() entity.SessionPhase {
	return s.phase
}

func (s *Session) Stats() entity.SessionStats {
	return s.stats
}
