package gazeService

import (
	"GazeGate/internal/api/gaze"
	contextPkg "GazeGate/pkg/context"
	"GazeGate/pkg/log"
	redisPkg "GazeGate/pkg/redis"
	"context"
	"errors"
	"fmt"
)

const sessionKeyPrefix = "gaze:session:"

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// NewSession builds a session whose statuses go to publisher and, when a redis client is
// configured, to the status snapshot store.
func (s *gazeService) NewSession(id string, source VideoSource, publisher Publisher) *Session {
	if s.redis != nil {
		publisher = NewMultiPublisher(publisher, &snapshotPublisher{svc: s})
	}
	return NewSession(id, s.cfg, s.detector, source, publisher, s.log)
}

func (s *gazeService) GetSessionStatus(ctx context.Context, id string) (*gaze.SessionStatus, error) {
	if s.redis == nil {
		return nil, gaze.ErrSessionNotFound
	}

	var status gaze.SessionStatus
	if err := s.redis.GetJSON(ctx, sessionKey(id), &status); err != nil {
		if errors.Is(err, redisPkg.ErrKeyNotFound) {
			s.log.WithFields(log.Fields{
				log.RequestIDKey: contextPkg.GetRequestID(ctx),
				log.SessionIDKey: id,
			}).Debug("No status snapshot for session")
			return nil, gaze.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session status: %w", err)
	}

	return &status, nil
}

func (s *gazeService) Config() Config {
	return s.cfg
}

type snapshotPublisher struct {
	svc *gazeService
}

func (p *snapshotPublisher) Publish(ctx context.Context, status gaze.SessionStatus) error {
	if err := p.svc.redis.SetJSON(ctx, sessionKey(status.SessionID), status, p.svc.cfg.StatusTTL); err != nil {
		return fmt.Errorf("failed to store status snapshot: %w", err)
	}
	return nil
}
