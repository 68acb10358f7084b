package gazeService

import (
	"GazeGate/internal/api/gaze"
	redisPkg "GazeGate/pkg/redis"
	"context"

	"github.com/sirupsen/logrus"
)

type IGazeService interface {
	NewSession(id string, source VideoSource, publisher Publisher) *Session
	GetSessionStatus(ctx context.Context, id string) (*gaze.SessionStatus, error)
	Config() Config
}

type gazeService struct {
	log      *logrus.Logger
	detector Detector
	redis    redisPkg.IRedis
	cfg      Config
}

func NewGazeService(
	log *logrus.Logger,
	detector Detector,
	redis redisPkg.IRedis,
	cfg Config,
) IGazeService {
	return &gazeService{
		log:      log,
		detector: detector,
		redis:    redis,
		cfg:      cfg,
	}
}
