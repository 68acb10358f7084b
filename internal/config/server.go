package config

import (
	gazeHandler "GazeGate/internal/api/gaze/handler"
	gazeService "GazeGate/internal/api/gaze/service"
	"GazeGate/internal/middleware"
	"GazeGate/pkg/redis"
	"GazeGate/pkg/utils"
	websocketPkg "GazeGate/pkg/websocket"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine         *fiber.App
	log            *logrus.Logger
	middleware     middleware.Middleware
	validator      *validator.Validate
	utils          utils.IUtils
	handlers       []handler
	redisServer    redis.IRedis
	landmarkClient websocketPkg.ILandmarkClient
	gazeConfig     *gazeService.Config
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.landmarkClient == nil {
		return nil, fmt.Errorf("landmark client is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithLandmarkClient(client websocketPkg.ILandmarkClient) ServerOption {
	return func(s *Server) error {
		s.landmarkClient = client
		return nil
	}
}

func WithGazeConfig() ServerOption {
	return func(s *Server) error {
		if s.validator == nil {
			return fmt.Errorf("validator must be initialized before gaze config")
		}
		cfg, err := NewGazeConfig(s.validator)
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to load gaze configuration: %v", err)
			}
			return err
		}
		s.gazeConfig = &cfg
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	cfg := gazeService.DefaultConfig()
	if s.gazeConfig != nil {
		cfg = *s.gazeConfig
	}

	gazeServices := gazeService.NewGazeService(s.log, s.landmarkClient, s.redisServer, cfg)
	gazeHandlers := gazeHandler.New(s.log, s.validator, s.middleware, gazeServices, s.utils)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, gazeHandlers)
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting requests, waits up to timeout for open sessions and releases the
// landmark and redis connections.
func (s *Server) Shutdown(timeout time.Duration) error {
	err := s.engine.ShutdownWithTimeout(timeout)

	s.landmarkClient.CloseConnections()
	if s.redisServer != nil {
		if cerr := s.redisServer.Close(); cerr != nil {
			s.log.Errorf("Error closing redis client: %v", cerr)
		}
	}

	return err
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message":        "Server is Healthy!",
			"landmark_ready": s.landmarkClient.IsReady(),
		})
	})
}
