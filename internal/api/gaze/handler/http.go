package gazeHandler

import (
	gazeService "GazeGate/internal/api/gaze/service"
	"GazeGate/internal/middleware"
	"GazeGate/pkg/utils"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	maxReadTimeout  = 60 * time.Second
	maxWriteTimeout = 10 * time.Second
	closeGrace      = 2 * time.Second
)

type GazeHandler struct {
	log         *logrus.Logger
	validator   *validator.Validate
	middleware  middleware.Middleware
	gazeService gazeService.IGazeService
	utils       utils.IUtils
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	gs gazeService.IGazeService,
	utils utils.IUtils,
) *GazeHandler {
	return &GazeHandler{
		log:         log,
		validator:   validator,
		middleware:  middleware,
		gazeService: gs,
		utils:       utils,
	}
}

func (h *GazeHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	g := srv.Group("/gaze")
	g.Use("/ws", wsMiddleware)
	g.Get("/ws", websocket.New(h.handleWebSocket))

	g.Get("/config", h.GetConfig)
	g.Get("/sessions/:id", h.middleware.NewRateLimiter, h.GetSessionStatus)
}
