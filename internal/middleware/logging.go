package middleware

import (
	"GazeGate/pkg/log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type loggingMiddleware struct {
	logger *logrus.Logger
}

func newLoggingMiddleware(logger *logrus.Logger) *loggingMiddleware {
	return &loggingMiddleware{
		logger: logger,
	}
}

func (m *middleware) NewLoggingMiddleware() fiber.Handler {
	return m.loggingMiddleware.handle
}

func (l *loggingMiddleware) handle(c *fiber.Ctx) error {
	start := time.Now()

	requestID, ok := c.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		requestID = "unknown"
	}

	err := c.Next()

	latency := time.Since(start)
	status := c.Response().StatusCode()

	fields := log.Fields{
		log.RequestIDKey: requestID,
		"method":         c.Method(),
		"path":           c.Path(),
		"status":         status,
		"latency_ms":     latency.Milliseconds(),
		"ip":             c.IP(),
		"user_agent":     c.Get("User-Agent"),
		"response_size":  len(c.Response().Body()),
	}

	entry := l.logger.WithFields(fields)
	switch {
	case status >= 500:
		entry.Error("Server error")
	case status >= 400:
		entry.Warn("Client error")
	default:
		entry.Info("Success")
	}

	return err
}
