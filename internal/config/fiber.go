package config

import (
	"os"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:               "Gaze Gate",
			BodyLimit:             10 * 1024 * 1024,
			DisableKeepalive:      false,
			StrictRouting:         true,
			CaseSensitive:         true,
			EnablePrintRoutes:     os.Getenv("APP_ENV") == "dev",
			DisableStartupMessage: os.Getenv("APP_ENV") == "test",
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				code := fiber.StatusInternalServerError
				if e, ok := err.(*fiber.Error); ok {
					code = e.Code
				}
				if code >= fiber.StatusInternalServerError {
					logger.Errorf("Unhandled error on %s: %v", c.Path(), err)
				}
				return c.Status(code).JSON(fiber.Map{"error": err.Error()})
			},
		})

	return app
}
