package handlerUtil

import (
	"GazeGate/internal/api/gaze"
	"GazeGate/pkg/log"
	"GazeGate/pkg/response"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

var errorCodes = []struct {
	err  error
	code string
}{
	{gaze.ErrSessionNotFound, "SESSION_NOT_FOUND"},
	{gaze.ErrInvalidFrame, "INVALID_FRAME"},
	{gaze.ErrInvalidInput, "INVALID_DETECTOR_OUTPUT"},
	{gaze.ErrModelLoad, "MODEL_LOAD_FAILED"},
	{gaze.ErrDetectorUnavailable, "DETECTOR_UNAVAILABLE"},
	{gaze.ErrBadRequest, "BAD_REQUEST"},
}

// Handle maps err to a JSON error response. Domain errors keep their status code, anything
// else becomes a 500 carrying a trace id.
func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		log.RequestIDKey: requestID,
		"error":          err.Error(),
		"path":           path,
		"operation":      operation,
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		code := ""
		for _, ec := range errorCodes {
			if errors.Is(err, ec.err) {
				code = ec.code
				break
			}
		}

		fields["code"] = respErr.Code
		if respErr.Code >= fiber.StatusInternalServerError {
			h.logger.WithFields(fields).Error("Operation failed with error response")
		} else {
			h.logger.WithFields(fields).Warn("Operation failed with error response")
		}

		return c.Status(respErr.Code).JSON(ErrorResponse{
			Error: respErr.Error(),
			Code:  code,
		})
	}

	traceID := log.ErrorWithTraceID(fields, "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "An unexpected error occurred",
		TraceID: traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		log.RequestIDKey: requestID,
		"error":          err.Error(),
		"path":           path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Error: utils.StatusMessage(fiber.StatusRequestTimeout),
		Code:  "REQUEST_TIMEOUT",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
