package gazeHandler

import (
	"GazeGate/internal/api/gaze"
	gazeService "GazeGate/internal/api/gaze/service"
	contextPkg "GazeGate/pkg/context"
	"GazeGate/pkg/handlerUtil"
	"GazeGate/pkg/log"
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// handleWebSocket runs one gaze session per connection. The page sends binary frames, the
// server answers with a status message after every tick and closes the connection once the
// session is confirmed or failed.
func (h *GazeHandler) handleWebSocket(c *websocket.Conn) {
	sessionID, err := h.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		h.log.Errorf("Error generating session id: %v", err)
		return
	}

	fields := log.Fields{log.SessionIDKey: sessionID}
	h.log.WithFields(fields).Info("Gaze WebSocket client connected")
	defer h.log.WithFields(fields).Info("Gaze WebSocket client disconnected")

	ctx, cancel := context.WithCancel(contextPkg.WithSessionID(context.Background(), sessionID))
	defer cancel()

	cfg := h.gazeService.Config()
	source := gazeService.NewFrameSource(h.utils, cfg.FrameRateLimit, cfg.FrameBurst)
	statusStream := make(chan gaze.SessionStatus, 16)
	frameErrStream := make(chan gaze.FrameError, 4)

	session := h.gazeService.NewSession(sessionID, source, gazeService.NewChannelPublisher(statusStream))

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			h.log.WithFields(log.Fields{
				log.SessionIDKey: sessionID,
				"error":          err.Error(),
			}).Warn("Gaze session ended with error")
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, c, sessionID, statusStream, frameErrStream)
	}()

	c.SetPingHandler(func(data string) error {
		h.log.Debug("Received ping, sending pong")
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	h.readLoop(ctx, c, sessionID, source, frameErrStream)

	cancel()
	<-sessionDone
	<-writerDone

	frames, dropped := source.Counts()
	stats := session.Stats()
	stats.Frames = frames
	h.log.WithFields(log.Fields{
		log.SessionIDKey: sessionID,
		"phase":          session.Phase(),
		"ticks":          stats.Ticks,
		"skipped_ticks":  stats.SkippedTicks,
		"detections":     stats.Detections,
		"errors":         stats.Errors,
		"frames":         stats.Frames,
		"dropped_frames": dropped,
	}).Info("Gaze session finished")
}

func (h *GazeHandler) readLoop(ctx context.Context, c *websocket.Conn, sessionID string, source *gazeService.FrameSource, frameErrStream chan<- gaze.FrameError) {
	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			return
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Errorf("Gaze WebSocket error: %v", err)
			} else {
				h.log.Info("Gaze WebSocket connection closed")
			}
			return
		}

		if messageType != websocket.BinaryMessage {
			h.log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		if _, err := source.Attach(message); err != nil {
			h.log.WithFields(log.Fields{
				log.SessionIDKey: sessionID,
				"error":          err.Error(),
			}).Warn("Rejected video frame")

			select {
			case frameErrStream <- gaze.FrameError{SessionID: sessionID, Error: gaze.ErrInvalidFrame.Error()}:
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}

// writeLoop is the only writer of c.
func (h *GazeHandler) writeLoop(ctx context.Context, c *websocket.Conn, sessionID string, statusStream <-chan gaze.SessionStatus, frameErrStream <-chan gaze.FrameError) {
	write := func(v interface{}) bool {
		if err := c.SetWriteDeadline(time.Now().Add(maxWriteTimeout)); err != nil {
			h.log.Errorf("Error setting write deadline: %v", err)
			return false
		}
		if err := c.WriteJSON(v); err != nil {
			h.log.Errorf("Error writing JSON response: %v", err)
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return

		case frameErr := <-frameErrStream:
			if !write(frameErr) {
				return
			}

		case status := <-statusStream:
			if !write(status) {
				return
			}

			if status.Phase.IsTerminal() {
				h.log.WithFields(log.Fields{
					log.SessionIDKey: sessionID,
					"phase":          status.Phase,
					"redirect":       status.Redirect,
				}).Info("Gaze session reached terminal phase, closing connection")

				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, status.Phase.String())
				if err := c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(maxWriteTimeout)); err != nil {
					h.log.Errorf("Error sending close message: %v", err)
				}
				// unblock the reader if the page does not answer the close frame
				c.SetReadDeadline(time.Now().Add(closeGrace))
				return
			}
		}
	}
}

func (h *GazeHandler) GetSessionStatus(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req gaze.SessionStatusRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, gaze.ErrBadRequest, ctx.Path(), "parse_params")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	status, err := h.gazeService.GetSessionStatus(c, req.SessionID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session_status")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			log.RequestIDKey: requestID,
			log.SessionIDKey: req.SessionID,
			"phase":          status.Phase,
		}).Debug("Session status retrieved")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, gaze.SessionStatusResponse{
			Data: status,
		})
	}
}

func (h *GazeHandler) GetConfig(ctx *fiber.Ctx) error {
	cfg := h.gazeService.Config()

	return handlerUtil.New(h.log).HandleSuccess(ctx, fiber.StatusOK, gaze.ConfigResponse{
		XThreshold:       cfg.Thresholds.X,
		YThreshold:       cfg.Thresholds.Y,
		ScaleWithFrame:   cfg.Thresholds.ScaleWithFrame,
		ConfirmThreshold: cfg.ConfirmThreshold,
		PollIntervalMs:   cfg.PollInterval.Milliseconds(),
		RedirectRoute:    cfg.RedirectRoute,
	})
}
