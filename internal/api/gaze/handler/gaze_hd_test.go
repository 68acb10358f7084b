package gazeHandler

import (
	"GazeGate/internal/api/gaze"
	gazeService "GazeGate/internal/api/gaze/service"
	"GazeGate/internal/entity"
	"GazeGate/internal/middleware"
	"GazeGate/pkg/handlerUtil"
	"GazeGate/pkg/utils"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	gorillaws "github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const knownSessionID = "01J9ZQ4X8V3K2M5N7P9R1T3W5Y"

type stubGazeService struct {
	cfg      gazeService.Config
	detector gazeService.Detector
	statuses map[string]*gaze.SessionStatus
	getErr   error
	log      *logrus.Logger
}

func (s *stubGazeService) NewSession(id string, source gazeService.VideoSource, publisher gazeService.Publisher) *gazeService.Session {
	return gazeService.NewSession(id, s.cfg, s.detector, source, publisher, s.log)
}

func (s *stubGazeService) GetSessionStatus(_ context.Context, id string) (*gaze.SessionStatus, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	status, ok := s.statuses[id]
	if !ok {
		return nil, gaze.ErrSessionNotFound
	}
	return status, nil
}

func (s *stubGazeService) Config() gazeService.Config {
	return s.cfg
}

type lookingDetector struct{}

func (lookingDetector) LoadModels(context.Context) error { return nil }

func (lookingDetector) DetectSingleFace(_ context.Context, frame entity.Frame) (*entity.DetectionResult, error) {
	c := frame.Dimensions.Center()
	eye := []entity.Point2D{{X: c.X, Y: c.Y}}
	return &entity.DetectionResult{LeftEye: eye, RightEye: eye}, nil
}

func newTestApp(t *testing.T, svc *stubGazeService) *fiber.App {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc.log = logger

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	m := middleware.New(logger)
	app.Use(m.NewRequestIDMiddleware())

	h := New(logger, validator.New(), m, svc, utils.New())
	h.Start(app.Group("/api/v1"))

	return app
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(v))
}

func TestGetConfig(t *testing.T) {
	app := newTestApp(t, &stubGazeService{cfg: gazeService.DefaultConfig()})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/gaze/config", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body gaze.ConfigResponse
	decode(t, resp, &body)
	assert.Equal(t, 50.0, body.XThreshold)
	assert.Equal(t, 100.0, body.YThreshold)
	assert.Equal(t, 10, body.ConfirmThreshold)
	assert.Equal(t, int64(1000), body.PollIntervalMs)
	assert.Equal(t, "/Home", body.RedirectRoute)
	assert.False(t, body.ScaleWithFrame)
}

func TestGetSessionStatus(t *testing.T) {
	svc := &stubGazeService{
		cfg: gazeService.DefaultConfig(),
		statuses: map[string]*gaze.SessionStatus{
			knownSessionID: {
				SessionID:    knownSessionID,
				Phase:        entity.SessionPhaseConfirmed,
				LookDuration: 10,
				Confirmed:    true,
				Redirect:     "/Home",
			},
		},
	}
	app := newTestApp(t, svc)

	t.Run("found", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/gaze/sessions/"+knownSessionID, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDKey))

		var body gaze.SessionStatusResponse
		decode(t, resp, &body)
		require.NotNil(t, body.Data)
		assert.Equal(t, entity.SessionPhaseConfirmed, body.Data.Phase)
		assert.True(t, body.Data.Confirmed)
		assert.Equal(t, "/Home", body.Data.Redirect)
	})

	t.Run("unknown", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/gaze/sessions/01J9ZQ4X8V3K2M5N7P9R1T3W5Z", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body handlerUtil.ErrorResponse
		decode(t, resp, &body)
		assert.Equal(t, "SESSION_NOT_FOUND", body.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/gaze/sessions/not-a-ulid", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body handlerUtil.ErrorResponse
		decode(t, resp, &body)
		assert.Equal(t, "VALIDATION_ERROR", body.Code)
	})
}

func TestGetSessionStatus_StoreFailure(t *testing.T) {
	app := newTestApp(t, &stubGazeService{
		cfg:    gazeService.DefaultConfig(),
		getErr: errors.New("redis: connection pool timeout"),
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/gaze/sessions/"+knownSessionID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body handlerUtil.ErrorResponse
	decode(t, resp, &body)
	assert.NotEmpty(t, body.TraceID)
	assert.NotContains(t, body.Error, "redis")
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	app := newTestApp(t, &stubGazeService{cfg: gazeService.DefaultConfig()})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/gaze/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestWebSocketSessionConfirms(t *testing.T) {
	cfg := gazeService.DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.ConfirmThreshold = 2
	app := newTestApp(t, &stubGazeService{cfg: cfg, detector: lookingDetector{}})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = app.Shutdown()
	})

	conn, _, err := gorillaws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/gaze/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var frame bytes.Buffer
	require.NoError(t, png.Encode(&frame, image.NewGray(image.Rect(0, 0, 320, 240))))
	require.NoError(t, conn.WriteMessage(gorillaws.BinaryMessage, frame.Bytes()))

	var statuses []gaze.SessionStatus
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, gorillaws.IsCloseError(err, gorillaws.CloseNormalClosure), "unexpected read error: %v", err)
			break
		}
		var status gaze.SessionStatus
		require.NoError(t, jsoniter.Unmarshal(message, &status))
		statuses = append(statuses, status)
	}

	require.Len(t, statuses, 4)
	assert.Equal(t, entity.SessionPhaseLoading, statuses[0].Phase)
	assert.Equal(t, entity.SessionPhaseReady, statuses[1].Phase)
	assert.Equal(t, 1, statuses[2].LookDuration)

	last := statuses[3]
	assert.Equal(t, entity.SessionPhaseConfirmed, last.Phase)
	assert.True(t, last.Confirmed)
	assert.Equal(t, "/Home", last.Redirect)
	assert.Len(t, last.SessionID, 26)
}

func TestWebSocketReportsInvalidFrame(t *testing.T) {
	cfg := gazeService.DefaultConfig()
	app := newTestApp(t, &stubGazeService{cfg: cfg, detector: lookingDetector{}})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = app.Shutdown()
	})

	conn, _, err := gorillaws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/gaze/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(gorillaws.BinaryMessage, []byte("not an image")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	for {
		_, message, err := conn.ReadMessage()
		require.NoError(t, err)

		var frameErr gaze.FrameError
		require.NoError(t, jsoniter.Unmarshal(message, &frameErr))
		if frameErr.Error == gaze.ErrInvalidFrame.Error() {
			assert.NotEmpty(t, frameErr.SessionID)
			return
		}
	}
}
