package websocketPkg

import (
	"GazeGate/internal/api/gaze"
	"GazeGate/internal/entity"
	contextPkg "GazeGate/pkg/context"
	"GazeGate/pkg/response"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultLandmarkURL = "ws://localhost:8000/api/v1/face/landmarks/ws"
	defaultModels      = "tiny_face_detector,face_landmark_68"
)

// ILandmarkClient talks to the external face landmark AI service. Requests are serialized
// on a single connection: every request message is answered by exactly one reply.
type ILandmarkClient interface {
	LoadModels(ctx context.Context) error
	DetectSingleFace(ctx context.Context, frame entity.Frame) (*entity.DetectionResult, error)
	IsConnected() bool
	IsReady() bool
	CloseConnections()
}

type loadModelsRequest struct {
	Action string   `json:"action"`
	Models []string `json:"models"`
}

type loadModelsReply struct {
	Status string `json:"status" validate:"required,oneof=ready error"`
	Error  string `json:"error"`
}

type landmarkReply struct {
	Face  *entity.DetectionResult `json:"face"`
	Error string                  `json:"error"`
}

type landmarkClient struct {
	url          string
	models       []string
	conn         *websocket.Conn
	ready        bool
	mu           sync.Mutex
	done         chan struct{}
	log          *logrus.Logger
	validator    *validator.Validate
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

type Option func(*landmarkClient)

func WithURL(url string) Option {
	return func(c *landmarkClient) {
		c.url = url
	}
}

func WithModels(models []string) Option {
	return func(c *landmarkClient) {
		c.models = models
	}
}

func WithTimeouts(read, write time.Duration) Option {
	return func(c *landmarkClient) {
		c.readTimeout = read
		c.writeTimeout = write
	}
}

func WithPingInterval(interval time.Duration) Option {
	return func(c *landmarkClient) {
		c.pingInterval = interval
	}
}

// NewLandmarkClient builds a client for AI_FACE_LANDMARK_URL. Nothing is dialed until the
// first LoadModels call.
func NewLandmarkClient(log *logrus.Logger, validate *validator.Validate, opts ...Option) ILandmarkClient {
	client := &landmarkClient{
		url:          getLandmarkURL(),
		models:       getLandmarkModels(),
		done:         make(chan struct{}),
		log:          log,
		validator:    validate,
		pingInterval: 30 * time.Second,
		readTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

func (c *landmarkClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *landmarkClient) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.ready
}

// LoadModels connects to the landmark service and asks it to load the detector models. It
// returns immediately when a previous call already succeeded on the live connection.
func (c *landmarkClient) LoadModels(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.ready {
		return nil
	}

	if err := c.connectLocked(ctx); err != nil {
		return response.Wrap(gaze.ErrModelLoad, "%v", err)
	}

	if err := c.handshakeLocked(ctx); err != nil {
		c.dropLocked()
		return response.Wrap(gaze.ErrModelLoad, "%v", err)
	}

	c.ready = true
	c.log.WithFields(logrus.Fields{
		"url":    c.url,
		"models": c.models,
	}).Info("Face landmark models loaded")

	return nil
}

func (c *landmarkClient) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	c.log.Infof("Connecting to face landmark service at %s", c.url)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	c.conn = conn
	c.ready = false

	go c.keepAlive(conn)

	return nil
}

func (c *landmarkClient) handshakeLocked(ctx context.Context) error {
	payload, err := json.Marshal(loadModelsRequest{Action: "load_models", Models: c.models})
	if err != nil {
		return err
	}

	message, err := c.roundTripLocked(ctx, websocket.TextMessage, payload)
	if err != nil {
		return err
	}

	var reply loadModelsReply
	if err := json.Unmarshal(message, &reply); err != nil {
		return fmt.Errorf("error unmarshaling load reply: %w", err)
	}

	if err := c.validator.Struct(reply); err != nil {
		return fmt.Errorf("invalid load reply: %w", err)
	}

	if reply.Status != "ready" {
		return fmt.Errorf("landmark service refused to load models: %s", reply.Error)
	}

	return nil
}

// DetectSingleFace sends one frame and returns the eye landmarks of the single detected face,
// or nil when no face was found.
func (c *landmarkClient) DetectSingleFace(ctx context.Context, frame entity.Frame) (*entity.DetectionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.ready {
		// the connection was lost since the models were loaded
		if err := c.connectLocked(ctx); err != nil {
			return nil, response.Wrap(gaze.ErrDetectorUnavailable, "%v", err)
		}
		if err := c.handshakeLocked(ctx); err != nil {
			c.dropLocked()
			return nil, response.Wrap(gaze.ErrDetectorUnavailable, "%v", err)
		}
		c.ready = true
	}

	c.log.WithFields(logrus.Fields{
		"session_id": contextPkg.GetSessionID(ctx),
		"bytes":      len(frame.Data),
	}).Debug("Sending face frame")

	message, err := c.roundTripLocked(ctx, websocket.BinaryMessage, frame.Data)
	if err != nil {
		return nil, response.Wrap(gaze.ErrDetectorUnavailable, "%v", err)
	}

	var reply landmarkReply
	if err := json.Unmarshal(message, &reply); err != nil {
		return nil, fmt.Errorf("error unmarshaling landmark reply: %w", err)
	}

	if reply.Error != "" {
		return nil, fmt.Errorf("landmark service error: %s", reply.Error)
	}

	if reply.Face != nil {
		c.log.Debugf("Landmarks received: left_eye=%d right_eye=%d points",
			len(reply.Face.LeftEye), len(reply.Face.RightEye))
	}

	return reply.Face, nil
}

func (c *landmarkClient) roundTripLocked(ctx context.Context, messageType int, payload []byte) ([]byte, error) {
	conn := c.conn

	conn.SetWriteDeadline(c.deadline(ctx, c.writeTimeout))
	if err := conn.WriteMessage(messageType, payload); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("error sending message: %w", err)
	}

	conn.SetReadDeadline(c.deadline(ctx, c.readTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("error reading message: %w", err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	return message, nil
}

func (c *landmarkClient) deadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

func (c *landmarkClient) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.ready = false
}

func (c *landmarkClient) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Warnf("Ping failed for face landmark service, marking connection as dead: %v", err)
			c.dropLocked()
			c.mu.Unlock()
			return
		}

		c.mu.Unlock()
	}
}

func (c *landmarkClient) CloseConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
	default:
		close(c.done)
	}

	c.dropLocked()
}

func getLandmarkURL() string {
	url := os.Getenv("AI_FACE_LANDMARK_URL")
	if url == "" {
		url = defaultLandmarkURL
	}
	return url
}

func getLandmarkModels() []string {
	raw := os.Getenv("AI_FACE_LANDMARK_MODELS")
	if raw == "" {
		raw = defaultModels
	}

	var models []string
	for _, m := range strings.Split(raw, ",") {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	return models
}
