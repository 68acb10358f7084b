package gazeService

import (
	"GazeGate/internal/api/gaze"
	"GazeGate/internal/entity"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	loadErr  error
	delay    time.Duration
	release  chan struct{}
	respond  func(call int) (*entity.DetectionResult, error)
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (d *fakeDetector) LoadModels(_ context.Context) error {
	return d.loadErr
}

func (d *fakeDetector) DetectSingleFace(_ context.Context, _ entity.Frame) (*entity.DetectionResult, error) {
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		seen := d.maxSeen.Load()
		if n <= seen || d.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	call := int(d.calls.Add(1))
	if d.release != nil {
		<-d.release
	}
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.respond == nil {
		return nil, nil
	}
	return d.respond(call)
}

type fakeSource struct {
	frame entity.Frame
	ready bool
}

func (s *fakeSource) Latest() (entity.Frame, bool) {
	return s.frame, s.ready
}

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []gaze.SessionStatus
}

func (p *recordingPublisher) Publish(_ context.Context, status gaze.SessionStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status)
	return nil
}

func (p *recordingPublisher) all() []gaze.SessionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gaze.SessionStatus(nil), p.statuses...)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = 2 * time.Millisecond
	return cfg
}

func readySource() *fakeSource {
	return &fakeSource{
		frame: entity.Frame{Data: []byte{0x1}, Dimensions: frame320},
		ready: true,
	}
}

func centered() *entity.DetectionResult {
	return &entity.DetectionResult{LeftEye: eyeAt(160, 120, 6), RightEye: eyeAt(160, 120, 6)}
}

func offCenter() *entity.DetectionResult {
	return &entity.DetectionResult{LeftEye: eyeAt(100, 120, 6), RightEye: eyeAt(100, 120, 6)}
}

func runSession(t *testing.T, s *Session, timeout time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Run(ctx)
}

func TestSession_ConfirmsAfterThreshold(t *testing.T) {
	detector := &fakeDetector{respond: func(int) (*entity.DetectionResult, error) { return centered(), nil }}
	pub := &recordingPublisher{}
	cfg := testConfig()
	cfg.ConfirmThreshold = 3

	s := NewSession("s1", cfg, detector, readySource(), pub, testLogger())
	require.NoError(t, runSession(t, s, 5*time.Second))

	statuses := pub.all()
	require.Len(t, statuses, 5)

	assert.Equal(t, entity.SessionPhaseLoading, statuses[0].Phase)
	assert.False(t, statuses[0].ModelsLoaded)
	assert.Equal(t, entity.SessionPhaseReady, statuses[1].Phase)
	assert.True(t, statuses[1].ModelsLoaded)

	for i, st := range statuses[2:] {
		assert.Equal(t, i+1, st.LookDuration)
		assert.Equal(t, 3-(i+1), st.Remaining)
		assert.True(t, st.IsLookingAtCamera)
	}

	last := statuses[4]
	assert.Equal(t, entity.SessionPhaseConfirmed, last.Phase)
	assert.True(t, last.Confirmed)
	assert.Equal(t, "/Home", last.Redirect)
	assert.Equal(t, "s1", last.SessionID)
	assert.Equal(t, entity.SessionPhaseConfirmed, s.Phase())
	assert.Equal(t, 3, s.State().ConsecutiveLookCount)
}

func TestSession_InterruptedRunNeedsFreshLooks(t *testing.T) {
	detector := &fakeDetector{respond: func(call int) (*entity.DetectionResult, error) {
		if call == 10 {
			return offCenter(), nil
		}
		return centered(), nil
	}}
	pub := &recordingPublisher{}

	s := NewSession("s2", testConfig(), detector, readySource(), pub, testLogger())
	require.NoError(t, runSession(t, s, 5*time.Second))

	assert.Equal(t, 20, s.Stats().Detections)

	statuses := pub.all()
	tickStatuses := statuses[2:]
	require.Len(t, tickStatuses, 20)
	assert.Equal(t, 9, tickStatuses[8].LookDuration)
	assert.Equal(t, 0, tickStatuses[9].LookDuration)
	assert.False(t, tickStatuses[9].IsLookingAtCamera)
	require.NotNil(t, tickStatuses[9].LastOffset)
	assert.Equal(t, 60.0, tickStatuses[9].LastOffset.X)
	for _, st := range tickStatuses[:19] {
		assert.False(t, st.Confirmed)
	}
	assert.True(t, tickStatuses[19].Confirmed)
}

func TestSession_NoFaceNeverConfirms(t *testing.T) {
	detector := &fakeDetector{}
	pub := &recordingPublisher{}

	s := NewSession("s3", testConfig(), detector, readySource(), pub, testLogger())
	err := runSession(t, s, 100*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	statuses := pub.all()
	require.Greater(t, len(statuses), 2)
	for _, st := range statuses {
		assert.Equal(t, 0, st.LookDuration)
		assert.False(t, st.Confirmed)
		assert.Nil(t, st.LastOffset)
	}
	assert.Equal(t, entity.SessionPhaseReady, s.Phase())
}

func TestSession_DetectionErrorResetsCount(t *testing.T) {
	detector := &fakeDetector{respond: func(call int) (*entity.DetectionResult, error) {
		switch call {
		case 3:
			return nil, errors.New("landmark service hiccup")
		case 5:
			return &entity.DetectionResult{LeftEye: eyeAt(160, 120, 3)}, nil
		}
		return centered(), nil
	}}
	pub := &recordingPublisher{}
	cfg := testConfig()
	cfg.ConfirmThreshold = 4

	s := NewSession("s4", cfg, detector, readySource(), pub, testLogger())
	require.NoError(t, runSession(t, s, 5*time.Second))

	var durations []int
	for _, st := range pub.all()[2:] {
		durations = append(durations, st.LookDuration)
	}
	assert.Equal(t, []int{1, 2, 0, 1, 0, 1, 2, 3, 4}, durations)
	assert.Equal(t, 2, s.Stats().Errors)
}

func TestSession_ModelLoadFailure(t *testing.T) {
	detector := &fakeDetector{loadErr: errors.New("network unreachable")}
	pub := &recordingPublisher{}

	s := NewSession("s5", testConfig(), detector, readySource(), pub, testLogger())
	err := runSession(t, s, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, gaze.ErrModelLoad)

	statuses := pub.all()
	require.Len(t, statuses, 2)
	assert.Equal(t, entity.SessionPhaseLoading, statuses[0].Phase)
	assert.Equal(t, entity.SessionPhaseFailed, statuses[1].Phase)
	assert.False(t, statuses[1].ModelsLoaded)
	assert.NotEmpty(t, statuses[1].Error)
	assert.Equal(t, int32(0), detector.calls.Load())
}

func TestSession_AtMostOneDetectionInFlight(t *testing.T) {
	detector := &fakeDetector{delay: 20 * time.Millisecond}
	pub := &recordingPublisher{}

	s := NewSession("s6", testConfig(), detector, readySource(), pub, testLogger())
	_ = runSession(t, s, 150*time.Millisecond)

	assert.Equal(t, int32(1), detector.maxSeen.Load())
	assert.Greater(t, s.Stats().SkippedTicks, 0)
}

func TestSession_WaitsForFrame(t *testing.T) {
	detector := &fakeDetector{}
	pub := &recordingPublisher{}

	s := NewSession("s7", testConfig(), detector, &fakeSource{}, pub, testLogger())
	_ = runSession(t, s, 50*time.Millisecond)

	assert.Equal(t, int32(0), detector.calls.Load())
	assert.Len(t, pub.all(), 2)
	assert.Greater(t, s.Stats().Ticks, 0)
}

func TestSession_NoPublishAfterTeardown(t *testing.T) {
	detector := &fakeDetector{
		release: make(chan struct{}),
		respond: func(int) (*entity.DetectionResult, error) { return centered(), nil },
	}
	pub := &recordingPublisher{}

	s := NewSession("s8", testConfig(), detector, readySource(), pub, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	require.Eventually(t, func() bool { return detector.calls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("session did not stop after cancellation")
	}

	published := len(pub.all())
	close(detector.release)

	require.Eventually(t, func() bool { return detector.inFlight.Load() == 0 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, published, len(pub.all()))
	assert.Equal(t, 0, s.State().ConsecutiveLookCount)
}
