package utils

import (
	"bytes"
	"crypto/rand"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrEmptyFrame = errors.New("empty frame")

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	DecodeFrameDimensions(data []byte) (int, int, error)
}

type utils struct {
	maxFrameSize int
}

func New() IUtils {
	return &utils{
		maxFrameSize: 5 * 1024 * 1024,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// DecodeFrameDimensions reads the width and height of a JPEG or PNG frame without decoding
// the pixels.
func (u *utils) DecodeFrameDimensions(data []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrEmptyFrame
	}

	if len(data) > u.maxFrameSize {
		return 0, 0, errors.New("frame size exceeds limit")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, errors.New("frame has no pixels")
	}

	return cfg.Width, cfg.Height, nil
}
