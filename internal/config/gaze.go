package config

import (
	gazeService "GazeGate/internal/api/gaze/service"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// NewGazeConfig reads the GAZE_* variables on top of the defaults and validates the result.
func NewGazeConfig(validate *validator.Validate) (gazeService.Config, error) {
	cfg := gazeService.DefaultConfig()

	var err error
	if cfg.Thresholds.X, err = envFloat("GAZE_X_THRESHOLD", cfg.Thresholds.X); err != nil {
		return cfg, err
	}
	if cfg.Thresholds.Y, err = envFloat("GAZE_Y_THRESHOLD", cfg.Thresholds.Y); err != nil {
		return cfg, err
	}
	if cfg.Thresholds.ScaleWithFrame, err = envBool("GAZE_SCALE_WITH_FRAME", cfg.Thresholds.ScaleWithFrame); err != nil {
		return cfg, err
	}
	if cfg.Thresholds.ReferenceWidth, err = envFloat("GAZE_REFERENCE_WIDTH", cfg.Thresholds.ReferenceWidth); err != nil {
		return cfg, err
	}
	if cfg.Thresholds.ReferenceHeight, err = envFloat("GAZE_REFERENCE_HEIGHT", cfg.Thresholds.ReferenceHeight); err != nil {
		return cfg, err
	}
	if cfg.ConfirmThreshold, err = envInt("GAZE_CONFIRM_THRESHOLD", cfg.ConfirmThreshold); err != nil {
		return cfg, err
	}

	pollMs, err := envInt("GAZE_POLL_INTERVAL_MS", int(cfg.PollInterval/time.Millisecond))
	if err != nil {
		return cfg, err
	}
	cfg.PollInterval = time.Duration(pollMs) * time.Millisecond

	ttl, err := envInt("GAZE_STATUS_TTL_SECONDS", int(cfg.StatusTTL/time.Second))
	if err != nil {
		return cfg, err
	}
	cfg.StatusTTL = time.Duration(ttl) * time.Second

	if cfg.FrameRateLimit, err = envFloat("GAZE_FRAME_RATE_LIMIT", cfg.FrameRateLimit); err != nil {
		return cfg, err
	}
	if cfg.FrameBurst, err = envInt("GAZE_FRAME_BURST", cfg.FrameBurst); err != nil {
		return cfg, err
	}

	if route := os.Getenv("GAZE_REDIRECT_ROUTE"); route != "" {
		cfg.RedirectRoute = route
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid gaze configuration: %w", err)
	}

	return cfg, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
