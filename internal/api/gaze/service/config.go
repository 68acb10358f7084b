package gazeService

import "time"

// Thresholds bound the eye midpoint distance from the frame center. Both bounds are
// exclusive. With ScaleWithFrame the bounds are expressed for a ReferenceWidth x
// ReferenceHeight frame and scaled to the actual frame size.
type Thresholds struct {
	X               float64 `validate:"gt=0"`
	Y               float64 `validate:"gt=0"`
	ScaleWithFrame  bool
	ReferenceWidth  float64 `validate:"gt=0"`
	ReferenceHeight float64 `validate:"gt=0"`
}

type Config struct {
	Thresholds       Thresholds
	ConfirmThreshold int           `validate:"gte=1"`
	PollInterval     time.Duration `validate:"gt=0"`
	RedirectRoute    string        `validate:"required,startswith=/"`
	StatusTTL        time.Duration `validate:"gte=0"`
	FrameRateLimit   float64       `validate:"gt=0"`
	FrameBurst       int           `validate:"gte=1"`
}

func DefaultConfig() Config {
	return Config{
		Thresholds: Thresholds{
			X:               50,
			Y:               100,
			ReferenceWidth:  640,
			ReferenceHeight: 480,
		},
		ConfirmThreshold: 10,
		PollInterval:     time.Second,
		RedirectRoute:    "/Home",
		StatusTTL:        10 * time.Minute,
		FrameRateLimit:   15,
		FrameBurst:       5,
	}
}
