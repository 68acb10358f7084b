package gaze

import (
	"GazeGate/internal/entity"
	"time"
)

// SessionStatus is pushed to the page after every tick and phase change.
type SessionStatus struct {
	SessionID         string              `json:"session_id"`
	Phase             entity.SessionPhase `json:"phase"`
	ModelsLoaded      bool                `json:"models_loaded"`
	IsLookingAtCamera bool                `json:"is_looking_at_camera"`
	LookDuration      int                 `json:"look_duration"`
	Remaining         int                 `json:"remaining"`
	LastOffset        *entity.Offset      `json:"last_offset"`
	Confirmed         bool                `json:"confirmed"`
	Redirect          string              `json:"redirect,omitempty"`
	Error             string              `json:"error,omitempty"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

type SessionStatusRequest struct {
	SessionID string `params:"id" validate:"required,len=26,alphanum"`
}

type SessionStatusResponse struct {
	Data  *SessionStatus `json:"data,omitempty"`
	Error string         `json:"error,omitempty"`
}

type ConfigResponse struct {
	XThreshold       float64 `json:"x_threshold"`
	YThreshold       float64 `json:"y_threshold"`
	ScaleWithFrame   bool    `json:"scale_with_frame"`
	ConfirmThreshold int     `json:"confirm_threshold"`
	PollIntervalMs   int64   `json:"poll_interval_ms"`
	RedirectRoute    string  `json:"redirect_route"`
}

// FrameError is sent back over the websocket when a frame cannot be used.
type FrameError struct {
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}
