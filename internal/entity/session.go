package entity

type SessionPhase string

const (
	SessionPhaseLoading   SessionPhase = "LOADING"
	SessionPhaseReady     SessionPhase = "READY"
	SessionPhaseConfirmed SessionPhase = "CONFIRMED"
	SessionPhaseFailed    SessionPhase = "FAILED"
)

var terminalPhases = map[SessionPhase]bool{
	SessionPhaseConfirmed: true,
	SessionPhaseFailed:    true,
}

func (p SessionPhase) String() string {
	return string(p)
}

func (p SessionPhase) IsTerminal() bool {
	return terminalPhases[p]
}

// SessionStats are logged when a gaze session ends.
type SessionStats struct {
	SessionID    string `json:"session_id"`
	Ticks        int    `json:"ticks"`
	SkippedTicks int    `json:"skipped_ticks"`
	Detections   int    `json:"detections"`
	Errors       int    `json:"errors"`
	Frames       int    `json:"frames"`
}
