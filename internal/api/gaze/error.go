package gaze

import (
	"GazeGate/pkg/response"
	"net/http"
)

var (
	ErrInvalidInput        = response.NewError(http.StatusUnprocessableEntity, "invalid detector output")
	ErrInvalidFrame        = response.NewError(http.StatusBadRequest, "invalid video frame")
	ErrModelLoad           = response.NewError(http.StatusServiceUnavailable, "failed to load face landmark models")
	ErrDetectorUnavailable = response.NewError(http.StatusServiceUnavailable, "face landmark service unavailable")
	ErrSessionNotFound     = response.NewError(http.StatusNotFound, "gaze session not found")
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
	ErrBadRequest          = response.NewError(http.StatusBadRequest, "bad request")
)
