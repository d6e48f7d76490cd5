package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gwillem/scara/pkg/arbiter"
	"github.com/gwillem/scara/pkg/kinematics"
	"github.com/gwillem/scara/pkg/trajectory"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps a command error onto an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, arbiter.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, arbiter.ErrBusy), errors.Is(err, arbiter.ErrInterrupted), errors.Is(err, arbiter.ErrEmptyRoutine):
		return http.StatusConflict
	case errors.Is(err, kinematics.ErrUnreachable), errors.Is(err, trajectory.ErrSingularity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, arbiter.ErrEmergencyStopped):
		return http.StatusLocked
	}
	return http.StatusInternalServerError
}
