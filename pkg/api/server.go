package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/gwillem/scara/pkg/arbiter"
	"github.com/gwillem/scara/pkg/kinematics"
	"github.com/gwillem/scara/pkg/robot"
	"github.com/gwillem/scara/pkg/status"
)

// Controller is the command surface of the motion arbiter.
type Controller interface {
	SetSpeed(speed int) error
	ManualJog(pose kinematics.JointPose, grip robot.Gripper) error
	GotoCartesian(ctx context.Context, target kinematics.CartesianPoint, kind arbiter.MoveKind) error
	RecordWaypoint(wp robot.Waypoint) (int, error)
	ClearRoutine()
	RunRoutine(ctx context.Context) error
	ToggleEmergencyStop() bool
	Snapshot() status.Snapshot
}

// ServerInfo describes where the controller and the device live.
type ServerInfo struct {
	HTTPAddr  string `json:"http_addr"`
	LocalIP   string `json:"local_ip,omitempty"`
	RobotAddr string `json:"robot_addr"`
}

// Server handles the HTTP API.
type Server struct {
	ctrl   Controller
	hub    *Hub
	info   func() ServerInfo
	logger *zap.SugaredLogger
}

// NewServer returns a server. info may be nil.
func NewServer(ctrl Controller, hub *Hub, info func() ServerInfo, logger *zap.SugaredLogger) *Server {
	if info == nil {
		info = func() ServerInfo { return ServerInfo{} }
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{ctrl: ctrl, hub: hub, info: info, logger: logger}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/server", s.handleServer)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("POST /api/speed", s.handleSpeed)
	mux.HandleFunc("POST /api/jog", s.handleJog)
	mux.HandleFunc("POST /api/goto", s.handleGoto)
	mux.HandleFunc("POST /api/routine/waypoints", s.handleRecord)
	mux.HandleFunc("DELETE /api/routine", s.handleClear)
	mux.HandleFunc("POST /api/routine/run", s.handleRun)
	mux.HandleFunc("POST /api/estop", s.handleEstop)
	return mux
}

type speedRequest struct {
	Speed *int `json:"speed"`
}

type jointRequest struct {
	Q1   *float64 `json:"q1"`
	Q2   *float64 `json:"q2"`
	Z    *float64 `json:"z"`
	Grip *int     `json:"grip"`
}

func (r jointRequest) waypoint() (robot.Waypoint, error) {
	if r.Q1 == nil || r.Q2 == nil || r.Z == nil || r.Grip == nil {
		return robot.Waypoint{}, fmt.Errorf("%w: q1, q2, z and grip are required", arbiter.ErrInvalidInput)
	}
	return robot.Waypoint{
		JointPose: kinematics.JointPose{Q1: *r.Q1, Q2: *r.Q2, Z: *r.Z},
		Gripper:   robot.ParseGripper(*r.Grip),
	}, nil
}

type gotoRequest struct {
	X    *float64 `json:"x"`
	Y    *float64 `json:"y"`
	Z    *float64 `json:"z"`
	Mode string   `json:"mode"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleServer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.info())
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Speed == nil {
		writeError(w, http.StatusBadRequest, "speed is required")
		return
	}
	if err := s.ctrl.SetSpeed(*req.Speed); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleJog(w http.ResponseWriter, r *http.Request) {
	var req jointRequest
	if !s.decode(w, r, &req) {
		return
	}
	wp, err := req.waypoint()
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.ctrl.ManualJog(wp.JointPose, wp.Gripper); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleGoto(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.X == nil || req.Y == nil || req.Z == nil {
		writeError(w, http.StatusBadRequest, "x, y and z are required")
		return
	}
	kind, err := arbiter.ParseMoveKind(req.Mode)
	if err != nil {
		s.fail(w, err)
		return
	}
	target := kinematics.CartesianPoint{X: *req.X, Y: *req.Y, Z: *req.Z}
	// A dropped client must not abandon the arm mid-trajectory.
	if err := s.ctrl.GotoCartesian(context.WithoutCancel(r.Context()), target, kind); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req jointRequest
	if !s.decode(w, r, &req) {
		return
	}
	wp, err := req.waypoint()
	if err != nil {
		s.fail(w, err)
		return
	}
	n, err := s.ctrl.RecordWaypoint(wp)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"routine_length": n})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ClearRoutine()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.RunRoutine(context.WithoutCancel(r.Context())); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleEstop(w http.ResponseWriter, r *http.Request) {
	engaged := s.ctrl.ToggleEmergencyStop()
	writeJSON(w, http.StatusOK, map[string]bool{"estop": engaged})
}

// handleEvents streams hub events as server-sent events until the client
// goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, events := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)
	s.logger.Debugw("event subscriber connected", "id", id)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debugw("event subscriber gone", "id", id)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warnw("encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Errorw("command failed", "error", err)
	}
	writeError(w, code, err.Error())
}
