package server

import (
	"encoding/json"
	"net/http"

	"github.com/ipcluster/controller/internal/controller"
	logpkg "github.com/ipcluster/controller/pkg/log"
)

// EngineServer serves the engine-facing capability: registration,
// heartbeats, and the work loop of pulling tasks and pushing results.
type EngineServer struct {
	*Server
}

// NewEngine builds the engine listener over the shared backend.
func NewEngine(backend *controller.Controller, binding Binding, secret string, logger logpkg.Logger) *EngineServer {
	s := &EngineServer{Server: newServer(backend, binding, logger, "engine-server")}
	mux := s.mux()

	mux.HandleFunc("/v1/engines/register", requireSecret(secret, s.handleRegister))
	mux.HandleFunc("/v1/engines/heartbeat", requireSecret(secret, s.handleHeartbeat))
	mux.HandleFunc("/v1/engines/unregister", requireSecret(secret, s.handleUnregister))
	mux.HandleFunc("/v1/tasks/pull", requireSecret(secret, s.handlePull))
	mux.HandleFunc("/v1/tasks/result", requireSecret(secret, s.handlePushResult))
	return s
}

type registerReq struct {
	Hostname     string   `json:"hostname"`
	Capabilities []string `json:"capabilities"`
}

func (s *EngineServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	reg := s.backend.RegisterEngine(req.Hostname, req.Capabilities)
	writeJSON(w, http.StatusCreated, reg)
}

type engineReq struct {
	EngineID string `json:"engine_id"`
}

func (s *EngineServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req engineReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.backend.Heartbeat(req.EngineID); err != nil {
		writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *EngineServer) handleUnregister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req engineReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.backend.UnregisterEngine(req.EngineID); err != nil {
		writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *EngineServer) handlePull(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req engineReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	task, err := s.backend.PullTask(req.EngineID)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type resultReq struct {
	EngineID string `json:"engine_id"`
	TaskID   string `json:"task_id"`
	Result   []byte `json:"result"`
	Error    string `json:"error"`
}

func (s *EngineServer) handlePushResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req resultReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.backend.PushResult(req.EngineID, req.TaskID, req.Result, req.Error); err != nil {
		writeBackendError(w, err)
		return
	}
	s.logger.Debug("result stored", logpkg.Str("task_id", req.TaskID))
	w.WriteHeader(http.StatusNoContent)
}
