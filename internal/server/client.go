package server

import (
	"encoding/json"
	"net/http"

	"github.com/ipcluster/controller/internal/controller"
	logpkg "github.com/ipcluster/controller/pkg/log"
)

// Capability names advertised in connection files.
const (
	TaskCapability        = "task"
	MultiEngineCapability = "multiengine"
	EngineCapability      = "engine"
)

// ClientSecrets holds the bearer secret per client-facing capability.
type ClientSecrets struct {
	Task        string
	MultiEngine string
}

// ClientServer serves the client-facing capabilities: the task chain for
// submitting work and the multiengine chain for addressing the engine
// set directly.
type ClientServer struct {
	*Server
}

// NewClient builds the client listener over the shared backend.
func NewClient(backend *controller.Controller, binding Binding, secrets ClientSecrets, logger logpkg.Logger) *ClientServer {
	s := &ClientServer{Server: newServer(backend, binding, logger, "client-server")}
	mux := s.mux()

	mux.HandleFunc("/v1/tasks/submit", requireSecret(secrets.Task, s.handleSubmit))
	mux.HandleFunc("/v1/tasks/status", requireSecret(secrets.Task, s.handleStatus))
	mux.HandleFunc("/v1/tasks/result", requireSecret(secrets.Task, s.handleResult))
	mux.HandleFunc("/v1/queue/status", requireSecret(secrets.Task, s.handleQueueStatus))

	mux.HandleFunc("/v1/engines", requireSecret(secrets.MultiEngine, s.handleListEngines))
	mux.HandleFunc("/v1/engines/broadcast", requireSecret(secrets.MultiEngine, s.handleBroadcast))
	return s
}

type submitReq struct {
	Payload []byte            `json:"payload"`
	Meta    map[string]string `json:"meta"`
}

func (s *ClientServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	taskID := s.backend.SubmitTask(req.Payload, req.Meta)
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *ClientServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	state, err := s.backend.TaskStatus(r.URL.Query().Get("id"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(state)})
}

func (s *ClientServer) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	task, err := s.backend.TaskResult(r.URL.Query().Get("id"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *ClientServer) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.backend.QueueStatus())
}

func (s *ClientServer) handleListEngines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"engines": s.backend.ListEngines()})
}

func (s *ClientServer) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	ids := s.backend.Broadcast(req.Payload, req.Meta)
	writeJSON(w, http.StatusAccepted, map[string]any{"task_ids": ids})
}
