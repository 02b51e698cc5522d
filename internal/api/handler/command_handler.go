package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"trackgate/internal/api/util"
	"trackgate/internal/queue"
)

// Commander queues device commands.
type Commander interface {
	Push(job queue.Job) string
}

type CommandHandler struct {
	commander Commander
	logger    *log.Logger
}

func NewCommandHandler(commander Commander, logger *log.Logger) *CommandHandler {
	return &CommandHandler{commander: commander, logger: logger}
}

type commandRequest struct {
	DeviceID string   `json:"deviceId"` // empty or "0" broadcasts
	Command  string   `json:"command"`
	Args     []string `json:"args,omitempty"`
	Timeout  string   `json:"timeout,omitempty"` // Go duration, e.g. "2m"; "0" drops when offline
}

type commandResponse struct {
	JobID     string `json:"jobId"`
	Broadcast bool   `json:"broadcast"`
}

func (h *CommandHandler) Push(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Command = strings.TrimSpace(req.Command)
	if req.Command == "" {
		http.Error(w, "Command required", http.StatusBadRequest)
		return
	}

	job := queue.Job{DevID: req.DeviceID, Command: req.Command, Args: req.Args, Timeout: queue.DefaultTimeout}
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d < 0 {
			http.Error(w, "Invalid timeout", http.StatusBadRequest)
			return
		}
		job.Timeout = d
	}

	id := h.commander.Push(job)
	h.logger.Printf("Command %s for %q queued by %s as job %s", job.Command, job.DevID, util.Subject(r.Context()), id)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(commandResponse{JobID: id, Broadcast: job.IsBroadcast()})
}
