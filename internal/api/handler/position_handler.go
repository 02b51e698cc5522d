package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"trackgate/internal/core/model"
)

const defaultPositionLimit = 100

// PositionLookup is the read side of the session backend.
type PositionLookup interface {
	LookupDev(ctx context.Context, devID string, limit int) ([]*model.Position, error)
}

type PositionHandler struct {
	positions PositionLookup
}

func NewPositionHandler(positions PositionLookup) *PositionHandler {
	return &PositionHandler{positions: positions}
}

func (h *PositionHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		http.Error(w, "Device ID required", http.StatusBadRequest)
		return
	}
	limit := defaultPositionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	positions, err := h.positions.LookupDev(r.Context(), deviceID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []*model.Position{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(positions)
}

func (h *PositionHandler) GetLatestPosition(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		http.Error(w, "Device ID required", http.StatusBadRequest)
		return
	}

	positions, err := h.positions.LookupDev(r.Context(), deviceID, 1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if len(positions) == 0 {
		http.Error(w, "No position found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(positions[0])
}
