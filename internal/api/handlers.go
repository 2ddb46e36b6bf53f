package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lumihe/slotbot/internal/slot"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.db.FulfillmentRooms(r.Context())
	if err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	intake, err := a.db.IntakeRooms(r.Context())
	if err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	st, err := a.svc.Status(r.Context())
	if err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"time":              time.Now().UTC().Format(time.RFC3339),
		"intake_rooms":      len(intake),
		"fulfillment_rooms": len(rooms),
		"slots":             st.Total,
		"open_slots":        st.Open,
	})
}

type slotView struct {
	ID       string `json:"id"`
	Label    int    `json:"label"`
	Status   string `json:"status"`
	QueuePos int64  `json:"queue_position"`
	Room     string `json:"room"`
}

func slotViews(slots []slot.Slot) []slotView {
	out := make([]slotView, 0, len(slots))
	for _, sl := range slots {
		out = append(out, slotView{
			ID:       sl.ID,
			Label:    sl.Label,
			Status:   string(sl.Status),
			QueuePos: sl.QueuePos,
			Room:     sl.AffinityRoom,
		})
	}
	return out
}

func (a *API) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.Status(r.Context())
	if err != nil {
		http.Error(w, "failed to load queue status", http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"total":        st.Total,
		"open":         st.Open,
		"closed":       st.Closed,
		"max_position": st.MaxPosition,
	}
	if st.Current != nil {
		resp["current_label"] = st.Current.Label
	}
	if st.Next != nil {
		resp["next_label"] = st.Next.Label
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListSlots(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.Status(r.Context())
	if err != nil {
		http.Error(w, "failed to load slots", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"slots": slotViews(st.Order),
	})
}

func (a *API) handleReopenAll(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.ReopenAll(r.Context()); err != nil {
		http.Error(w, "failed to reopen slots", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "all slots reopened"})
}

func (a *API) handleResetQueue(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.ResetQueue(r.Context()); err != nil {
		http.Error(w, "failed to reset queue", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "queue reset"})
}

func (a *API) handleGetForwarding(w http.ResponseWriter, r *http.Request) {
	enabled, err := a.db.ForwardingEnabled(r.Context())
	if err != nil {
		http.Error(w, "failed to load forwarding state", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (a *API) handleSetForwarding(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.db.SetForwarding(r.Context(), body.Enabled); err != nil {
		http.Error(w, "failed to update forwarding state", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": body.Enabled})
}

func (a *API) handleSetPercentage(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]

	var body struct {
		Percentage int `json:"percentage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Percentage < 0 || body.Percentage > 100 {
		http.Error(w, "percentage must be between 0 and 100", http.StatusBadRequest)
		return
	}
	if err := a.db.SetRoomPercentage(r.Context(), roomID, body.Percentage); err != nil {
		http.Error(w, "room is not registered", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"room_id":    roomID,
		"percentage": body.Percentage,
	})
}

func (a *API) handleSetClickMode(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.db.SetClickMode(r.Context(), roomID, body.Enabled); err != nil {
		http.Error(w, "room is not registered", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"room_id": roomID,
		"enabled": body.Enabled,
	})
}
