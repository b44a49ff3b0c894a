package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"squizy/internal/model"
	"squizy/internal/service"
)

// RoomHandler handles room document endpoints
type RoomHandler struct {
	roomSvc *service.RoomService
	joinURL string
}

// NewRoomHandler creates a new room handler. joinURL is the page players open
// to join; the room code is appended as the "room" query parameter.
func NewRoomHandler(roomSvc *service.RoomService, joinURL string) *RoomHandler {
	return &RoomHandler{
		roomSvc: roomSvc,
		joinURL: joinURL,
	}
}

// Get handles GET /v1/rooms/{code}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	doc, ok, err := h.roomSvc.GetRoom(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Put handles PUT /v1/rooms/{code}
func (h *RoomHandler) Put(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var doc model.Update
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.roomSvc.SetRoom(r.Context(), code, doc); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Patch handles PATCH /v1/rooms/{code}
func (h *RoomHandler) Patch(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var u model.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if u.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	if err := h.roomSvc.PatchRoom(r.Context(), code, u); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Leaderboard handles GET /v1/rooms/{code}/leaderboard
func (h *RoomHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	top := queryInt(r, "top", 20)

	entries, err := h.roomSvc.GetLeaderboard(r.Context(), code, top)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := map[string]interface{}{"leaderboard": entries}
	if team := r.URL.Query().Get("team"); team != "" {
		rank, err := h.roomSvc.GetTeamRank(r.Context(), code, team)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp["team"] = map[string]interface{}{"teamId": team, "rank": rank}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /v1/rooms/{code}
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.roomSvc.DeleteRoom(r.Context(), mux.Vars(r)["code"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QRCode handles GET /v1/rooms/{code}/qr
func (h *RoomHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	code, err := service.NormalizeRoomCode(mux.Vars(r)["code"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	png, err := joinQRCode(joinLink(h.joinURL, code))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// History handles GET /v1/history/{code}
func (h *RoomHandler) History(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	record, err := h.roomSvc.GetHistory(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "no finished game for this room")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// Recent handles GET /v1/history
func (h *RoomHandler) Recent(w http.ResponseWriter, r *http.Request) {
	records, err := h.roomSvc.RecentGames(r.Context(), queryInt(r, "limit", 10))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"games": records})
}

func queryInt(r *http.Request, key string, def int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRoomCode), errors.Is(err, model.ErrInvalidField):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNoRoom):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
