// internal/handlers/rooms.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/jason-s-yu/bingo/internal/room"
	"github.com/sirupsen/logrus"
)

// RoomReader exposes read-only room state.
type RoomReader interface {
	Snapshot(ctx context.Context, code string) (room.Snapshot, error)
	RoomCount(ctx context.Context) (int, error)
}

// RoomHandler serves GET /rooms/{code} with the public snapshot. Boards are never included.
func RoomHandler(logger *logrus.Logger, rooms RoomReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := room.NormalizeCode(r.PathValue("code"))
		if !room.ValidCode(code) {
			http.Error(w, "invalid room code", http.StatusBadRequest)
			return
		}
		snap, err := rooms.Snapshot(r.Context(), code)
		if err != nil {
			if errors.Is(err, room.ErrRoomNotFound) {
				http.Error(w, "room not found", http.StatusNotFound)
				return
			}
			logger.Warnf("snapshot of %s failed: %v", code, err)
			http.Error(w, "room state unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// HealthHandler reports liveness and the number of open rooms.
func HealthHandler(rooms RoomReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := rooms.RoomCount(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "stopped"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "rooms": n})
	}
}
