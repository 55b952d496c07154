package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"textsync/server/internal/store"
	"textsync/server/internal/ws"
)

// Operational HTTP surface: health, stats, and the set of active documents.
// Not part of the sync protocol; clients bootstrap elsewhere.
type API struct {
	hub   *ws.Hub
	store store.Store
}

func New(hub *ws.Hub, st store.Store) *API {
	return &API{
		hub:   hub,
		store: st,
	}
}

// Router returns the HTTP routes for the operational surface.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", a.StatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/documents", a.DocumentsHandler).Methods(http.MethodGet)
	return r
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	storeStatus := "ok"
	status := http.StatusOK
	if err := a.store.Ping(ctx); err != nil {
		storeStatus = "unavailable"
		status = http.StatusServiceUnavailable
	}

	jsonResponse(w, status, map[string]interface{}{
		"status":    "ok",
		"store":     storeStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"active_documents": a.hub.RoomCount(),
		"active_sessions":  a.hub.SessionCount(),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

type DocumentResponse struct {
	ID             string `json:"id"`
	ActiveSessions int    `json:"active_sessions"`
}

func (a *API) DocumentsHandler(w http.ResponseWriter, r *http.Request) {
	active := a.hub.ActiveDocuments()

	documents := make([]DocumentResponse, 0, len(active))
	for id, count := range active {
		documents = append(documents, DocumentResponse{ID: id, ActiveSessions: count})
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"documents": documents,
	})
}
