package handlers

import (
	"log"
	"net/http"

	"toolshed/usage"
)

// UsageHandler returns the usage counters as JSON.
func UsageHandler(sink usage.Sink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := sink.Snapshot(r.Context())
		if err != nil {
			log.Printf("usage: snapshot: %v", err)
			http.Error(w, "Usage data unavailable", http.StatusInternalServerError)
			return
		}
		if snap.Visits == nil {
			snap.Visits = map[string]int64{}
		}
		if snap.KnownTools == nil {
			snap.KnownTools = []string{}
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
