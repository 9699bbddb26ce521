package handlers

import (
	"net/http"
	"strconv"
	"time"

	"tradelic.app/cloud/models"
	"tradelic.app/cloud/storage"
)

// Statistics aggregates the whole license fleet in one pass.
func (s *Server) Statistics(w http.ResponseWriter, r *http.Request) {
	raws, err := s.Storage.ListLicenses(r.Context(), storage.Filters{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load licenses")
		return
	}

	now := time.Now()
	licenses := make([]models.License, 0, len(raws))
	for _, raw := range raws {
		licenses = append(licenses, models.NewLicense(raw, now))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"statistics": models.Aggregate(licenses, now),
	})
}

// Events lists the security and lifecycle event log, newest first.
// ?days= bounds the window, default one week.
func (s *Server) Events(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "INVALID_DAYS", "days must be a positive integer")
			return
		}
		days = n
	}

	events, err := s.Storage.ListEvents(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"events":  events,
		"count":   len(events),
	})
}
