package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tradelic.app/cloud/internal/keygen"
	"tradelic.app/cloud/internal/logger"
	"tradelic.app/cloud/internal/validate"
	"tradelic.app/cloud/models"
	"tradelic.app/cloud/storage"
)

func (s *Server) ListLicenses(w http.ResponseWriter, r *http.Request) {
	filters := storage.Filters{
		Status:    r.URL.Query().Get("status"),
		RobotName: r.URL.Query().Get("robot_name"),
	}

	raw, err := s.Storage.ListLicenses(r.Context(), filters)
	if err != nil {
		logger.Error("failed to list licenses", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list licenses")
		return
	}

	now := time.Now()
	licenses := make([]models.License, 0, len(raw))
	for _, rl := range raw {
		licenses = append(licenses, models.NewLicense(rl, now))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"licenses": licenses,
		"count":    len(licenses),
	})
}

func (s *Server) GetLicense(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	raw, err := s.Storage.GetLicense(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load license")
		return
	}
	if raw == nil {
		writeError(w, http.StatusNotFound, "LICENSE_NOT_FOUND", "License not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"license": models.NewLicense(*raw, time.Now()),
	})
}

func (s *Server) CreateLicense(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	if req.Months == 0 {
		req.Months = 1
	}

	if err := validate.CreateLicense(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	now := time.Now()
	key := keygen.New(keygen.Prefix(req.RobotName, req.Universal, s.Config.KeyPrefix))

	robotName := req.RobotName
	if req.Universal {
		robotName = ""
	}

	lic := &models.RawLicense{
		LicenseKey:     key,
		ClientName:     req.ClientName,
		ClientContact:  req.ClientContact,
		ClientTelegram: req.ClientTelegram,
		RobotName:      robotName,
		Months:         req.Months,
		Notes:          req.Notes,
		Status:         models.StatusCreated,
		CreatedDate:    models.FormatDate(now),
	}

	if err := s.Storage.CreateLicense(r.Context(), lic); err != nil {
		logger.Error("failed to create license", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create license")
		return
	}

	kind := "universal"
	if robotName != "" {
		kind = "for robot " + robotName
	}
	logger.Info("license created", map[string]interface{}{
		"license_key": key,
		"client":      req.ClientName,
	})
	s.logEvent(r.Context(), models.EventLicenseCreated, key, robotName, req.ClientName,
		"Created "+kind+" license", models.PriorityNormal, nil)

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"license_key": key,
		"license":     models.NewLicense(*lic, now),
	})
}

func (s *Server) UpdateLicense(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req models.UpdateLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	if err := validate.UpdateLicense(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	fields := make(map[string]string)
	if req.ClientName != nil {
		fields["client_name"] = *req.ClientName
	}
	if req.ClientContact != nil {
		fields["client_contact"] = *req.ClientContact
	}
	if req.ClientTelegram != nil {
		fields["client_telegram"] = *req.ClientTelegram
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}

	if err := s.Storage.UpdateLicense(r.Context(), key, fields); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "LICENSE_NOT_FOUND", "License not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update license")
		return
	}

	logger.Info("license updated", map[string]interface{}{"license_key": key})
	s.logEvent(r.Context(), models.EventLicenseUpdated, key, "", "",
		"License details updated", models.PriorityNormal, nil)

	raw, err := s.Storage.GetLicense(r.Context(), key)
	if err != nil || raw == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"license": models.NewLicense(*raw, time.Now()),
	})
}

func (s *Server) ExtendLicense(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req models.ExtendLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	if err := validate.ExtendLicense(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_MONTHS", err.Error())
		return
	}

	raw, err := s.Storage.GetLicense(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load license")
		return
	}
	if raw == nil {
		writeError(w, http.StatusNotFound, "LICENSE_NOT_FOUND", "License not found")
		return
	}

	// Extend from the current expiry while it is still in the future,
	// from today once it has lapsed.
	now := time.Now()
	lic := models.NewLicense(*raw, now)
	base := now
	if lic.ExpiryDate != nil && lic.ExpiryDate.After(now) {
		base = *lic.ExpiryDate
	}
	newExpiry := base.AddDate(0, req.Months, 0)

	// Extending an expired license makes it active again.
	newStatus := ""
	if lic.Status == models.StatusExpired {
		newStatus = models.StatusActive
	}

	if err := s.Storage.SetExpiry(r.Context(), key, newExpiry, newStatus); err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to extend license")
		return
	}

	logger.Info("license extended", map[string]interface{}{
		"license_key": key,
		"months":      req.Months,
	})
	s.logEvent(r.Context(), models.EventLicenseExtended, key, lic.RobotName, lic.ClientName,
		"License extended", models.PriorityNormal, map[string]string{
			"new_expiry": models.FormatDate(newExpiry),
		})

	resp := map[string]any{
		"success":      true,
		"months_added": req.Months,
		"new_expiry":   models.FormatDate(newExpiry),
	}
	if fresh, err := s.Storage.GetLicense(r.Context(), key); err == nil && fresh != nil {
		resp["license"] = models.NewLicense(*fresh, now)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) BlockLicense(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req models.BlockLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	newStatus := models.StatusActive
	eventType := models.EventLicenseUnblocked
	description := "License unblocked"
	if req.Blocked {
		newStatus = models.StatusBlocked
		eventType = models.EventLicenseBlocked
		description = "License blocked by administrator"
	}

	if err := s.Storage.SetStatus(r.Context(), key, newStatus); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "LICENSE_NOT_FOUND", "License not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to change block status")
		return
	}

	logger.Info("license block status changed", map[string]interface{}{
		"license_key": key,
		"blocked":     req.Blocked,
	})
	s.logEvent(r.Context(), eventType, key, "", "", description, models.PriorityNormal, nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"blocked": req.Blocked,
	})
}

func (s *Server) DeleteLicense(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	if err := s.Storage.DeleteLicense(r.Context(), key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "LICENSE_NOT_FOUND", "License not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete license")
		return
	}

	logger.Info("license deleted", map[string]interface{}{"license_key": key})
	s.logEvent(r.Context(), models.EventLicenseDeleted, key, "", "",
		"License deleted by administrator", models.PriorityHigh, nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"deleted": true,
	})
}
