package handlers

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tradelic.app/cloud/internal/logger"
	"tradelic.app/cloud/internal/version"
	"tradelic.app/cloud/models"
	"tradelic.app/cloud/storage"
)

// Activation denials are business outcomes, not transport failures: they
// go back as 200 with success=false and an error code the robot can show.

func (s *Server) Activate(w http.ResponseWriter, r *http.Request) {
	var req models.ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	if req.LicenseKey == "" || req.AccountNumber == "" {
		logger.Warn("activation rejected: missing parameters")
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "MISSING_PARAMETERS",
			"message": "Required: license_key and account_number",
		})
		return
	}

	applyActivationDefaults(&req)
	ip := clientIP(r)
	masked := logger.MaskKey(req.LicenseKey)

	raw, err := s.Storage.GetLicense(r.Context(), req.LicenseKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Activation failed")
		return
	}
	if raw == nil {
		logger.Warn("activation of unknown license", map[string]interface{}{"key": masked})
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "LICENSE_NOT_FOUND",
			"message": "Invalid license key",
		})
		return
	}

	now := time.Now()
	lic := models.NewLicense(*raw, now)

	if lic.IsBlocked() {
		logger.Warn("blocked license activation attempt", map[string]interface{}{"key": masked})
		s.logEvent(r.Context(), models.EventActivationBlocked, req.LicenseKey, req.RobotName, lic.ClientName,
			"Activation attempt on a blocked license", models.PriorityHigh, map[string]string{"ip": ip})
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "LICENSE_BLOCKED",
			"message": "License is blocked",
		})
		return
	}

	if lic.ExpiryDate != nil && lic.ExpiryDate.Before(now) {
		logger.Warn("expired license activation attempt", map[string]interface{}{"key": masked})
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "LICENSE_EXPIRED",
			"message": "License has expired",
		})
		return
	}

	// A license bound to a robot at creation rejects foreign robots even
	// before its first activation.
	if lic.RobotName != "" && req.RobotName != "" && lic.RobotName != req.RobotName {
		logger.Error("robot mismatch", map[string]interface{}{
			"key":      masked,
			"expected": lic.RobotName,
			"actual":   req.RobotName,
		})
		s.logEvent(r.Context(), models.EventRobotMismatch, req.LicenseKey, req.RobotName, lic.ClientName,
			"Attempt to use license with a different robot", models.PriorityHigh, map[string]string{
				"expected_robot": lic.RobotName,
				"actual_robot":   req.RobotName,
				"ip":             ip,
			})
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "WRONG_ROBOT",
			"message": "License is registered to a different robot",
		})
		return
	}

	// First activation: bind the license to this account.
	if lic.AccountNumber == "" {
		s.activateFirstTime(w, r, &req, raw, now, ip)
		return
	}

	if lic.AccountNumber != req.AccountNumber {
		logger.Error("license theft attempt", map[string]interface{}{
			"key":     masked,
			"account": req.AccountNumber,
		})
		s.logEvent(r.Context(), models.EventTheftAttempt, req.LicenseKey, req.RobotName, lic.ClientName,
			"Attempt to use license from a different account", models.PriorityCritical, map[string]string{
				"expected_account": lic.AccountNumber,
				"actual_account":   req.AccountNumber,
				"ip":               ip,
			})
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "WRONG_ACCOUNT",
			"message": "License is registered to a different account",
		})
		return
	}

	// Robot major-version drift is recorded but tolerated.
	if lic.RobotVersion != "" && req.RobotVersion != "" {
		if ok, err := version.IsCompatible(lic.RobotVersion, req.RobotVersion); err == nil && !ok {
			s.logEvent(r.Context(), models.EventVersionMismatch, req.LicenseKey, req.RobotName, lic.ClientName,
				"Robot major version differs from the bound version", models.PriorityHigh, map[string]string{
					"bound_version":    lic.RobotVersion,
					"reported_version": req.RobotVersion,
					"ip":               ip,
				})
		}
	}

	err = s.Storage.RecordCheck(r.Context(), req.LicenseKey, storage.CheckUpdate{
		IP:              ip,
		Balance:         req.Balance,
		TerminalVersion: req.TerminalVersion,
		AccountOwner:    req.AccountOwner,
		BrokerName:      req.BrokerName,
		AccountType:     req.AccountType,
		CheckedAt:       now,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Activation failed")
		return
	}

	logger.Info("license re-activation check passed", map[string]interface{}{
		"key":       masked,
		"days_left": lic.DaysLeft,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"status":    lic.Status,
		"days_left": lic.DaysLeft,
	})
}

func (s *Server) activateFirstTime(w http.ResponseWriter, r *http.Request, req *models.ActivateRequest, raw *models.RawLicense, now time.Time, ip string) {
	masked := logger.MaskKey(req.LicenseKey)
	months := raw.Months
	if months < 1 {
		months = 1
	}
	expiry := now.AddDate(0, months, 0)

	full, hash := fingerprint(req)

	act := storage.Activation{
		AccountNumber:   req.AccountNumber,
		AccountOwner:    req.AccountOwner,
		AccountType:     req.AccountType,
		BrokerName:      req.BrokerName,
		RobotName:       req.RobotName,
		RobotVersion:    req.RobotVersion,
		TerminalVersion: req.TerminalVersion,
		OSInfo:          req.OSInfo,
		Fingerprint:     full,
		FingerprintHash: hash,
		IP:              ip,
		Balance:         req.Balance,
		ActivationDate:  now,
		ExpiryDate:      expiry,
	}

	if err := s.Storage.Activate(r.Context(), req.LicenseKey, act); err != nil {
		logger.Error("activation failed", map[string]interface{}{"key": masked, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Activation failed")
		return
	}

	logger.Info("license activated", map[string]interface{}{
		"key":     masked,
		"robot":   req.RobotName,
		"account": req.AccountNumber,
	})
	s.logEvent(r.Context(), models.EventLicenseActivated, req.LicenseKey, req.RobotName, raw.ClientName,
		fmt.Sprintf("License activated and bound to account %s", req.AccountNumber),
		models.PriorityNormal, map[string]string{
			"account": req.AccountNumber,
			"broker":  req.BrokerName,
			"ip":      ip,
		})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"status":      models.StatusActive,
		"message":     "License activated successfully",
		"expiry_date": models.FormatDate(expiry),
		"days_left":   months * 30,
	})
}

func (s *Server) Check(w http.ResponseWriter, r *http.Request) {
	var req models.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	if req.LicenseKey == "" || req.AccountNumber == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "MISSING_PARAMETERS",
		})
		return
	}

	ip := clientIP(r)
	masked := logger.MaskKey(req.LicenseKey)

	raw, err := s.Storage.GetLicense(r.Context(), req.LicenseKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Check failed")
		return
	}
	if raw == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"valid":   false,
			"error":   "LICENSE_NOT_FOUND",
		})
		return
	}

	now := time.Now()
	lic := models.NewLicense(*raw, now)
	failedCheck := storage.CheckUpdate{IP: ip, Balance: req.Balance, Failed: true, CheckedAt: now}

	if lic.IsBlocked() {
		_ = s.Storage.RecordCheck(r.Context(), req.LicenseKey, failedCheck)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"valid":   false,
			"error":   "LICENSE_BLOCKED",
		})
		return
	}

	if lic.AccountNumber != "" && lic.AccountNumber != req.AccountNumber {
		_ = s.Storage.RecordCheck(r.Context(), req.LicenseKey, failedCheck)
		s.logEvent(r.Context(), models.EventTheftAttempt, req.LicenseKey, req.RobotName, lic.ClientName,
			"Check from a different account", models.PriorityCritical, map[string]string{
				"actual_account": req.AccountNumber,
				"ip":             ip,
			})
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"valid":   false,
			"error":   "WRONG_ACCOUNT",
		})
		return
	}

	if lic.RobotName != "" && req.RobotName != "" && lic.RobotName != req.RobotName {
		_ = s.Storage.RecordCheck(r.Context(), req.LicenseKey, failedCheck)
		s.logEvent(r.Context(), models.EventRobotMismatch, req.LicenseKey, req.RobotName, lic.ClientName,
			"Check with a different robot", models.PriorityHigh, map[string]string{
				"expected_robot": lic.RobotName,
				"actual_robot":   req.RobotName,
				"ip":             ip,
			})
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"valid":   false,
			"error":   "WRONG_ROBOT",
		})
		return
	}

	if lic.ExpiryDate != nil && lic.ExpiryDate.Before(now) {
		// Flip the stored status the first time an expired license checks in.
		if lic.IsActive() {
			if err := s.Storage.SetStatus(r.Context(), req.LicenseKey, models.StatusExpired); err != nil {
				logger.Error("failed to mark license expired", map[string]interface{}{
					"key":   masked,
					"error": err.Error(),
				})
			}
		}
		_ = s.Storage.RecordCheck(r.Context(), req.LicenseKey, failedCheck)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"valid":   false,
			"error":   "LICENSE_EXPIRED",
		})
		return
	}

	err = s.Storage.RecordCheck(r.Context(), req.LicenseKey, storage.CheckUpdate{
		IP:        ip,
		Balance:   req.Balance,
		CheckedAt: now,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Check failed")
		return
	}

	logger.Debug("license check passed", map[string]interface{}{
		"key":       masked,
		"days_left": lic.DaysLeft,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"valid":     true,
		"status":    lic.Status,
		"days_left": lic.DaysLeft,
	})
}

func applyActivationDefaults(req *models.ActivateRequest) {
	if req.RobotName == "" {
		req.RobotName = "unknown"
	}
	if req.RobotVersion == "" {
		req.RobotVersion = "1.0"
	}
	if req.AccountType == "" {
		req.AccountType = models.AccountReal
	}
}

// fingerprint builds the full analytic fingerprint and the short binding
// hash. The hash covers only account and robot name, the pair a license
// is actually bound to.
func fingerprint(req *models.ActivateRequest) (full, hash string) {
	full = fmt.Sprintf("%s_%s_%s_%s_%s_%s",
		req.AccountNumber, req.BrokerName, req.AccountType,
		req.RobotName, req.RobotVersion, req.AccountOwner)

	sum := md5.Sum([]byte(req.AccountNumber + "_" + req.RobotName))
	hash = hex.EncodeToString(sum[:])[:8]
	return full, hash
}
