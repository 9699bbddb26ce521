package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"

	"tradelic.app/cloud/models"
)

const (
	maxNameLength  = 100
	maxNotesLength = 1000
	maxMonths      = 36
)

// CreateLicense checks a creation request and reports every violation at
// once rather than the first one.
func CreateLicense(req *models.CreateLicenseRequest) error {
	var result *multierror.Error

	if strings.TrimSpace(req.ClientName) == "" {
		result = multierror.Append(result, fmt.Errorf("client_name is required"))
	}
	if utf8.RuneCountInString(req.ClientName) > maxNameLength {
		result = multierror.Append(result, fmt.Errorf("client_name exceeds %d characters", maxNameLength))
	}
	if req.Months < 1 || req.Months > maxMonths {
		result = multierror.Append(result, fmt.Errorf("months must be between 1 and %d", maxMonths))
	}
	if err := telegramHandle(req.ClientTelegram); err != nil {
		result = multierror.Append(result, err)
	}
	if utf8.RuneCountInString(req.Notes) > maxNotesLength {
		result = multierror.Append(result, fmt.Errorf("notes exceed %d characters", maxNotesLength))
	}
	if !req.Universal && strings.TrimSpace(req.RobotName) == "" {
		result = multierror.Append(result, fmt.Errorf("robot_name is required for non-universal licenses"))
	}

	return result.ErrorOrNil()
}

// UpdateLicense checks the editable fields of an update request.
func UpdateLicense(req *models.UpdateLicenseRequest) error {
	var result *multierror.Error

	if req.ClientName == nil && req.ClientContact == nil &&
		req.ClientTelegram == nil && req.Notes == nil {
		return fmt.Errorf("no fields to update")
	}

	if req.ClientName != nil {
		if strings.TrimSpace(*req.ClientName) == "" {
			result = multierror.Append(result, fmt.Errorf("client_name cannot be empty"))
		}
		if utf8.RuneCountInString(*req.ClientName) > maxNameLength {
			result = multierror.Append(result, fmt.Errorf("client_name exceeds %d characters", maxNameLength))
		}
	}
	if req.ClientTelegram != nil {
		if err := telegramHandle(*req.ClientTelegram); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if req.Notes != nil && utf8.RuneCountInString(*req.Notes) > maxNotesLength {
		result = multierror.Append(result, fmt.Errorf("notes exceed %d characters", maxNotesLength))
	}

	return result.ErrorOrNil()
}

// ExtendLicense checks an extension request.
func ExtendLicense(req *models.ExtendLicenseRequest) error {
	if req.Months < 1 || req.Months > maxMonths {
		return fmt.Errorf("months must be between 1 and %d", maxMonths)
	}
	return nil
}

func telegramHandle(handle string) error {
	if handle == "" {
		return nil
	}
	trimmed := strings.TrimPrefix(handle, "@")
	if len(trimmed) < 5 || len(trimmed) > 32 {
		return fmt.Errorf("telegram handle must be 5-32 characters")
	}
	for _, r := range trimmed {
		if !isHandleRune(r) {
			return fmt.Errorf("telegram handle contains invalid characters")
		}
	}
	return nil
}

func isHandleRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9', r == '_':
		return true
	}
	return false
}
