package models

import "time"

// Event priorities.
const (
	PriorityNormal   = "normal"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Event types recorded by the server.
const (
	EventLicenseCreated    = "LICENSE_CREATED"
	EventLicenseUpdated    = "LICENSE_UPDATED"
	EventLicenseExtended   = "LICENSE_EXTENDED"
	EventLicenseBlocked    = "LICENSE_BLOCKED"
	EventLicenseUnblocked  = "LICENSE_UNBLOCKED"
	EventLicenseDeleted    = "LICENSE_DELETED"
	EventLicenseActivated  = "LICENSE_ACTIVATED"
	EventActivationBlocked = "ACTIVATION_BLOCKED"
	EventTheftAttempt      = "LICENSE_THEFT_ATTEMPT"
	EventRobotMismatch     = "ROBOT_MISMATCH"
	EventVersionMismatch   = "VERSION_MISMATCH"
)

// Event is one audit log entry. Writing events must never fail the
// operation that produced them.
type Event struct {
	ID          string            `json:"id"`
	Type        string            `json:"event_type"`
	LicenseKey  string            `json:"license_key,omitempty"`
	RobotName   string            `json:"robot_name,omitempty"`
	ClientName  string            `json:"client_name,omitempty"`
	Description string            `json:"description"`
	Priority    string            `json:"priority"`
	Details     map[string]string `json:"details,omitempty"`
	IPAddress   string            `json:"ip_address,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
