package models

// CreateLicenseRequest creates a new license. Universal licenses are not
// bound to a robot until first activation.
type CreateLicenseRequest struct {
	ClientName     string `json:"client_name"`
	ClientContact  string `json:"client_contact,omitempty"`
	ClientTelegram string `json:"client_telegram,omitempty"`
	RobotName      string `json:"robot_name,omitempty"`
	Months         int    `json:"months"`
	Notes          string `json:"notes,omitempty"`
	Universal      bool   `json:"universal"`
}

// UpdateLicenseRequest carries the editable fields. Nil means "leave
// unchanged".
type UpdateLicenseRequest struct {
	ClientName     *string `json:"client_name,omitempty"`
	ClientContact  *string `json:"client_contact,omitempty"`
	ClientTelegram *string `json:"client_telegram,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

// ExtendLicenseRequest extends the validity window by whole months.
type ExtendLicenseRequest struct {
	Months int `json:"months"`
}

// BlockLicenseRequest toggles the administrative block.
type BlockLicenseRequest struct {
	Blocked bool `json:"blocked"`
}

// ActivateRequest is sent by a robot binding a license to a trading
// account for the first time, and on every re-activation after that.
type ActivateRequest struct {
	LicenseKey      string  `json:"license_key"`
	AccountNumber   string  `json:"account_number"`
	AccountOwner    string  `json:"account_owner,omitempty"`
	AccountType     string  `json:"account_type,omitempty"`
	BrokerName      string  `json:"broker_name,omitempty"`
	RobotName       string  `json:"robot_name,omitempty"`
	RobotVersion    string  `json:"robot_version,omitempty"`
	TerminalVersion string  `json:"terminal_version,omitempty"`
	OSInfo          string  `json:"os_info,omitempty"`
	Balance         float64 `json:"balance,omitempty"`
}

// CheckRequest is the periodic heartbeat from a running robot.
type CheckRequest struct {
	LicenseKey    string  `json:"license_key"`
	AccountNumber string  `json:"account_number"`
	RobotName     string  `json:"robot_name,omitempty"`
	Balance       float64 `json:"balance,omitempty"`
}
