package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	StatusCreated = "created"
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusBlocked = "blocked"
)

const (
	UrgencyCritical  = "critical"
	UrgencyWarning   = "warning"
	UrgencyAttention = "attention"
	UrgencyNormal    = "normal"
	UrgencyNone      = "none"
)

const (
	AccountReal = "real"
	AccountDemo = "demo"
)

// Sentinel values for DaysLeft. The derivation never produces "no value":
// a license without a resolvable expiry gets one of these instead.
const (
	DaysNotActivated = -1
	DaysUnlimited    = 999
)

// Accounts reporting balances above this without a declared type are
// treated as demo accounts.
const demoBalanceThreshold = 100000

// RawLicense is a license record as it crosses the wire or leaves the
// database: dates as ISO-8601 strings, nothing derived except what the
// server chose to include. DaysLeft is a pointer so a server-supplied
// value can be told apart from an absent one.
type RawLicense struct {
	LicenseKey      string   `json:"license_key"`
	ClientName      string   `json:"client_name"`
	ClientContact   string   `json:"client_contact,omitempty"`
	ClientTelegram  string   `json:"client_telegram,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	Status          string   `json:"status"`
	AccountNumber   string   `json:"account_number,omitempty"`
	AccountOwner    string   `json:"account_owner,omitempty"`
	AccountType     string   `json:"account_type,omitempty"`
	BrokerName      string   `json:"broker_name,omitempty"`
	LastBalance     float64  `json:"last_balance"`
	Months          int      `json:"months,omitempty"`
	CreatedDate     string   `json:"created_date,omitempty"`
	ActivationDate  string   `json:"activation_date,omitempty"`
	ExpiryDate      string   `json:"expiry_date,omitempty"`
	LastCheck       string   `json:"last_check,omitempty"`
	RobotName       string   `json:"robot_name,omitempty"`
	RobotVersion    string   `json:"robot_version,omitempty"`
	TerminalVersion string   `json:"terminal_version,omitempty"`
	OSInfo          string   `json:"os_info,omitempty"`
	ActivationIP    string   `json:"activation_ip,omitempty"`
	LastIP          string   `json:"last_ip,omitempty"`
	Fingerprint     string   `json:"fingerprint,omitempty"`
	FingerprintHash string   `json:"fingerprint_hash,omitempty"`
	CheckCount      int      `json:"check_count"`
	FailedChecks    int      `json:"failed_checks"`
	HeartbeatCount  int      `json:"heartbeat_count"`
	DaysLeft        *int     `json:"days_left,omitempty"`
	DaysLeftText    string   `json:"days_left_text,omitempty"`
	Urgency         string   `json:"urgency,omitempty"`
	HasProblems     bool     `json:"has_problems,omitempty"`
	Problems        []string `json:"problems,omitempty"`
}

// License is the canonical normalized record. Every raw payload is folded
// into this shape at the API boundary; nothing downstream re-parses dates
// or second-guesses field representation.
type License struct {
	Key             string     `json:"license_key"`
	ClientName      string     `json:"client_name"`
	ClientContact   string     `json:"client_contact,omitempty"`
	ClientTelegram  string     `json:"client_telegram,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Status          string     `json:"status"`
	AccountNumber   string     `json:"account_number,omitempty"`
	AccountOwner    string     `json:"account_owner"`
	AccountType     string     `json:"account_type"`
	BrokerName      string     `json:"broker_name,omitempty"`
	Balance         float64    `json:"last_balance"`
	Months          int        `json:"months,omitempty"`
	CreatedDate     *time.Time `json:"created_date,omitempty"`
	ActivationDate  *time.Time `json:"activation_date,omitempty"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
	LastCheck       *time.Time `json:"last_check,omitempty"`
	RobotName       string     `json:"robot_name,omitempty"`
	RobotVersion    string     `json:"robot_version,omitempty"`
	TerminalVersion string     `json:"terminal_version,omitempty"`
	ActivationIP    string     `json:"activation_ip,omitempty"`
	LastIP          string     `json:"last_ip,omitempty"`
	Fingerprint     string     `json:"fingerprint,omitempty"`
	CheckCount      int        `json:"check_count"`
	FailedChecks    int        `json:"failed_checks"`
	HeartbeatCount  int        `json:"heartbeat_count"`

	DaysLeft     int      `json:"days_left"`
	DaysLeftText string   `json:"days_left_text"`
	Urgency      string   `json:"urgency"`
	HasProblems  bool     `json:"has_problems"`
	Problems     []string `json:"problems,omitempty"`
}

// NewLicense normalizes a raw record and derives the display fields
// against the given wall-clock time. It never fails: unparseable dates
// become absent, missing fields fall back to sentinels.
func NewLicense(raw RawLicense, now time.Time) License {
	l := License{
		Key:             raw.LicenseKey,
		ClientName:      raw.ClientName,
		ClientContact:   raw.ClientContact,
		ClientTelegram:  raw.ClientTelegram,
		Notes:           raw.Notes,
		Status:          normalizeStatus(raw.Status),
		AccountNumber:   raw.AccountNumber,
		BrokerName:      raw.BrokerName,
		Balance:         raw.LastBalance,
		Months:          raw.Months,
		CreatedDate:     parseDate(raw.CreatedDate),
		ActivationDate:  parseDate(raw.ActivationDate),
		ExpiryDate:      parseDate(raw.ExpiryDate),
		LastCheck:       parseDate(raw.LastCheck),
		RobotName:       raw.RobotName,
		RobotVersion:    raw.RobotVersion,
		TerminalVersion: raw.TerminalVersion,
		ActivationIP:    raw.ActivationIP,
		LastIP:          raw.LastIP,
		Fingerprint:     raw.Fingerprint,
		CheckCount:      raw.CheckCount,
		FailedChecks:    raw.FailedChecks,
		HeartbeatCount:  raw.HeartbeatCount,
	}

	l.AccountType = normalizeAccountType(raw.AccountType, l.Balance)
	l.AccountOwner = resolveOwner(raw.AccountOwner, l.AccountNumber, l.Status)
	l.deriveDaysLeft(raw.DaysLeft, now)
	l.deriveUrgency()
	l.deriveProblems(now)

	return l
}

func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case StatusActive:
		return StatusActive
	case StatusExpired:
		return StatusExpired
	case StatusBlocked:
		return StatusBlocked
	}
	// Anything unrecognized degrades to created, same as an absent status.
	return StatusCreated
}

func normalizeAccountType(t string, balance float64) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case AccountReal:
		return AccountReal
	case AccountDemo:
		return AccountDemo
	}
	// Undeclared type: large balances are almost always demo accounts.
	if balance > demoBalanceThreshold {
		return AccountDemo
	}
	return AccountReal
}

// resolveOwner picks the account owner display value. Servers and robots
// hand back a mix of empty markers here, so anything that looks like "no
// value" falls through to the account number, then to a status hint.
func resolveOwner(owner, accountNumber, status string) string {
	trimmed := strings.TrimSpace(owner)
	switch trimmed {
	case "", "None", "null":
	default:
		return trimmed
	}
	if accountNumber != "" {
		return fmt.Sprintf("Account %s", accountNumber)
	}
	if status == StatusCreated {
		return "not activated"
	}
	return "—"
}

// deriveDaysLeft fills DaysLeft and DaysLeftText. A server-supplied value
// wins over local computation; otherwise the record degrades to the
// not-activated or unlimited sentinel rather than an error.
func (l *License) deriveDaysLeft(supplied *int, now time.Time) {
	switch {
	case supplied != nil:
		l.DaysLeft = *supplied
	case l.Status == StatusCreated:
		l.DaysLeft = DaysNotActivated
	case l.ExpiryDate == nil:
		l.DaysLeft = DaysUnlimited
	default:
		l.DaysLeft = max(0, floorDays(l.ExpiryDate.Sub(now)))
	}

	switch {
	case l.Status == StatusCreated:
		l.DaysLeftText = "(not activated)"
	case l.Status == StatusExpired:
		l.DaysLeftText = "expired"
	case l.Status == StatusBlocked:
		l.DaysLeftText = "blocked"
	case l.ExpiryDate == nil:
		l.DaysLeftText = "unlimited"
	default:
		// The text reports expiry from the unfloored delta even though the
		// numeric field clamps at zero.
		rawDays := floorDays(l.ExpiryDate.Sub(now))
		switch {
		case rawDays < 0:
			l.DaysLeftText = "expired"
		case l.DaysLeft == 0:
			l.DaysLeftText = "expires today"
		case l.DaysLeft <= 7:
			l.DaysLeftText = fmt.Sprintf("%d days!", l.DaysLeft)
		default:
			l.DaysLeftText = fmt.Sprintf("%d days", l.DaysLeft)
		}
	}
}

// deriveUrgency classifies time-to-expiry for active licenses. Thresholds
// are checked smallest first.
func (l *License) deriveUrgency() {
	if l.Status != StatusActive {
		l.Urgency = UrgencyNone
		return
	}
	switch {
	case l.DaysLeft <= 3:
		l.Urgency = UrgencyCritical
	case l.DaysLeft <= 7:
		l.Urgency = UrgencyWarning
	case l.DaysLeft <= 30:
		l.Urgency = UrgencyAttention
	default:
		l.Urgency = UrgencyNormal
	}
}

func (l *License) deriveProblems(now time.Time) {
	if l.Status != StatusActive {
		return
	}
	if l.DaysLeft <= 3 {
		l.Problems = append(l.Problems, "expiring soon")
	}
	if l.AccountType == AccountReal && l.Balance < 100 {
		l.Problems = append(l.Problems, "low balance")
	}
	if l.LastCheck != nil && now.Sub(*l.LastCheck) > 7*24*time.Hour {
		l.Problems = append(l.Problems, "not recently checked")
	}
	l.HasProblems = len(l.Problems) > 0
}

// floorDays converts a duration to whole days, rounding toward negative
// infinity so a partial day in the past still counts as overdue.
func floorDays(d time.Duration) int {
	return int(math.Floor(d.Hours() / 24))
}

func (l *License) IsActive() bool  { return l.Status == StatusActive }
func (l *License) IsExpired() bool { return l.Status == StatusExpired }
func (l *License) IsBlocked() bool { return l.Status == StatusBlocked }
func (l *License) IsCreated() bool { return l.Status == StatusCreated }

func (l *License) CanActivate() bool { return l.IsCreated() }
func (l *License) CanBlock() bool    { return l.IsActive() || l.IsCreated() }
func (l *License) CanUnblock() bool  { return l.IsBlocked() }
func (l *License) CanExtend() bool   { return l.IsActive() || l.IsExpired() }

// StatusDisplay returns the human-readable status label.
func (l *License) StatusDisplay() string {
	switch l.Status {
	case StatusActive:
		return "Active"
	case StatusExpired:
		return "Expired"
	case StatusBlocked:
		return "Blocked"
	case StatusCreated:
		return "Created"
	default:
		return "Unknown"
	}
}

// FormatBalance renders the balance like $850, $12.5K or $1.2M.
func (l *License) FormatBalance() string {
	return FormatBalance(l.Balance)
}

func FormatBalance(balance float64) string {
	switch {
	case balance >= 1000000:
		return fmt.Sprintf("$%.1fM", balance/1000000)
	case balance >= 1000:
		return fmt.Sprintf("$%.1fK", balance/1000)
	default:
		return fmt.Sprintf("$%.0f", balance)
	}
}

var brokerShortNames = map[string]string{
	"alpari":     "ALP",
	"roboforex":  "RFX",
	"fxopen":     "FXO",
	"exness":     "EXN",
	"xm":         "XM",
	"fbs":        "FBS",
	"instaforex": "INS",
	"fxtm":       "FXTM",
	"hotforex":   "HFX",
	"ic markets": "ICM",
}

// BrokerShort returns a short code for the broker name, falling back to
// the first three letters uppercased.
func (l *License) BrokerShort() string {
	if l.BrokerName == "" {
		return "N/A"
	}
	lower := strings.ToLower(l.BrokerName)
	for name, short := range brokerShortNames {
		if strings.Contains(lower, name) {
			return short
		}
	}
	if len(l.BrokerName) >= 3 {
		return strings.ToUpper(l.BrokerName[:3])
	}
	return strings.ToUpper(l.BrokerName)
}

// Search filters licenses by a case-insensitive substring match over the
// identifying fields.
func Search(licenses []License, query string) []License {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return licenses
	}

	var results []License
	for _, l := range licenses {
		fields := []string{
			l.Key, l.ClientName, l.ClientContact, l.ClientTelegram,
			l.AccountNumber, l.BrokerName, l.RobotName,
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), query) {
				results = append(results, l)
				break
			}
		}
	}
	return results
}

func (l License) String() string {
	return fmt.Sprintf("License(%s, %s, %s)", l.Key, l.ClientName, l.Status)
}
