package storage

import (
	"context"
	"errors"
	"time"

	"tradelic.app/cloud/models"
)

// ErrNotFound is returned by mutations against a key that does not exist.
// Reads return (nil, nil) for missing records instead.
var ErrNotFound = errors.New("license not found")

// Filters narrows a license listing.
type Filters struct {
	Status    string
	RobotName string
}

// Activation carries everything written when a license is first bound to
// a trading account.
type Activation struct {
	AccountNumber   string
	AccountOwner    string
	AccountType     string
	BrokerName      string
	RobotName       string
	RobotVersion    string
	TerminalVersion string
	OSInfo          string
	Fingerprint     string
	FingerprintHash string
	IP              string
	Balance         float64
	ActivationDate  time.Time
	ExpiryDate      time.Time
}

// CheckUpdate records a successful or failed robot check-in. Empty string
// fields leave the stored value untouched.
type CheckUpdate struct {
	IP              string
	Balance         float64
	TerminalVersion string
	AccountOwner    string
	BrokerName      string
	AccountType     string
	Heartbeat       bool
	Failed          bool
	CheckedAt       time.Time
}

type Storage interface {
	ListLicenses(ctx context.Context, f Filters) ([]models.RawLicense, error)
	GetLicense(ctx context.Context, key string) (*models.RawLicense, error)
	CreateLicense(ctx context.Context, lic *models.RawLicense) error
	UpdateLicense(ctx context.Context, key string, fields map[string]string) error
	SetStatus(ctx context.Context, key, status string) error
	SetExpiry(ctx context.Context, key string, expiry time.Time, status string) error
	Activate(ctx context.Context, key string, act Activation) error
	RecordCheck(ctx context.Context, key string, chk CheckUpdate) error
	DeleteLicense(ctx context.Context, key string) error

	InsertEvent(ctx context.Context, ev *models.Event) error
	ListEvents(ctx context.Context, days int) ([]models.Event, error)

	Close() error
}

// Fields editable through UpdateLicense.
var allowedUpdateFields = map[string]bool{
	"client_name":     true,
	"client_contact":  true,
	"client_telegram": true,
	"notes":           true,
}
