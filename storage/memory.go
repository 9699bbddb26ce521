package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradelic.app/cloud/models"
)

// MemoryStorage is the in-memory implementation used by tests.
type MemoryStorage struct {
	mu       sync.RWMutex
	Licenses map[string]models.RawLicense
	Events   []models.Event
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Licenses: make(map[string]models.RawLicense),
	}
}

func (m *MemoryStorage) ListLicenses(ctx context.Context, f Filters) ([]models.RawLicense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var licenses []models.RawLicense
	for _, lic := range m.Licenses {
		if f.Status != "" && lic.Status != f.Status {
			continue
		}
		if f.RobotName != "" && lic.RobotName != f.RobotName {
			continue
		}
		licenses = append(licenses, lic)
	}

	// Newest first; ISO-8601 strings sort lexicographically.
	sort.Slice(licenses, func(i, j int) bool {
		return licenses[i].CreatedDate > licenses[j].CreatedDate
	})

	return licenses, nil
}

func (m *MemoryStorage) GetLicense(ctx context.Context, key string) (*models.RawLicense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lic, exists := m.Licenses[key]
	if !exists {
		return nil, nil
	}
	return &lic, nil
}

func (m *MemoryStorage) CreateLicense(ctx context.Context, lic *models.RawLicense) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.Licenses[lic.LicenseKey]; exists {
		return fmt.Errorf("license %s already exists", lic.LicenseKey)
	}
	m.Licenses[lic.LicenseKey] = *lic
	return nil
}

func (m *MemoryStorage) UpdateLicense(ctx context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lic, exists := m.Licenses[key]
	if !exists {
		return ErrNotFound
	}

	for field, value := range fields {
		if !allowedUpdateFields[field] {
			continue
		}
		switch field {
		case "client_name":
			lic.ClientName = value
		case "client_contact":
			lic.ClientContact = value
		case "client_telegram":
			lic.ClientTelegram = value
		case "notes":
			lic.Notes = value
		}
	}

	m.Licenses[key] = lic
	return nil
}

func (m *MemoryStorage) SetStatus(ctx context.Context, key, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lic, exists := m.Licenses[key]
	if !exists {
		return ErrNotFound
	}
	lic.Status = status
	m.Licenses[key] = lic
	return nil
}

func (m *MemoryStorage) SetExpiry(ctx context.Context, key string, expiry time.Time, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lic, exists := m.Licenses[key]
	if !exists {
		return ErrNotFound
	}
	lic.ExpiryDate = models.FormatDate(expiry)
	if status != "" {
		lic.Status = status
	}
	m.Licenses[key] = lic
	return nil
}

func (m *MemoryStorage) Activate(ctx context.Context, key string, act Activation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lic, exists := m.Licenses[key]
	if !exists {
		return ErrNotFound
	}

	lic.RobotName = act.RobotName
	lic.RobotVersion = act.RobotVersion
	lic.AccountNumber = act.AccountNumber
	lic.AccountOwner = act.AccountOwner
	lic.AccountType = act.AccountType
	lic.BrokerName = act.BrokerName
	lic.Fingerprint = act.Fingerprint
	lic.FingerprintHash = act.FingerprintHash
	lic.ActivationDate = models.FormatDate(act.ActivationDate)
	lic.ActivationIP = act.IP
	lic.ExpiryDate = models.FormatDate(act.ExpiryDate)
	lic.Status = models.StatusActive
	lic.TerminalVersion = act.TerminalVersion
	lic.OSInfo = act.OSInfo
	lic.LastBalance = act.Balance
	lic.LastCheck = models.FormatDate(act.ActivationDate)
	lic.CheckCount = 1

	m.Licenses[key] = lic
	return nil
}

func (m *MemoryStorage) RecordCheck(ctx context.Context, key string, chk CheckUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lic, exists := m.Licenses[key]
	if !exists {
		return ErrNotFound
	}

	lic.LastCheck = models.FormatDate(chk.CheckedAt)
	lic.LastIP = chk.IP
	lic.LastBalance = chk.Balance
	if chk.TerminalVersion != "" {
		lic.TerminalVersion = chk.TerminalVersion
	}
	if chk.AccountOwner != "" {
		lic.AccountOwner = chk.AccountOwner
	}
	if chk.BrokerName != "" {
		lic.BrokerName = chk.BrokerName
	}
	if chk.AccountType != "" {
		lic.AccountType = chk.AccountType
	}

	switch {
	case chk.Failed:
		lic.FailedChecks++
	case chk.Heartbeat:
		lic.HeartbeatCount++
	default:
		lic.CheckCount++
		lic.FailedChecks = 0
	}

	m.Licenses[key] = lic
	return nil
}

func (m *MemoryStorage) DeleteLicense(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.Licenses[key]; !exists {
		return ErrNotFound
	}
	delete(m.Licenses, key)
	return nil
}

func (m *MemoryStorage) InsertEvent(ctx context.Context, ev *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Events = append(m.Events, *ev)
	return nil
}

func (m *MemoryStorage) ListEvents(ctx context.Context, days int) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().AddDate(0, 0, -days)
	var events []models.Event
	for i := len(m.Events) - 1; i >= 0; i-- {
		if m.Events[i].CreatedAt.After(cutoff) {
			events = append(events, m.Events[i])
		}
	}
	return events, nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
